package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const maxPackCO2Kg = 50

type EstimateInput struct {
	PackID      uint64
	Title       string
	Description string
	Category    string
}

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error)

// CO2Estimator asks Gemini for the emissions a pack avoids.
type CO2Estimator struct {
	model    string
	generate generateFunc
	log      *zap.Logger
}

// NewCO2Estimator builds a client from the GOOGLE_API_KEY or Vertex AI
// environment variables.
func NewCO2Estimator(ctx context.Context, model string, log *zap.Logger) (*CO2Estimator, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	gen := func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
		res, err := client.Models.GenerateContent(ctx, model, contents, cfg)
		if err != nil {
			return "", err
		}
		return res.Text(), nil
	}
	return newCO2Estimator(model, gen, log), nil
}

func newCO2Estimator(model string, gen generateFunc, log *zap.Logger) *CO2Estimator {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CO2Estimator{model: model, generate: gen, log: log}
}

// Estimate returns kilograms of CO2e avoided by one pack.
func (c *CO2Estimator) Estimate(ctx context.Context, in EstimateInput) (float64, error) {
	log := c.log.With(
		zap.Uint64("pack_id", in.PackID),
		zap.String("model", c.model))
	start := time.Now()

	parts := []*genai.Part{
		genai.NewPartFromText(buildPrompt(in)),
		genai.NewPartFromText(describePack(in)),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	temp := float32(0)
	cfg := &genai.GenerateContentConfig{Temperature: &temp}

	raw, err := c.generate(ctx, c.model, contents, cfg)
	if err != nil {
		log.Warn("co2 estimate failed", zap.String("stage", "generate"), zap.Error(err))
		return 0, fmt.Errorf("gemini generate: %w", err)
	}
	val, unit, err := ParseCO2WithUnit(raw)
	if err != nil {
		log.Warn("co2 estimate failed", zap.String("stage", "parse"), zap.String("text", snippet(raw, 80)), zap.Error(err))
		return 0, err
	}
	kg := normalizeKg(val, unit)
	log.Info("co2 estimated",
		zap.Float64("kg", kg),
		zap.String("unit", unit),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	return kg, nil
}

// snippet flattens s onto one line and keeps at most n runes.
func snippet(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

// normalizeKg converts gram answers and clamps the value to a plausible range.
func normalizeKg(val float64, unit string) float64 {
	u := strings.ToLower(unit)
	if strings.HasPrefix(u, "g") {
		val /= 1000
	}
	if val < 0 {
		return 0
	}
	if val > maxPackCO2Kg {
		return maxPackCO2Kg
	}
	return val
}
