package ai

import (
	"fmt"
	"strings"
)

const basePrompt = `You estimate the greenhouse gas emissions avoided when surplus food is sold instead of thrown away.
Given a surprise pack of unsold food from a shop, estimate the avoided emissions in kilograms of CO2e for ONE pack.

Rules:
* Consider production, transport and landfill emissions of the food that would have been wasted.
* Reply with a single number wrapped in dollar signs, e.g. $2.5$. No words, units or line breaks.
* The number must be between 0 and 50, with at most one decimal place. Reply $0$ if you cannot tell.`

// categoryHints calibrate the estimate for common establishment categories.
var categoryHints = map[string]string{
	"bakery":      "Bread and pastries: roughly 1 to 2 kg of product per pack, low emission intensity.",
	"restaurant":  "Prepared meals: typically 1 to 3 portions, may include meat or dairy.",
	"cafe":        "Sandwiches, pastries and drinks: small portions, mixed ingredients.",
	"grocery":     "Mixed groceries: fruit, vegetables and packaged goods, 2 to 4 kg per pack.",
	"supermarket": "Mixed groceries: fruit, vegetables, dairy and packaged goods, 2 to 5 kg per pack.",
	"butcher":     "Meat products: high emission intensity per kilogram.",
}

func buildPrompt(in EstimateInput) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	if hint, ok := categoryHints[strings.ToLower(strings.TrimSpace(in.Category))]; ok {
		b.WriteString("\n\nCategory guidance: ")
		b.WriteString(hint)
	}
	return b.String()
}

func describePack(in EstimateInput) string {
	return fmt.Sprintf("Title: %s\nDescription: %s\nShop category: %s", in.Title, in.Description, in.Category)
}
