package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/foodrescue-backend/internal/eligibility"
	appmw "github.com/shinyyama/foodrescue-backend/internal/middleware"
	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testPack() model.Pack {
	return model.Pack{
		ID:              7,
		EstablishmentID: 3,
		Title:           "Bread bag",
		OriginalPrice:   decimal.RequireFromString("12.00"),
		DiscountedPrice: decimal.RequireFromString("4.50"),
		Quantity:        5,
		AvailableFrom:   t0.Add(-time.Hour),
		AvailableUntil:  t0.Add(3 * time.Hour),
		IsActive:        true,
	}
}

func fixedPackHandler(svc service.PackService) *PackHandler {
	h := NewPackHandler(svc)
	h.now = func() time.Time { return t0 }
	return h
}

func TestPackListParsesFilter(t *testing.T) {
	var got service.ListFilter
	svc := &fakePackService{listAvailable: func(f service.ListFilter, now time.Time) ([]service.PackListing, int64, error) {
		got = f
		assert.Equal(t, t0, now)
		dist := 1.25
		return []service.PackListing{{Pack: testPack(), Establishment: model.Establishment{ID: 3, Name: "Panadería"}, DistanceKm: &dist}}, 1, nil
	}}
	h := fixedPackHandler(svc)

	rec := serve(t, h.List, call{method: http.MethodGet, route: "/api/packs",
		path: "/api/packs?category=bakery&lat=-34.6&lng=-58.38&radiusKm=5&limit=10&offset=20"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bakery", got.Category)
	require.NotNil(t, got.Lat)
	assert.InDelta(t, -34.6, *got.Lat, 1e-9)
	assert.InDelta(t, 5.0, got.RadiusKm, 1e-9)
	assert.Equal(t, 10, got.Limit)
	assert.Equal(t, 20, got.Offset)

	var resp PackListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Packs, 1)
	assert.Equal(t, int64(1), resp.Total)
	assert.Equal(t, "Panadería", resp.Packs[0].Establishment.Name)
	assert.InDelta(t, 1.25, *resp.Packs[0].DistanceKm, 1e-9)
}

func TestPackListRejectsBadCoordinates(t *testing.T) {
	h := fixedPackHandler(&fakePackService{})
	for _, q := range []string{"lat=abc&lng=1", "lat=1", "lat=1&lng=2&radiusKm=-3", "lat=1&lng=2&radiusKm=500"} {
		rec := serve(t, h.List, call{method: http.MethodGet, route: "/api/packs", path: "/api/packs?" + q})
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestPackGetAndAvailability(t *testing.T) {
	svc := &fakePackService{
		get: func(id uint64) (*service.PackDetail, error) {
			p := testPack()
			p.Quantity = 0
			return &service.PackDetail{Pack: p, Reasons: []eligibility.Reason{eligibility.ReasonSoldOut}}, nil
		},
		availability: func(id uint64) ([]eligibility.Reason, error) {
			if id == 404 {
				return nil, service.ErrNotFound
			}
			return []eligibility.Reason{eligibility.ReasonExpired}, nil
		},
	}
	h := fixedPackHandler(svc)

	rec := serve(t, h.Get, call{method: http.MethodGet, route: "/api/packs/:id", path: "/api/packs/7"})
	require.Equal(t, http.StatusOK, rec.Code)
	var detail PackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.NotNil(t, detail.Purchasable)
	assert.False(t, *detail.Purchasable)
	assert.Equal(t, []string{"SOLD_OUT"}, detail.Reasons)

	rec = serve(t, h.Availability, call{method: http.MethodGet, route: "/api/packs/:id/availability", path: "/api/packs/7/availability"})
	require.Equal(t, http.StatusOK, rec.Code)
	var av availabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &av))
	assert.False(t, av.Purchasable)
	require.Len(t, av.Reasons, 1)
	assert.Equal(t, "EXPIRED", av.Reasons[0].Code)
	assert.NotEmpty(t, av.Reasons[0].Message)

	rec = serve(t, h.Availability, call{method: http.MethodGet, route: "/api/packs/:id/availability", path: "/api/packs/404/availability"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, h.Get, call{method: http.MethodGet, route: "/api/packs/:id", path: "/api/packs/x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPackCreate(t *testing.T) {
	owner := service.Actor{UID: "owner"}
	svc := &fakePackService{create: func(estID uint64, in service.PackInput, actor service.Actor) (*model.Pack, error) {
		assert.Equal(t, uint64(3), estID)
		assert.Equal(t, "owner", actor.UID)
		if in.Title == "" {
			return nil, &service.ValidationError{Field: "title", Msg: "is required"}
		}
		assert.True(t, in.DiscountedPrice.Equal(decimal.RequireFromString("4.5")))
		p := testPack()
		p.Title = in.Title
		return &p, nil
	}}
	h := fixedPackHandler(svc)

	body := `{"title":"Bread bag","originalPrice":"12","discountedPrice":4.5,"quantity":5,` +
		`"availableFrom":"2026-03-10T11:00:00Z","availableUntil":"2026-03-10T15:00:00Z"}`
	rec := serve(t, h.Create, call{method: http.MethodPost, route: "/api/establishments/:id/packs",
		path: "/api/establishments/3/packs", body: body, actor: &owner})
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp PackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Bread bag", resp.Title)
	assert.Equal(t, "2026-03-10T11:00:00Z", resp.AvailableFrom)

	rec = serve(t, h.Create, call{method: http.MethodPost, route: "/api/establishments/:id/packs",
		path: "/api/establishments/3/packs", body: `{"title":""}`, actor: &owner})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"title"`)
}

func TestPackUploadImageDetectsContentType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000000000000000")
	svc := &fakePackService{upload: func(id uint64, contentType string, data []byte) (*model.Pack, error) {
		assert.Equal(t, "image/png", contentType)
		assert.Equal(t, png, data)
		p := testPack()
		u := "https://example.test/p.png"
		p.ImageURL = &u
		return &p, nil
	}}
	h := fixedPackHandler(svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "p.png")
	require.NoError(t, err)
	_, err = fw.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/packs/7/image", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("7")
	c.Set(appmw.ContextUID, "owner")
	require.NoError(t, h.UploadImage(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "p.png")

	rec = serve(t, h.UploadImage, call{method: http.MethodPost, route: "/api/packs/:id/image", path: "/api/packs/7/image", body: `{}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
