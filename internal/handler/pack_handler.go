package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/foodrescue-backend/internal/eligibility"
	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/service"
	"github.com/shinyyama/foodrescue-backend/internal/storage"
	"github.com/shopspring/decimal"
)

type PackHandler struct {
	svc service.PackService
	now func() time.Time
}

func NewPackHandler(svc service.PackService) *PackHandler {
	return &PackHandler{svc: svc, now: func() time.Time { return time.Now().UTC() }}
}

type EstablishmentSummary struct {
	ID        uint64  `json:"id"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Category  string  `json:"category"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type PackResponse struct {
	ID              uint64                `json:"id"`
	EstablishmentID uint64                `json:"establishmentId"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	OriginalPrice   decimal.Decimal       `json:"originalPrice"`
	DiscountedPrice decimal.Decimal       `json:"discountedPrice"`
	Quantity        int                   `json:"quantity"`
	AvailableFrom   string                `json:"availableFrom"`
	AvailableUntil  string                `json:"availableUntil"`
	PickupTimeStart string                `json:"pickupTimeStart,omitempty"`
	PickupTimeEnd   string                `json:"pickupTimeEnd,omitempty"`
	ImageURL        *string               `json:"imageUrl,omitempty"`
	CO2SavedKg      float64               `json:"co2SavedKg"`
	IsActive        bool                  `json:"isActive"`
	Establishment   *EstablishmentSummary `json:"establishment,omitempty"`
	DistanceKm      *float64              `json:"distanceKm,omitempty"`
	Purchasable     *bool                 `json:"purchasable,omitempty"`
	Reasons         []string              `json:"reasons,omitempty"`
	CreatedAt       string                `json:"createdAt"`
	UpdatedAt       string                `json:"updatedAt"`
}

type PackListResponse struct {
	Packs []PackResponse `json:"packs"`
	Total int64          `json:"total"`
}

type PackRequest struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	OriginalPrice   decimal.Decimal `json:"originalPrice"`
	DiscountedPrice decimal.Decimal `json:"discountedPrice"`
	Quantity        int             `json:"quantity"`
	AvailableFrom   time.Time       `json:"availableFrom"`
	AvailableUntil  time.Time       `json:"availableUntil"`
	PickupTimeStart string          `json:"pickupTimeStart"`
	PickupTimeEnd   string          `json:"pickupTimeEnd"`
}

func (r PackRequest) input() service.PackInput {
	return service.PackInput{
		Title:           r.Title,
		Description:     r.Description,
		OriginalPrice:   r.OriginalPrice,
		DiscountedPrice: r.DiscountedPrice,
		Quantity:        r.Quantity,
		AvailableFrom:   r.AvailableFrom,
		AvailableUntil:  r.AvailableUntil,
		PickupTimeStart: r.PickupTimeStart,
		PickupTimeEnd:   r.PickupTimeEnd,
	}
}

func toPackResponse(p *model.Pack) PackResponse {
	return PackResponse{
		ID:              p.ID,
		EstablishmentID: p.EstablishmentID,
		Title:           p.Title,
		Description:     p.Description,
		OriginalPrice:   p.OriginalPrice,
		DiscountedPrice: p.DiscountedPrice,
		Quantity:        p.Quantity,
		AvailableFrom:   formatTime(p.AvailableFrom),
		AvailableUntil:  formatTime(p.AvailableUntil),
		PickupTimeStart: p.PickupTimeStart,
		PickupTimeEnd:   p.PickupTimeEnd,
		ImageURL:        p.ImageURL,
		CO2SavedKg:      p.CO2SavedKg,
		IsActive:        p.IsActive,
		CreatedAt:       formatTime(p.CreatedAt),
		UpdatedAt:       formatTime(p.UpdatedAt),
	}
}

func toEstablishmentSummary(e *model.Establishment) *EstablishmentSummary {
	return &EstablishmentSummary{
		ID:        e.ID,
		Name:      e.Name,
		Address:   e.Address,
		Category:  e.Category,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
	}
}

func (h *PackHandler) List(c echo.Context) error {
	f := service.ListFilter{Category: c.QueryParam("category")}
	f.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	f.Offset, _ = strconv.Atoi(c.QueryParam("offset"))
	if c.QueryParam("lat") != "" || c.QueryParam("lng") != "" {
		lat, err1 := strconv.ParseFloat(c.QueryParam("lat"), 64)
		lng, err2 := strconv.ParseFloat(c.QueryParam("lng"), 64)
		if err1 != nil || err2 != nil {
			return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "lat and lng must both be numbers"))
		}
		f.Lat, f.Lng = &lat, &lng
		f.RadiusKm = 10
		if r := c.QueryParam("radiusKm"); r != "" {
			radius, err := strconv.ParseFloat(r, 64)
			if err != nil || radius <= 0 || radius > 100 {
				return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "radiusKm must be between 0 and 100"))
			}
			f.RadiusKm = radius
		}
	}
	listings, total, err := h.svc.ListAvailable(c.Request().Context(), f, h.now())
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := PackListResponse{Packs: make([]PackResponse, 0, len(listings)), Total: total}
	for i := range listings {
		l := &listings[i]
		pr := toPackResponse(&l.Pack)
		pr.Establishment = toEstablishmentSummary(&l.Establishment)
		pr.DistanceKm = l.DistanceKm
		resp.Packs = append(resp.Packs, pr)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *PackHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid pack id"))
	}
	d, err := h.svc.Get(c.Request().Context(), id, h.now())
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := toPackResponse(&d.Pack)
	resp.Establishment = toEstablishmentSummary(&d.Establishment)
	purchasable := len(d.Reasons) == 0
	resp.Purchasable = &purchasable
	resp.Reasons = eligibility.Codes(d.Reasons)
	return c.JSON(http.StatusOK, resp)
}

type availabilityResponse struct {
	PackID      uint64         `json:"packId"`
	Purchasable bool           `json:"purchasable"`
	Reasons     []reasonDetail `json:"reasons"`
	CheckedAt   string         `json:"checkedAt"`
}

type reasonDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *PackHandler) Availability(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid pack id"))
	}
	now := h.now()
	reasons, err := h.svc.Availability(c.Request().Context(), id, now)
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := availabilityResponse{
		PackID:      id,
		Purchasable: len(reasons) == 0,
		Reasons:     make([]reasonDetail, 0, len(reasons)),
		CheckedAt:   formatTime(now),
	}
	for _, r := range reasons {
		resp.Reasons = append(resp.Reasons, reasonDetail{Code: string(r), Message: r.Message()})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *PackHandler) ListByEstablishment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid establishment id"))
	}
	packs, err := h.svc.ListByEstablishment(c.Request().Context(), id, actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := make([]PackResponse, 0, len(packs))
	for i := range packs {
		resp = append(resp, toPackResponse(&packs[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"packs": resp})
}

func (h *PackHandler) Create(c echo.Context) error {
	estID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid establishment id"))
	}
	var req PackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	p, err := h.svc.Create(c.Request().Context(), estID, req.input(), actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toPackResponse(p))
}

func (h *PackHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid pack id"))
	}
	var req PackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	p, err := h.svc.Update(c.Request().Context(), id, req.input(), actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toPackResponse(p))
}

func (h *PackHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid pack id"))
	}
	deactivated, err := h.svc.Delete(c.Request().Context(), id, actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"deleted": !deactivated, "deactivated": deactivated})
}

func (h *PackHandler) UploadImage(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid pack id"))
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "image file is required"))
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "cannot read image"))
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, storage.MaxImageBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "cannot read image"))
	}
	p, err := h.svc.UploadImage(c.Request().Context(), id, actorFrom(c), http.DetectContentType(data), data)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toPackResponse(p))
}
