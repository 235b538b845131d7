package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/service"
)

type EstablishmentHandler struct {
	svc service.EstablishmentService
}

func NewEstablishmentHandler(svc service.EstablishmentService) *EstablishmentHandler {
	return &EstablishmentHandler{svc: svc}
}

type EstablishmentResponse struct {
	ID                 uint64  `json:"id"`
	OwnerUID           string  `json:"ownerUid"`
	Name               string  `json:"name"`
	Description        string  `json:"description"`
	Address            string  `json:"address"`
	Phone              string  `json:"phone"`
	Email              string  `json:"email,omitempty"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	Category           string  `json:"category"`
	VerificationStatus string  `json:"verificationStatus"`
	VerificationNote   *string `json:"verificationNote,omitempty"`
	VerifiedAt         *string `json:"verifiedAt,omitempty"`
	IsActive           bool    `json:"isActive"`
	CreatedAt          string  `json:"createdAt"`
	UpdatedAt          string  `json:"updatedAt"`
}

func toEstablishmentResponse(e *model.Establishment) EstablishmentResponse {
	return EstablishmentResponse{
		ID:                 e.ID,
		OwnerUID:           e.OwnerUID,
		Name:               e.Name,
		Description:        e.Description,
		Address:            e.Address,
		Phone:              e.Phone,
		Email:              e.Email,
		Latitude:           e.Latitude,
		Longitude:          e.Longitude,
		Category:           e.Category,
		VerificationStatus: string(e.VerificationStatus),
		VerificationNote:   strPtrOrNil(e.VerificationNote),
		VerifiedAt:         formatTimePtr(e.VerifiedAt),
		IsActive:           e.IsActive,
		CreatedAt:          formatTime(e.CreatedAt),
		UpdatedAt:          formatTime(e.UpdatedAt),
	}
}

type EstablishmentRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Address     string  `json:"address"`
	Phone       string  `json:"phone"`
	Email       string  `json:"email"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Category    string  `json:"category"`
}

func (r EstablishmentRequest) input() service.EstablishmentInput {
	return service.EstablishmentInput{
		Name:        r.Name,
		Description: r.Description,
		Address:     r.Address,
		Phone:       r.Phone,
		Email:       r.Email,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Category:    r.Category,
	}
}

func (h *EstablishmentHandler) Create(c echo.Context) error {
	var req EstablishmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	e, err := h.svc.Create(c.Request().Context(), req.input(), actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toEstablishmentResponse(e))
}

func (h *EstablishmentHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid establishment id"))
	}
	var req EstablishmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	e, err := h.svc.Update(c.Request().Context(), id, req.input(), actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toEstablishmentResponse(e))
}

// Get is public; contact email is only shown to the owner.
func (h *EstablishmentHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid establishment id"))
	}
	e, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := toEstablishmentResponse(e)
	if actor := actorFrom(c); !actor.Admin && !actor.Is(e.OwnerUID) {
		resp.Email = ""
		resp.VerificationNote = nil
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *EstablishmentHandler) ListMine(c echo.Context) error {
	list, err := h.svc.ListMine(c.Request().Context(), actorFrom(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := make([]EstablishmentResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toEstablishmentResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"establishments": resp})
}
