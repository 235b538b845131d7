package handler

import (
	"context"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/foodrescue-backend/internal/service"
)

type userLookup interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
}

type UserHandler struct {
	users  userLookup
	impact service.ImpactService
}

func NewUserHandler(users userLookup, impact service.ImpactService) *UserHandler {
	return &UserHandler{users: users, impact: impact}
}

type PublicUserResponse struct {
	UID         string          `json:"uid"`
	DisplayName string          `json:"displayName"`
	PhotoURL    *string         `json:"photoURL"`
	Impact      *ImpactResponse `json:"impact,omitempty"`
}

func (h *UserHandler) GetPublic(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid uid"))
	}
	user, err := h.users.GetUser(c.Request().Context(), uid)
	if err != nil || user.UserInfo == nil {
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "user not found"))
	}
	resp := PublicUserResponse{
		UID:         user.UID,
		DisplayName: user.DisplayName,
		PhotoURL:    strPtrOrNil(user.PhotoURL),
	}
	if h.impact != nil {
		if impact, err := h.impact.Get(c.Request().Context(), uid); err == nil {
			r := toImpactResponse(impact)
			resp.Impact = &r
		}
	}
	return c.JSON(http.StatusOK, resp)
}
