package handler

import (
	"net/http"

	"github.com/mcoot/kidfeed/internal/api/middleware"
	"github.com/mcoot/kidfeed/internal/api/request"
	"github.com/mcoot/kidfeed/internal/api/response"
	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/services/app"
	"github.com/mcoot/kidfeed/internal/services/auth"
)

// AccountHandler handles signup, login and profile endpoints
type AccountHandler struct {
	controller *app.Controller
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(controller *app.Controller) *AccountHandler {
	return &AccountHandler{controller: controller}
}

// Signup handles POST /api/v1/accounts
func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req request.SignupRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.controller.Signup(r.Context(), auth.Registration{
		Handle:       req.Username,
		Password:     req.Password,
		DisplayName:  req.DisplayName,
		Bio:          req.Bio,
		Role:         model.Role(req.AccountType),
		Pin:          req.Pin,
		ParentHandle: req.ParentUsername,
		ParentPin:    req.ParentPin,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.AuthResponseFromLogin(result))
}

// Login handles POST /api/v1/sessions
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		WriteError(w, &model.ValidationError{Field: "username", Message: "Username and password are required"})
		return
	}

	result, err := h.controller.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.OK(w, response.AuthResponseFromLogin(result))
}

// Logout handles DELETE /api/v1/sessions/current
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	result, err := h.controller.Logout(r.Context(), middleware.MustGetToken(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.OK(w, response.LogoutResponseFromApp(result))
}

// Me handles GET /api/v1/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.controller.Me(r.Context(), middleware.MustGetToken(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.OK(w, response.ProfileFromApp(profile))
}

// UpdateAvatar handles PUT /api/v1/me/avatar
func (h *AccountHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	var req request.UpdateAvatarRequest
	if !decode(w, r, &req) {
		return
	}

	token := middleware.MustGetToken(r.Context())
	if err := h.controller.UpdateAvatar(r.Context(), token, model.AvatarID(req.Avatar)); err != nil {
		WriteError(w, err)
		return
	}

	profile, err := h.controller.Me(r.Context(), token)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.OK(w, response.ProfileFromApp(profile))
}

// Avatars handles GET /api/v1/avatars
func (h *AccountHandler) Avatars(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, response.AvatarsFromModel(model.Avatars()))
}

// SessionStatus handles GET /api/v1/session
func (h *AccountHandler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.controller.SessionStatus(r.Context(), middleware.MustGetToken(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.OK(w, response.SessionStatusFromApp(status))
}
