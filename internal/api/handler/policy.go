package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/kidfeed/internal/api/middleware"
	"github.com/mcoot/kidfeed/internal/api/request"
	"github.com/mcoot/kidfeed/internal/api/response"
	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/services/app"
)

// PolicyHandler handles parental-control endpoints
type PolicyHandler struct {
	controller *app.Controller
}

// NewPolicyHandler creates a new policy handler
func NewPolicyHandler(controller *app.Controller) *PolicyHandler {
	return &PolicyHandler{controller: controller}
}

// Get handles GET /api/v1/children/{handle}/policy
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	child := model.NormalizeHandle(mux.Vars(r)["handle"])

	p, err := h.controller.Policy(r.Context(), middleware.MustGetToken(r.Context()), child)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.OK(w, response.PolicyFromModel(p))
}

// Update handles PATCH /api/v1/children/{handle}/policy
func (h *PolicyHandler) Update(w http.ResponseWriter, r *http.Request) {
	child := model.NormalizeHandle(mux.Vars(r)["handle"])

	var req request.UpdatePolicyRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := h.controller.UpdatePolicy(r.Context(), middleware.MustGetToken(r.Context()), child, model.PolicyPatch{
		SessionBudgetMinutes: req.SessionBudgetMinutes,
		ContentFilterEnabled: req.ContentFilterEnabled,
		PostApprovalRequired: req.PostApprovalRequired,
		ViewOnly:             req.ViewOnly,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.OK(w, response.PolicyFromModel(p))
}
