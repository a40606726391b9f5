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

// FeedHandler handles the feed, posting, approval and like endpoints
type FeedHandler struct {
	controller *app.Controller
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(controller *app.Controller) *FeedHandler {
	return &FeedHandler{controller: controller}
}

// Feed handles GET /api/v1/feed
func (h *FeedHandler) Feed(w http.ResponseWriter, r *http.Request) {
	items, err := h.controller.Feed(r.Context(), middleware.MustGetToken(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.OK(w, response.FeedFromApp(items))
}

// CreatePost handles POST /api/v1/posts.
// 201 when published, 202 when the post waits for a parent's PIN.
func (h *FeedHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req request.CreatePostRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.controller.SubmitPost(r.Context(), middleware.MustGetToken(r.Context()), req.Content)
	if err != nil {
		WriteError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Post == nil {
		status = http.StatusAccepted
	}
	response.JSON(w, status, response.SubmitResponseFromApp(result))
}

// ApprovePending handles POST /api/v1/posts/pending/approve
func (h *FeedHandler) ApprovePending(w http.ResponseWriter, r *http.Request) {
	var req request.ApprovePostRequest
	if !decode(w, r, &req) {
		return
	}

	post, err := h.controller.ApprovePost(r.Context(), middleware.MustGetToken(r.Context()), req.Pin)
	if err != nil {
		WriteError(w, err)
		return
	}

	p := response.PostFromModel(post)
	response.JSON(w, http.StatusCreated, response.SubmitResponse{Status: response.StatusPublished, Post: &p})
}

// CancelPending handles DELETE /api/v1/posts/pending
func (h *FeedHandler) CancelPending(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.CancelPost(r.Context(), middleware.MustGetToken(r.Context())); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// ToggleLike handles POST /api/v1/posts/{id}/like
func (h *FeedHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	id := model.PostID(mux.Vars(r)["id"])

	result, err := h.controller.ToggleLike(r.Context(), middleware.MustGetToken(r.Context()), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.OK(w, response.Like{Liked: result.Liked, Likes: result.Likes})
}
