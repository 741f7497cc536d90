package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Crosspost/internal/domain"
)

// Health отвечает на проверку живости.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Component: h.component,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
	}

	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.Warn("health check failed", "error", err)
			resp.Status = "unavailable"
			resp.Error = err.Error()
			JSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	JSON(w, http.StatusOK, resp)
}

// GetPublishingSummary возвращает сводку публикации поста по платформам.
// GET /api/v1/posts/{id}/publishing
func (h *Handler) GetPublishingSummary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid post id")
		return
	}

	post, err := h.posts.GetPost(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "post not found") {
		return
	}

	targets, err := h.posts.ListTargets(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	Success(w, PublishingResponse{
		Post:    PostFromDomain(post),
		Summary: domain.Summarize(post, targets),
	})
}
