package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"bookshelf/internal/adapters/observability"
	"bookshelf/internal/app"
	"bookshelf/internal/domain"
)

const maxBodyBytes = 64 << 10

type Handlers struct {
	Reviews      *app.ReviewService
	Interactions *app.InteractionService
	Stats        *app.StatsService
}

type problem struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// MountHandlers registers the API. Routes under the auth group need a
// bearer token; mutating ones are also throttled per user.
func (s *Server) MountHandlers(h *Handlers, verifier JWTVerifier, limiter Limiter, backend string) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1", func(r chi.Router) {
		r.Get("/books/{bookId}/reviews", h.getBookReviews)
		r.Get("/users/{userId}/reviews", h.getUserReviews)
		r.Get("/reviews/{id}/comments", h.getReviewComments)
		r.Get("/stats/users/{userId}", h.getUserStats)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser(verifier))
			r.Use(ThrottleWrites(limiter, backend))

			r.Post("/reviews", h.createReview)
			r.Put("/reviews/{id}", h.updateReview)
			r.Delete("/reviews/{id}", h.deleteReview)
			r.Get("/books/{bookId}/reviews/mine", h.getMyReview)

			r.Post("/reviews/{id}/likes", h.likeReview)
			r.Delete("/reviews/{id}/likes", h.unlikeReview)
			r.Get("/reviews/{id}/likes/status", h.likeStatus)

			r.Post("/reviews/{id}/comments", h.addComment)
			r.Delete("/reviews/{id}/comments/{commentId}", h.deleteComment)

			r.Get("/stats/me", h.getMyStats)
		})
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain failures onto statuses. Anything unrecognised is a
// 500 with an opaque body; the cause is logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *app.ValidationError
	switch {
	case errors.As(err, &ve):
		writeProblemBody(w, problem{Type: "about:blank", Title: "Validation Failed", Status: http.StatusBadRequest, Detail: ve.Error(), Errors: ve.Fields()})
	case errors.Is(err, domain.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Str("method", r.Method).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "request body must be a JSON object")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", name+" must be a positive number")
		return 0, false
	}
	return id, true
}

// caller is only called behind RequireUser.
func caller(r *http.Request) int64 {
	uid, _ := UserIDFromContext(r.Context())
	return uid
}

// ---- reviews ----

func (h *Handlers) createReview(w http.ResponseWriter, r *http.Request) {
	var in app.CreateReviewInput
	if !decodeBody(w, r, &in) {
		return
	}
	out, err := h.Reviews.CreateReview(r.Context(), caller(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	observability.ObserveEvent("review_created")
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) updateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in app.UpdateReviewInput
	if !decodeBody(w, r, &in) {
		return
	}
	out, err := h.Reviews.UpdateReview(r.Context(), caller(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	observability.ObserveEvent("review_updated")
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Reviews.DeleteReview(r.Context(), caller(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	observability.ObserveEvent("review_deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) getBookReviews(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}
	out, err := h.Reviews.GetBookReviews(r.Context(), bookID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getMyReview(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "bookId")
	if !ok {
		return
	}
	out, err := h.Reviews.GetUserReviewForBook(r.Context(), caller(r), bookID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getUserReviews(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	out, err := h.Reviews.GetUserReviews(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- likes ----

func (h *Handlers) likeReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Interactions.LikeReview(r.Context(), caller(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	observability.ObserveEvent("like_added")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) unlikeReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Interactions.UnlikeReview(r.Context(), caller(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	observability.ObserveEvent("like_removed")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) likeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	liked, err := h.Interactions.HasLiked(r.Context(), caller(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

// ---- comments ----

func (h *Handlers) addComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in app.AddCommentInput
	if !decodeBody(w, r, &in) {
		return
	}
	out, err := h.Interactions.AddComment(r.Context(), caller(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	observability.ObserveEvent("comment_added")
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) getReviewComments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	out, err := h.Interactions.GetReviewComments(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) deleteComment(w http.ResponseWriter, r *http.Request) {
	commentID, ok := pathID(w, r, "commentId")
	if !ok {
		return
	}
	if err := h.Interactions.DeleteComment(r.Context(), caller(r), commentID); err != nil {
		writeError(w, r, err)
		return
	}
	observability.ObserveEvent("comment_deleted")
	w.WriteHeader(http.StatusNoContent)
}

// ---- stats ----

func (h *Handlers) getMyStats(w http.ResponseWriter, r *http.Request) {
	h.writeStats(w, r, caller(r))
}

func (h *Handlers) getUserStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	h.writeStats(w, r, userID)
}

func (h *Handlers) writeStats(w http.ResponseWriter, r *http.Request, userID int64) {
	out, err := h.Stats.GetReadingStats(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
