package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/workshop-market/internal/domain"
	"github.com/Clark-Hu/workshop-market/internal/query"
	"github.com/Clark-Hu/workshop-market/internal/reviews"
)

// ReviewService is the review workflow behind the /reviews routes.
type ReviewService interface {
	Create(ctx context.Context, actor domain.Actor, in reviews.CreateInput) (domain.Review, error)
	Get(ctx context.Context, id string) (domain.Review, error)
	Update(ctx context.Context, actor domain.Actor, id string, in reviews.UpdateInput) (domain.Review, error)
	Delete(ctx context.Context, actor domain.Actor, id string) error
	ListForTarget(ctx context.Context, itemType, itemID string, page query.Page) ([]domain.Review, error)
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var in reviews.CreateInput
	if err := decodeJSONBody(w, r, &in); err != nil {
		s.respondDecodeError(w, r, err)
		return
	}

	review, err := s.deps.Reviews.Create(r.Context(), actor, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusCreated, review)
}

// handleListReviews lists one target's reviews: ?itemType=Product&item=<id>&page=&limit=
func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	list, err := s.deps.Reviews.ListForTarget(r.Context(), values.Get("itemType"), values.Get("item"), query.ParsePage(values))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondList(w, list, len(list))
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	review, err := s.deps.Reviews.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, review)
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	var in reviews.UpdateInput
	if err := decodeJSONBody(w, r, &in); err != nil {
		s.respondDecodeError(w, r, err)
		return
	}

	review, err := s.deps.Reviews.Update(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, review)
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Reviews.Delete(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, struct{}{})
}
