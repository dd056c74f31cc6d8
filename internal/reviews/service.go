// Package reviews implements the review workflow: one review per user per
// target, ownership-gated edits, and a rating refresh after every mutation.
package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Clark-Hu/workshop-market/internal/apperr"
	"github.com/Clark-Hu/workshop-market/internal/authz"
	"github.com/Clark-Hu/workshop-market/internal/domain"
	"github.com/Clark-Hu/workshop-market/internal/metrics"
	"github.com/Clark-Hu/workshop-market/internal/query"
	"github.com/Clark-Hu/workshop-market/internal/repository"
)

// Store is the review persistence the workflow needs.
type Store interface {
	Create(ctx context.Context, params repository.ReviewCreateParams) (domain.Review, error)
	Get(ctx context.Context, id string) (domain.Review, error)
	Update(ctx context.Context, id string, patch repository.ReviewPatch) (domain.Review, error)
	Delete(ctx context.Context, id string) (domain.Review, error)
	ListByTarget(ctx context.Context, item domain.Target, page query.Page) ([]domain.Review, error)
}

// Targets reports whether a reviewable entity exists.
type Targets interface {
	Exists(ctx context.Context, target domain.Target) (bool, error)
}

// Refresher recomputes a target's aggregate rating without failing the caller.
type Refresher interface {
	Refresh(ctx context.Context, target domain.Target)
}

// CreateInput is the payload for a new review.
type CreateInput struct {
	ItemID   string `json:"item"`
	ItemType string `json:"itemType"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}

// UpdateInput patches rating and/or comment.
type UpdateInput struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

type Service struct {
	store   Store
	targets Targets
	ratings Refresher
}

func NewService(store Store, targets Targets, ratings Refresher) *Service {
	return &Service{store: store, targets: targets, ratings: ratings}
}

// Create records actor's review of a target and refreshes its aggregate.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (domain.Review, error) {
	if actor.Anonymous() {
		return domain.Review{}, apperr.Unauthorized("Authentication required")
	}
	target, err := parseTarget(in.ItemType, in.ItemID)
	if err != nil {
		return domain.Review{}, err
	}
	if err := validateRating(in.Rating); err != nil {
		return domain.Review{}, err
	}

	exists, err := s.targets.Exists(ctx, target)
	if err != nil {
		return domain.Review{}, fmt.Errorf("lookup review target: %w", err)
	}
	if !exists {
		return domain.Review{}, apperr.NotFound(fmt.Sprintf("%s not found", target.Type))
	}

	review, err := s.store.Create(ctx, repository.ReviewCreateParams{
		UserID:  actor.ID,
		Item:    target,
		Rating:  in.Rating,
		Comment: strings.TrimSpace(in.Comment),
	})
	if errors.Is(err, repository.ErrDuplicateReview) {
		return domain.Review{}, apperr.Conflict("You have already reviewed this item")
	}
	if err != nil {
		return domain.Review{}, err
	}

	metrics.ReviewsWritten.WithLabelValues("create").Inc()
	s.ratings.Refresh(context.WithoutCancel(ctx), target)
	return review, nil
}

// Get returns a single review.
func (s *Service) Get(ctx context.Context, id string) (domain.Review, error) {
	review, err := s.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Review{}, apperr.NotFound("Review not found")
	}
	return review, err
}

// Update lets the author or an admin change rating and comment.
func (s *Service) Update(ctx context.Context, actor domain.Actor, id string, in UpdateInput) (domain.Review, error) {
	if in.Rating != nil {
		if err := validateRating(*in.Rating); err != nil {
			return domain.Review{}, err
		}
	}
	if _, err := authz.Load(ctx, authz.Reviews, actor, id, s.store.Get, authz.NotFoundIs(repository.ErrNotFound)); err != nil {
		return domain.Review{}, err
	}

	patch := repository.ReviewPatch{Rating: in.Rating}
	if in.Comment != nil {
		comment := strings.TrimSpace(*in.Comment)
		patch.Comment = &comment
	}
	review, err := s.store.Update(ctx, id, patch)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Review{}, apperr.NotFound("Review not found")
	}
	if err != nil {
		return domain.Review{}, err
	}

	metrics.ReviewsWritten.WithLabelValues("update").Inc()
	s.ratings.Refresh(context.WithoutCancel(ctx), review.Item)
	return review, nil
}

// Delete lets the author or an admin remove a review.
func (s *Service) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if _, err := authz.Load(ctx, authz.Reviews, actor, id, s.store.Get, authz.NotFoundIs(repository.ErrNotFound)); err != nil {
		return err
	}

	review, err := s.store.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("Review not found")
	}
	if err != nil {
		return err
	}

	metrics.ReviewsWritten.WithLabelValues("delete").Inc()
	s.ratings.Refresh(context.WithoutCancel(ctx), review.Item)
	return nil
}

// ListForTarget returns one page of a target's reviews.
func (s *Service) ListForTarget(ctx context.Context, itemType, itemID string, page query.Page) ([]domain.Review, error) {
	target, err := parseTarget(itemType, itemID)
	if err != nil {
		return nil, err
	}
	return s.store.ListByTarget(ctx, target, page)
}

func parseTarget(itemType, itemID string) (domain.Target, error) {
	kind, err := domain.ParseKind(itemType)
	if err != nil {
		return domain.Target{}, apperr.BadRequest("Invalid item type")
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return domain.Target{}, apperr.Validation("Item id is required")
	}
	return domain.Target{ID: itemID, Type: kind}, nil
}

func validateRating(rating int) error {
	if rating < domain.MinRating || rating > domain.MaxRating {
		return apperr.Validation(fmt.Sprintf("Rating must be between %d and %d", domain.MinRating, domain.MaxRating))
	}
	return nil
}
