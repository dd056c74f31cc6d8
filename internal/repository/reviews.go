package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/workshop-market/internal/domain"
	"github.com/Clark-Hu/workshop-market/internal/query"
)

const uniqueViolation = "23505"

// ReviewsRepository persists reviews in Postgres.
type ReviewsRepository struct {
	pool *pgxpool.Pool
}

// NewReviews binds the pgx pool.
func NewReviews(pool *pgxpool.Pool) *ReviewsRepository {
	return &ReviewsRepository{pool: pool}
}

const reviewColumns = `id::text, user_id, item_id, item_type, rating, comment, created_at, updated_at`

// ReviewCreateParams bundles the fields required to create a review.
type ReviewCreateParams struct {
	UserID  string
	Item    domain.Target
	Rating  int
	Comment string
}

// ReviewPatch carries the optional fields of an update.
type ReviewPatch struct {
	Rating  *int
	Comment *string
}

// Create inserts a review. A second review by the same user on the same target
// returns ErrDuplicateReview, whether caught by the pre-check or the constraint.
func (r *ReviewsRepository) Create(ctx context.Context, params ReviewCreateParams) (domain.Review, error) {
	exists, err := r.Exists(ctx, params.UserID, params.Item)
	if err != nil {
		return domain.Review{}, err
	}
	if exists {
		return domain.Review{}, ErrDuplicateReview
	}

	query := fmt.Sprintf(`
        INSERT INTO reviews (id, user_id, item_id, item_type, rating, comment)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING %s
    `, reviewColumns)

	row := r.pool.QueryRow(ctx, query, uuid.NewString(), params.UserID, params.Item.ID, string(params.Item.Type), params.Rating, params.Comment)
	review, err := scanReview(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Review{}, ErrDuplicateReview
		}
		return domain.Review{}, fmt.Errorf("insert review: %w", err)
	}
	return review, nil
}

// Exists reports whether the user already reviewed the target.
func (r *ReviewsRepository) Exists(ctx context.Context, userID string, item domain.Target) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM reviews WHERE user_id = $1 AND item_id = $2 AND item_type = $3
        )
    `
	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, item.ID, string(item.Type)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check review: %w", err)
	}
	return exists, nil
}

// Get fetches a review by id.
func (r *ReviewsRepository) Get(ctx context.Context, id string) (domain.Review, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Review{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE id = $1`, reviewColumns)
	review, err := scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Review{}, ErrNotFound
		}
		return domain.Review{}, fmt.Errorf("get review: %w", err)
	}
	return review, nil
}

// Update applies a patch and returns the stored review.
func (r *ReviewsRepository) Update(ctx context.Context, id string, patch ReviewPatch) (domain.Review, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Review{}, ErrNotFound
	}
	query := fmt.Sprintf(`
        UPDATE reviews
        SET rating = COALESCE($2, rating),
            comment = COALESCE($3, comment),
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, reviewColumns)

	review, err := scanReview(r.pool.QueryRow(ctx, query, id, patch.Rating, patch.Comment))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Review{}, ErrNotFound
		}
		return domain.Review{}, fmt.Errorf("update review: %w", err)
	}
	return review, nil
}

// Delete removes a review and returns what was deleted.
func (r *ReviewsRepository) Delete(ctx context.Context, id string) (domain.Review, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Review{}, ErrNotFound
	}
	query := fmt.Sprintf(`DELETE FROM reviews WHERE id = $1 RETURNING %s`, reviewColumns)
	review, err := scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Review{}, ErrNotFound
		}
		return domain.Review{}, fmt.Errorf("delete review: %w", err)
	}
	return review, nil
}

// ListByTarget returns one page of a target's reviews, newest first.
func (r *ReviewsRepository) ListByTarget(ctx context.Context, item domain.Target, page query.Page) ([]domain.Review, error) {
	sql := fmt.Sprintf(`
        SELECT %s FROM reviews
        WHERE item_id = $1 AND item_type = $2
        ORDER BY created_at DESC, id DESC
        LIMIT $3 OFFSET $4
    `, reviewColumns)

	rows, err := r.pool.Query(ctx, sql, item.ID, string(item.Type), page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]domain.Review, 0)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reviews, nil
}

// Stats returns the unrounded mean and count of a target's ratings. Both are
// zero when the target has no reviews.
func (r *ReviewsRepository) Stats(ctx context.Context, item domain.Target) (domain.RatingStats, error) {
	const query = `
        SELECT COALESCE(AVG(rating), 0)::float8 AS average,
               COUNT(*)::int8 AS count
        FROM reviews
        WHERE item_id = $1 AND item_type = $2
    `
	var stats domain.RatingStats
	if err := r.pool.QueryRow(ctx, query, item.ID, string(item.Type)).Scan(&stats.Average, &stats.Count); err != nil {
		return domain.RatingStats{}, fmt.Errorf("aggregate reviews: %w", err)
	}
	return stats, nil
}

func scanReview(row pgx.Row) (domain.Review, error) {
	var (
		review   domain.Review
		itemType string
	)
	err := row.Scan(
		&review.ID,
		&review.UserID,
		&review.Item.ID,
		&itemType,
		&review.Rating,
		&review.Comment,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		return domain.Review{}, err
	}
	review.Item.Type = domain.Kind(itemType)
	return review, nil
}
