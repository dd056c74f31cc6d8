package domain

import "time"

// Rating bounds accepted for a review.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is a single user's rating of a reviewable entity.
type Review struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	Item      Target    `json:"item"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RatingStats is the raw aggregate read from the review store.
type RatingStats struct {
	Average float64
	Count   int64
}
