package domain

import "time"

// State is the soft-delete lifecycle of a review or comment.
type State int

const (
	Active State = iota
	Deleted
)

func (s State) String() string {
	if s == Deleted {
		return "deleted"
	}
	return "active"
}

type Review struct {
	ID        int64
	UserID    int64
	BookID    int64
	Rating    *float64 // 1.0..5.0
	Title     *string  // <= 140 chars
	Body      *string  // <= 5000 chars
	State     State
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r Review) IsDeleted() bool { return r.State == Deleted }

// ReviewPatch carries a partial update; nil fields are left unchanged.
type ReviewPatch struct {
	Rating *float64
	Title  *string
	Body   *string
}

// Apply copies the set fields of p onto r.
func (p ReviewPatch) Apply(r *Review) {
	if p.Rating != nil {
		v := *p.Rating
		r.Rating = &v
	}
	if p.Title != nil {
		v := *p.Title
		r.Title = &v
	}
	if p.Body != nil {
		v := *p.Body
		r.Body = &v
	}
}

// ReviewLike is keyed by (ReviewID, UserID); the store rejects duplicates.
type ReviewLike struct {
	ReviewID  int64
	UserID    int64
	CreatedAt time.Time
}

type Comment struct {
	ID        int64
	ReviewID  int64
	UserID    int64
	Body      string
	State     State
	CreatedAt time.Time
}

func (c Comment) IsDeleted() bool { return c.State == Deleted }

// RatingSummary is the per-book aggregate over active reviews.
type RatingSummary struct {
	BookID        int64
	AverageRating float64
	TotalReviews  int
}
