package domain

import (
	"context"
	"time"
)

// Repository is the query surface of the entity store. Implementations return
// ErrNotFound for missing rows and ErrDuplicate for unique key violations.
type Repository interface {
	// Directory (read-only)
	GetUser(ctx context.Context, id int64) (User, error)
	GetBook(ctx context.Context, id int64) (Book, error)

	// Reviews
	InsertReview(ctx context.Context, r *Review) error
	GetReview(ctx context.Context, id int64) (Review, error)
	UpdateReview(ctx context.Context, r Review) error
	MarkReviewDeleted(ctx context.Context, id int64, at time.Time) error
	ListBookReviews(ctx context.Context, bookID int64) ([]Review, error)
	ListUserReviews(ctx context.Context, userID int64) ([]Review, error)
	FindUserReviewForBook(ctx context.Context, userID, bookID int64) (Review, error)
	BookRatingSummary(ctx context.Context, bookID int64) (RatingSummary, error)

	// Likes
	InsertLike(ctx context.Context, l ReviewLike) error
	DeleteLike(ctx context.Context, reviewID, userID int64) (bool, error)
	LikeExists(ctx context.Context, reviewID, userID int64) (bool, error)
	CountLikes(ctx context.Context, reviewID int64) (int, error)

	// Comments
	InsertComment(ctx context.Context, c *Comment) error
	GetComment(ctx context.Context, id int64) (Comment, error)
	MarkCommentDeleted(ctx context.Context, id int64) error
	ListReviewComments(ctx context.Context, reviewID int64) ([]Comment, error)
	CountComments(ctx context.Context, reviewID int64) (int, error)

	// Statistics
	CountReadingStatus(ctx context.Context, userID int64, status ReadingStatusKind) (int, error)
	SumPagesRead(ctx context.Context, userID int64) (int, error)
	CountUserReviews(ctx context.Context, userID int64) (int, error)
	CountUserLists(ctx context.Context, userID int64) (int, error)
	ListUserRatings(ctx context.Context, userID int64) ([]float64, error)
	ListReadBookGenres(ctx context.Context, userID int64) ([][]string, error)
	CountBooksFinished(ctx context.Context, userID int64, from, to time.Time) (int, error)
	CountReviewsCreated(ctx context.Context, userID int64, from, to time.Time) (int, error)
}

// Store adds transactions. fn receives a Repository bound to the transaction;
// a non-nil return rolls it back.
type Store interface {
	Repository
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error
	WithinReadTx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error
}

// Clock is injected so trend windows are testable.
type Clock func() time.Time
