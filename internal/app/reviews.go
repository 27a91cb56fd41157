package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"bookshelf/internal/domain"
)

// ReviewService owns the review lifecycle. Each mutation runs in one store
// transaction and re-reads the row it mutates.
type ReviewService struct {
	store domain.Store
	now   domain.Clock
}

func NewReviewService(s domain.Store, now domain.Clock) *ReviewService {
	return &ReviewService{store: s, now: storeClock(now)}
}

// storeClock truncates to the millisecond precision of the DATETIME(3)
// columns, which would otherwise round on write and disagree with the
// timestamps returned from the same call.
func storeClock(now domain.Clock) domain.Clock {
	if now == nil {
		now = time.Now
	}
	return func() time.Time { return now().Truncate(time.Millisecond) }
}

func (s *ReviewService) CreateReview(ctx context.Context, userID int64, in CreateReviewInput) (ReviewView, error) {
	if err := validateInput(in); err != nil {
		return ReviewView{}, err
	}

	var out ReviewView
	err := s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repository) error {
		if _, err := r.GetUser(ctx, userID); err != nil {
			return fmt.Errorf("user %d: %w", userID, err)
		}
		if _, err := r.GetBook(ctx, in.BookID); err != nil {
			return fmt.Errorf("book %d: %w", in.BookID, err)
		}

		now := s.now()
		rv := domain.Review{
			UserID:    userID,
			BookID:    in.BookID,
			Rating:    in.Rating,
			Title:     in.Title,
			Body:      in.Body,
			State:     domain.Active,
			CreatedAt: now,
			UpdatedAt: now,
		}
		// The active-review unique key is the only guard; no pre-check.
		if err := r.InsertReview(ctx, &rv); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				return fmt.Errorf("user %d already reviewed book %d: %w", userID, in.BookID, domain.ErrConflict)
			}
			return fmt.Errorf("insert review: %w", err)
		}

		v, err := newAssembler(r).review(ctx, rv)
		out = v
		return err
	})
	if err != nil {
		logRejected(err, "create review", userID)
		return ReviewView{}, err
	}
	log.Info().Int64("review_id", out.ID).Int64("user_id", userID).Int64("book_id", in.BookID).Msg("review created")
	return out, nil
}

func (s *ReviewService) UpdateReview(ctx context.Context, userID, reviewID int64, in UpdateReviewInput) (ReviewView, error) {
	if err := validateInput(in); err != nil {
		return ReviewView{}, err
	}

	var out ReviewView
	err := s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repository) error {
		rv, err := ownedActiveReview(ctx, r, userID, reviewID)
		if err != nil {
			return err
		}
		in.patch().Apply(&rv)
		rv.UpdatedAt = s.now()
		if err := r.UpdateReview(ctx, rv); err != nil {
			return fmt.Errorf("update review %d: %w", reviewID, err)
		}

		v, err := newAssembler(r).review(ctx, rv)
		out = v
		return err
	})
	if err != nil {
		logRejected(err, "update review", userID)
		return ReviewView{}, err
	}
	log.Info().Int64("review_id", reviewID).Int64("user_id", userID).Msg("review updated")
	return out, nil
}

// DeleteReview soft-deletes. Deleting an already deleted review is a Conflict.
func (s *ReviewService) DeleteReview(ctx context.Context, userID, reviewID int64) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repository) error {
		if _, err := ownedActiveReview(ctx, r, userID, reviewID); err != nil {
			return err
		}
		if err := r.MarkReviewDeleted(ctx, reviewID, s.now()); err != nil {
			return fmt.Errorf("delete review %d: %w", reviewID, err)
		}
		return nil
	})
	if err != nil {
		logRejected(err, "delete review", userID)
		return err
	}
	log.Info().Int64("review_id", reviewID).Int64("user_id", userID).Msg("review deleted")
	return nil
}

// ownedActiveReview checks, in order: existence, ownership, not deleted.
func ownedActiveReview(ctx context.Context, r domain.Repository, userID, reviewID int64) (domain.Review, error) {
	rv, err := r.GetReview(ctx, reviewID)
	if err != nil {
		return domain.Review{}, fmt.Errorf("review %d: %w", reviewID, err)
	}
	if rv.UserID != userID {
		return domain.Review{}, fmt.Errorf("review %d belongs to another user: %w", reviewID, domain.ErrForbidden)
	}
	if rv.IsDeleted() {
		return domain.Review{}, fmt.Errorf("review %d is deleted: %w", reviewID, domain.ErrConflict)
	}
	return rv, nil
}

func (s *ReviewService) GetBookReviews(ctx context.Context, bookID int64) (BookReviewsView, error) {
	var out BookReviewsView
	err := s.store.WithinReadTx(ctx, func(ctx context.Context, r domain.Repository) error {
		b, err := r.GetBook(ctx, bookID)
		if err != nil {
			return fmt.Errorf("book %d: %w", bookID, err)
		}
		rs, err := r.ListBookReviews(ctx, bookID)
		if err != nil {
			return fmt.Errorf("list reviews of book %d: %w", bookID, err)
		}
		sum, err := r.BookRatingSummary(ctx, bookID)
		if err != nil {
			return fmt.Errorf("rating summary of book %d: %w", bookID, err)
		}

		a := newAssembler(r)
		a.books[b.ID] = b
		views, err := a.reviews(ctx, rs)
		if err != nil {
			return err
		}
		out = bookReviewsView(b, sum, views)
		return nil
	})
	return out, err
}

func (s *ReviewService) GetUserReviewForBook(ctx context.Context, userID, bookID int64) (ReviewView, error) {
	rv, err := s.store.FindUserReviewForBook(ctx, userID, bookID)
	if err != nil {
		return ReviewView{}, fmt.Errorf("review of book %d by user %d: %w", bookID, userID, err)
	}
	return newAssembler(s.store).review(ctx, rv)
}

func (s *ReviewService) GetUserReviews(ctx context.Context, userID int64) ([]ReviewView, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("user %d: %w", userID, err)
	}
	rs, err := s.store.ListUserReviews(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reviews of user %d: %w", userID, err)
	}
	return newAssembler(s.store).reviews(ctx, rs)
}

// logRejected logs business-rule rejections at debug and anything else at error.
func logRejected(err error, op string, userID int64) {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrValidation):
		log.Debug().Err(err).Str("op", op).Int64("user_id", userID).Msg("rejected")
	default:
		log.Error().Err(err).Str("op", op).Int64("user_id", userID).Msg("store failure")
	}
}
