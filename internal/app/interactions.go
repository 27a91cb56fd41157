package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"bookshelf/internal/domain"
)

// InteractionService handles likes and comments on reviews.
type InteractionService struct {
	store domain.Store
	now   domain.Clock
}

func NewInteractionService(s domain.Store, now domain.Clock) *InteractionService {
	return &InteractionService{store: s, now: storeClock(now)}
}

func activeReview(ctx context.Context, r domain.Repository, reviewID int64) (domain.Review, error) {
	rv, err := r.GetReview(ctx, reviewID)
	if err != nil {
		return domain.Review{}, fmt.Errorf("review %d: %w", reviewID, err)
	}
	if rv.IsDeleted() {
		return domain.Review{}, fmt.Errorf("review %d is deleted: %w", reviewID, domain.ErrConflict)
	}
	return rv, nil
}

// LikeReview relies on the (review, user) key to reject a second like,
// including one racing in from a concurrent request.
func (s *InteractionService) LikeReview(ctx context.Context, userID, reviewID int64) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repository) error {
		if _, err := activeReview(ctx, r, reviewID); err != nil {
			return err
		}
		err := r.InsertLike(ctx, domain.ReviewLike{ReviewID: reviewID, UserID: userID, CreatedAt: s.now()})
		if errors.Is(err, domain.ErrDuplicate) {
			return fmt.Errorf("user %d already liked review %d: %w", userID, reviewID, domain.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("insert like: %w", err)
		}
		return nil
	})
	if err != nil {
		logRejected(err, "like review", userID)
		return err
	}
	log.Info().Int64("review_id", reviewID).Int64("user_id", userID).Msg("review liked")
	return nil
}

// UnlikeReview is allowed on deleted reviews so users can withdraw likes.
func (s *InteractionService) UnlikeReview(ctx context.Context, userID, reviewID int64) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repository) error {
		if _, err := r.GetReview(ctx, reviewID); err != nil {
			return fmt.Errorf("review %d: %w", reviewID, err)
		}
		deleted, err := r.DeleteLike(ctx, reviewID, userID)
		if err != nil {
			return fmt.Errorf("delete like: %w", err)
		}
		if !deleted {
			return fmt.Errorf("user %d has not liked review %d: %w", userID, reviewID, domain.ErrConflict)
		}
		return nil
	})
	if err != nil {
		logRejected(err, "unlike review", userID)
		return err
	}
	log.Info().Int64("review_id", reviewID).Int64("user_id", userID).Msg("review unliked")
	return nil
}

func (s *InteractionService) HasLiked(ctx context.Context, userID, reviewID int64) (bool, error) {
	ok, err := s.store.LikeExists(ctx, reviewID, userID)
	if err != nil {
		return false, fmt.Errorf("like exists: %w", err)
	}
	return ok, nil
}

func (s *InteractionService) AddComment(ctx context.Context, userID, reviewID int64, in AddCommentInput) (CommentView, error) {
	if err := validateInput(in); err != nil {
		return CommentView{}, err
	}

	var out CommentView
	err := s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repository) error {
		rv, err := r.GetReview(ctx, reviewID)
		if err != nil {
			return fmt.Errorf("review %d: %w", reviewID, err)
		}
		a := newAssembler(r)
		if _, err := a.user(ctx, userID); err != nil {
			return err
		}
		if rv.IsDeleted() {
			return fmt.Errorf("review %d is deleted: %w", reviewID, domain.ErrConflict)
		}

		c := domain.Comment{ReviewID: reviewID, UserID: userID, Body: in.Body, State: domain.Active, CreatedAt: s.now()}
		if err := r.InsertComment(ctx, &c); err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		out, err = a.comment(ctx, c)
		return err
	})
	if err != nil {
		logRejected(err, "add comment", userID)
		return CommentView{}, err
	}
	log.Info().Int64("comment_id", out.ID).Int64("review_id", reviewID).Int64("user_id", userID).Msg("comment added")
	return out, nil
}

// DeleteComment checks, in order: existence, already deleted, authorship.
func (s *InteractionService) DeleteComment(ctx context.Context, userID, commentID int64) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repository) error {
		c, err := r.GetComment(ctx, commentID)
		if err != nil {
			return fmt.Errorf("comment %d: %w", commentID, err)
		}
		if c.IsDeleted() {
			return fmt.Errorf("comment %d is deleted: %w", commentID, domain.ErrConflict)
		}
		if c.UserID != userID {
			return fmt.Errorf("comment %d belongs to another user: %w", commentID, domain.ErrForbidden)
		}
		if err := r.MarkCommentDeleted(ctx, commentID); err != nil {
			return fmt.Errorf("delete comment %d: %w", commentID, err)
		}
		return nil
	})
	if err != nil {
		logRejected(err, "delete comment", userID)
		return err
	}
	log.Info().Int64("comment_id", commentID).Int64("user_id", userID).Msg("comment deleted")
	return nil
}

func (s *InteractionService) GetReviewComments(ctx context.Context, reviewID int64) ([]CommentView, error) {
	var out []CommentView
	err := s.store.WithinReadTx(ctx, func(ctx context.Context, r domain.Repository) error {
		if _, err := r.GetReview(ctx, reviewID); err != nil {
			return fmt.Errorf("review %d: %w", reviewID, err)
		}
		cs, err := r.ListReviewComments(ctx, reviewID)
		if err != nil {
			return fmt.Errorf("list comments of review %d: %w", reviewID, err)
		}
		out, err = newAssembler(r).comments(ctx, cs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
