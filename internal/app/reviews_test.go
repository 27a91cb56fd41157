package app_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/app"
	"bookshelf/internal/domain"
)

func TestCreateReview_ConcurrentSameBookYieldsOne(t *testing.T) {
	s := seededStore()
	svc := app.NewReviewService(s, tickingClock(base))
	ctx := context.Background()

	const n = 12
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateReview(ctx, ana, app.CreateReviewInput{BookID: dune, Rating: ptr(4.0)})
		}(i)
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)

	list, err := svc.GetUserReviews(ctx, ana)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateReview_Validation(t *testing.T) {
	svc := app.NewReviewService(seededStore(), tickingClock(base))
	ctx := context.Background()

	cases := map[string]app.CreateReviewInput{
		"rating below range": {BookID: dune, Rating: ptr(0.5)},
		"rating above range": {BookID: dune, Rating: ptr(5.5)},
		"title too long":     {BookID: dune, Title: ptr(strings.Repeat("t", 141))},
		"body too long":      {BookID: dune, Body: ptr(strings.Repeat("b", 5001))},
		"missing book":       {},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateReview(ctx, ana, in)
			require.ErrorIs(t, err, domain.ErrValidation)
			var ve *app.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.NotEmpty(t, ve.Fields())
		})
	}

	// boundaries are accepted; length counts characters, not bytes
	_, err := svc.CreateReview(ctx, ana, app.CreateReviewInput{BookID: dune, Rating: ptr(1.0), Title: ptr(strings.Repeat("é", 140))})
	require.NoError(t, err)
	_, err = svc.CreateReview(ctx, ana, app.CreateReviewInput{BookID: emma, Rating: ptr(5.0)})
	require.NoError(t, err)
}

func TestCreateReview_UnknownUserOrBook(t *testing.T) {
	svc := app.NewReviewService(seededStore(), tickingClock(base))
	ctx := context.Background()

	_, err := svc.CreateReview(ctx, 99, app.CreateReviewInput{BookID: dune})
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.CreateReview(ctx, ana, app.CreateReviewInput{BookID: 99})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateReview_AssemblesView(t *testing.T) {
	svc := app.NewReviewService(seededStore(), tickingClock(base))
	ctx := context.Background()

	v, err := svc.CreateReview(ctx, ana, app.CreateReviewInput{BookID: dune, Rating: ptr(4.456), Title: ptr("Spice")})
	require.NoError(t, err)
	assert.NotZero(t, v.ID)
	assert.Equal(t, "Dune", v.BookTitle)
	assert.Equal(t, "https://img.example/dune.jpg", *v.BookCover)
	assert.Equal(t, "ana", v.Username)
	assert.Equal(t, "https://img.example/ana.png", *v.UserAvatar)
	assert.Equal(t, 4.46, v.Rating)
	assert.Equal(t, "2024-03-15 10:00:01", v.CreatedAt)
	assert.Equal(t, v.CreatedAt, v.UpdatedAt)
	assert.Zero(t, v.Likes)
	assert.Zero(t, v.Comments)

	unrated, err := svc.CreateReview(ctx, bob, app.CreateReviewInput{BookID: dune})
	require.NoError(t, err)
	assert.Equal(t, 0.0, unrated.Rating)
	assert.Nil(t, unrated.UserAvatar)
}

func TestUpdateReview_PartialUpdate(t *testing.T) {
	svc := app.NewReviewService(seededStore(), tickingClock(base))
	ctx := context.Background()

	v, err := svc.CreateReview(ctx, ana, app.CreateReviewInput{BookID: dune, Rating: ptr(3.0), Body: ptr("ok")})
	require.NoError(t, err)

	u, err := svc.UpdateReview(ctx, ana, v.ID, app.UpdateReviewInput{Title: ptr("Rethought")})
	require.NoError(t, err)
	assert.Equal(t, 3.0, u.Rating)
	assert.Equal(t, "ok", *u.Body)
	assert.Equal(t, "Rethought", *u.Title)
	assert.Equal(t, v.CreatedAt, u.CreatedAt)
	assert.NotEqual(t, v.UpdatedAt, u.UpdatedAt)

	u, err = svc.UpdateReview(ctx, ana, v.ID, app.UpdateReviewInput{Rating: ptr(4.5)})
	require.NoError(t, err)
	assert.Equal(t, 4.5, u.Rating)
	assert.Equal(t, "Rethought", *u.Title)
}

func TestUpdateReview_FailureOrder(t *testing.T) {
	svc := app.NewReviewService(seededStore(), tickingClock(base))
	ctx := context.Background()

	v, err := svc.CreateReview(ctx, ana, app.CreateReviewInput{BookID: dune})
	require.NoError(t, err)

	_, err = svc.UpdateReview(ctx, ana, 999, app.UpdateReviewInput{})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.UpdateReview(ctx, bob, v.ID, app.UpdateReviewInput{Title: ptr("mine now")})
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.UpdateReview(ctx, ana, v.ID, app.UpdateReviewInput{Rating: ptr(7.0)})
	require.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, svc.DeleteReview(ctx, ana, v.ID))
	// ownership is checked before the deleted state
	_, err = svc.UpdateReview(ctx, bob, v.ID, app.UpdateReviewInput{})
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.UpdateReview(ctx, ana, v.ID, app.UpdateReviewInput{})
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestDeleteReview(t *testing.T) {
	svc := app.NewReviewService(seededStore(), tickingClock(base))
	ctx := context.Background()

	v, err := svc.CreateReview(ctx, ana, app.CreateReviewInput{BookID: dune})
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteReview(ctx, ana, 999), domain.ErrNotFound)
	require.ErrorIs(t, svc.DeleteReview(ctx, bob, v.ID), domain.ErrForbidden)
	require.NoError(t, svc.DeleteReview(ctx, ana, v.ID))
	require.ErrorIs(t, svc.DeleteReview(ctx, ana, v.ID), domain.ErrConflict)

	_, err = svc.GetUserReviewForBook(ctx, ana, dune)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// a deleted review frees the slot for a new one
	again, err := svc.CreateReview(ctx, ana, app.CreateReviewInput{BookID: dune})
	require.NoError(t, err)
	mine, err := svc.GetUserReviewForBook(ctx, ana, dune)
	require.NoError(t, err)
	assert.Equal(t, again.ID, mine.ID)
}

func TestGetBookReviews_AverageRoundTrip(t *testing.T) {
	svc := app.NewReviewService(seededStore(), tickingClock(base))
	ctx := context.Background()

	var lowest int64
	for i, r := range []struct {
		user   int64
		rating float64
	}{{ana, 5.0}, {bob, 4.0}, {cy, 3.0}} {
		v, err := svc.CreateReview(ctx, r.user, app.CreateReviewInput{BookID: dune, Rating: ptr(r.rating)})
		require.NoError(t, err)
		if i == 2 {
			lowest = v.ID
		}
	}

	got, err := svc.GetBookReviews(ctx, dune)
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.AverageRating)
	assert.Equal(t, 3, got.TotalReviews)
	require.Len(t, got.Reviews, 3)
	// newest first
	assert.Equal(t, "cy", got.Reviews[0].Username)
	assert.Equal(t, "ana", got.Reviews[2].Username)

	require.NoError(t, svc.DeleteReview(ctx, cy, lowest))
	got, err = svc.GetBookReviews(ctx, dune)
	require.NoError(t, err)
	assert.Equal(t, 4.5, got.AverageRating)
	assert.Equal(t, 2, got.TotalReviews)
	assert.Len(t, got.Reviews, 2)
}

func TestGetBookReviews_EmptyAndMissing(t *testing.T) {
	svc := app.NewReviewService(seededStore(), tickingClock(base))
	ctx := context.Background()

	got, err := svc.GetBookReviews(ctx, solo)
	require.NoError(t, err)
	assert.Equal(t, "Solo", got.BookTitle)
	assert.Equal(t, 0.0, got.AverageRating)
	assert.NotNil(t, got.Reviews)
	assert.Empty(t, got.Reviews)

	_, err = svc.GetBookReviews(ctx, 404)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetUserReviews(t *testing.T) {
	svc := app.NewReviewService(seededStore(), tickingClock(base))
	ctx := context.Background()

	for _, b := range []int64{dune, emma, ubik} {
		_, err := svc.CreateReview(ctx, bob, app.CreateReviewInput{BookID: b})
		require.NoError(t, err)
	}
	list, err := svc.GetUserReviews(ctx, bob)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Ubik", list[0].BookTitle)
	assert.Equal(t, "Dune", list[2].BookTitle)

	empty, err := svc.GetUserReviews(ctx, cy)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = svc.GetUserReviews(ctx, 99)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTimestamps_TruncatedToMillis(t *testing.T) {
	s := seededStore()
	at := time.Date(2024, time.March, 31, 23, 59, 59, 999_600_000, time.UTC)
	clock := func() time.Time { return at }
	reviews := app.NewReviewService(s, clock)
	interactions := app.NewInteractionService(s, clock)
	ctx := context.Background()

	v, err := reviews.CreateReview(ctx, ana, app.CreateReviewInput{BookID: dune})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-31 23:59:59", v.CreatedAt)

	stored, err := s.GetReview(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, at.Truncate(time.Millisecond), stored.CreatedAt)
	assert.Equal(t, 999_000_000, stored.CreatedAt.Nanosecond())

	c, err := interactions.AddComment(ctx, bob, v.ID, app.AddCommentInput{Body: "late"})
	require.NoError(t, err)
	sc, err := s.GetComment(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, at.Truncate(time.Millisecond), sc.CreatedAt)
}
