package app_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/app"
	"bookshelf/internal/domain"
	"bookshelf/internal/storage/memory"
)

func fixedClock(t time.Time) domain.Clock { return func() time.Time { return t } }

func TestReadingStats_BrandNewUser(t *testing.T) {
	for _, snapshot := range []bool{false, true} {
		svc := app.NewStatsService(seededStore(), fixedClock(base), snapshot)
		got, err := svc.GetReadingStats(context.Background(), cy)
		require.NoError(t, err)

		assert.Equal(t, cy, got.UserID)
		assert.Zero(t, got.Counts)
		assert.Zero(t, got.RatingStats)
		assert.Zero(t, got.Trends)
		assert.NotNil(t, got.TopGenres)
		assert.Empty(t, got.TopGenres)

		b, err := json.Marshal(got)
		require.NoError(t, err)
		assert.Contains(t, string(b), `"topGenres":[]`)
		assert.Contains(t, string(b), `"averageRating":0`)
	}
}

func TestReadingStats_UnknownUser(t *testing.T) {
	svc := app.NewStatsService(seededStore(), fixedClock(base), false)
	_, err := svc.GetReadingStats(context.Background(), 99)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReadingStats_HistogramBoundaries(t *testing.T) {
	s := seededStore()
	reviews := app.NewReviewService(s, tickingClock(base))
	ctx := context.Background()

	for book, rating := range map[int64]float64{dune: 1.5, emma: 2.5, ubik: 3.5, solo: 4.5} {
		_, err := reviews.CreateReview(ctx, ana, app.CreateReviewInput{BookID: book, Rating: ptr(rating)})
		require.NoError(t, err)
	}

	got, err := app.NewStatsService(s, fixedClock(base), false).GetReadingStats(ctx, ana)
	require.NoError(t, err)
	r := got.RatingStats
	assert.Equal(t, 4, r.TotalRatings)
	assert.Equal(t, 3.0, r.AverageRating)
	assert.Equal(t, 0, r.OneStarBooks)
	assert.Equal(t, 1, r.TwoStarBooks)
	assert.Equal(t, 1, r.ThreeStarBooks)
	assert.Equal(t, 1, r.FourStarBooks)
	assert.Equal(t, 1, r.FiveStarBooks)
}

func TestReadingStats_DeletedAndUnratedReviewsExcluded(t *testing.T) {
	s := seededStore()
	reviews := app.NewReviewService(s, tickingClock(base))
	ctx := context.Background()

	a, err := reviews.CreateReview(ctx, bob, app.CreateReviewInput{BookID: dune, Rating: ptr(1.0)})
	require.NoError(t, err)
	_, err = reviews.CreateReview(ctx, bob, app.CreateReviewInput{BookID: emma, Rating: ptr(5.0)})
	require.NoError(t, err)
	_, err = reviews.CreateReview(ctx, bob, app.CreateReviewInput{BookID: ubik})
	require.NoError(t, err)
	require.NoError(t, reviews.DeleteReview(ctx, bob, a.ID))

	got, err := app.NewStatsService(s, fixedClock(base), false).GetReadingStats(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Counts.TotalReviews)
	assert.Equal(t, 1, got.RatingStats.TotalRatings)
	assert.Equal(t, 5.0, got.RatingStats.AverageRating)
	assert.Equal(t, 1, got.RatingStats.FiveStarBooks)
	assert.Equal(t, 0, got.RatingStats.OneStarBooks)
	assert.Equal(t, 2, got.Trends.ReviewsThisMonth)
}

func readStore(t *testing.T) *memory.Store {
	t.Helper()
	s := seededStore()
	thisMonth := time.Date(2024, time.March, 2, 8, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2024, time.February, 29, 23, 59, 0, 0, time.UTC)
	lastYear := time.Date(2023, time.December, 31, 23, 0, 0, 0, time.UTC)

	s.SetReadingStatus(domain.ReadingStatus{UserID: ana, BookID: dune, Status: domain.Read, FinishedAt: &thisMonth})
	s.SetReadingStatus(domain.ReadingStatus{UserID: ana, BookID: emma, Status: domain.Read, FinishedAt: &lastMonth})
	s.SetReadingStatus(domain.ReadingStatus{UserID: ana, BookID: ubik, Status: domain.Read, FinishedAt: &lastYear})
	s.SetReadingStatus(domain.ReadingStatus{UserID: ana, BookID: solo, Status: domain.Reading})
	s.SetReadingStatus(domain.ReadingStatus{UserID: bob, BookID: dune, Status: domain.WantToRead})
	s.AddList(ana)
	s.AddList(ana)
	return s
}

func TestReadingStats_CountsGenresTrends(t *testing.T) {
	s := readStore(t)
	got, err := app.NewStatsService(s, fixedClock(base), false).GetReadingStats(context.Background(), ana)
	require.NoError(t, err)

	assert.Equal(t, app.ReadingCountsView{
		TotalBooksRead:    3,
		TotalBooksReading: 1,
		TotalBooksToRead:  0,
		TotalPagesRead:    712, // Ubik has no page count
		TotalReviews:      0,
		TotalLists:        2,
	}, got.Counts)

	// Dune{Fiction,SciFi}, Emma{Fiction}, Ubik{SciFi}: each genre in 2 of 3 books
	assert.Equal(t, []app.GenreStatView{
		{GenreName: "Fiction", BookCount: 2, Percentage: 66.7},
		{GenreName: "SciFi", BookCount: 2, Percentage: 66.7},
	}, got.TopGenres)

	assert.Equal(t, 1, got.Trends.BooksReadThisMonth)
	assert.Equal(t, 2, got.Trends.BooksReadThisYear)
}

func TestReadingStats_TrendWindowsFollowClockLocation(t *testing.T) {
	s := readStore(t)
	// 2024-03-01 02:00 in Tokyo is still February in UTC, so the Feb 29 23:59 UTC
	// finish lands in Tokyo's March.
	tokyo := time.FixedZone("JST", 9*3600)
	now := time.Date(2024, time.March, 1, 2, 0, 0, 0, tokyo)

	got, err := app.NewStatsService(s, fixedClock(now), false).GetReadingStats(context.Background(), ana)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Trends.BooksReadThisMonth)
	// Dec 31 23:00 UTC is Jan 1 in Tokyo
	assert.Equal(t, 3, got.Trends.BooksReadThisYear)
}

func TestReadingStats_SnapshotMatchesFanOut(t *testing.T) {
	s := readStore(t)
	reviews := app.NewReviewService(s, tickingClock(base))
	_, err := reviews.CreateReview(context.Background(), ana, app.CreateReviewInput{BookID: dune, Rating: ptr(4.0)})
	require.NoError(t, err)

	fan, err := app.NewStatsService(s, fixedClock(base), false).GetReadingStats(context.Background(), ana)
	require.NoError(t, err)
	snap, err := app.NewStatsService(s, fixedClock(base), true).GetReadingStats(context.Background(), ana)
	require.NoError(t, err)
	assert.Equal(t, fan, snap)
}
