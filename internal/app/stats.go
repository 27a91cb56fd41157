package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"bookshelf/internal/domain"
)

const maxTopGenres = 10

// StatsService computes per-user reading statistics. The four panels are
// independent reads: by default they run concurrently on separate queries;
// with snapshot set they run in one read-only transaction so all numbers
// come from the same point in time.
type StatsService struct {
	store    domain.Store
	now      domain.Clock
	snapshot bool
}

func NewStatsService(s domain.Store, now domain.Clock, snapshot bool) *StatsService {
	if now == nil {
		now = time.Now
	}
	return &StatsService{store: s, now: now, snapshot: snapshot}
}

func (s *StatsService) GetReadingStats(ctx context.Context, userID int64) (ReadingStatsView, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return ReadingStatsView{}, fmt.Errorf("user %d: %w", userID, err)
	}

	st := domain.ReadingStats{UserID: userID}
	now := s.now()
	panels := []func(context.Context, domain.Repository) error{
		func(ctx context.Context, r domain.Repository) (err error) {
			st.Counts, err = readingCounts(ctx, r, userID)
			return err
		},
		func(ctx context.Context, r domain.Repository) (err error) {
			st.Ratings, err = ratingStats(ctx, r, userID)
			return err
		},
		func(ctx context.Context, r domain.Repository) (err error) {
			st.TopGenres, err = genreStats(ctx, r, userID)
			return err
		},
		func(ctx context.Context, r domain.Repository) (err error) {
			st.Trends, err = readingTrends(ctx, r, userID, now)
			return err
		},
	}

	var err error
	if s.snapshot {
		err = s.store.WithinReadTx(ctx, func(ctx context.Context, r domain.Repository) error {
			for _, p := range panels {
				if err := p(ctx, r); err != nil {
					return err
				}
			}
			return nil
		})
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for _, p := range panels {
			p := p
			g.Go(func() error { return p(gctx, s.store) })
		}
		err = g.Wait()
	}
	if err != nil {
		return ReadingStatsView{}, fmt.Errorf("reading stats of user %d: %w", userID, err)
	}
	return readingStatsView(st), nil
}

func readingCounts(ctx context.Context, r domain.Repository, userID int64) (domain.ReadingCounts, error) {
	var c domain.ReadingCounts
	var err error
	if c.BooksRead, err = r.CountReadingStatus(ctx, userID, domain.Read); err != nil {
		return c, err
	}
	if c.BooksReading, err = r.CountReadingStatus(ctx, userID, domain.Reading); err != nil {
		return c, err
	}
	if c.BooksToRead, err = r.CountReadingStatus(ctx, userID, domain.WantToRead); err != nil {
		return c, err
	}
	if c.TotalPagesRead, err = r.SumPagesRead(ctx, userID); err != nil {
		return c, err
	}
	if c.TotalReviews, err = r.CountUserReviews(ctx, userID); err != nil {
		return c, err
	}
	if c.TotalLists, err = r.CountUserLists(ctx, userID); err != nil {
		return c, err
	}
	return c, nil
}

// ratingStats derives the average and the histogram from one read, so the
// bucket counts always sum to TotalRatings.
func ratingStats(ctx context.Context, r domain.Repository, userID int64) (domain.RatingStats, error) {
	ratings, err := r.ListUserRatings(ctx, userID)
	if err != nil {
		return domain.RatingStats{}, err
	}
	return summariseRatings(ratings), nil
}

func summariseRatings(ratings []float64) domain.RatingStats {
	var out domain.RatingStats
	var sum float64
	for _, v := range ratings {
		sum += v
		switch bucketRating(v) {
		case 5:
			out.FiveStar++
		case 4:
			out.FourStar++
		case 3:
			out.ThreeStar++
		case 2:
			out.TwoStar++
		case 1:
			out.OneStar++
		}
	}
	out.TotalRatings = len(ratings)
	if len(ratings) > 0 {
		out.AverageRating = round2(sum / float64(len(ratings)))
	}
	return out
}

// bucketRating maps a rating to its star band. A boundary value belongs to
// the higher band: 1.5 is two stars, 4.5 is five. Out of range yields 0.
func bucketRating(v float64) int {
	switch {
	case v >= 4.5 && v <= 5.1:
		return 5
	case v >= 3.5 && v < 4.5:
		return 4
	case v >= 2.5 && v < 3.5:
		return 3
	case v >= 1.5 && v < 2.5:
		return 2
	case v >= 0 && v < 1.5:
		return 1
	default:
		return 0
	}
}

func genreStats(ctx context.Context, r domain.Repository, userID int64) ([]domain.GenreStat, error) {
	books, err := r.ListReadBookGenres(ctx, userID)
	if err != nil {
		return nil, err
	}
	return topGenres(books), nil
}

// topGenres tallies each genre once per READ book. Percentages are of READ
// books, not of genre tallies, so they can add up to more than 100.
func topGenres(books [][]string) []domain.GenreStat {
	out := []domain.GenreStat{}
	if len(books) == 0 {
		return out
	}
	counts := map[string]int{}
	for _, genres := range books {
		seen := map[string]bool{}
		for _, g := range genres {
			if seen[g] {
				continue
			}
			seen[g] = true
			counts[g]++
		}
	}
	for g, n := range counts {
		out = append(out, domain.GenreStat{
			Genre:      g,
			BookCount:  n,
			Percentage: math.Round(float64(n)*1000/float64(len(books))) / 10,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BookCount != out[j].BookCount {
			return out[i].BookCount > out[j].BookCount
		}
		return out[i].Genre < out[j].Genre
	})
	if len(out) > maxTopGenres {
		out = out[:maxTopGenres]
	}
	return out
}

// calendarWindows returns [monthStart, nextMonth) and [yearStart, nextYear)
// in now's location.
func calendarWindows(now time.Time) (monthFrom, monthTo, yearFrom, yearTo time.Time) {
	loc := now.Location()
	monthFrom = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	yearFrom = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)
	return monthFrom, monthFrom.AddDate(0, 1, 0), yearFrom, yearFrom.AddDate(1, 0, 0)
}

func readingTrends(ctx context.Context, r domain.Repository, userID int64, now time.Time) (domain.ReadingTrends, error) {
	var t domain.ReadingTrends
	var err error
	mFrom, mTo, yFrom, yTo := calendarWindows(now)
	if t.BooksReadThisMonth, err = r.CountBooksFinished(ctx, userID, mFrom, mTo); err != nil {
		return t, err
	}
	if t.BooksReadThisYear, err = r.CountBooksFinished(ctx, userID, yFrom, yTo); err != nil {
		return t, err
	}
	if t.ReviewsThisMonth, err = r.CountReviewsCreated(ctx, userID, mFrom, mTo); err != nil {
		return t, err
	}
	if t.ReviewsThisYear, err = r.CountReviewsCreated(ctx, userID, yFrom, yTo); err != nil {
		return t, err
	}
	return t, nil
}
