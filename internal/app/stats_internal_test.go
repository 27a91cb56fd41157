package app

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketRating(t *testing.T) {
	cases := map[float64]int{
		0.0: 1, 1.0: 1, 1.4: 1,
		1.5: 2, 2.0: 2, 2.4: 2,
		2.5: 3, 3.0: 3,
		3.5: 4, 4.0: 4, 4.4: 4,
		4.5: 5, 5.0: 5, 5.1: 5,
		-1: 0, 5.2: 0,
	}
	for in, want := range cases {
		assert.Equal(t, want, bucketRating(in), "rating %v", in)
	}
}

func TestSummariseRatings_BucketsSumToTotal(t *testing.T) {
	got := summariseRatings([]float64{1, 1.5, 2.5, 3.5, 4.5, 5, 3.3})
	sum := got.OneStar + got.TwoStar + got.ThreeStar + got.FourStar + got.FiveStar
	assert.Equal(t, got.TotalRatings, sum)
	assert.Equal(t, 3.04, got.AverageRating)

	empty := summariseRatings(nil)
	assert.Zero(t, empty.AverageRating)
	assert.Zero(t, empty.TotalRatings)
}

func TestTopGenres(t *testing.T) {
	t.Run("empty is non-nil", func(t *testing.T) {
		got := topGenres(nil)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("percent of read books, ties by name", func(t *testing.T) {
		got := topGenres([][]string{{"b", "a"}, {"a"}, {}, {"c", "c"}})
		assert.Equal(t, "a", got[0].Genre)
		assert.Equal(t, 2, got[0].BookCount)
		assert.Equal(t, 50.0, got[0].Percentage)
		assert.Equal(t, "b", got[1].Genre)
		assert.Equal(t, 25.0, got[1].Percentage)
		// a genre listed twice on one book counts once
		assert.Equal(t, "c", got[2].Genre)
		assert.Equal(t, 1, got[2].BookCount)
	})

	t.Run("capped at ten", func(t *testing.T) {
		var books [][]string
		for i := 0; i < 15; i++ {
			books = append(books, []string{fmt.Sprintf("g%02d", i)})
		}
		books = append(books, []string{"g14"})
		got := topGenres(books)
		assert.Len(t, got, maxTopGenres)
		assert.Equal(t, "g14", got[0].Genre)
		assert.Equal(t, "g00", got[1].Genre)
	})
}

func TestCalendarWindows(t *testing.T) {
	now := time.Date(2024, time.December, 31, 23, 30, 0, 0, time.UTC)
	mf, mt, yf, yt := calendarWindows(now)
	assert.Equal(t, time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC), mf)
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), mt)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), yf)
	assert.Equal(t, yt, mt)
}
