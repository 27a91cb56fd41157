package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"bookshelf/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

type ReviewView struct {
	ID         int64   `json:"id"`
	BookID     int64   `json:"bookId"`
	BookTitle  string  `json:"bookTitle"`
	BookCover  *string `json:"bookCover"`
	UserID     int64   `json:"userId"`
	Username   string  `json:"username"`
	UserAvatar *string `json:"userAvatar"`
	Rating     float64 `json:"rating"`
	Title      *string `json:"title"`
	Body       *string `json:"body"`
	CreatedAt  string  `json:"createdAt"`
	UpdatedAt  string  `json:"updatedAt"`
	Likes      int     `json:"likes"`
	Comments   int     `json:"comments"`
}

type CommentView struct {
	ID         int64   `json:"id"`
	ReviewID   int64   `json:"reviewId"`
	UserID     int64   `json:"userId"`
	Username   string  `json:"username"`
	UserAvatar *string `json:"userAvatar"`
	Body       string  `json:"body"`
	CreatedAt  string  `json:"createdAt"`
}

type BookReviewsView struct {
	BookID        int64        `json:"bookId"`
	BookTitle     string       `json:"bookTitle"`
	AverageRating float64      `json:"averageRating"`
	TotalReviews  int          `json:"totalReviews"`
	Reviews       []ReviewView `json:"reviews"`
}

type ReadingCountsView struct {
	TotalBooksRead    int `json:"totalBooksRead"`
	TotalBooksReading int `json:"totalBooksReading"`
	TotalBooksToRead  int `json:"totalBooksToRead"`
	TotalPagesRead    int `json:"totalPagesRead"`
	TotalReviews      int `json:"totalReviews"`
	TotalLists        int `json:"totalLists"`
}

type RatingStatsView struct {
	AverageRating  float64 `json:"averageRating"`
	TotalRatings   int     `json:"totalRatings"`
	FiveStarBooks  int     `json:"fiveStarBooks"`
	FourStarBooks  int     `json:"fourStarBooks"`
	ThreeStarBooks int     `json:"threeStarBooks"`
	TwoStarBooks   int     `json:"twoStarBooks"`
	OneStarBooks   int     `json:"oneStarBooks"`
}

type GenreStatView struct {
	GenreName  string  `json:"genreName"`
	BookCount  int     `json:"bookCount"`
	Percentage float64 `json:"percentage"`
}

type ReadingTrendsView struct {
	BooksReadThisMonth int `json:"booksReadThisMonth"`
	BooksReadThisYear  int `json:"booksReadThisYear"`
	ReviewsThisMonth   int `json:"reviewsThisMonth"`
	ReviewsThisYear    int `json:"reviewsThisYear"`
}

type ReadingStatsView struct {
	UserID      int64             `json:"userId"`
	Counts      ReadingCountsView `json:"counts"`
	RatingStats RatingStatsView   `json:"ratingStats"`
	TopGenres   []GenreStatView   `json:"topGenres"`
	Trends      ReadingTrendsView `json:"trends"`
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// assembler denormalises directory fields into views. Lookups are memoised
// for the lifetime of one call, so a feed of N reviews of one book reads the
// book once.
type assembler struct {
	r     domain.Repository
	users map[int64]domain.User
	books map[int64]domain.Book
}

func newAssembler(r domain.Repository) *assembler {
	return &assembler{r: r, users: map[int64]domain.User{}, books: map[int64]domain.Book{}}
}

func (a *assembler) user(ctx context.Context, id int64) (domain.User, error) {
	if u, ok := a.users[id]; ok {
		return u, nil
	}
	u, err := a.r.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("user %d: %w", id, err)
	}
	a.users[id] = u
	return u, nil
}

func (a *assembler) book(ctx context.Context, id int64) (domain.Book, error) {
	if b, ok := a.books[id]; ok {
		return b, nil
	}
	b, err := a.r.GetBook(ctx, id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("book %d: %w", id, err)
	}
	a.books[id] = b
	return b, nil
}

func (a *assembler) review(ctx context.Context, rv domain.Review) (ReviewView, error) {
	b, err := a.book(ctx, rv.BookID)
	if err != nil {
		return ReviewView{}, err
	}
	u, err := a.user(ctx, rv.UserID)
	if err != nil {
		return ReviewView{}, err
	}
	likes, err := a.r.CountLikes(ctx, rv.ID)
	if err != nil {
		return ReviewView{}, fmt.Errorf("count likes for review %d: %w", rv.ID, err)
	}
	comments, err := a.r.CountComments(ctx, rv.ID)
	if err != nil {
		return ReviewView{}, fmt.Errorf("count comments for review %d: %w", rv.ID, err)
	}

	v := ReviewView{
		ID:         rv.ID,
		BookID:     b.ID,
		BookTitle:  b.Title,
		BookCover:  b.CoverURL,
		UserID:     u.ID,
		Username:   u.Username,
		UserAvatar: u.AvatarURL,
		Title:      rv.Title,
		Body:       rv.Body,
		CreatedAt:  formatTime(rv.CreatedAt),
		UpdatedAt:  formatTime(rv.UpdatedAt),
		Likes:      likes,
		Comments:   comments,
	}
	if rv.Rating != nil {
		v.Rating = round2(*rv.Rating)
	}
	return v, nil
}

func (a *assembler) reviews(ctx context.Context, rs []domain.Review) ([]ReviewView, error) {
	out := make([]ReviewView, 0, len(rs))
	for _, rv := range rs {
		v, err := a.review(ctx, rv)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (a *assembler) comment(ctx context.Context, c domain.Comment) (CommentView, error) {
	u, err := a.user(ctx, c.UserID)
	if err != nil {
		return CommentView{}, err
	}
	return CommentView{
		ID:         c.ID,
		ReviewID:   c.ReviewID,
		UserID:     u.ID,
		Username:   u.Username,
		UserAvatar: u.AvatarURL,
		Body:       c.Body,
		CreatedAt:  formatTime(c.CreatedAt),
	}, nil
}

func (a *assembler) comments(ctx context.Context, cs []domain.Comment) ([]CommentView, error) {
	out := make([]CommentView, 0, len(cs))
	for _, c := range cs {
		v, err := a.comment(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func bookReviewsView(b domain.Book, sum domain.RatingSummary, reviews []ReviewView) BookReviewsView {
	if reviews == nil {
		reviews = []ReviewView{}
	}
	return BookReviewsView{
		BookID:        b.ID,
		BookTitle:     b.Title,
		AverageRating: round2(sum.AverageRating),
		TotalReviews:  sum.TotalReviews,
		Reviews:       reviews,
	}
}

func readingStatsView(s domain.ReadingStats) ReadingStatsView {
	genres := make([]GenreStatView, 0, len(s.TopGenres))
	for _, g := range s.TopGenres {
		genres = append(genres, GenreStatView{GenreName: g.Genre, BookCount: g.BookCount, Percentage: g.Percentage})
	}
	return ReadingStatsView{
		UserID: s.UserID,
		Counts: ReadingCountsView{
			TotalBooksRead:    s.Counts.BooksRead,
			TotalBooksReading: s.Counts.BooksReading,
			TotalBooksToRead:  s.Counts.BooksToRead,
			TotalPagesRead:    s.Counts.TotalPagesRead,
			TotalReviews:      s.Counts.TotalReviews,
			TotalLists:        s.Counts.TotalLists,
		},
		RatingStats: RatingStatsView{
			AverageRating:  s.Ratings.AverageRating,
			TotalRatings:   s.Ratings.TotalRatings,
			FiveStarBooks:  s.Ratings.FiveStar,
			FourStarBooks:  s.Ratings.FourStar,
			ThreeStarBooks: s.Ratings.ThreeStar,
			TwoStarBooks:   s.Ratings.TwoStar,
			OneStarBooks:   s.Ratings.OneStar,
		},
		TopGenres: genres,
		Trends: ReadingTrendsView{
			BooksReadThisMonth: s.Trends.BooksReadThisMonth,
			BooksReadThisYear:  s.Trends.BooksReadThisYear,
			ReviewsThisMonth:   s.Trends.ReviewsThisMonth,
			ReviewsThisYear:    s.Trends.ReviewsThisYear,
		},
	}
}
