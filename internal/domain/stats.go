package domain

type ReadingCounts struct {
	BooksRead      int
	BooksReading   int
	BooksToRead    int
	TotalPagesRead int
	TotalReviews   int
	TotalLists     int
}

type RatingStats struct {
	AverageRating float64
	TotalRatings  int
	FiveStar      int
	FourStar      int
	ThreeStar     int
	TwoStar       int
	OneStar       int
}

type GenreStat struct {
	Genre      string
	BookCount  int
	Percentage float64
}

type ReadingTrends struct {
	BooksReadThisMonth int
	BooksReadThisYear  int
	ReviewsThisMonth   int
	ReviewsThisYear    int
}

type ReadingStats struct {
	UserID    int64
	Counts    ReadingCounts
	Ratings   RatingStats
	TopGenres []GenreStat
	Trends    ReadingTrends
}
