package domain

import "time"

// User and Book are read-only here; they are owned by the account and catalog tables.
type User struct {
	ID        int64
	Username  string
	AvatarURL *string
}

type Book struct {
	ID        int64
	Title     string
	CoverURL  *string
	PageCount *int
	Genres    []string
}

type ReadingStatusKind string

const (
	WantToRead ReadingStatusKind = "WANT_TO_READ"
	Reading    ReadingStatusKind = "READING"
	Read       ReadingStatusKind = "READ"
)

type ReadingStatus struct {
	UserID     int64
	BookID     int64
	Status     ReadingStatusKind
	FinishedAt *time.Time
}
