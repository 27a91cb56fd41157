package app_test

import (
	"sync"
	"time"

	"bookshelf/internal/domain"
	"bookshelf/internal/storage/memory"
)

func ptr[T any](v T) *T { return &v }

var base = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

// tickingClock advances one second per call so creation order is observable.
func tickingClock(start time.Time) domain.Clock {
	var mu sync.Mutex
	n := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return start.Add(time.Duration(n) * time.Second)
	}
}

const (
	ana int64 = 1
	bob int64 = 2
	cy  int64 = 3

	dune int64 = 10
	emma int64 = 11
	ubik int64 = 12
	solo int64 = 13
)

func seededStore() *memory.Store {
	s := memory.New()
	s.AddUser(domain.User{ID: ana, Username: "ana", AvatarURL: ptr("https://img.example/ana.png")})
	s.AddUser(domain.User{ID: bob, Username: "bob"})
	s.AddUser(domain.User{ID: cy, Username: "cy"})

	s.AddBook(domain.Book{ID: dune, Title: "Dune", CoverURL: ptr("https://img.example/dune.jpg"), PageCount: ptr(412), Genres: []string{"Fiction", "SciFi"}})
	s.AddBook(domain.Book{ID: emma, Title: "Emma", PageCount: ptr(300), Genres: []string{"Fiction"}})
	s.AddBook(domain.Book{ID: ubik, Title: "Ubik", Genres: []string{"SciFi"}})
	s.AddBook(domain.Book{ID: solo, Title: "Solo"})
	return s
}
