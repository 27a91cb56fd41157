// Package memory is an in-process implementation of domain.Store for local
// development and tests. It enforces the same unique keys as the MySQL schema.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bookshelf/internal/domain"
)

type likeKey struct{ reviewID, userID int64 }

type statusKey struct{ userID, bookID int64 }

type data struct {
	users    map[int64]domain.User
	books    map[int64]domain.Book
	lists    map[int64]int // user id -> number of lists
	statuses map[statusKey]domain.ReadingStatus

	reviews  map[int64]domain.Review
	likes    map[likeKey]domain.ReviewLike
	comments map[int64]domain.Comment

	nextReviewID, nextCommentID int64
}

// clone copies the mutable tables so a failed transaction can be undone.
func (d *data) clone() *data {
	out := *d
	out.reviews = make(map[int64]domain.Review, len(d.reviews))
	for k, v := range d.reviews {
		out.reviews[k] = v
	}
	out.likes = make(map[likeKey]domain.ReviewLike, len(d.likes))
	for k, v := range d.likes {
		out.likes[k] = v
	}
	out.comments = make(map[int64]domain.Comment, len(d.comments))
	for k, v := range d.comments {
		out.comments[k] = v
	}
	return &out
}

type Store struct {
	*repo
}

func New() *Store {
	d := &data{
		users:    map[int64]domain.User{},
		books:    map[int64]domain.Book{},
		lists:    map[int64]int{},
		statuses: map[statusKey]domain.ReadingStatus{},
		reviews:  map[int64]domain.Review{},
		likes:    map[likeKey]domain.ReviewLike{},
		comments: map[int64]domain.Comment{},
	}
	return &Store{repo: &repo{d: d, mu: &sync.RWMutex{}}}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r domain.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.d.clone()
	if err := fn(ctx, &repo{d: s.d, mu: s.mu, held: true}); err != nil {
		*s.d = *before
		return err
	}
	return nil
}

func (s *Store) WithinReadTx(ctx context.Context, fn func(ctx context.Context, r domain.Repository) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, &repo{d: s.d, mu: s.mu, held: true})
}

// ---- seeding (directory tables are read-only to the services) ----

func (s *Store) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.users[u.ID] = u
}

func (s *Store) AddBook(b domain.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.Genres = append([]string(nil), b.Genres...)
	s.d.books[b.ID] = b
}

func (s *Store) AddList(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.lists[userID]++
}

func (s *Store) SetReadingStatus(rs domain.ReadingStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.statuses[statusKey{rs.UserID, rs.BookID}] = rs
}

// repo serves both locked single calls and calls inside a held transaction.
type repo struct {
	d    *data
	mu   *sync.RWMutex
	held bool
}

func (r *repo) rlock() func() {
	if r.held {
		return func() {}
	}
	r.mu.RLock()
	return r.mu.RUnlock
}

func (r *repo) lock() func() {
	if r.held {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *repo) GetUser(_ context.Context, id int64) (domain.User, error) {
	defer r.rlock()()
	u, ok := r.d.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (r *repo) GetBook(_ context.Context, id int64) (domain.Book, error) {
	defer r.rlock()()
	b, ok := r.d.books[id]
	if !ok {
		return domain.Book{}, domain.ErrNotFound
	}
	b.Genres = append([]string(nil), b.Genres...)
	return b, nil
}

// ---- reviews ----

func (r *repo) InsertReview(_ context.Context, rv *domain.Review) error {
	defer r.lock()()
	if rv.State == domain.Active {
		for _, ex := range r.d.reviews {
			if ex.State == domain.Active && ex.UserID == rv.UserID && ex.BookID == rv.BookID {
				return domain.ErrDuplicate
			}
		}
	}
	r.d.nextReviewID++
	rv.ID = r.d.nextReviewID
	r.d.reviews[rv.ID] = *rv
	return nil
}

func (r *repo) GetReview(_ context.Context, id int64) (domain.Review, error) {
	defer r.rlock()()
	rv, ok := r.d.reviews[id]
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	return rv, nil
}

func (r *repo) UpdateReview(_ context.Context, rv domain.Review) error {
	defer r.lock()()
	if _, ok := r.d.reviews[rv.ID]; !ok {
		return domain.ErrNotFound
	}
	r.d.reviews[rv.ID] = rv
	return nil
}

func (r *repo) MarkReviewDeleted(_ context.Context, id int64, at time.Time) error {
	defer r.lock()()
	rv, ok := r.d.reviews[id]
	if !ok {
		return domain.ErrNotFound
	}
	rv.State = domain.Deleted
	rv.UpdatedAt = at
	r.d.reviews[id] = rv
	return nil
}

func (r *repo) activeReviews(match func(domain.Review) bool) []domain.Review {
	out := []domain.Review{}
	for _, rv := range r.d.reviews {
		if rv.State == domain.Active && match(rv) {
			out = append(out, rv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *repo) ListBookReviews(_ context.Context, bookID int64) ([]domain.Review, error) {
	defer r.rlock()()
	return r.activeReviews(func(rv domain.Review) bool { return rv.BookID == bookID }), nil
}

func (r *repo) ListUserReviews(_ context.Context, userID int64) ([]domain.Review, error) {
	defer r.rlock()()
	return r.activeReviews(func(rv domain.Review) bool { return rv.UserID == userID }), nil
}

func (r *repo) FindUserReviewForBook(_ context.Context, userID, bookID int64) (domain.Review, error) {
	defer r.rlock()()
	rs := r.activeReviews(func(rv domain.Review) bool { return rv.UserID == userID && rv.BookID == bookID })
	if len(rs) == 0 {
		return domain.Review{}, domain.ErrNotFound
	}
	return rs[0], nil
}

func (r *repo) BookRatingSummary(_ context.Context, bookID int64) (domain.RatingSummary, error) {
	defer r.rlock()()
	out := domain.RatingSummary{BookID: bookID}
	var sum float64
	var rated int
	for _, rv := range r.d.reviews {
		if rv.State != domain.Active || rv.BookID != bookID {
			continue
		}
		out.TotalReviews++
		if rv.Rating != nil {
			sum += *rv.Rating
			rated++
		}
	}
	if rated > 0 {
		out.AverageRating = sum / float64(rated)
	}
	return out, nil
}

// ---- likes ----

func (r *repo) InsertLike(_ context.Context, l domain.ReviewLike) error {
	defer r.lock()()
	k := likeKey{l.ReviewID, l.UserID}
	if _, ok := r.d.likes[k]; ok {
		return domain.ErrDuplicate
	}
	r.d.likes[k] = l
	return nil
}

func (r *repo) DeleteLike(_ context.Context, reviewID, userID int64) (bool, error) {
	defer r.lock()()
	k := likeKey{reviewID, userID}
	if _, ok := r.d.likes[k]; !ok {
		return false, nil
	}
	delete(r.d.likes, k)
	return true, nil
}

func (r *repo) LikeExists(_ context.Context, reviewID, userID int64) (bool, error) {
	defer r.rlock()()
	_, ok := r.d.likes[likeKey{reviewID, userID}]
	return ok, nil
}

func (r *repo) CountLikes(_ context.Context, reviewID int64) (int, error) {
	defer r.rlock()()
	n := 0
	for k := range r.d.likes {
		if k.reviewID == reviewID {
			n++
		}
	}
	return n, nil
}

// ---- comments ----

func (r *repo) InsertComment(_ context.Context, c *domain.Comment) error {
	defer r.lock()()
	r.d.nextCommentID++
	c.ID = r.d.nextCommentID
	r.d.comments[c.ID] = *c
	return nil
}

func (r *repo) GetComment(_ context.Context, id int64) (domain.Comment, error) {
	defer r.rlock()()
	c, ok := r.d.comments[id]
	if !ok {
		return domain.Comment{}, domain.ErrNotFound
	}
	return c, nil
}

func (r *repo) MarkCommentDeleted(_ context.Context, id int64) error {
	defer r.lock()()
	c, ok := r.d.comments[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.State = domain.Deleted
	r.d.comments[id] = c
	return nil
}

func (r *repo) ListReviewComments(_ context.Context, reviewID int64) ([]domain.Comment, error) {
	defer r.rlock()()
	out := []domain.Comment{}
	for _, c := range r.d.comments {
		if c.ReviewID == reviewID && c.State == domain.Active {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *repo) CountComments(_ context.Context, reviewID int64) (int, error) {
	defer r.rlock()()
	n := 0
	for _, c := range r.d.comments {
		if c.ReviewID == reviewID && c.State == domain.Active {
			n++
		}
	}
	return n, nil
}

// ---- statistics ----

func (r *repo) CountReadingStatus(_ context.Context, userID int64, status domain.ReadingStatusKind) (int, error) {
	defer r.rlock()()
	n := 0
	for k, rs := range r.d.statuses {
		if k.userID == userID && rs.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *repo) SumPagesRead(_ context.Context, userID int64) (int, error) {
	defer r.rlock()()
	total := 0
	for k, rs := range r.d.statuses {
		if k.userID != userID || rs.Status != domain.Read {
			continue
		}
		if b, ok := r.d.books[k.bookID]; ok && b.PageCount != nil {
			total += *b.PageCount
		}
	}
	return total, nil
}

func (r *repo) CountUserReviews(_ context.Context, userID int64) (int, error) {
	defer r.rlock()()
	n := 0
	for _, rv := range r.d.reviews {
		if rv.UserID == userID && rv.State == domain.Active {
			n++
		}
	}
	return n, nil
}

func (r *repo) CountUserLists(_ context.Context, userID int64) (int, error) {
	defer r.rlock()()
	return r.d.lists[userID], nil
}

func (r *repo) ListUserRatings(_ context.Context, userID int64) ([]float64, error) {
	defer r.rlock()()
	out := []float64{}
	for _, rv := range r.d.reviews {
		if rv.UserID == userID && rv.State == domain.Active && rv.Rating != nil {
			out = append(out, *rv.Rating)
		}
	}
	return out, nil
}

func (r *repo) ListReadBookGenres(_ context.Context, userID int64) ([][]string, error) {
	defer r.rlock()()
	var ids []int64
	for k, rs := range r.d.statuses {
		if k.userID == userID && rs.Status == domain.Read {
			if _, ok := r.d.books[k.bookID]; ok {
				ids = append(ids, k.bookID)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([][]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, append([]string{}, r.d.books[id].Genres...))
	}
	return out, nil
}

func within(t, from, to time.Time) bool { return !t.Before(from) && t.Before(to) }

func (r *repo) CountBooksFinished(_ context.Context, userID int64, from, to time.Time) (int, error) {
	defer r.rlock()()
	n := 0
	for k, rs := range r.d.statuses {
		if k.userID == userID && rs.Status == domain.Read && rs.FinishedAt != nil && within(*rs.FinishedAt, from, to) {
			n++
		}
	}
	return n, nil
}

func (r *repo) CountReviewsCreated(_ context.Context, userID int64, from, to time.Time) (int, error) {
	defer r.rlock()()
	n := 0
	for _, rv := range r.d.reviews {
		if rv.UserID == userID && rv.State == domain.Active && within(rv.CreatedAt, from, to) {
			n++
		}
	}
	return n, nil
}
