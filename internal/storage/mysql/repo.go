package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"bookshelf/internal/adapters/observability"
	"bookshelf/internal/domain"
)

const errDupEntry = 1062

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repo struct {
	db *sql.DB
	q  queryer
	// locking is set inside write transactions; point reads of rows that
	// are about to be mutated take a row lock.
	locking bool
}

func New(db *sql.DB) *Repo { return &Repo{db: db, q: db} }

func (r *Repo) WithinTx(ctx context.Context, fn func(ctx context.Context, repo domain.Repository) error) error {
	return r.inTx(ctx, nil, true, fn)
}

func (r *Repo) WithinReadTx(ctx context.Context, fn func(ctx context.Context, repo domain.Repository) error) error {
	return r.inTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, false, fn)
}

func (r *Repo) inTx(ctx context.Context, opts *sql.TxOptions, locking bool, fn func(context.Context, domain.Repository) error) error {
	tx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(ctx, &Repo{db: r.db, q: tx, locking: locking}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", mapErr(err))
	}
	return nil
}

// mapErr translates driver errors into domain sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var me *driver.MySQLError
	if errors.As(err, &me) && me.Number == errDupEntry {
		return fmt.Errorf("%s: %w", me.Message, domain.ErrDuplicate)
	}
	return err
}

func track(op string, start time.Time, err *error) {
	*err = mapErr(*err)
	observability.ObserveStore(op, *err, time.Since(start))
}

func (r *Repo) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// DIRECTORY
// -----------------------------------------------------------------------------

func (r *Repo) GetUser(ctx context.Context, id int64) (u domain.User, err error) {
	defer track("get_user", time.Now(), &err)
	var avatar sql.NullString
	if err = r.q.QueryRowContext(ctx, getUserSQL, id).Scan(&u.ID, &u.Username, &avatar); err != nil {
		return domain.User{}, err
	}
	if avatar.Valid {
		s := avatar.String
		u.AvatarURL = &s
	}
	return u, nil
}

func (r *Repo) GetBook(ctx context.Context, id int64) (b domain.Book, err error) {
	defer track("get_book", time.Now(), &err)
	var cover sql.NullString
	var pages sql.NullInt64
	if err = r.q.QueryRowContext(ctx, getBookSQL, id).Scan(&b.ID, &b.Title, &cover, &pages); err != nil {
		return domain.Book{}, err
	}
	if cover.Valid {
		s := cover.String
		b.CoverURL = &s
	}
	if pages.Valid {
		p := int(pages.Int64)
		b.PageCount = &p
	}

	rows, err := r.q.QueryContext(ctx, listBookGenresSQL, id)
	if err != nil {
		return domain.Book{}, err
	}
	defer rows.Close()
	b.Genres = []string{}
	for rows.Next() {
		var g string
		if err = rows.Scan(&g); err != nil {
			return domain.Book{}, err
		}
		b.Genres = append(b.Genres, g)
	}
	if err = rows.Err(); err != nil {
		return domain.Book{}, err
	}
	return b, nil
}

// -----------------------------------------------------------------------------
// REVIEWS
// -----------------------------------------------------------------------------

type scanner interface{ Scan(dest ...any) error }

func scanReview(s scanner) (domain.Review, error) {
	var (
		rv          domain.Review
		rating      sql.NullFloat64
		title, body sql.NullString
		deleted     bool
	)
	if err := s.Scan(&rv.ID, &rv.UserID, &rv.BookID, &rating, &title, &body, &deleted, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
		return domain.Review{}, err
	}
	if rating.Valid {
		f := rating.Float64
		rv.Rating = &f
	}
	if title.Valid {
		s := title.String
		rv.Title = &s
	}
	if body.Valid {
		s := body.String
		rv.Body = &s
	}
	if deleted {
		rv.State = domain.Deleted
	}
	return rv, nil
}

func (r *Repo) listReviews(ctx context.Context, query string, args ...any) ([]domain.Review, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) InsertReview(ctx context.Context, rv *domain.Review) (err error) {
	defer track("insert_review", time.Now(), &err)
	res, err := r.q.ExecContext(ctx, insertReviewSQL,
		rv.UserID,
		rv.BookID,
		valF64(rv.Rating),
		valStr(rv.Title),
		valStr(rv.Body),
		rv.CreatedAt.UTC(),
		rv.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rv.ID = id
	return nil
}

func (r *Repo) GetReview(ctx context.Context, id int64) (rv domain.Review, err error) {
	defer track("get_review", time.Now(), &err)
	query := getReviewSQL
	if r.locking {
		query = getReviewForUpdateSQL
	}
	return scanReview(r.q.QueryRowContext(ctx, query, id))
}

func (r *Repo) UpdateReview(ctx context.Context, rv domain.Review) (err error) {
	defer track("update_review", time.Now(), &err)
	res, err := r.q.ExecContext(ctx, updateReviewSQL,
		valF64(rv.Rating),
		valStr(rv.Title),
		valStr(rv.Body),
		rv.UpdatedAt.UTC(),
		rv.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *Repo) MarkReviewDeleted(ctx context.Context, id int64, at time.Time) (err error) {
	defer track("mark_review_deleted", time.Now(), &err)
	res, err := r.q.ExecContext(ctx, markReviewDeletedSQL, at.UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// requireRow reports ErrNotFound when an UPDATE matched nothing. The DSN is
// expected to set clientFoundRows so unchanged rows still count.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) ListBookReviews(ctx context.Context, bookID int64) (out []domain.Review, err error) {
	defer track("list_book_reviews", time.Now(), &err)
	return r.listReviews(ctx, listBookReviewsSQL, bookID)
}

func (r *Repo) ListUserReviews(ctx context.Context, userID int64) (out []domain.Review, err error) {
	defer track("list_user_reviews", time.Now(), &err)
	return r.listReviews(ctx, listUserReviewsSQL, userID)
}

func (r *Repo) FindUserReviewForBook(ctx context.Context, userID, bookID int64) (rv domain.Review, err error) {
	defer track("find_user_review_for_book", time.Now(), &err)
	return scanReview(r.q.QueryRowContext(ctx, findUserReviewForBookSQL, userID, bookID))
}

func (r *Repo) BookRatingSummary(ctx context.Context, bookID int64) (s domain.RatingSummary, err error) {
	defer track("book_rating_summary", time.Now(), &err)
	s.BookID = bookID
	if err = r.q.QueryRowContext(ctx, bookRatingSummarySQL, bookID).Scan(&s.AverageRating, &s.TotalReviews); err != nil {
		return domain.RatingSummary{}, err
	}
	return s, nil
}

// -----------------------------------------------------------------------------
// LIKES
// -----------------------------------------------------------------------------

func (r *Repo) InsertLike(ctx context.Context, l domain.ReviewLike) (err error) {
	defer track("insert_like", time.Now(), &err)
	_, err = r.q.ExecContext(ctx, insertLikeSQL, l.ReviewID, l.UserID, l.CreatedAt.UTC())
	return err
}

func (r *Repo) DeleteLike(ctx context.Context, reviewID, userID int64) (deleted bool, err error) {
	defer track("delete_like", time.Now(), &err)
	res, err := r.q.ExecContext(ctx, deleteLikeSQL, reviewID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repo) LikeExists(ctx context.Context, reviewID, userID int64) (ok bool, err error) {
	defer track("like_exists", time.Now(), &err)
	err = r.q.QueryRowContext(ctx, likeExistsSQL, reviewID, userID).Scan(&ok)
	return ok, err
}

func (r *Repo) CountLikes(ctx context.Context, reviewID int64) (n int, err error) {
	defer track("count_likes", time.Now(), &err)
	return r.count(ctx, countLikesSQL, reviewID)
}

// -----------------------------------------------------------------------------
// COMMENTS
// -----------------------------------------------------------------------------

func scanComment(s scanner) (domain.Comment, error) {
	var c domain.Comment
	var deleted bool
	if err := s.Scan(&c.ID, &c.ReviewID, &c.UserID, &c.Body, &deleted, &c.CreatedAt); err != nil {
		return domain.Comment{}, err
	}
	if deleted {
		c.State = domain.Deleted
	}
	return c, nil
}

func (r *Repo) InsertComment(ctx context.Context, c *domain.Comment) (err error) {
	defer track("insert_comment", time.Now(), &err)
	res, err := r.q.ExecContext(ctx, insertCommentSQL, c.ReviewID, c.UserID, c.Body, c.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (r *Repo) GetComment(ctx context.Context, id int64) (c domain.Comment, err error) {
	defer track("get_comment", time.Now(), &err)
	query := "SELECT " + commentColumns + " FROM review_comments WHERE id = ?"
	if r.locking {
		query = getCommentForUpdateSQL
	}
	return scanComment(r.q.QueryRowContext(ctx, query, id))
}

func (r *Repo) MarkCommentDeleted(ctx context.Context, id int64) (err error) {
	defer track("mark_comment_deleted", time.Now(), &err)
	res, err := r.q.ExecContext(ctx, markCommentDeletedSQL, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *Repo) ListReviewComments(ctx context.Context, reviewID int64) (out []domain.Comment, err error) {
	defer track("list_review_comments", time.Now(), &err)
	rows, err := r.q.QueryContext(ctx, listReviewCommentsSQL, reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = []domain.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) CountComments(ctx context.Context, reviewID int64) (n int, err error) {
	defer track("count_comments", time.Now(), &err)
	return r.count(ctx, countCommentsSQL, reviewID)
}

// -----------------------------------------------------------------------------
// STATISTICS
// -----------------------------------------------------------------------------

func (r *Repo) CountReadingStatus(ctx context.Context, userID int64, status domain.ReadingStatusKind) (n int, err error) {
	defer track("count_reading_status", time.Now(), &err)
	return r.count(ctx, countReadingStatusSQL, userID, string(status))
}

func (r *Repo) SumPagesRead(ctx context.Context, userID int64) (n int, err error) {
	defer track("sum_pages_read", time.Now(), &err)
	return r.count(ctx, sumPagesReadSQL, userID)
}

func (r *Repo) CountUserReviews(ctx context.Context, userID int64) (n int, err error) {
	defer track("count_user_reviews", time.Now(), &err)
	return r.count(ctx, countUserReviewsSQL, userID)
}

func (r *Repo) CountUserLists(ctx context.Context, userID int64) (n int, err error) {
	defer track("count_user_lists", time.Now(), &err)
	return r.count(ctx, countUserListsSQL, userID)
}

func (r *Repo) ListUserRatings(ctx context.Context, userID int64) (out []float64, err error) {
	defer track("list_user_ratings", time.Now(), &err)
	rows, err := r.q.QueryContext(ctx, listUserRatingsSQL, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = []float64{}
	for rows.Next() {
		var f float64
		if err = rows.Scan(&f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListReadBookGenres returns one entry per READ book (ordered by book id),
// each holding that book's genre names. Books without genres yield an empty entry.
func (r *Repo) ListReadBookGenres(ctx context.Context, userID int64) (out [][]string, err error) {
	defer track("list_read_book_genres", time.Now(), &err)
	rows, err := r.q.QueryContext(ctx, listReadBookGenresSQL, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = [][]string{}
	last := int64(-1)
	for rows.Next() {
		var bookID int64
		var genre sql.NullString
		if err = rows.Scan(&bookID, &genre); err != nil {
			return nil, err
		}
		if bookID != last {
			out = append(out, []string{})
			last = bookID
		}
		if genre.Valid {
			out[len(out)-1] = append(out[len(out)-1], genre.String)
		}
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) CountBooksFinished(ctx context.Context, userID int64, from, to time.Time) (n int, err error) {
	defer track("count_books_finished", time.Now(), &err)
	return r.count(ctx, countBooksFinishedSQL, userID, from.UTC(), to.UTC())
}

func (r *Repo) CountReviewsCreated(ctx context.Context, userID int64, from, to time.Time) (n int, err error) {
	defer track("count_reviews_created", time.Now(), &err)
	return r.count(ctx, countReviewsCreatedSQL, userID, from.UTC(), to.UTC())
}
