package mysql

// -----------------------------------------------------------------------------
// DIRECTORY (read-only)
// -----------------------------------------------------------------------------

const getUserSQL = `SELECT id, username, avatar_url FROM users WHERE id = ?`

const getBookSQL = `SELECT id, title, cover_url, page_count FROM books WHERE id = ?`

const listBookGenresSQL = `
SELECT g.name
FROM book_genres bg
JOIN genres g ON g.id = bg.genre_id
WHERE bg.book_id = ?
ORDER BY g.name
`

// -----------------------------------------------------------------------------
// REVIEWS
// -----------------------------------------------------------------------------

const reviewColumns = "id, user_id, book_id, rating, title, body, is_deleted, created_at, updated_at"

const insertReviewSQL = `
INSERT INTO reviews
  (user_id, book_id, rating, title, body, is_deleted, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, 0, ?, ?)
`

const getReviewSQL = "SELECT " + reviewColumns + " FROM reviews WHERE id = ?"

// FOR UPDATE serialises concurrent writers on the same review row.
const getReviewForUpdateSQL = getReviewSQL + " FOR UPDATE"

const updateReviewSQL = `
UPDATE reviews
SET rating = ?, title = ?, body = ?, updated_at = ?
WHERE id = ?
`

const markReviewDeletedSQL = `UPDATE reviews SET is_deleted = 1, updated_at = ? WHERE id = ?`

const listBookReviewsSQL = "SELECT " + reviewColumns + `
FROM reviews
WHERE book_id = ? AND is_deleted = 0
ORDER BY created_at DESC, id DESC`

const listUserReviewsSQL = "SELECT " + reviewColumns + `
FROM reviews
WHERE user_id = ? AND is_deleted = 0
ORDER BY created_at DESC, id DESC`

const findUserReviewForBookSQL = "SELECT " + reviewColumns + `
FROM reviews
WHERE user_id = ? AND book_id = ? AND is_deleted = 0
LIMIT 1`

// AVG ignores NULL ratings; COUNT(*) counts every active review.
const bookRatingSummarySQL = `
SELECT COALESCE(AVG(rating), 0), COUNT(*)
FROM reviews
WHERE book_id = ? AND is_deleted = 0
`

// -----------------------------------------------------------------------------
// LIKES
// -----------------------------------------------------------------------------

// Plain INSERT on purpose: the primary key rejects the second concurrent like.
const insertLikeSQL = `INSERT INTO review_likes (review_id, user_id, created_at) VALUES (?, ?, ?)`

const deleteLikeSQL = `DELETE FROM review_likes WHERE review_id = ? AND user_id = ?`

const likeExistsSQL = `SELECT EXISTS(SELECT 1 FROM review_likes WHERE review_id = ? AND user_id = ?)`

const countLikesSQL = `SELECT COUNT(*) FROM review_likes WHERE review_id = ?`

// -----------------------------------------------------------------------------
// COMMENTS
// -----------------------------------------------------------------------------

const commentColumns = "id, review_id, user_id, body, is_deleted, created_at"

const insertCommentSQL = `
INSERT INTO review_comments (review_id, user_id, body, is_deleted, created_at)
VALUES (?, ?, ?, 0, ?)
`

const getCommentForUpdateSQL = "SELECT " + commentColumns + " FROM review_comments WHERE id = ? FOR UPDATE"

const markCommentDeletedSQL = `UPDATE review_comments SET is_deleted = 1 WHERE id = ?`

const listReviewCommentsSQL = "SELECT " + commentColumns + `
FROM review_comments
WHERE review_id = ? AND is_deleted = 0
ORDER BY created_at ASC, id ASC`

const countCommentsSQL = `SELECT COUNT(*) FROM review_comments WHERE review_id = ? AND is_deleted = 0`

// -----------------------------------------------------------------------------
// STATISTICS
// -----------------------------------------------------------------------------

const countReadingStatusSQL = `SELECT COUNT(*) FROM reading_status WHERE user_id = ? AND status = ?`

const sumPagesReadSQL = `
SELECT COALESCE(SUM(b.page_count), 0)
FROM reading_status rs
JOIN books b ON b.id = rs.book_id
WHERE rs.user_id = ? AND rs.status = 'READ' AND b.page_count IS NOT NULL
`

const countUserReviewsSQL = `SELECT COUNT(*) FROM reviews WHERE user_id = ? AND is_deleted = 0`

const countUserListsSQL = `SELECT COUNT(*) FROM library_lists WHERE user_id = ?`

const listUserRatingsSQL = `SELECT rating FROM reviews WHERE user_id = ? AND is_deleted = 0 AND rating IS NOT NULL`

// LEFT JOINs keep READ books that carry no genre, so callers can count them.
const listReadBookGenresSQL = `
SELECT rs.book_id, g.name
FROM reading_status rs
LEFT JOIN book_genres bg ON bg.book_id = rs.book_id
LEFT JOIN genres g ON g.id = bg.genre_id
WHERE rs.user_id = ? AND rs.status = 'READ'
ORDER BY rs.book_id, g.name
`

const countBooksFinishedSQL = `
SELECT COUNT(*)
FROM reading_status
WHERE user_id = ? AND status = 'READ' AND finished_at >= ? AND finished_at < ?
`

const countReviewsCreatedSQL = `
SELECT COUNT(*)
FROM reviews
WHERE user_id = ? AND is_deleted = 0 AND created_at >= ? AND created_at < ?
`
