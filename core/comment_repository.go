package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrCommentNotFound = errors.New("comment not found")

// Comment carries a free-form author name: commenting does not require an
// account, matching the public comment form.
type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type CommentRepository interface {
	ListByPost(ctx context.Context, postID int64) ([]Comment, error)
	Get(ctx context.Context, id int64) (*Comment, error)
	Create(ctx context.Context, postID int64, author, text string) (*Comment, error)
	Delete(ctx context.Context, id int64) error
}

type PgCommentRepository struct {
	db *pgxpool.Pool
}

func NewPgCommentRepository(db *pgxpool.Pool) *PgCommentRepository {
	return &PgCommentRepository{db: db}
}

func (r *PgCommentRepository) ListByPost(ctx context.Context, postID int64) ([]Comment, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, post_id, author, text, created_at
FROM comments
WHERE post_id=$1
ORDER BY created_at, id`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	comments := make([]Comment, 0)
	for rows.Next() {
		var cm Comment
		if err := rows.Scan(&cm.ID, &cm.PostID, &cm.Author, &cm.Text, &cm.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, cm)
	}
	return comments, rows.Err()
}

func (r *PgCommentRepository) Get(ctx context.Context, id int64) (*Comment, error) {
	const q = `SELECT id, post_id, author, text, created_at FROM comments WHERE id=$1`
	var cm Comment
	if err := r.db.QueryRow(ctx, q, id).Scan(&cm.ID, &cm.PostID, &cm.Author, &cm.Text, &cm.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	return &cm, nil
}

func (r *PgCommentRepository) Create(ctx context.Context, postID int64, author, text string) (*Comment, error) {
	author = strings.TrimSpace(author)
	text = strings.TrimSpace(text)
	const q = `INSERT INTO comments (post_id, author, text) VALUES ($1,$2,$3) RETURNING id, created_at`
	cm := Comment{PostID: postID, Author: author, Text: text}
	if err := r.db.QueryRow(ctx, q, postID, author, text).Scan(&cm.ID, &cm.CreatedAt); err != nil {
		return nil, err
	}
	return &cm, nil
}

func (r *PgCommentRepository) Delete(ctx context.Context, id int64) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrCommentNotFound
	}
	return nil
}
