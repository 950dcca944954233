package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrPostNotFound = errors.New("post not found")

type Post struct {
	ID          int64     `json:"id"`
	AuthorID    int64     `json:"author_id"`
	AuthorName  string    `json:"author"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Tags        []Tag     `json:"tags"`
}

type PostCreateInput struct {
	AuthorID    int64
	Title       string
	Content     string
	IsPublished bool
	TagIDs      []int64
}

type PostRepository interface {
	ListPublished(ctx context.Context) ([]Post, error)
	ListUnpublished(ctx context.Context) ([]Post, error)
	ListByTag(ctx context.Context, tagID int64) ([]Post, error)
	Get(ctx context.Context, id int64) (*Post, error)
	Create(ctx context.Context, in PostCreateInput) (*Post, error)
	Update(ctx context.Context, id int64, in PostCreateInput) (*Post, error)
	Delete(ctx context.Context, id int64) error
}

// PgPostRepository implements PostRepository using pgxpool. Tag links live in
// post_tags and are rewritten wholesale on update.
type PgPostRepository struct {
	db *pgxpool.Pool
}

func NewPgPostRepository(db *pgxpool.Pool) *PgPostRepository {
	return &PgPostRepository{db: db}
}

const postColumns = `p.id, p.author_id, u.username, p.title, p.content, p.is_published, p.created_at, p.updated_at`

func (r *PgPostRepository) ListPublished(ctx context.Context) ([]Post, error) {
	return r.list(ctx, `
SELECT `+postColumns+`
FROM posts p JOIN users u ON u.id = p.author_id
WHERE p.is_published
ORDER BY p.created_at DESC, p.id DESC`)
}

func (r *PgPostRepository) ListUnpublished(ctx context.Context) ([]Post, error) {
	return r.list(ctx, `
SELECT `+postColumns+`
FROM posts p JOIN users u ON u.id = p.author_id
WHERE NOT p.is_published
ORDER BY p.created_at DESC, p.id DESC`)
}

func (r *PgPostRepository) ListByTag(ctx context.Context, tagID int64) ([]Post, error) {
	return r.list(ctx, `
SELECT `+postColumns+`
FROM posts p
JOIN users u ON u.id = p.author_id
JOIN post_tags pt ON pt.post_id = p.id
WHERE p.is_published AND pt.tag_id = $1
ORDER BY p.created_at DESC, p.id DESC`, tagID)
}

func (r *PgPostRepository) list(ctx context.Context, query string, args ...any) ([]Post, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	posts := make([]Post, 0)
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.AuthorName, &p.Title, &p.Content, &p.IsPublished, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range posts {
		tags, err := r.tagsFor(ctx, posts[i].ID)
		if err != nil {
			return nil, err
		}
		posts[i].Tags = tags
	}
	return posts, nil
}

func (r *PgPostRepository) Get(ctx context.Context, id int64) (*Post, error) {
	const q = `
SELECT ` + postColumns + `
FROM posts p JOIN users u ON u.id = p.author_id
WHERE p.id=$1`
	var p Post
	if err := r.db.QueryRow(ctx, q, id).Scan(&p.ID, &p.AuthorID, &p.AuthorName, &p.Title, &p.Content, &p.IsPublished, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	tags, err := r.tagsFor(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Tags = tags
	return &p, nil
}

func (r *PgPostRepository) Create(ctx context.Context, in PostCreateInput) (*Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)

	var id int64
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		const q = `INSERT INTO posts (author_id, title, content, is_published) VALUES ($1,$2,$3,$4) RETURNING id`
		if err := tx.QueryRow(ctx, q, in.AuthorID, in.Title, in.Content, in.IsPublished).Scan(&id); err != nil {
			return err
		}
		return linkTags(ctx, tx, id, in.TagIDs)
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *PgPostRepository) Update(ctx context.Context, id int64, in PostCreateInput) (*Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		const q = `UPDATE posts SET title=$1, content=$2, is_published=$3, updated_at=now() WHERE id=$4`
		ct, err := tx.Exec(ctx, q, in.Title, in.Content, in.IsPublished, id)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return ErrPostNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM post_tags WHERE post_id=$1`, id); err != nil {
			return err
		}
		return linkTags(ctx, tx, id, in.TagIDs)
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *PgPostRepository) Delete(ctx context.Context, id int64) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *PgPostRepository) tagsFor(ctx context.Context, postID int64) ([]Tag, error) {
	rows, err := r.db.Query(ctx, `
SELECT t.id, t.name
FROM tags t JOIN post_tags pt ON pt.tag_id = t.id
WHERE pt.post_id = $1
ORDER BY t.name`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tags := make([]Tag, 0)
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func linkTags(ctx context.Context, tx pgx.Tx, postID int64, tagIDs []int64) error {
	for _, tagID := range tagIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO post_tags (post_id, tag_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`, postID, tagID); err != nil {
			return err
		}
	}
	return nil
}
