package core

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrTagNotFound  = errors.New("tag not found")
	ErrDuplicateTag = errors.New("tag already exists")
)

type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type TagRepository interface {
	List(ctx context.Context) ([]Tag, error)
	Get(ctx context.Context, id int64) (*Tag, error)
	Create(ctx context.Context, name string) (*Tag, error)
	Update(ctx context.Context, id int64, name string) (*Tag, error)
	Delete(ctx context.Context, id int64) error
}

type PgTagRepository struct {
	db *pgxpool.Pool
}

func NewPgTagRepository(db *pgxpool.Pool) *PgTagRepository {
	return &PgTagRepository{db: db}
}

func (r *PgTagRepository) List(ctx context.Context) ([]Tag, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM tags ORDER BY name`)
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

func (r *PgTagRepository) Get(ctx context.Context, id int64) (*Tag, error) {
	var t Tag
	if err := r.db.QueryRow(ctx, `SELECT id, name FROM tags WHERE id=$1`, id).Scan(&t.ID, &t.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTagNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *PgTagRepository) Create(ctx context.Context, name string) (*Tag, error) {
	name = strings.TrimSpace(name)
	t := Tag{Name: name}
	if err := r.db.QueryRow(ctx, `INSERT INTO tags (name) VALUES ($1) RETURNING id`, name).Scan(&t.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateTag
		}
		return nil, err
	}
	return &t, nil
}

func (r *PgTagRepository) Update(ctx context.Context, id int64, name string) (*Tag, error) {
	name = strings.TrimSpace(name)
	ct, err := r.db.Exec(ctx, `UPDATE tags SET name=$1 WHERE id=$2`, name, id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateTag
		}
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, ErrTagNotFound
	}
	return &Tag{ID: id, Name: name}, nil
}

func (r *PgTagRepository) Delete(ctx context.Context, id int64) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM tags WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrTagNotFound
	}
	return nil
}
