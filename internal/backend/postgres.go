package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/briangreenhill/quill/internal/blog"
)

const schema = `
CREATE TABLE IF NOT EXISTS blogs (
	id          UUID PRIMARY KEY,
	title       TEXT NOT NULL,
	category    TEXT[] NOT NULL DEFAULT '{}',
	description TEXT NOT NULL,
	date        TIMESTAMPTZ NOT NULL,
	cover_image TEXT,
	content     TEXT NOT NULL
)`

const selectBlog = `SELECT id::text, title, category, description, date, cover_image, content FROM blogs`

// PGStore keeps posts in Postgres with uuid ids.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects and creates the blogs table if needed.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Close() { s.pool.Close() }

func (s *PGStore) List(ctx context.Context) ([]blog.Post, error) {
	rows, err := s.pool.Query(ctx, selectBlog+` ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	defer rows.Close()

	posts := []blog.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (s *PGStore) Get(ctx context.Context, id blog.ID) (blog.Post, error) {
	if _, err := uuid.Parse(id.String()); err != nil {
		return blog.Post{}, ErrNotFound
	}
	p, err := scanPost(s.pool.QueryRow(ctx, selectBlog+` WHERE id = $1`, id.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return blog.Post{}, ErrNotFound
	}
	return p, err
}

func (s *PGStore) Create(ctx context.Context, p blog.Post) (blog.Post, error) {
	id := uuid.New()
	date, err := p.Published()
	if err != nil {
		date = time.Now().UTC()
	}
	cover := pgtype.Text{String: p.CoverImage, Valid: p.CoverImage != ""}
	category := p.Category
	if category == nil {
		category = []string{}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO blogs (id, title, category, description, date, cover_image, content)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, p.Title, category, p.Description, date, cover, p.Content)
	if err != nil {
		return blog.Post{}, fmt.Errorf("insert blog: %w", err)
	}
	p.ID = blog.ID(id.String())
	p.Category = category
	return p, nil
}

func scanPost(row pgx.Row) (blog.Post, error) {
	var (
		p     blog.Post
		id    string
		date  time.Time
		cover pgtype.Text
	)
	if err := row.Scan(&id, &p.Title, &p.Category, &p.Description, &date, &cover, &p.Content); err != nil {
		return blog.Post{}, err
	}
	p.ID = blog.ID(id)
	p.Date = date.UTC().Format(time.RFC3339)
	p.CoverImage = cover.String
	return p, nil
}
