package posts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avasiljevs/pulseboard/internal/common"
	"github.com/avasiljevs/pulseboard/internal/dbx"
	"github.com/avasiljevs/pulseboard/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// invalidTextRepresentation is the SQLSTATE pgx reports when a path
// parameter is not a well-formed uuid. Callers sent an id that cannot exist,
// so it maps to not-found rather than an internal error.
const invalidTextRepresentation = "22P02"

const postColumns = "id, username, title, content, media_key, likes, is_flagged, comments, created_at"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, post *models.Post) (*models.Post, error) {

	query :=
		`INSERT INTO posts (username, title, content, media_key, is_flagged)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING ` + postColumns

	row := r.db.QueryRowContext(ctx, query,
		post.Username, post.Title, post.Content, post.File, post.IsFlagged)

	created, err := scanPost(row)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Post, error) {

	query := `SELECT ` + postColumns + ` FROM posts ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

// AppendComment attaches a comment to the stored JSONB array in a single
// UPDATE, so arrival order is preserved without a read-modify-write cycle.
func (r *PostgresRepository) AppendComment(ctx context.Context, postID string, comment models.Comment) (*models.Post, error) {

	payload, err := json.Marshal(comment)
	if err != nil {
		return nil, fmt.Errorf("marshal comment: %w", err)
	}

	query :=
		`UPDATE posts SET comments = comments || $2::jsonb
		 WHERE id = $1
		 RETURNING ` + postColumns

	row := r.db.QueryRowContext(ctx, query, postID, payload)

	post, err := scanPost(row)
	if err != nil {
		return nil, mapLookupError(err)
	}

	return post, nil
}

// IncrementLikes bumps the like counter atomically at the storage layer, so
// concurrent likes on the same post cannot lose updates.
func (r *PostgresRepository) IncrementLikes(ctx context.Context, postID string) (*models.Post, error) {

	query :=
		`UPDATE posts SET likes = likes + 1
		 WHERE id = $1
		 RETURNING ` + postColumns

	row := r.db.QueryRowContext(ctx, query, postID)

	post, err := scanPost(row)
	if err != nil {
		return nil, mapLookupError(err)
	}

	return post, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	post := &models.Post{}
	var comments []byte

	err := row.Scan(&post.ID, &post.Username, &post.Title, &post.Content,
		&post.File, &post.Likes, &post.IsFlagged, &comments, &post.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(comments, &post.Comments); err != nil {
		return nil, fmt.Errorf("unmarshal comments: %w", err)
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}

	return post, nil
}

func mapLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation {
		return common.ErrorNotFound
	}
	return fmt.Errorf("db error: %w", err)
}
