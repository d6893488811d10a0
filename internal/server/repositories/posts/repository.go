package posts

import (
	"context"

	"github.com/avasiljevs/pulseboard/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, post *models.Post) (*models.Post, error)
	List(ctx context.Context) ([]*models.Post, error)
	AppendComment(ctx context.Context, postID string, comment models.Comment) (*models.Post, error)
	IncrementLikes(ctx context.Context, postID string) (*models.Post, error)
}
