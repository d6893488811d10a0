package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/avasiljevs/pulseboard/internal/common"
	"github.com/avasiljevs/pulseboard/internal/dbx"
	"github.com/avasiljevs/pulseboard/internal/logging"
	"github.com/avasiljevs/pulseboard/internal/server/models"
	"github.com/avasiljevs/pulseboard/internal/server/moderation"
	"github.com/avasiljevs/pulseboard/internal/server/repositories/repomanager"
)

// PostService owns the post/comment lifecycle: creation gated by the
// moderation classifier, listing, liking, and commenting.
type PostService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	classifier  moderation.Classifier
	logger      logging.Logger
}

func NewPostService(db dbx.DBTX, m repomanager.RepositoryManager, c moderation.Classifier, l logging.Logger) *PostService {
	return &PostService{
		db:          db,
		repomanager: m,
		classifier:  c,
		logger:      l.With("module", "posts"),
	}
}

// Create validates the required fields, classifies title and content, and
// persists the post. The flag is computed exactly once here; it never changes
// afterwards. Both classifier calls are always made so each verdict can be
// logged, even when the first one already flags the post.
func (s *PostService) Create(ctx context.Context, username, title, content, mediaKey string) (*models.Post, error) {
	if title == "" || content == "" {
		return nil, common.ErrorValidation
	}

	titleFlagged := s.classifier.Classify(ctx, title)
	contentFlagged := s.classifier.Classify(ctx, content)
	s.logger.Info(ctx, "moderation verdicts for new post",
		"title_flagged", titleFlagged, "content_flagged", contentFlagged)

	post := &models.Post{
		Username:  username,
		Title:     title,
		Content:   content,
		File:      mediaKey,
		IsFlagged: titleFlagged || contentFlagged,
	}

	repo := s.repomanager.Posts(s.db)
	created, err := repo.Create(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("error creating post: %v", err)
	}
	return created, nil
}

// List returns all posts in storage insertion order. Presentation ordering
// is a client concern.
func (s *PostService) List(ctx context.Context) ([]*models.Post, error) {
	repo := s.repomanager.Posts(s.db)
	posts, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %v", err)
	}
	return posts, nil
}

// AddComment classifies the comment text and appends it to the post,
// preserving arrival order. Unknown post ids yield common.ErrorNotFound.
func (s *PostService) AddComment(ctx context.Context, postID, username, text string) (*models.Post, error) {
	if uuid.Validate(postID) != nil {
		return nil, common.ErrorNotFound
	}

	flagged := s.classifier.Classify(ctx, text)
	s.logger.Info(ctx, "moderation verdict for comment", "post_id", postID, "flagged", flagged)

	comment := models.Comment{Text: text, IsFlagged: flagged, Username: username}

	repo := s.repomanager.Posts(s.db)
	post, err := repo.AppendComment(ctx, postID, comment)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error adding comment: %v", err)
	}
	return post, nil
}

// Like increments the like counter by exactly one.
func (s *PostService) Like(ctx context.Context, postID string) (*models.Post, error) {
	if uuid.Validate(postID) != nil {
		return nil, common.ErrorNotFound
	}

	repo := s.repomanager.Posts(s.db)
	post, err := repo.IncrementLikes(ctx, postID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error liking post: %v", err)
	}
	return post, nil
}
