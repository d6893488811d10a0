// Package httpapi exposes the public HTTP surface of pulseboard: account
// registration and login, the post feed, likes, comments, and media
// retrieval.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/avasiljevs/pulseboard/internal/logging"
	"github.com/avasiljevs/pulseboard/internal/server/config"
	"github.com/avasiljevs/pulseboard/internal/server/models"
)

// Users is the slice of the user service the HTTP layer depends on.
type Users interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, error)
}

// Posts is the slice of the post service the HTTP layer depends on.
type Posts interface {
	Create(ctx context.Context, username, title, content, mediaKey string) (*models.Post, error)
	List(ctx context.Context) ([]*models.Post, error)
	AddComment(ctx context.Context, postID, username, text string) (*models.Post, error)
	Like(ctx context.Context, postID string) (*models.Post, error)
}

// Media is the slice of the media service the HTTP layer depends on.
type Media interface {
	Store(ctx context.Context, body io.Reader, fieldName, originalName, contentType string) (string, error)
	Fetch(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// Server is the HTTP server that serves the public API endpoints.
type Server struct {
	cfg        *config.Config
	users      Users
	posts      Posts
	media      Media
	logger     logging.Logger
	jwtSecret  []byte
	httpServer *http.Server
}

// NewServer wires the services into an http.Server with routing, CORS,
// request logging, and token verification on the protected routes.
func NewServer(cfg *config.Config, l logging.Logger, users Users, posts Posts, media Media) *Server {
	s := &Server{
		cfg:       cfg,
		users:     users,
		posts:     posts,
		media:     media,
		logger:    l.With("module", "httpapi"),
		jwtSecret: []byte(cfg.SecretKey),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /api/posts", s.requireAuth(s.handleListPosts))
	mux.HandleFunc("POST /api/posts", s.requireAuth(s.handleCreatePost))
	mux.HandleFunc("POST /api/posts/like/{postID}", s.requireAuth(s.handleLikePost))
	mux.HandleFunc("POST /api/posts/comment/{postID}", s.requireAuth(s.handleAddComment))
	mux.HandleFunc("GET /api/files/{filename}", s.handleFetchFile)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         cfg.EndpointAddr,
		Handler:      s.withLogging(s.withCORS(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Run begins listening for HTTP requests and blocks until ctx is cancelled
// or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
