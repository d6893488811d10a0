package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/avasiljevs/pulseboard/internal/common"
	"github.com/avasiljevs/pulseboard/internal/server/models"
)

// maxUploadMemory bounds how much of a multipart body is buffered in memory;
// larger attachments spill to temporary files.
const maxUploadMemory = 32 << 20

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type commentRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	s.logger.Info(r.Context(), "registering user", "username", req.Username)

	if _, err := s.users.Register(r.Context(), req.Username, req.Password); err != nil {
		s.logger.Error(r.Context(), "error registering user", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.logger.Info(r.Context(), "logging in user", "username", req.Username)

	token, err := s.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			writeError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		s.logger.Error(r.Context(), "error logging in", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.posts.List(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), "error fetching posts", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	title := r.FormValue("title")
	content := r.FormValue("content")

	var mediaKey string
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		mediaKey, err = s.media.Store(r.Context(), file, "file", header.Filename, header.Header.Get("Content-Type"))
		if err != nil {
			s.logger.Error(r.Context(), "error storing upload", "filename", header.Filename, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
	case errors.Is(err, http.ErrMissingFile):
		// attachment is optional
	default:
		writeError(w, http.StatusBadRequest, "Invalid file field")
		return
	}

	claims := claimsFromContext(r.Context())

	post, err := s.posts.Create(r.Context(), claims.Username, title, content, mediaKey)
	if err != nil {
		if errors.Is(err, common.ErrorValidation) {
			writeError(w, http.StatusBadRequest, "Title and content are required fields")
			return
		}
		s.logger.Error(r.Context(), "error creating post", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleLikePost(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("postID")

	post, err := s.posts.Like(r.Context(), postID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusNotFound, "Post not found")
			return
		}
		s.logger.Error(r.Context(), "error liking post", "post_id", postID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("postID")

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	claims := claimsFromContext(r.Context())

	post, err := s.posts.AddComment(r.Context(), postID, claims.Username, req.Text)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusNotFound, "Post not found")
			return
		}
		s.logger.Error(r.Context(), "error adding comment", "post_id", postID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleFetchFile(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")

	body, contentType, err := s.media.Fetch(r.Context(), filename)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		s.logger.Error(r.Context(), "error fetching file", "filename", filename, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	defer body.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Error(r.Context(), "error streaming file", "filename", filename, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
