package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avasiljevs/pulseboard/internal/common"
	"github.com/avasiljevs/pulseboard/internal/logging"
	"github.com/avasiljevs/pulseboard/internal/server/auth"
	"github.com/avasiljevs/pulseboard/internal/server/config"
	"github.com/avasiljevs/pulseboard/internal/server/models"
)

// ---- test logger ----

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (nopLogger) With(...any) logging.Logger            { return nopLogger{} }

// ---- fakes ----

type fakeUsers struct {
	regErr   error
	loginOut string
	loginErr error
}

func (f *fakeUsers) Register(ctx context.Context, username, password string) (*models.User, error) {
	if f.regErr != nil {
		return nil, f.regErr
	}
	return &models.User{ID: "u1", Username: username}, nil
}

func (f *fakeUsers) Login(ctx context.Context, username, password string) (string, error) {
	return f.loginOut, f.loginErr
}

type fakePosts struct {
	createOut      *models.Post
	createErr      error
	createUsername string
	createMediaKey string

	listOut []*models.Post
	listErr error

	commentOut      *models.Post
	commentErr      error
	commentUsername string

	likeOut *models.Post
	likeErr error
}

func (f *fakePosts) Create(ctx context.Context, username, title, content, mediaKey string) (*models.Post, error) {
	f.createUsername = username
	f.createMediaKey = mediaKey
	return f.createOut, f.createErr
}

func (f *fakePosts) List(ctx context.Context) ([]*models.Post, error) {
	return f.listOut, f.listErr
}

func (f *fakePosts) AddComment(ctx context.Context, postID, username, text string) (*models.Post, error) {
	f.commentUsername = username
	return f.commentOut, f.commentErr
}

func (f *fakePosts) Like(ctx context.Context, postID string) (*models.Post, error) {
	return f.likeOut, f.likeErr
}

type fakeMedia struct {
	storeOut string
	storeErr error

	fetchBody        string
	fetchContentType string
	fetchErr         error
}

func (f *fakeMedia) Store(ctx context.Context, body io.Reader, fieldName, originalName, contentType string) (string, error) {
	return f.storeOut, f.storeErr
}

func (f *fakeMedia) Fetch(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if f.fetchErr != nil {
		return nil, "", f.fetchErr
	}
	return io.NopCloser(strings.NewReader(f.fetchBody)), f.fetchContentType, nil
}

// ---- helpers ----

const testSecret = "test-secret"

func newTestServer(t *testing.T, users Users, posts Posts, media Media) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		SecretKey:     testSecret,
		AllowedOrigin: "http://localhost:3000",
	}
	s := NewServer(cfg, nopLogger{}, users, posts, media)
	srv := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(srv.Close)
	return srv
}

func validToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken("u1", "alice", []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	return token
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// ---- tests ----

func TestRegister_Success(t *testing.T) {
	srv := newTestServer(t, &fakeUsers{}, &fakePosts{}, &fakeMedia{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/register", "",
		map[string]string{"username": "alice", "password": "pw"})

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
}

func TestRegister_MissingFields(t *testing.T) {
	srv := newTestServer(t, &fakeUsers{}, &fakePosts{}, &fakeMedia{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/register", "",
		map[string]string{"username": "alice"})

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRegister_DuplicateIsGeneric500(t *testing.T) {
	srv := newTestServer(t, &fakeUsers{regErr: common.ErrorAlreadyExists}, &fakePosts{}, &fakeMedia{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/register", "",
		map[string]string{"username": "alice", "password": "pw"})

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	body := decodeBody[map[string]string](t, resp)
	if strings.Contains(strings.ToLower(body["error"]), "exists") {
		t.Fatalf("duplicate detail must not leak to the caller: %q", body["error"])
	}
}

func TestLogin_Success(t *testing.T) {
	srv := newTestServer(t, &fakeUsers{loginOut: "tok-123"}, &fakePosts{}, &fakeMedia{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/login", "",
		map[string]string{"username": "alice", "password": "pw"})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[map[string]string](t, resp)
	if body["token"] != "tok-123" {
		t.Fatalf("token missing from response: %v", body)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := newTestServer(t, &fakeUsers{loginErr: common.ErrorUnauthorized}, &fakePosts{}, &fakeMedia{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/login", "",
		map[string]string{"username": "alice", "password": "wrong"})

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestListPosts_RequiresToken(t *testing.T) {
	srv := newTestServer(t, &fakeUsers{}, &fakePosts{}, &fakeMedia{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/posts", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d, want 401", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/posts", "garbage", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("invalid token: status = %d, want 403", resp.StatusCode)
	}
}

func TestListPosts_ExpiredToken(t *testing.T) {
	srv := newTestServer(t, &fakeUsers{}, &fakePosts{}, &fakeMedia{})

	expired, err := auth.GenerateToken("u1", "alice", []byte(testSecret), -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/posts", expired, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expired token: status = %d, want 403", resp.StatusCode)
	}
}

func TestListPosts_Success(t *testing.T) {
	posts := &fakePosts{listOut: []*models.Post{{ID: "p1", Title: "hello", Comments: []models.Comment{}}}}
	srv := newTestServer(t, &fakeUsers{}, posts, &fakeMedia{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/posts", validToken(t), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[[]models.Post](t, resp)
	if len(body) != 1 || body[0].ID != "p1" {
		t.Fatalf("unexpected posts: %+v", body)
	}
}

func TestListPosts_EmptyIsArray(t *testing.T) {
	srv := newTestServer(t, &fakeUsers{}, &fakePosts{}, &fakeMedia{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/posts", validToken(t), nil)
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		t.Fatalf("empty feed must serialize as an array, got %q", raw)
	}
}

func multipartBody(t *testing.T, fields map[string]string, fileName, fileContent string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := io.WriteString(fw, fileContent); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestCreatePost_WithAttachment(t *testing.T) {
	posts := &fakePosts{createOut: &models.Post{ID: "p1", Title: "t", File: "file-1.png"}}
	media := &fakeMedia{storeOut: "file-1.png"}
	srv := newTestServer(t, &fakeUsers{}, posts, media)

	body, contentType := multipartBody(t, map[string]string{"title": "t", "content": "c"}, "cat.png", "img")
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/posts", body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", validToken(t))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if posts.createMediaKey != "file-1.png" {
		t.Fatalf("media key not passed to post service: %q", posts.createMediaKey)
	}
	if posts.createUsername != "alice" {
		t.Fatalf("author must come from token claims, got %q", posts.createUsername)
	}
}

func TestCreatePost_MissingFields(t *testing.T) {
	posts := &fakePosts{createErr: common.ErrorValidation}
	srv := newTestServer(t, &fakeUsers{}, posts, &fakeMedia{})

	body, contentType := multipartBody(t, map[string]string{"title": "only-title"}, "", "")
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/posts", body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", validToken(t))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestLikePost_Success(t *testing.T) {
	posts := &fakePosts{likeOut: &models.Post{ID: "p1", Likes: 1, Comments: []models.Comment{}}}
	srv := newTestServer(t, &fakeUsers{}, posts, &fakeMedia{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/posts/like/p1", validToken(t), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[models.Post](t, resp)
	if body.Likes != 1 {
		t.Fatalf("unexpected likes: %d", body.Likes)
	}
}

func TestLikePost_NotFound(t *testing.T) {
	posts := &fakePosts{likeErr: common.ErrorNotFound}
	srv := newTestServer(t, &fakeUsers{}, posts, &fakeMedia{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/posts/like/missing", validToken(t), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAddComment_Success(t *testing.T) {
	posts := &fakePosts{commentOut: &models.Post{ID: "p1", Comments: []models.Comment{{Text: "hi", Username: "alice"}}}}
	srv := newTestServer(t, &fakeUsers{}, posts, &fakeMedia{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/posts/comment/p1", validToken(t),
		map[string]string{"text": "hi"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if posts.commentUsername != "alice" {
		t.Fatalf("comment author must come from token claims, got %q", posts.commentUsername)
	}
}

func TestAddComment_NotFound(t *testing.T) {
	posts := &fakePosts{commentErr: common.ErrorNotFound}
	srv := newTestServer(t, &fakeUsers{}, posts, &fakeMedia{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/posts/comment/missing", validToken(t),
		map[string]string{"text": "hi"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestFetchFile_StreamsBytes(t *testing.T) {
	media := &fakeMedia{fetchBody: "image-bytes", fetchContentType: "image/png"}
	srv := newTestServer(t, &fakeUsers{}, &fakePosts{}, media)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/files/file-1.png", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q, want image/png", ct)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Fatalf("bytes not returned verbatim: %q", data)
	}
}

func TestFetchFile_NotFound(t *testing.T) {
	media := &fakeMedia{fetchErr: common.ErrorNotFound}
	srv := newTestServer(t, &fakeUsers{}, &fakePosts{}, media)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/files/ghost.png", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestInternalErrorsStayGeneric(t *testing.T) {
	posts := &fakePosts{listErr: errors.New("connection refused to db-host:5432")}
	srv := newTestServer(t, &fakeUsers{}, posts, &fakeMedia{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/posts", validToken(t), nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	body := decodeBody[map[string]string](t, resp)
	if strings.Contains(body["error"], "db-host") {
		t.Fatalf("internal detail leaked: %q", body["error"])
	}
}

func TestCORS_PreflightAndHeaders(t *testing.T) {
	srv := newTestServer(t, &fakeUsers{}, &fakePosts{}, &fakeMedia{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/posts", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeUsers{}, &fakePosts{}, &fakeMedia{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
