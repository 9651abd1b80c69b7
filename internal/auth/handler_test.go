package auth_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicore/clinicore/internal/auth"
	"github.com/clinicore/clinicore/internal/shared"
)

type stubRepo struct {
	user     *auth.User
	sessions map[string]int64
}

func (s *stubRepo) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	if s.user == nil || s.user.Username != username {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]int64)
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

// sessionCommitWriter mirrors the production session middleware in
// internal/app/middleware.go: the session must be committed before the
// first header write, or the Set-Cookie header is silently dropped.
type sessionCommitWriter struct {
	http.ResponseWriter
	sess          *shared.Session
	manager       *shared.SessionManager
	ctx           context.Context
	req           *http.Request
	headerWritten bool
}

func (w *sessionCommitWriter) WriteHeader(statusCode int) {
	if !w.headerWritten {
		w.headerWritten = true
		_ = w.manager.Commit(w.ctx, w.ResponseWriter, w.req, w.sess)
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *sessionCommitWriter) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestServer(t *testing.T, repo auth.Repository) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, auth.NewService(repo), sessionManager, csrfManager, nil)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessionManager.Load(req.Context(), req)
			require.NoError(t, err)
			ctx := shared.ContextWithSession(req.Context(), sess)
			wrapped := &sessionCommitWriter{
				ResponseWriter: w,
				sess:           sess,
				manager:        sessionManager,
				ctx:            ctx,
				req:            req.WithContext(ctx),
			}
			next.ServeHTTP(wrapped, req.WithContext(ctx))
		})
	})
	r.Route("/auth", handler.MountRoutes)
	return r, sessionManager
}

func TestLoginSuccess(t *testing.T) {
	repo := &stubRepo{user: &auth.User{
		ID:           42,
		Username:     "drsmith",
		FullName:     "Dr. Smith",
		PasswordHash: hashPassword(t, "correct horse"),
		IsActive:     true,
	}}
	srv, _ := newTestServer(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"drsmith","password":"correct horse"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"user_id":42`)
	require.Contains(t, rec.Body.String(), "csrf_token")
	require.NotEmpty(t, rec.Result().Cookies())
	require.Len(t, repo.sessions, 1)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := &stubRepo{user: &auth.User{
		ID:           42,
		Username:     "drsmith",
		PasswordHash: hashPassword(t, "correct horse"),
		IsActive:     true,
	}}
	srv, _ := newTestServer(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"drsmith","password":"wrong password"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, repo.sessions)
}

func TestLoginInactiveAccount(t *testing.T) {
	repo := &stubRepo{user: &auth.User{
		ID:           42,
		Username:     "drsmith",
		PasswordHash: hashPassword(t, "correct horse"),
		IsActive:     false,
	}}
	srv, _ := newTestServer(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"drsmith","password":"correct horse"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginValidation(t *testing.T) {
	srv, _ := newTestServer(t, &stubRepo{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"x"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	repo := &stubRepo{user: &auth.User{
		ID:           42,
		Username:     "drsmith",
		PasswordHash: hashPassword(t, "correct horse"),
		IsActive:     true,
	}}
	srv, _ := newTestServer(t, repo)

	login := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"drsmith","password":"correct horse"}`))
	loginRec := httptest.NewRecorder()
	srv.ServeHTTP(loginRec, login)
	require.Equal(t, http.StatusOK, loginRec.Code)
	cookies := loginRec.Result().Cookies()
	require.NotEmpty(t, cookies)

	logout := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	for _, c := range cookies {
		logout.AddCookie(c)
	}
	logoutRec := httptest.NewRecorder()
	srv.ServeHTTP(logoutRec, logout)

	require.Equal(t, http.StatusNoContent, logoutRec.Code)
	require.Empty(t, repo.sessions)
}
