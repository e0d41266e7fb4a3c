package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/quiet-hours/internal/auth"
	"github.com/sakif/quiet-hours/internal/handler"
	"github.com/sakif/quiet-hours/internal/repository/sqlite"
	"github.com/sakif/quiet-hours/internal/service"
	"github.com/sakif/quiet-hours/internal/web"
)

const testSecret = "handler-test-secret-32-characters"

// testEnv is a router wired like the real server, over an in-memory database.
type testEnv struct {
	db       *sqlite.DB
	blocks   *service.BlockService
	accounts *service.AuthService
	tokens   *auth.TokenService
	router   chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)

	blocks := service.NewBlockService(db, logger)
	accounts := service.NewAuthService(db, tokens, auth.NewPasswordServiceForTest(4), logger)

	blockHandler := handler.NewBlockHandler(blocks, logger)
	authHandler := handler.NewAuthHandler(accounts, nil, false, logger)
	dashboard, err := handler.NewDashboardHandler(web.Templates(), blocks, accounts, false, time.UTC, logger)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.With(auth.OptionalAuth(tokens)).Get("/", dashboard.HandleDashboard)
	r.Post("/auth/register", authHandler.HandleRegister)
	r.Post("/auth/login", authHandler.HandleLogin)
	r.Post("/auth/logout", authHandler.HandleLogout)
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/me", authHandler.HandleMe)
		r.Get("/blocks", blockHandler.HandleList)
		r.Get("/blocks/stats", blockHandler.HandleStats)
		r.Get("/blocks/{id}", blockHandler.HandleGet)
		r.Post("/blocks", blockHandler.HandleCreate)
		r.Put("/blocks/{id}", blockHandler.HandleUpdate)
		r.Delete("/blocks/{id}", blockHandler.HandleDelete)
	})

	return &testEnv{db: db, blocks: blocks, accounts: accounts, tokens: tokens, router: r}
}

// register creates an account and returns its session cookie.
func (e *testEnv) register(t *testing.T, email string) (string, *http.Cookie) {
	t.Helper()
	res, err := e.accounts.Register(context.Background(), email, "correct-horse", "Test User")
	require.NoError(t, err)
	return res.Profile.UserID, &http.Cookie{Name: auth.CookieName, Value: res.Token}
}

// do sends a request through the router. body is JSON-encoded unless it is
// already a string.
func (e *testEnv) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}
