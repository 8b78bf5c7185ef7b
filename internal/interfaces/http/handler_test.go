package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mahan-dev/course-tracker/internal/catalog"
	"github.com/mahan-dev/course-tracker/internal/domain"
	"github.com/mahan-dev/course-tracker/internal/infrastructure/auth"
	"github.com/mahan-dev/course-tracker/internal/infrastructure/driver"
	"github.com/mahan-dev/course-tracker/internal/infrastructure/uuid"
	"github.com/mahan-dev/course-tracker/internal/infrastructure/validate"
	"github.com/mahan-dev/course-tracker/internal/progress"
)

type stubStore struct {
	mu   sync.Mutex
	docs map[string]bool
}

func newStubStore() *stubStore {
	return &stubStore{docs: make(map[string]bool)}
}

func (s *stubStore) GetDocument(ctx context.Context, key string) (driver.DocumentSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	done, ok := s.docs[key]
	return driver.DocumentSnapshot{Exists: ok, Done: done}, nil
}

func (s *stubStore) SetDocument(ctx context.Context, key string, done bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = done
	return nil
}

func (s *stubStore) Subscribe(ctx context.Context, key string, fn func(driver.DocumentSnapshot)) (driver.Unsubscribe, error) {
	return func() {}, nil
}

func (s *stubStore) Ping() error { return nil }

type stubCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newStubCache() *stubCache {
	return &stubCache{data: make(map[string]string)}
}

func (c *stubCache) GetValue(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *stubCache) SetValue(ctx context.Context, key string, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *stubCache) Ping() error { return nil }

type stubKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newStubKV() *stubKV {
	return &stubKV{data: make(map[string]string)}
}

func (kv *stubKV) SetEX(key string, value string, expiration time.Duration) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = value
	return nil
}

func (kv *stubKV) Get(key string) (string, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.data[key], nil
}

func (kv *stubKV) Exists(key string) (bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	_, ok := kv.data[key]
	return ok, nil
}

func (kv *stubKV) Ping() error { return nil }

type handlerEnv struct {
	app     *echo.Echo
	users   *domain.UserSet
	catalog *catalog.Catalog
	manager *progress.Manager
	jwtUtil *auth.JWTUtil
	kv      *stubKV
	store   *stubStore
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	raw := `
course: Test Course
lessons:
  - {title: "A", date: "2026-01-05", day: "Monday", tag: "core"}
  - {title: "B", date: "2026-01-07", day: "Wednesday", tag: "core"}
  - {title: "C", date: "2026-01-09", day: "Friday", tag: "extra"}
`
	cat, err := catalog.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Failed to build test catalog: %v", err)
	}

	store := newStubStore()
	cache := newStubCache()
	manager := progress.NewManager(func(actingUser string) *progress.Engine {
		return progress.NewEngine(actingUser, cat, store, cache, zap.NewNop(), progress.Options{
			BatchSize:  2,
			BatchDelay: 0,
			PageSize:   2,
		})
	})
	t.Cleanup(manager.Close)

	env := &handlerEnv{
		app: echo.New(),
		users: domain.NewUserSet([]domain.UserProfile{
			{Name: "mahan", Color: "yellow"},
			{Name: "jojo", Color: "purple"},
		}),
		catalog: cat,
		manager: manager,
		jwtUtil: auth.NewJWTUtil("HS256", "test-secret", "tracker_session", time.Hour),
		kv:      newStubKV(),
		store:   store,
	}
	return env
}

func (env *handlerEnv) userHandler() *UserHandler {
	return NewUserHandler(env.jwtUtil, env.users, env.manager, env.kv,
		uuid.NewNanoIDGenerator(8), validate.NewValidator())
}

func (env *handlerEnv) progressHandler() *ProgressHandler {
	return NewProgressHandler(env.manager, env.jwtUtil, env.users, validate.NewValidator())
}

// session creates a live engine for user and returns its claims, with the
// initial load already settled.
func (env *handlerEnv) session(t *testing.T, sessionID, user string) *auth.AppTokenClaims {
	t.Helper()
	engine := env.manager.Create(sessionID, user)
	if err := engine.LoadProgress(context.Background(), user); err != nil {
		t.Fatalf("Failed to settle initial load: %v", err)
	}
	profile, ok := env.users.Resolve(user)
	if !ok {
		t.Fatalf("Unknown test user %q", user)
	}
	tokenStr, err := env.jwtUtil.GenerateTokenStr(profile.Name, sessionID, profile.Color)
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	claims, err := env.jwtUtil.Validate(tokenStr)
	if err != nil {
		t.Fatalf("Failed to parse test token: %v", err)
	}
	return claims
}

func (env *handlerEnv) jsonRequest(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return env.app.NewContext(req, rec), rec
}

func (env *handlerEnv) authedRequest(method, target, body string, claims *auth.AppTokenClaims) (echo.Context, *httptest.ResponseRecorder) {
	c, rec := env.jsonRequest(method, target, body)
	if claims != nil {
		env.jwtUtil.SetContextToken(c, claims)
	}
	return c, rec
}
