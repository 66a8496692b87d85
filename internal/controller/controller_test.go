package controller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"leadgen-sync/internal/auth"
	"leadgen-sync/internal/entity"
	"leadgen-sync/internal/pkg/serverutils"
	"leadgen-sync/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

var errUnknown = errors.New("unknown")

func newTestApp(register func(r fiber.Router)) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware(
		serverutils.ErrorMapping{Target: service.ErrNoSession, Status: fiber.StatusUnauthorized},
		serverutils.ErrorMapping{Target: service.ErrUnknownKind, Status: fiber.StatusNotFound},
		serverutils.ErrorMapping{Target: service.ErrUnknownItem, Status: fiber.StatusNotFound},
	))
	register(app.Group("/api"))
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target, body string) (int, serverutils.BaseResponse[json.RawMessage]) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var res serverutils.BaseResponse[json.RawMessage]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return resp.StatusCode, res
}

type staticSession struct{ user *entity.User }

func (s staticSession) CurrentUser() *entity.User { return s.user }

var signedIn = staticSession{user: &entity.User{Id: "user-1", Email: "ada@example.com"}}

type fakeCoordinator struct {
	mu          sync.Mutex
	snapshot    service.SessionSnapshot
	signInErr   error
	signOutErr  error
	markErr     error
	initialized int
	checked     int
}

func (f *fakeCoordinator) Initialize(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized++
	f.snapshot.Loading = false
}

func (f *fakeCoordinator) EnsureOnboardingChecked(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked++
}

func (f *fakeCoordinator) CheckOnboardingStatus(ctx context.Context) {}

func (f *fakeCoordinator) MarkOnboardingComplete(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.snapshot.OnboardingComplete = true
	return nil
}

func (f *fakeCoordinator) ResetOnboarding(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot.OnboardingComplete = false
	return nil
}

func (f *fakeCoordinator) OnSessionEvent(ev auth.SessionEvent) {}

func (f *fakeCoordinator) SignIn(ctx context.Context, email, password string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	f.snapshot.User = &entity.User{Id: "user-1", Email: email}
	return f.snapshot.User, nil
}

func (f *fakeCoordinator) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = service.SessionSnapshot{}
	return f.signOutErr
}

func (f *fakeCoordinator) Snapshot() service.SessionSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *fakeCoordinator) CurrentUser() *entity.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot.User
}

func (f *fakeCoordinator) Close() {}

var _ service.ISessionCoordinator = (*fakeCoordinator)(nil)
