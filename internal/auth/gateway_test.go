package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leadgen-sync/internal/entity"
	"leadgen-sync/internal/pkg/logger"
	"leadgen-sync/internal/repository/memory"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	signIn     *Session
	signInErr  error
	refresh    *Session
	refreshErr error
	signOutErr error

	refreshCalls int
	signedOut    []string

	// When set, Refresh reports on refreshStarted and waits for refreshGate.
	refreshStarted chan struct{}
	refreshGate    chan struct{}
}

func (f *fakeProvider) SignIn(email, password string) (*Session, error) {
	return f.signIn, f.signInErr
}

func (f *fakeProvider) Refresh(refreshToken string) (*Session, error) {
	f.refreshCalls++
	if f.refreshStarted != nil {
		f.refreshStarted <- struct{}{}
	}
	if f.refreshGate != nil {
		<-f.refreshGate
	}
	return f.refresh, f.refreshErr
}

func (f *fakeProvider) SignOut(accessToken string) error {
	f.signedOut = append(f.signedOut, accessToken)
	return f.signOutErr
}

type recorder struct {
	mu     sync.Mutex
	events []SessionEvent
}

func (r *recorder) handle(ev SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Event)
	}
	return out
}

func newTestBus(t *testing.T) *EventBus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{BlockPublishUntilSubscriberAck: true},
		watermill.NopLogger{},
	)
	t.Cleanup(func() { pubSub.Close() })
	return NewEventBus(pubSub, "auth_state", logger.NewNopLogger())
}

func signedToken(t *testing.T, exp time.Time) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func newTestGateway(t *testing.T, provider *fakeProvider) (*Gateway, *memory.KeyValueStore, *recorder) {
	store, err := memory.NewKeyValueStore("")
	require.NoError(t, err)

	bus := newTestBus(t)
	rec := &recorder{}
	unsubscribe, err := bus.Subscribe(rec.handle)
	require.NoError(t, err)
	t.Cleanup(unsubscribe)

	return NewGateway(provider, store, bus, logger.NewNopLogger()), store, rec
}

func TestGatewaySignInPersistsAndPublishes(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{signIn: &Session{
		AccessToken:  signedToken(t, time.Now().Add(time.Hour)),
		RefreshToken: "refresh-1",
		User:         entity.User{Id: "user-1", Email: "a@example.com"},
	}}
	gw, store, rec := newTestGateway(t, provider)

	user, err := gw.SignIn(ctx, "a@example.com", "pw")

	require.NoError(t, err)
	assert.Equal(t, "user-1", user.Id)
	assert.Equal(t, []Event{EventSignedIn}, rec.kinds())
	assert.NotEmpty(t, gw.AccessToken())

	restored := NewGateway(provider, store, newTestBus(t), logger.NewNopLogger())
	current, err := restored.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "a@example.com", current.Email)
}

func TestGatewaySignInFailure(t *testing.T) {
	provider := &fakeProvider{signInErr: errors.New("invalid login credentials")}
	gw, _, rec := newTestGateway(t, provider)

	user, err := gw.SignIn(context.Background(), "a@example.com", "bad")

	assert.Error(t, err)
	assert.Nil(t, user)
	assert.Empty(t, rec.kinds())
}

func TestGatewayCurrentUserWithoutSession(t *testing.T) {
	gw, _, _ := newTestGateway(t, &fakeProvider{})

	user, err := gw.CurrentUser(context.Background())

	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Empty(t, gw.AccessToken())
}

func TestGatewayRefreshesExpiredToken(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{
		signIn: &Session{
			AccessToken:  signedToken(t, time.Now().Add(10*time.Second)),
			RefreshToken: "refresh-1",
			User:         entity.User{Id: "user-1"},
		},
		refresh: &Session{
			AccessToken:  signedToken(t, time.Now().Add(time.Hour)),
			RefreshToken: "refresh-2",
			User:         entity.User{Id: "user-1"},
		},
	}
	gw, _, rec := newTestGateway(t, provider)
	_, err := gw.SignIn(ctx, "a@example.com", "pw")
	require.NoError(t, err)

	user, err := gw.CurrentUser(ctx)

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, 1, provider.refreshCalls, "a token inside the skew window is refreshed")
	assert.Equal(t, provider.refresh.AccessToken, gw.AccessToken())
	assert.Equal(t, []Event{EventSignedIn, EventTokenRefreshed}, rec.kinds())

	_, err = gw.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.refreshCalls)
}

func TestGatewayFailedRefreshDropsSession(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{
		signIn: &Session{
			AccessToken:  signedToken(t, time.Now().Add(-time.Minute)),
			RefreshToken: "stale",
			User:         entity.User{Id: "user-1"},
		},
		refreshErr: errors.New("refresh token revoked"),
	}
	gw, store, _ := newTestGateway(t, provider)
	_, err := gw.SignIn(ctx, "a@example.com", "pw")
	require.NoError(t, err)

	user, err := gw.CurrentUser(ctx)

	assert.Error(t, err)
	assert.Nil(t, user)
	assert.Empty(t, gw.AccessToken())
	_, found, _ := store.Get(ctx, sessionKey)
	assert.False(t, found)
}

func TestGatewayRefreshFinishingAfterSignOutIsDiscarded(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{
		signIn: &Session{
			AccessToken:  signedToken(t, time.Now().Add(-time.Minute)),
			RefreshToken: "refresh-1",
			User:         entity.User{Id: "user-1"},
		},
		refresh: &Session{
			AccessToken:  "new",
			RefreshToken: "refresh-2",
			User:         entity.User{Id: "user-1"},
		},
		refreshStarted: make(chan struct{}),
		refreshGate:    make(chan struct{}),
	}
	gw, store, rec := newTestGateway(t, provider)
	_, err := gw.SignIn(ctx, "a@example.com", "pw")
	require.NoError(t, err)

	type result struct {
		user *entity.User
		err  error
	}
	done := make(chan result, 1)
	go func() {
		user, err := gw.CurrentUser(ctx)
		done <- result{user, err}
	}()

	<-provider.refreshStarted
	require.NoError(t, gw.SignOut(ctx))
	close(provider.refreshGate)
	res := <-done

	require.NoError(t, res.err)
	assert.Nil(t, res.user)
	assert.Empty(t, gw.AccessToken())
	_, found, _ := store.Get(ctx, sessionKey)
	assert.False(t, found, "the refreshed session is not written back")
	assert.Equal(t, []Event{EventSignedIn, EventSignedOut}, rec.kinds())
}

func TestGatewayFailedRefreshAfterNewSignInKeepsNewSession(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{
		signIn: &Session{
			AccessToken:  signedToken(t, time.Now().Add(-time.Minute)),
			RefreshToken: "refresh-1",
			User:         entity.User{Id: "user-1"},
		},
		refreshErr:     errors.New("refresh token revoked"),
		refreshStarted: make(chan struct{}),
		refreshGate:    make(chan struct{}),
	}
	gw, store, _ := newTestGateway(t, provider)
	_, err := gw.SignIn(ctx, "a@example.com", "pw")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := gw.CurrentUser(ctx)
		done <- err
	}()

	<-provider.refreshStarted
	provider.signIn = &Session{
		AccessToken:  signedToken(t, time.Now().Add(time.Hour)),
		RefreshToken: "refresh-b",
		User:         entity.User{Id: "user-2"},
	}
	_, err = gw.SignIn(ctx, "b@example.com", "pw")
	require.NoError(t, err)
	close(provider.refreshGate)
	assert.Error(t, <-done)

	_, found, _ := store.Get(ctx, sessionKey)
	assert.True(t, found)
	assert.Equal(t, provider.signIn.AccessToken, gw.AccessToken())
}

func TestGatewaySignOutClearsLocalStateEvenOnRemoteFailure(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{
		signIn: &Session{
			AccessToken: signedToken(t, time.Now().Add(time.Hour)),
			User:        entity.User{Id: "user-1"},
		},
		signOutErr: errors.New("network down"),
	}
	gw, store, rec := newTestGateway(t, provider)
	_, err := gw.SignIn(ctx, "a@example.com", "pw")
	require.NoError(t, err)

	err = gw.SignOut(ctx)

	assert.Error(t, err)
	assert.Len(t, provider.signedOut, 1)
	assert.Empty(t, gw.AccessToken())
	user, err := gw.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
	_, found, _ := store.Get(ctx, sessionKey)
	assert.False(t, found)
	assert.Equal(t, []Event{EventSignedIn, EventSignedOut}, rec.kinds())
}

func TestGatewaySignOutWithoutSession(t *testing.T) {
	provider := &fakeProvider{}
	gw, _, rec := newTestGateway(t, provider)

	err := gw.SignOut(context.Background())

	require.NoError(t, err)
	assert.Empty(t, provider.signedOut, "nothing to revoke remotely")
	assert.Equal(t, []Event{EventSignedOut}, rec.kinds())
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := newTestBus(t)
	rec := &recorder{}
	unsubscribe, err := bus.Subscribe(rec.handle)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(SessionEvent{Event: EventSignedIn, User: &entity.User{Id: "u"}}))
	unsubscribe()
	// The subscription is torn down asynchronously after cancel.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, bus.Publish(SessionEvent{Event: EventSignedOut}))

	assert.Equal(t, []Event{EventSignedIn}, rec.kinds())
	assert.Equal(t, "u", rec.events[0].User.Id)
}

func TestSessionExpiry(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		sess Session
		want bool
	}{
		{"fresh jwt", Session{AccessToken: signedToken(t, now.Add(time.Hour))}, false},
		{"expired jwt", Session{AccessToken: signedToken(t, now.Add(-time.Hour))}, true},
		{"jwt inside skew", Session{AccessToken: signedToken(t, now.Add(5*time.Second))}, true},
		{"opaque token uses expires_at", Session{AccessToken: "opaque", ExpiresAt: now.Add(-time.Minute).Unix()}, true},
		{"opaque token without expiry", Session{AccessToken: "opaque"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sess.expired(now))
		})
	}
}
