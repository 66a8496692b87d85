// Package auth owns the persisted session and publishes its transitions.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"leadgen-sync/internal/entity"
	"leadgen-sync/internal/pkg/logger"
	"leadgen-sync/internal/repository/contract"
)

const (
	module     = "AuthGateway"
	sessionKey = "auth:session"
)

type Session struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    int64       `json:"expires_at"`
	User         entity.User `json:"user"`
}

type Gateway struct {
	provider IdentityProvider
	store    contract.KeyValueStore
	bus      *EventBus
	logger   logger.ILogger
	now      func() time.Time

	mu      sync.RWMutex
	session *Session
	loaded  bool
	// generation moves on every sign-in and sign-out; a refresh started under
	// an older generation is discarded.
	generation uint64
}

func NewGateway(provider IdentityProvider, store contract.KeyValueStore, bus *EventBus, log logger.ILogger) *Gateway {
	return &Gateway{
		provider: provider,
		store:    store,
		bus:      bus,
		logger:   log,
		now:      time.Now,
	}
}

// CurrentUser returns the signed-in user, or nil. An expired access token is
// refreshed first; a failed refresh drops the session.
func (g *Gateway) CurrentUser(ctx context.Context) (*entity.User, error) {
	sess, err := g.loadSession(ctx)
	if err != nil || sess == nil {
		return nil, err
	}

	if !sess.expired(g.now()) {
		user := sess.User
		return &user, nil
	}

	generation := g.currentGeneration()
	refreshed, err := g.provider.Refresh(sess.RefreshToken)
	if err != nil {
		g.logger.Warn(module, "Session refresh failed, signing out locally", map[string]interface{}{
			"user_id": sess.User.Id,
			"error":   err.Error(),
		})
		if _, delErr := g.commitSession(ctx, nil, generation); delErr != nil {
			g.logger.Error(module, "Failed to clear stored session", map[string]interface{}{"error": delErr.Error()})
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	committed, err := g.commitSession(ctx, refreshed, generation)
	if err != nil {
		return nil, err
	}
	if !committed {
		g.logger.Info(module, "Discarding refresh of an ended session", map[string]interface{}{
			"user_id": sess.User.Id,
		})
		return nil, nil
	}
	g.publish(EventTokenRefreshed, &refreshed.User)

	user := refreshed.User
	return &user, nil
}

func (g *Gateway) SignIn(ctx context.Context, email, password string) (*entity.User, error) {
	sess, err := g.provider.SignIn(email, password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}

	g.mu.Lock()
	g.generation++
	generation := g.generation
	g.mu.Unlock()

	if _, err := g.commitSession(ctx, sess, generation); err != nil {
		return nil, err
	}

	g.logger.Info(module, "User signed in", map[string]interface{}{"user_id": sess.User.Id})
	g.publish(EventSignedIn, &sess.User)

	user := sess.User
	return &user, nil
}

// SignOut forgets the local session before telling the provider, so a
// provider failure still leaves this side signed out.
func (g *Gateway) SignOut(ctx context.Context) error {
	g.mu.Lock()
	var accessToken, userId string
	if g.session != nil {
		accessToken = g.session.AccessToken
		userId = g.session.User.Id
	}
	g.session = nil
	g.loaded = true
	g.generation++
	err := g.store.Delete(ctx, sessionKey)
	g.mu.Unlock()

	if err != nil {
		g.logger.Error(module, "Failed to clear stored session", map[string]interface{}{"error": err.Error()})
	}
	g.publish(EventSignedOut, nil)

	if accessToken == "" {
		return nil
	}
	if err := g.provider.SignOut(accessToken); err != nil {
		g.logger.Warn(module, "Remote sign-out failed", map[string]interface{}{
			"user_id": userId,
			"error":   err.Error(),
		})
		return fmt.Errorf("sign out: %w", err)
	}

	g.logger.Info(module, "User signed out", map[string]interface{}{"user_id": userId})
	return nil
}

func (g *Gateway) Subscribe(handler func(SessionEvent)) (func(), error) {
	return g.bus.Subscribe(handler)
}

// AccessToken returns the current bearer token without refreshing it.
func (g *Gateway) AccessToken() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.session == nil {
		return ""
	}
	return g.session.AccessToken
}

func (g *Gateway) loadSession(ctx context.Context) (*Session, error) {
	g.mu.RLock()
	if g.loaded {
		sess := g.session
		g.mu.RUnlock()
		return sess, nil
	}
	g.mu.RUnlock()

	raw, found, err := g.store.Get(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess *Session
	if found {
		sess = &Session{}
		if err := json.Unmarshal([]byte(raw), sess); err != nil {
			g.logger.Warn(module, "Ignoring unreadable stored session", map[string]interface{}{"error": err.Error()})
			sess = nil
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.loaded {
		g.session = sess
		g.loaded = true
	}
	return g.session, nil
}

func (g *Gateway) currentGeneration() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.generation
}

// commitSession stores sess (nil clears it) unless the generation moved since
// the caller captured it. The local store is written under mu so a concurrent
// sign-out cannot interleave with the write.
func (g *Gateway) commitSession(ctx context.Context, sess *Session, generation uint64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.generation != generation {
		return false, nil
	}

	if sess == nil {
		g.session = nil
		g.loaded = true
		return true, g.store.Delete(ctx, sessionKey)
	}

	raw, err := json.Marshal(sess)
	if err != nil {
		return false, err
	}
	if err := g.store.Set(ctx, sessionKey, string(raw)); err != nil {
		return false, fmt.Errorf("save session: %w", err)
	}
	g.session = sess
	g.loaded = true
	return true, nil
}

func (g *Gateway) publish(event Event, user *entity.User) {
	var u *entity.User
	if user != nil {
		copied := *user
		u = &copied
	}
	if err := g.bus.Publish(SessionEvent{Event: event, User: u}); err != nil {
		g.logger.Error(module, "Failed to publish session event", map[string]interface{}{
			"event": string(event),
			"error": err.Error(),
		})
	}
}
