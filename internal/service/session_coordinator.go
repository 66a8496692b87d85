package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"leadgen-sync/internal/auth"
	"leadgen-sync/internal/entity"
	"leadgen-sync/internal/pkg/logger"
)

const sessionModule = "SessionCoordinator"

type AuthGateway interface {
	CurrentUser(ctx context.Context) (*entity.User, error)
	SignIn(ctx context.Context, email, password string) (*entity.User, error)
	SignOut(ctx context.Context) error
	Subscribe(handler func(auth.SessionEvent)) (func(), error)
}

type OnboardingEndpoint interface {
	FetchOnboardingStatus(ctx context.Context) (*bool, error)
	SetOnboardingStatus(ctx context.Context) error
	ResetOnboardingStatus(ctx context.Context) error
}

type BackgroundGenerator interface {
	GenerateAll(ctx context.Context, force bool) error
}

type ISessionCoordinator interface {
	Initialize(ctx context.Context)
	EnsureOnboardingChecked(ctx context.Context)
	CheckOnboardingStatus(ctx context.Context)
	MarkOnboardingComplete(ctx context.Context) error
	ResetOnboarding(ctx context.Context) error
	OnSessionEvent(ev auth.SessionEvent)
	SignIn(ctx context.Context, email, password string) (*entity.User, error)
	SignOut(ctx context.Context) error
	Snapshot() SessionSnapshot
	CurrentUser() *entity.User
	Close()
}

type SessionSnapshot struct {
	User               *entity.User `json:"user"`
	Loading            bool         `json:"loading"`
	OnboardingComplete bool         `json:"onboarding_complete"`
	OnboardingLoading  bool         `json:"onboarding_loading"`
}

// SessionCoordinator owns the session state and runs the once-per-login side
// effects. Every transition happens under mu; remote calls never do.
type SessionCoordinator struct {
	auth        AuthGateway
	onboarding  OnboardingEndpoint
	generator   BackgroundGenerator
	logger      logger.ILogger
	settleDelay time.Duration

	mu                 sync.Mutex
	user               *entity.User
	loading            bool
	onboardingComplete bool
	onboardingLoading  bool
	initialized        bool
	onboardingChecked  bool
	// epoch changes on every sign-out; results captured under an older
	// epoch are dropped.
	epoch       uint64
	pending     *time.Timer
	unsubscribe func()
}

func NewSessionCoordinator(
	authGateway AuthGateway,
	onboarding OnboardingEndpoint,
	generator BackgroundGenerator,
	settleDelay time.Duration,
	log logger.ILogger,
) (*SessionCoordinator, error) {
	c := &SessionCoordinator{
		auth:              authGateway,
		onboarding:        onboarding,
		generator:         generator,
		logger:            log,
		settleDelay:       settleDelay,
		loading:           true,
		onboardingLoading: true,
	}

	unsubscribe, err := authGateway.Subscribe(c.OnSessionEvent)
	if err != nil {
		return nil, fmt.Errorf("subscribe to session events: %w", err)
	}
	c.unsubscribe = unsubscribe

	return c, nil
}

// Initialize resolves the current user once per login. Later calls are no-ops
// until a sign-out resets the coordinator.
func (c *SessionCoordinator) Initialize(ctx context.Context) {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return
	}
	c.initialized = true
	c.loading = true
	epoch := c.epoch
	c.mu.Unlock()

	user, err := c.auth.CurrentUser(ctx)
	if err != nil {
		c.logger.Warn(sessionModule, "Failed to resolve current user, treating as signed out", map[string]interface{}{
			"error": err.Error(),
		})
		user = nil
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	// A SIGNED_IN that landed while resolving is newer than this answer.
	if c.user == nil {
		c.user = user
	}
	c.loading = false
	signedIn := c.user != nil
	if !signedIn {
		c.onboardingComplete = false
		c.onboardingLoading = false
	}
	c.mu.Unlock()

	if signedIn {
		c.EnsureOnboardingChecked(ctx)
	}
}

// EnsureOnboardingChecked runs the onboarding check at most once per login.
func (c *SessionCoordinator) EnsureOnboardingChecked(ctx context.Context) {
	c.mu.Lock()
	if c.user == nil || c.onboardingChecked {
		c.mu.Unlock()
		return
	}
	c.onboardingChecked = true
	c.mu.Unlock()

	c.CheckOnboardingStatus(ctx)
}

// CheckOnboardingStatus treats anything but an explicit true as incomplete.
func (c *SessionCoordinator) CheckOnboardingStatus(ctx context.Context) {
	c.mu.Lock()
	epoch := c.epoch
	c.onboardingLoading = true
	c.mu.Unlock()

	status, err := c.onboarding.FetchOnboardingStatus(ctx)
	if err != nil {
		c.logger.Warn(sessionModule, "Onboarding status check failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	complete := err == nil && status != nil && *status

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		c.logger.Debug(sessionModule, "Discarding onboarding status of an ended session", nil)
		return
	}
	c.onboardingComplete = complete
	c.onboardingLoading = false
}

func (c *SessionCoordinator) MarkOnboardingComplete(ctx context.Context) error {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	epoch := c.epoch
	c.onboardingComplete = true
	c.mu.Unlock()

	if err := c.onboarding.SetOnboardingStatus(ctx); err != nil {
		c.mu.Lock()
		if c.epoch == epoch {
			c.onboardingComplete = false
		}
		c.mu.Unlock()
		return fmt.Errorf("mark onboarding complete: %w", err)
	}
	return nil
}

func (c *SessionCoordinator) ResetOnboarding(ctx context.Context) error {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	epoch := c.epoch
	c.mu.Unlock()

	if err := c.onboarding.ResetOnboardingStatus(ctx); err != nil {
		return fmt.Errorf("reset onboarding: %w", err)
	}

	c.mu.Lock()
	if c.epoch == epoch {
		c.onboardingComplete = false
	}
	c.mu.Unlock()
	return nil
}

// OnSessionEvent is the single dispatch point for auth transitions.
func (c *SessionCoordinator) OnSessionEvent(ev auth.SessionEvent) {
	switch ev.Event {
	case auth.EventSignedIn:
		c.handleSignedIn(ev.User)
	case auth.EventSignedOut:
		c.reset()
	default:
		// Refreshes and profile updates only touch a live session; they never
		// sign anyone in.
		if ev.User == nil {
			return
		}
		c.mu.Lock()
		if c.user != nil && c.user.Id == ev.User.Id {
			c.user = copyUser(ev.User)
		}
		c.mu.Unlock()
	}
}

func (c *SessionCoordinator) handleSignedIn(user *entity.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if user != nil {
		c.switchUserLocked(user)
	}
	c.loading = false

	if c.pending != nil {
		c.pending.Stop()
	}
	epoch := c.epoch
	c.pending = time.AfterFunc(c.settleDelay, func() {
		c.runBackgroundGeneration(epoch)
	})

	c.logger.Info(sessionModule, "Session started", map[string]interface{}{
		"user_id": userId(c.user),
	})
}

func (c *SessionCoordinator) runBackgroundGeneration(epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch || c.user == nil {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.mu.Unlock()

	if err := c.generator.GenerateAll(context.Background(), false); err != nil {
		c.logger.Error(sessionModule, "Background content generation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (c *SessionCoordinator) SignIn(ctx context.Context, email, password string) (*entity.User, error) {
	user, err := c.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.switchUserLocked(user)
	c.initialized = true
	c.loading = false
	c.mu.Unlock()

	c.EnsureOnboardingChecked(ctx)
	return user, nil
}

// SignOut resets local state before the remote call; a remote failure is
// returned but the local session stays cleared.
func (c *SessionCoordinator) SignOut(ctx context.Context) error {
	c.reset()
	return c.auth.SignOut(ctx)
}

func (c *SessionCoordinator) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// switchUserLocked makes user current. A different account starts a new
// login: the previous one's guards and onboarding state are dropped first.
func (c *SessionCoordinator) switchUserLocked(user *entity.User) {
	if c.user != nil && c.user.Id != user.Id {
		c.logger.Info(sessionModule, "Account switched", map[string]interface{}{
			"from": c.user.Id,
			"to":   user.Id,
		})
		c.resetLocked()
	}
	c.user = copyUser(user)
}

func (c *SessionCoordinator) resetLocked() {
	c.epoch++
	c.user = nil
	c.loading = false
	c.onboardingComplete = false
	c.onboardingLoading = false
	c.onboardingChecked = false
	c.initialized = false
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

func (c *SessionCoordinator) Snapshot() SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return SessionSnapshot{
		User:               copyUser(c.user),
		Loading:            c.loading,
		OnboardingComplete: c.onboardingComplete,
		OnboardingLoading:  c.onboardingLoading,
	}
}

func (c *SessionCoordinator) CurrentUser() *entity.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyUser(c.user)
}

func (c *SessionCoordinator) Close() {
	c.mu.Lock()
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func copyUser(u *entity.User) *entity.User {
	if u == nil {
		return nil
	}
	copied := *u
	return &copied
}

func userId(u *entity.User) string {
	if u == nil {
		return ""
	}
	return u.Id
}
