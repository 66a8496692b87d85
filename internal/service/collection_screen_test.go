package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leadgen-sync/internal/auth"
	"leadgen-sync/internal/entity"
	"leadgen-sync/internal/pkg/logger"
	"leadgen-sync/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	items    []entity.Item
	fetchErr error
	flagErr  error
	since    []time.Time
	flagged  []string
}

func (f *fakeSource) FetchCollection(ctx context.Context, kind entity.CollectionKind, since time.Time) ([]entity.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = append(f.since, since)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]entity.Item(nil), f.items...), nil
}

func (f *fakeSource) SetFlag(ctx context.Context, kind entity.CollectionKind, id string, value bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flagged = append(f.flagged, id)
	return f.flagErr
}

type fakeSession struct {
	mu   sync.Mutex
	user *entity.User
}

func (f *fakeSession) CurrentUser() *entity.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyUser(f.user)
}

func (f *fakeSession) set(u *entity.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = u
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []entity.Notice
}

func (r *recordingNotifier) Notify(n entity.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) all() []entity.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Notice(nil), r.notices...)
}

type screenFixture struct {
	screen   *CollectionScreen
	source   *fakeSource
	session  *fakeSession
	notifier *recordingNotifier
	store    *memory.KeyValueStore
}

func newScreenFixture(t *testing.T, kind entity.CollectionKind, flag entity.Flag, items ...entity.Item) *screenFixture {
	store, err := memory.NewKeyValueStore("")
	require.NoError(t, err)

	f := &screenFixture{
		source:   &fakeSource{items: items},
		session:  &fakeSession{user: &entity.User{Id: "user-1"}},
		notifier: &recordingNotifier{},
		store:    store,
	}
	f.screen = NewCollectionScreen(kind, flag, f.source, f.session, store, f.notifier, logger.NewNopLogger())
	return f
}

func ids(views []ItemView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.Id)
	}
	return out
}

func at(day int) time.Time {
	return time.Date(2025, 5, day, 12, 0, 0, 0, time.UTC)
}

func TestRefreshRequiresSession(t *testing.T) {
	f := newScreenFixture(t, entity.CollectionLeads, entity.FlagRead)
	f.session.set(nil)

	err := f.screen.Refresh(context.Background())

	assert.ErrorIs(t, err, ErrNoSession)
	assert.Empty(t, f.source.since, "no session, no fetch")
	assert.Empty(t, f.screen.View(ViewOptions{}).Items)
}

func TestRefreshFailureLeavesEmptyCollection(t *testing.T) {
	ctx := context.Background()
	f := newScreenFixture(t, entity.CollectionLeads, entity.FlagRead, entity.Item{Id: "1"})
	require.NoError(t, f.screen.Refresh(ctx))
	require.Len(t, f.screen.View(ViewOptions{}).Items, 1)

	f.source.fetchErr = errors.New("502")
	err := f.screen.Refresh(ctx)

	assert.Error(t, err)
	state := f.screen.View(ViewOptions{})
	assert.Empty(t, state.Items)
	assert.Equal(t, "Failed to load leads.", state.Error)
	assert.False(t, state.Loading)
}

func TestViewMergesLocalFirst(t *testing.T) {
	ctx := context.Background()
	f := newScreenFixture(t, entity.CollectionLeads, entity.FlagRead,
		entity.Item{Id: "1", Title: "server copy", CreatedAt: at(1)},
		entity.Item{Id: "2", CreatedAt: at(2)},
	)
	require.NoError(t, f.screen.Refresh(ctx))

	added := f.screen.AddLocal([]entity.Item{
		{Id: "3", CreatedAt: at(3)},
		{Id: "1", Title: "local copy", CreatedAt: at(4)},
	})

	state := f.screen.View(ViewOptions{})
	assert.Equal(t, 1, added, "only unseen ids count as new")
	assert.Equal(t, []string{"1", "3", "2"}, ids(state.Items))
	assert.Equal(t, "local copy", state.Items[0].Title, "the local copy wins")
	assert.True(t, state.Items[1].Local)
	assert.True(t, state.Items[1].New)
	assert.False(t, state.Items[2].Local)
	assert.Equal(t, 1, state.Unseen)
}

func TestLocalItemsSurviveRefetch(t *testing.T) {
	ctx := context.Background()
	f := newScreenFixture(t, entity.CollectionLeads, entity.FlagRead, entity.Item{Id: "1"})
	require.NoError(t, f.screen.Refresh(ctx))
	f.screen.AddLocal([]entity.Item{{Id: "new-1"}})

	require.NoError(t, f.screen.Refresh(ctx))

	assert.Equal(t, []string{"new-1", "1"}, ids(f.screen.View(ViewOptions{}).Items))
}

func TestSetFlagFailureRevertsAndNotifies(t *testing.T) {
	ctx := context.Background()
	f := newScreenFixture(t, entity.CollectionLeads, entity.FlagRead, entity.Item{Id: "1", Read: false})
	require.NoError(t, f.screen.Refresh(ctx))
	f.source.flagErr = errors.New("500")

	err := f.screen.SetFlag(ctx, "1", true)

	assert.Error(t, err)
	state := f.screen.View(ViewOptions{})
	require.Len(t, state.Items, 1)
	assert.Equal(t, "1", state.Items[0].Id)
	assert.False(t, state.Items[0].Read)
	notices := f.notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, entity.NoticeError, notices[0].Level)
	assert.Equal(t, "Failed to mark lead as read", notices[0].Title)
}

func TestSetFlagSuccessOverridesCanonical(t *testing.T) {
	ctx := context.Background()
	f := newScreenFixture(t, entity.CollectionPosts, entity.FlagSaved, entity.Item{Id: "p1", Saved: true})
	require.NoError(t, f.screen.Refresh(ctx))

	require.NoError(t, f.screen.SetFlag(ctx, "p1", false))
	require.NoError(t, f.screen.Refresh(ctx))

	state := f.screen.View(ViewOptions{})
	assert.False(t, state.Items[0].Saved, "the overlay holds over a stale refetch")
	assert.Equal(t, []string{"p1"}, f.source.flagged)
	assert.Empty(t, f.notifier.all())
}

func TestSetFlagUnknownItem(t *testing.T) {
	f := newScreenFixture(t, entity.CollectionLeads, entity.FlagRead)

	err := f.screen.SetFlag(context.Background(), "missing", true)

	assert.ErrorIs(t, err, ErrUnknownItem)
	assert.Empty(t, f.source.flagged)
}

func TestViewFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	f := newScreenFixture(t, entity.CollectionLeads, entity.FlagRead,
		entity.Item{Id: "a", Subreddit: "golang", Score: 5, CreatedAt: at(1)},
		entity.Item{Id: "b", Subreddit: "rust", Score: 50, CreatedAt: at(3)},
		entity.Item{Id: "c", Subreddit: "golang", Score: 20, CreatedAt: at(2), Read: true},
		entity.Item{Id: "d", Subreddit: "golang", Score: 1, CreatedAt: at(4)},
	)
	require.NoError(t, f.screen.Refresh(ctx))
	require.NoError(t, f.screen.SetFlag(ctx, "d", true))

	tests := []struct {
		name string
		opts ViewOptions
		want []string
	}{
		{"merged order", ViewOptions{}, []string{"a", "b", "c", "d"}},
		{"by subreddit", ViewOptions{Subreddit: "golang"}, []string{"a", "c", "d"}},
		{"by recency", ViewOptions{Sort: SortRecent}, []string{"d", "b", "c", "a"}},
		{"by score", ViewOptions{Sort: SortScore}, []string{"b", "c", "a", "d"}},
		{"unread sees the overlay", ViewOptions{Unflagged: true}, []string{"a", "b"}},
		{"combined", ViewOptions{Subreddit: "golang", Sort: SortScore, Unflagged: true}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(f.screen.View(tt.opts).Items))
		})
	}
}

func TestAcknowledgePersistsLastSeen(t *testing.T) {
	ctx := context.Background()
	f := newScreenFixture(t, entity.CollectionLeads, entity.FlagRead)
	f.screen.now = func() time.Time { return at(9) }
	f.screen.AddLocal([]entity.Item{{Id: "x"}, {Id: "y"}})
	require.Equal(t, 2, f.screen.Unseen())

	require.NoError(t, f.screen.Acknowledge(ctx))

	assert.Zero(t, f.screen.Unseen())
	assert.False(t, f.screen.IsNew("x"))
	raw, found, err := f.store.Get(ctx, "leads:lastSeenAt:user-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "2025-05-09T12:00:00Z", raw)
}

func TestHydrateFirstRunOnlyRecordsStart(t *testing.T) {
	ctx := context.Background()
	f := newScreenFixture(t, entity.CollectionLeads, entity.FlagRead, entity.Item{Id: "old"})
	f.screen.now = func() time.Time { return at(1) }

	require.NoError(t, f.screen.Hydrate(ctx))

	assert.Empty(t, f.source.since, "nothing to catch up on yet")
	_, found, _ := f.store.Get(ctx, "leads:lastSeenAt:user-1")
	assert.True(t, found)
}

func TestHydrateLoadsSinceLastSeenOncePerLogin(t *testing.T) {
	ctx := context.Background()
	f := newScreenFixture(t, entity.CollectionLeads, entity.FlagRead, entity.Item{Id: "n1", CreatedAt: at(5)})
	require.NoError(t, f.store.Set(ctx, "leads:lastSeenAt:user-1", at(2).Format(time.RFC3339Nano)))

	require.NoError(t, f.screen.Hydrate(ctx))
	require.NoError(t, f.screen.Hydrate(ctx))

	require.Len(t, f.source.since, 1)
	assert.Equal(t, at(2), f.source.since[0])
	state := f.screen.View(ViewOptions{})
	require.Len(t, state.Items, 1)
	assert.True(t, state.Items[0].Local)
	assert.True(t, state.Items[0].New)
	assert.Equal(t, 1, state.Unseen)

	f.session.set(&entity.User{Id: "user-2"})
	require.NoError(t, f.store.Set(ctx, "leads:lastSeenAt:user-2", at(2).Format(time.RFC3339Nano)))
	require.NoError(t, f.screen.Hydrate(ctx))
	assert.Len(t, f.source.since, 2, "a new login hydrates again")
}

func TestHydrateAnnouncesWhatArrived(t *testing.T) {
	ctx := context.Background()
	f := newScreenFixture(t, entity.CollectionLeads, entity.FlagRead,
		entity.Item{Id: "n1", CreatedAt: at(5)},
		entity.Item{Id: "n2", CreatedAt: at(6)},
	)
	require.NoError(t, f.store.Set(ctx, "leads:lastSeenAt:user-1", at(2).Format(time.RFC3339Nano)))

	require.NoError(t, f.screen.Hydrate(ctx))

	notices := f.notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, entity.NoticeSuccess, notices[0].Level)
	assert.Equal(t, "2 new leads found!", notices[0].Title)
	assert.Equal(t, "While you were away", notices[0].Message)
}

func TestHydrateWithNothingNewStaysQuiet(t *testing.T) {
	ctx := context.Background()
	f := newScreenFixture(t, entity.CollectionLeads, entity.FlagRead)
	require.NoError(t, f.store.Set(ctx, "leads:lastSeenAt:user-1", at(2).Format(time.RFC3339Nano)))

	require.NoError(t, f.screen.Hydrate(ctx))

	require.Len(t, f.source.since, 1)
	assert.Empty(t, f.notifier.all())
}

func TestHydrateFailureIsShownAndRetried(t *testing.T) {
	ctx := context.Background()
	f := newScreenFixture(t, entity.CollectionLeads, entity.FlagRead, entity.Item{Id: "n1", CreatedAt: at(5)})
	require.NoError(t, f.store.Set(ctx, "leads:lastSeenAt:user-1", at(2).Format(time.RFC3339Nano)))
	f.source.fetchErr = errors.New("502")

	err := f.screen.Hydrate(ctx)

	assert.Error(t, err)
	assert.Equal(t, "Failed to load new leads.", f.screen.View(ViewOptions{}).Error)

	f.source.fetchErr = nil
	require.NoError(t, f.screen.Hydrate(ctx))
	assert.Len(t, f.source.since, 2, "a failed hydration runs again")
	state := f.screen.View(ViewOptions{})
	require.Len(t, state.Items, 1)
	assert.Equal(t, "n1", state.Items[0].Id)
	assert.Empty(t, state.Error)
}

func TestRefreshKeepsHydrationFailureVisible(t *testing.T) {
	ctx := context.Background()
	f := newScreenFixture(t, entity.CollectionLeads, entity.FlagRead, entity.Item{Id: "c1"})
	require.NoError(t, f.store.Set(ctx, "leads:lastSeenAt:user-1", at(2).Format(time.RFC3339Nano)))
	f.source.fetchErr = errors.New("502")
	require.Error(t, f.screen.Hydrate(ctx))

	f.source.fetchErr = nil
	require.NoError(t, f.screen.Refresh(ctx))

	state := f.screen.View(ViewOptions{})
	assert.Equal(t, "Failed to load new leads.", state.Error)
	assert.Len(t, state.Items, 1)
}

func TestSignOutStartsAFreshLoginForTheSameUser(t *testing.T) {
	ctx := context.Background()
	f := newScreenFixture(t, entity.CollectionLeads, entity.FlagRead, entity.Item{Id: "n1", CreatedAt: at(5)})
	require.NoError(t, f.store.Set(ctx, "leads:lastSeenAt:user-1", at(2).Format(time.RFC3339Nano)))
	require.NoError(t, f.screen.Hydrate(ctx))

	f.screen.OnSessionEvent(auth.SessionEvent{Event: auth.EventTokenRefreshed})
	require.NoError(t, f.screen.Hydrate(ctx))
	require.Len(t, f.source.since, 1)

	f.screen.OnSessionEvent(auth.SessionEvent{Event: auth.EventSignedOut})
	require.NoError(t, f.screen.Hydrate(ctx))
	assert.Len(t, f.source.since, 2)
}

func TestUserChangeDropsScreenState(t *testing.T) {
	ctx := context.Background()
	f := newScreenFixture(t, entity.CollectionLeads, entity.FlagRead, entity.Item{Id: "1"})
	require.NoError(t, f.screen.Refresh(ctx))
	require.NoError(t, f.screen.SetFlag(ctx, "1", true))
	f.screen.AddLocal([]entity.Item{{Id: "2"}})

	f.session.set(&entity.User{Id: "user-2"})

	state := f.screen.View(ViewOptions{})
	assert.Empty(t, state.Items)
	assert.Zero(t, state.Unseen)

	require.NoError(t, f.screen.Refresh(ctx))
	state = f.screen.View(ViewOptions{})
	require.Len(t, state.Items, 1)
	assert.False(t, state.Items[0].Read, "the previous user's overlay is gone")
}

func TestClearLocal(t *testing.T) {
	f := newScreenFixture(t, entity.CollectionLeads, entity.FlagRead)
	f.screen.AddLocal([]entity.Item{{Id: "x"}})

	f.screen.ClearLocal()

	assert.Empty(t, f.screen.View(ViewOptions{}).Items)
	assert.Zero(t, f.screen.Unseen())
}
