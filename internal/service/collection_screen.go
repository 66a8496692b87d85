package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"leadgen-sync/internal/auth"
	"leadgen-sync/internal/entity"
	"leadgen-sync/internal/pkg/logger"
	"leadgen-sync/internal/repository/contract"
	"leadgen-sync/pkg/collection"
	"leadgen-sync/pkg/overlay"
)

const screenModule = "CollectionScreen"

type CollectionSource interface {
	FetchCollection(ctx context.Context, kind entity.CollectionKind, since time.Time) ([]entity.Item, error)
	SetFlag(ctx context.Context, kind entity.CollectionKind, id string, value bool) error
}

type SessionSource interface {
	CurrentUser() *entity.User
}

type ICollectionScreen interface {
	Kind() entity.CollectionKind
	Flag() entity.Flag
	Refresh(ctx context.Context) error
	View(opts ViewOptions) CollectionState
	SetFlag(ctx context.Context, id string, value bool) error
	AddLocal(items []entity.Item) int
	ClearLocal()
	IsNew(id string) bool
	Unseen() int
	Acknowledge(ctx context.Context) error
	Hydrate(ctx context.Context) error
}

type SortOrder string

const (
	SortMerged SortOrder = ""
	SortRecent SortOrder = "recent"
	SortScore  SortOrder = "score"
)

type ViewOptions struct {
	Subreddit string    `query:"subreddit"`
	Sort      SortOrder `query:"sort" validate:"omitempty,oneof=recent score"`
	// Unflagged keeps only items whose effective flag is false.
	Unflagged bool `query:"unflagged"`
}

type ItemView struct {
	entity.Item
	Local bool `json:"local"`
	New   bool `json:"new"`
}

type CollectionState struct {
	Kind    entity.CollectionKind `json:"kind"`
	Items   []ItemView            `json:"items"`
	Loading bool                  `json:"loading"`
	Error   string                `json:"error,omitempty"`
	Unseen  int                   `json:"unseen"`
}

// CollectionScreen holds one list screen: the canonical collection, the items
// that originated locally and the optimistic overlay for the screen's flag.
// All of it belongs to one user and is dropped when the user changes.
type CollectionScreen struct {
	kind     entity.CollectionKind
	flag     entity.Flag
	source   CollectionSource
	session  SessionSource
	store    contract.KeyValueStore
	notifier Notifier
	logger   logger.ILogger
	now      func() time.Time

	overlay *overlay.Overlay

	mu         sync.Mutex
	owner      string
	ownerEpoch uint64
	canonical  []entity.Item
	local      []entity.Item
	fresh      map[string]bool
	unseen     int
	loading    bool
	lastErr    string
	hydrated   bool
}

func NewCollectionScreen(
	kind entity.CollectionKind,
	flag entity.Flag,
	source CollectionSource,
	session SessionSource,
	store contract.KeyValueStore,
	notifier Notifier,
	log logger.ILogger,
) *CollectionScreen {
	return &CollectionScreen{
		kind:     kind,
		flag:     flag,
		source:   source,
		session:  session,
		store:    store,
		notifier: notifier,
		logger:   log,
		now:      time.Now,
		overlay:  overlay.New(),
		fresh:    make(map[string]bool),
	}
}

func (s *CollectionScreen) Kind() entity.CollectionKind {
	return s.kind
}

func (s *CollectionScreen) Flag() entity.Flag {
	return s.flag
}

// Refresh replaces the canonical collection. A failed fetch leaves it empty
// and records a message for the view.
func (s *CollectionScreen) Refresh(ctx context.Context) error {
	epoch, err := s.begin()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	items, fetchErr := s.source.FetchCollection(ctx, s.kind, time.Time{})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ownerEpoch != epoch {
		return nil
	}
	s.loading = false
	if fetchErr != nil {
		s.canonical = nil
		s.lastErr = s.fetchErrText()
		s.logger.Warn(screenModule, "Collection fetch failed", map[string]interface{}{
			"kind":  string(s.kind),
			"error": fetchErr.Error(),
		})
		return fmt.Errorf("fetch %s: %w", s.kind, fetchErr)
	}
	s.canonical = items
	if s.lastErr == s.fetchErrText() {
		s.lastErr = ""
	}
	return nil
}

// View derives what the screen renders: local items first, then canonical,
// with the overlay applied before any filter or sort.
func (s *CollectionScreen) View(opts ViewOptions) CollectionState {
	state := CollectionState{Kind: s.kind, Items: []ItemView{}}

	user := s.session.CurrentUser()
	if user == nil {
		return state
	}

	s.mu.Lock()
	s.syncOwner(user.Id)
	merged := collection.Merge(s.canonical, s.local)
	localSet := collection.NewIDSet(s.local)
	fresh := make(map[string]bool, len(s.fresh))
	for id := range s.fresh {
		fresh[id] = true
	}
	state.Loading = s.loading
	state.Error = s.lastErr
	state.Unseen = s.unseen
	s.mu.Unlock()

	views := make([]ItemView, 0, len(merged))
	for _, item := range merged {
		effective := s.overlay.Effective(item.Id, item.FlagValue(s.flag))
		views = append(views, ItemView{
			Item:  item.WithFlag(s.flag, effective),
			Local: collection.IsLocallyOriginated(item, localSet),
			New:   fresh[item.Id],
		})
	}

	if opts.Subreddit != "" {
		views = collection.Filter(views, collection.FieldEquals(func(v ItemView) string { return v.Subreddit }, opts.Subreddit))
	}
	if opts.Unflagged {
		views = collection.Filter(views, collection.FieldEquals(func(v ItemView) bool { return v.FlagValue(s.flag) }, false))
	}
	switch opts.Sort {
	case SortRecent:
		views = collection.SortByRecency(views, func(v ItemView) time.Time { return v.CreatedAt })
	case SortScore:
		views = collection.SortByScore(views, func(v ItemView) float64 { return float64(v.Score) })
	}

	state.Items = views
	return state
}

// SetFlag flips the screen's flag optimistically. A rejected confirmation
// reverts the item and raises a notice.
func (s *CollectionScreen) SetFlag(ctx context.Context, id string, value bool) error {
	if _, err := s.begin(); err != nil {
		return err
	}
	if !s.has(id) {
		return fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}

	err := s.overlay.Apply(ctx, id, value, func(ctx context.Context) error {
		return s.source.SetFlag(ctx, s.kind, id, value)
	})
	if err != nil {
		s.logger.Warn(screenModule, "Flag update rejected, reverted", map[string]interface{}{
			"kind":  string(s.kind),
			"id":    id,
			"value": value,
			"error": err.Error(),
		})
		s.notifier.Notify(newNotice(entity.NoticeError, flagFailureTitle(s.kind, value), "Please try again."))
		return fmt.Errorf("set %s on %s: %w", s.flag, id, err)
	}
	return nil
}

// AddLocal inserts items that have not round-tripped through the server yet.
// It returns how many of them were not on screen before.
func (s *CollectionScreen) AddLocal(items []entity.Item) int {
	user := s.session.CurrentUser()
	if user == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncOwner(user.Id)
	return s.addLocalLocked(items)
}

func (s *CollectionScreen) addLocalLocked(items []entity.Item) int {
	present := collection.NewIDSet(collection.Merge(s.canonical, s.local))
	added := 0
	for _, item := range items {
		if item.Id == "" || present.Has(item.Id) {
			continue
		}
		present[item.Id] = struct{}{}
		s.fresh[item.Id] = true
		added++
	}
	s.local = collection.AppendLocal(s.local, items, func(i entity.Item) time.Time { return i.CreatedAt })
	s.unseen += added
	return added
}

func (s *CollectionScreen) ClearLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local = nil
	s.fresh = make(map[string]bool)
	s.unseen = 0
}

func (s *CollectionScreen) IsNew(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fresh[id]
}

func (s *CollectionScreen) Unseen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unseen
}

// Acknowledge clears the new-item badges and remembers when the user last
// looked, for the next hydration.
func (s *CollectionScreen) Acknowledge(ctx context.Context) error {
	user := s.session.CurrentUser()
	if user == nil {
		return ErrNoSession
	}

	s.mu.Lock()
	s.syncOwner(user.Id)
	s.unseen = 0
	s.fresh = make(map[string]bool)
	s.mu.Unlock()

	return s.saveLastSeen(ctx, user.Id, s.now())
}

// Hydrate runs once per login: it loads what arrived since the user last
// looked and shows it as local items. The very first run only records the
// starting point.
func (s *CollectionScreen) Hydrate(ctx context.Context) error {
	user := s.session.CurrentUser()
	if user == nil {
		return ErrNoSession
	}

	s.mu.Lock()
	s.syncOwner(user.Id)
	if s.hydrated {
		s.mu.Unlock()
		return nil
	}
	s.hydrated = true
	epoch := s.ownerEpoch
	s.mu.Unlock()

	lastSeen, found, err := s.loadLastSeen(ctx, user.Id)
	if err != nil {
		return err
	}
	if !found {
		return s.saveLastSeen(ctx, user.Id, s.now())
	}

	items, err := s.source.FetchCollection(ctx, s.kind, lastSeen)
	if err != nil {
		s.logger.Warn(screenModule, "Hydration fetch failed", map[string]interface{}{
			"kind":  string(s.kind),
			"error": err.Error(),
		})
		s.mu.Lock()
		if s.ownerEpoch == epoch {
			// Retried on the next call.
			s.hydrated = false
			s.lastErr = s.hydrateErrText()
		}
		s.mu.Unlock()
		return fmt.Errorf("hydrate %s: %w", s.kind, err)
	}

	s.mu.Lock()
	if s.ownerEpoch != epoch {
		s.mu.Unlock()
		return nil
	}
	added := s.addLocalLocked(items)
	if s.lastErr == s.hydrateErrText() {
		s.lastErr = ""
	}
	s.mu.Unlock()

	s.logger.Info(screenModule, "Hydrated items since last visit", map[string]interface{}{
		"kind":  string(s.kind),
		"since": lastSeen.Format(time.RFC3339),
		"added": added,
	})
	if added > 0 {
		s.notifier.Notify(newNotice(entity.NoticeSuccess, fmt.Sprintf("%d new %s found!", added, s.kind), "While you were away"))
	}
	return nil
}

func (s *CollectionScreen) fetchErrText() string {
	return fmt.Sprintf("Failed to load %s.", s.kind)
}

func (s *CollectionScreen) hydrateErrText() string {
	return fmt.Sprintf("Failed to load new %s.", s.kind)
}

func (s *CollectionScreen) OnSessionEvent(ev auth.SessionEvent) {
	if ev.Event != auth.EventSignedOut {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncOwner("")
}

func (s *CollectionScreen) begin() (uint64, error) {
	user := s.session.CurrentUser()
	if user == nil {
		return 0, ErrNoSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncOwner(user.Id)
	return s.ownerEpoch, nil
}

func (s *CollectionScreen) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.local {
		if item.Id == id {
			return true
		}
	}
	for _, item := range s.canonical {
		if item.Id == id {
			return true
		}
	}
	return false
}

// syncOwner drops everything held for a previous user. Callers hold mu.
func (s *CollectionScreen) syncOwner(userId string) {
	if s.owner == userId {
		return
	}
	s.owner = userId
	s.ownerEpoch++
	s.canonical = nil
	s.local = nil
	s.fresh = make(map[string]bool)
	s.unseen = 0
	s.loading = false
	s.lastErr = ""
	s.hydrated = false
	s.overlay.Clear()
}

func (s *CollectionScreen) lastSeenKey(userId string) string {
	return fmt.Sprintf("%s:lastSeenAt:%s", s.kind, userId)
}

func (s *CollectionScreen) loadLastSeen(ctx context.Context, userId string) (time.Time, bool, error) {
	raw, found, err := s.store.Get(ctx, s.lastSeenKey(userId))
	if err != nil || !found {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		s.logger.Warn(screenModule, "Ignoring unreadable last-seen marker", map[string]interface{}{
			"value": raw,
			"error": err.Error(),
		})
		return time.Time{}, false, nil
	}
	return t, true, nil
}

func (s *CollectionScreen) saveLastSeen(ctx context.Context, userId string, at time.Time) error {
	return s.store.Set(ctx, s.lastSeenKey(userId), at.UTC().Format(time.RFC3339Nano))
}

func flagFailureTitle(kind entity.CollectionKind, value bool) string {
	switch {
	case kind == entity.CollectionLeads && value:
		return "Failed to mark lead as read"
	case kind == entity.CollectionLeads:
		return "Failed to mark lead as unread"
	case kind == entity.CollectionPosts && value:
		return "Failed to save post"
	case kind == entity.CollectionPosts:
		return "Failed to unsave post"
	}
	return "Failed to update item"
}
