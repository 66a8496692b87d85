package bootstrap

import (
	"context"
	"fmt"
	"log"

	"leadgen-sync/internal/auth"
	"leadgen-sync/internal/config"
	"leadgen-sync/internal/controller"
	"leadgen-sync/internal/entity"
	"leadgen-sync/internal/pkg/logger"
	"leadgen-sync/internal/remote"
	"leadgen-sync/internal/repository/contract"
	"leadgen-sync/internal/repository/implementation"
	"leadgen-sync/internal/repository/memory"
	"leadgen-sync/internal/service"
	"leadgen-sync/internal/websocket"

	pktNats "leadgen-sync/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/multierr"
)

type Container struct {
	// Controllers
	SessionController controller.ISessionController
	LeadsController   controller.ICollectionController
	PostsController   controller.ICollectionController
	KarmaController   controller.IKarmaController
	NoticeController  controller.INoticeController

	// Exposed for main.go
	Session      *service.SessionCoordinator
	WebSocketHub *websocket.Hub
	Logger       *logger.ZapLogger

	closers []func() error
}

func NewContainer(cfg *config.Config) (*Container, error) {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	noticeLogger := logger.NewIsolatedLogger(cfg.App.NoticeLogFilePath)
	c := &Container{Logger: sysLogger}

	store, closeStore, err := OpenStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, closeStore)

	// 2. Auth event bus. Publishing blocks until every subscriber has handled
	// the event, so handlers observe transitions in order.
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{BlockPublishUntilSubscriberAck: true},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, pubSub.Close)
	bus := auth.NewEventBus(pubSub, cfg.Sync.EventTopic, sysLogger)

	provider, err := auth.NewSupabaseProvider(cfg.Supabase.URL, cfg.Supabase.AnonKey)
	if err != nil {
		return nil, fmt.Errorf("identity provider: %w", err)
	}
	gateway := auth.NewGateway(provider, store, bus, sysLogger)

	// 3. Services
	api := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Timeout, cfg.Breaker, gateway, sysLogger)

	wsHub := websocket.NewHub(noticeLogger)
	generations := service.NewGenerationService(api, store, sysLogger)

	session, err := service.NewSessionCoordinator(gateway, api, generations, cfg.Sync.GenerationSettleDelay, sysLogger)
	if err != nil {
		return nil, err
	}
	c.Session = session
	c.WebSocketHub = wsHub
	c.closers = append(c.closers, func() error {
		session.Close()
		return nil
	})

	leads := service.NewCollectionScreen(entity.CollectionLeads, entity.FlagRead, api, session, store, wsHub, sysLogger)
	posts := service.NewCollectionScreen(entity.CollectionPosts, entity.FlagSaved, api, session, store, wsHub, sysLogger)
	for _, screen := range []*service.CollectionScreen{leads, posts} {
		unsubscribe, err := gateway.Subscribe(screen.OnSessionEvent)
		if err != nil {
			return nil, fmt.Errorf("subscribe %s screen: %w", screen.Kind(), err)
		}
		c.closers = append(c.closers, func() error {
			unsubscribe()
			return nil
		})
	}

	// 3.5 Realtime lead feed
	leadFeed := service.NewLeadFeedService(leads, wsHub, sysLogger)
	if cfg.App.NatsURL != "" {
		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, cfg.Sync.LeadFeedStream, sysLogger)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		} else {
			c.closers = append(c.closers, func() error {
				natsSub.Close()
				return nil
			})
			if err := natsSub.Subscribe(context.Background(), cfg.Sync.LeadCreatedSubject, cfg.Sync.LeadFeedDurable, leadFeed.HandleEvent); err != nil {
				log.Printf("[WARN] Failed to subscribe to lead feed: %v", err)
			}
		}
	}

	// 4. Controllers
	c.SessionController = controller.NewSessionController(session)
	c.LeadsController = controller.NewCollectionController(leads, session, controller.CollectionRoutes{
		Path:     "/leads",
		SetTrue:  "read",
		SetFalse: "unread",
	})
	c.PostsController = controller.NewCollectionController(posts, session, controller.CollectionRoutes{
		Path:     "/posts",
		SetTrue:  "save",
		SetFalse: "unsave",
	})
	c.KarmaController = controller.NewKarmaController(generations, session)
	c.NoticeController = controller.NewNoticeController(wsHub, leadFeed, session, noticeLogger)

	return c, nil
}

// OpenStore opens the configured local store along with its close func.
func OpenStore(cfg config.StoreConfig) (contract.KeyValueStore, func() error, error) {
	if cfg.Backend == "redis" {
		store, err := implementation.NewRedisKeyValueStore(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis store: %w", err)
		}
		return store, store.Close, nil
	}

	store, err := memory.NewKeyValueStore(cfg.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("file store: %w", err)
	}
	return store, func() error { return nil }, nil
}

// Close releases everything in reverse order of creation.
func (c *Container) Close() error {
	var err error
	for i := len(c.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, c.closers[i]())
	}
	return multierr.Append(err, c.Logger.Sync())
}
