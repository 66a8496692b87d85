package service

import (
	"context"
	"fmt"

	"leadgen-sync/internal/entity"
	"leadgen-sync/internal/pkg/logger"
	"leadgen-sync/internal/remote"
	"leadgen-sync/pkg/events"
)

const leadFeedModule = "LeadFeedService"

type LocalItemSink interface {
	AddLocal(items []entity.Item) int
}

// LeadFeedService turns realtime lead-created events into locally
// originated items on the leads screen.
type LeadFeedService struct {
	sink     LocalItemSink
	notifier Notifier
	logger   logger.ILogger
}

func NewLeadFeedService(sink LocalItemSink, notifier Notifier, log logger.ILogger) *LeadFeedService {
	return &LeadFeedService{
		sink:     sink,
		notifier: notifier,
		logger:   log,
	}
}

// HandleEvent never asks for redelivery of a payload it cannot read.
func (s *LeadFeedService) HandleEvent(ctx context.Context, event events.Event) error {
	if event.EventType() != events.LeadCreated {
		return nil
	}

	item, err := remote.ParseItem(event.Payload())
	if err != nil {
		s.logger.Warn(leadFeedModule, "Dropping unreadable lead event", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = event.Timestamp()
	}

	if s.sink.AddLocal([]entity.Item{item}) == 0 {
		return nil
	}

	s.logger.Info(leadFeedModule, "New lead received", map[string]interface{}{
		"lead_id": item.Id,
	})
	s.notifier.Notify(newNotice(entity.NoticeSuccess, "New lead found!", fmt.Sprintf("%q was added to your leads.", item.Title)))
	return nil
}
