package service

import (
	"time"

	"leadgen-sync/internal/entity"

	"github.com/google/uuid"
)

// Notifier shows transient notices to the user.
type Notifier interface {
	Notify(notice entity.Notice)
}

func newNotice(level entity.NoticeLevel, title, message string) entity.Notice {
	return entity.Notice{
		Id:        uuid.NewString(),
		Level:     level,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
	}
}
