// Package audit ведёт журнал действий над демандами.
package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"compras/internal/identity"
	"compras/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	ResourceDemand   = "demand"
	ResourceProposal = "proposal"
	ResourceQuestion = "question"
)

type Appender interface {
	AppendAudit(ctx context.Context, e *models.AuditEntry) error
}

type Recorder struct {
	store Appender
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewRecorder(store Appender, log logrus.FieldLogger) *Recorder {
	return &Recorder{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Record добавляет одну запись от имени пользователя из контекста.
// Ошибка записи только логируется: бизнес-изменение к этому моменту уже сохранено.
func (r *Recorder) Record(ctx context.Context, action, resourceType, resourceID string, details map[string]interface{}) {
	user := "anonymous"
	if u, ok := identity.FromContext(ctx); ok {
		user = u.Username
	}

	entry := &models.AuditEntry{
		ID:           uuid.NewString(),
		Username:     user,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      FormatDetails(details),
		CreatedAt:    r.now(),
	}
	if err := r.store.AppendAudit(ctx, entry); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"action":      action,
			"resource":    resourceType,
			"resource_id": resourceID,
		}).Error("audit entry not recorded")
	}
}

// FormatDetails сериализует детали в стабильную строку key=value, отсортированную по ключу.
func FormatDetails(details map[string]interface{}) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return strings.Join(parts, " ")
}
