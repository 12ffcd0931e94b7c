package db

import (
	"context"

	"compras/models"
)

// AuditEntry (Журнал аудита). Записи только добавляются.

func (s *Storage) AppendAudit(ctx context.Context, e *models.AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	_, err := exec(ctx, s.db, `
        INSERT INTO audit_log (id, username, action, resource_type, resource_id, details, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Username, e.Action, e.ResourceType, e.ResourceID, e.Details, e.CreatedAt)
	return err
}

func (s *Storage) ListAudit(ctx context.Context, resourceType, resourceID string, limit, offset int) ([]models.AuditEntry, error) {
	entries := []models.AuditEntry{}
	err := selectAll(ctx, s.db, &entries, `
        SELECT id, username, action, resource_type, resource_id, details, created_at
        FROM audit_log
        WHERE resource_type = ? AND resource_id = ?
        ORDER BY created_at ASC, id ASC
        LIMIT ? OFFSET ?`,
		resourceType, resourceID, limit, offset)
	return entries, err
}
