package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/mentorship-api/internal/models"
)

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// recordAudit writes an audit entry. Failures never fail the request.
func recordAudit(ctx context.Context, repo auditRecorder, logger *zap.Logger, actorID, action, resource, resourceID string, payload interface{}, meta models.RequestMeta) {
	if repo == nil {
		return
	}
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			entry.NewValues = raw
		}
	}
	if err := repo.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
