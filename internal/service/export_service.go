package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mentorship-api/internal/models"
	"github.com/noah-isme/mentorship-api/pkg/export"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
)

type sessionLister interface {
	ListForUser(ctx context.Context, userID string) ([]models.Session, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders an actor's session history for download.
type ExportService struct {
	sessions sessionLister
	audit    auditRecorder
	logger   *zap.Logger
	enabled  bool
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(sessions sessionLister, audit auditRecorder, logger *zap.Logger, enabled bool) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{sessions: sessions, audit: audit, logger: logger, enabled: enabled, now: time.Now}
}

// Sessions renders every session actor takes part in as csv or pdf.
func (s *ExportService) Sessions(ctx context.Context, actor *models.User, format string, meta models.RequestMeta) (*ExportFile, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled")
	}
	f := export.Format(strings.ToLower(strings.TrimSpace(format)))
	if f == "" {
		f = export.FormatCSV
	}
	if f != export.FormatCSV && f != export.FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported export format %q", format))
	}

	sessions, err := s.sessions.ListForUser(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}

	now := s.now().UTC()
	body, err := export.Render(sessionTable(actor, sessions, now), f)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	recordAudit(ctx, s.audit, s.logger, actor.ID, models.AuditActionSessionExport, "session", "", map[string]interface{}{"format": f, "rows": len(sessions)}, meta)
	return &ExportFile{
		Filename:    fmt.Sprintf("sessions-%s.%s", now.Format("20060102-150405"), f),
		ContentType: f.ContentType(),
		Body:        body,
	}, nil
}

func sessionTable(actor *models.User, sessions []models.Session, now time.Time) export.Table {
	table := export.Table{
		Title:       fmt.Sprintf("Mentorship sessions for %s", actor.Name),
		Columns:     []string{"Created", "Role", "With", "Topic", "Status", "Scheduled", "Meeting link", "Reviewed"},
		Widths:      []float64{1.3, 0.8, 1.4, 2.5, 0.9, 1.3, 2.2, 0.7},
		Rows:        make([][]string, 0, len(sessions)),
		GeneratedAt: now,
	}
	for _, sess := range sessions {
		side, other := "mentee", sess.MentorName
		if sess.MentorID == actor.ID {
			side, other = "mentor", sess.RequesterName
		}
		scheduled := ""
		if sess.ScheduledTime != nil {
			scheduled = sess.ScheduledTime.UTC().Format("2006-01-02 15:04")
		}
		link := ""
		if sess.MeetingLink != nil {
			link = *sess.MeetingLink
		}
		reviewed := "no"
		if sess.HasFeedback {
			reviewed = "yes"
		}
		table.Rows = append(table.Rows, []string{
			sess.CreatedAt.UTC().Format("2006-01-02 15:04"),
			side,
			other,
			sess.Topic,
			string(sess.Status),
			scheduled,
			link,
			reviewed,
		})
	}
	return table
}
