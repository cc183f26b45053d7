package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/vocabtool/internal/domain"
)

// ResolutionLogEntry captures a finished resolution.
type ResolutionLogEntry struct {
	ID           string                  `json:"id"`
	OriginalText string                  `json:"originalText,omitempty"`
	Focus        string                  `json:"focus"`
	System       string                  `json:"system"`
	Query        string                  `json:"query"`
	Result       domain.ResolutionResult `json:"result"`
	DurationMs   int                     `json:"durationMs"`
	CreatedAt    time.Time               `json:"createdAt"`
}

// ResolutionLogRepository persists finished resolutions.
type ResolutionLogRepository interface {
	CreateResolutionLog(ctx context.Context, entry ResolutionLogEntry) error
	ListResolutionLogs(ctx context.Context, status domain.ResolutionStatus, limit int, cursor string) ([]ResolutionLogEntry, string, error)
}
