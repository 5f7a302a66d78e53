package health

import (
	"context"
	"database/sql"
	"time"

	"invoice-backend/internal/shared/storage/db"
)

const dbPingTimeout = 2 * time.Second

// Service encapsulates health-related checks.
type Service struct {
	DB *sql.DB
}

// NewService constructs a new health service. database may be nil when the
// process runs on in-memory repositories.
func NewService(database *sql.DB) *Service {
	return &Service{DB: database}
}

// Status returns a simple liveness payload.
func (s *Service) Status() map[string]any {
	return map[string]any{"ok": true}
}

// Database reports whether the record store is reachable. Memory mode
// counts as healthy.
func (s *Service) Database(ctx context.Context) (map[string]any, bool) {
	if s == nil || s.DB == nil {
		return map[string]any{"ok": true, "database": "memory"}, true
	}
	start := time.Now()
	if err := db.Ping(ctx, s.DB, dbPingTimeout); err != nil {
		return map[string]any{"ok": false, "database": "postgres", "error": err.Error()}, false
	}
	return map[string]any{
		"ok":        true,
		"database":  "postgres",
		"latencyMs": time.Since(start).Milliseconds(),
		"pool":      db.PoolStats(s.DB),
	}, true
}
