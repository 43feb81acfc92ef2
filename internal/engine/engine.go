package engine

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"rollplane/internal/config"
	"rollplane/internal/domain"
	"rollplane/internal/events"
	"rollplane/internal/repo"
)

// CasePolicy is the identifier casing an instance enforces on database names.
type CasePolicy int

const (
	CasePreserve CasePolicy = iota
	CaseLower
)

// CaseProbeFunc reports the case policy of a live instance. The probe is
// best-effort: a nil func or an error means no transformation.
type CaseProbeFunc func(ctx context.Context, instance domain.Instance) (CasePolicy, error)

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Config    *config.Config
	Now       func() time.Time
	Log       *slog.Logger
	CaseProbe CaseProbeFunc
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
		Log:    slog.Default(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) log() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

// databaseCase resolves the effective database name for an instance. Probe
// failures are logged and swallowed; the requested name is used unchanged.
func (e Engine) databaseCase(ctx context.Context, instance domain.Instance, name string) string {
	if e.CaseProbe == nil {
		return name
	}
	switch instance.Engine {
	case domain.EngineMySQL, domain.EngineTiDB, domain.EngineMariaDB, domain.EngineOceanBase:
	default:
		return name
	}
	policy, err := e.CaseProbe(ctx, instance)
	if err != nil {
		e.log().Warn("case probe failed", "instance", instance.ID, "error", err)
		return name
	}
	if policy == CaseLower {
		return strings.ToLower(name)
	}
	return name
}
