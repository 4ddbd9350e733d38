// Package database records sync run history in Postgres. Recording is
// optional: binaries only wire it up when a connection string is configured.
package database

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/netopsio/infoblox-sync/sync"
)

type SyncRun struct {
	ID          uint64    `db:"id"`
	Source      string    `db:"source"`
	NetworkView string    `db:"network_view"`
	DryRun      bool      `db:"dry_run"`
	StartedAt   time.Time `db:"started_at"`
	Matched     int       `db:"matched"`
	Discrepant  int       `db:"discrepant"`
	Missing     int       `db:"missing"`
	Containers  int       `db:"containers"`
	Errors      int       `db:"errors"`
}

type SyncOutcome struct {
	ID       uint64 `db:"id"`
	RunID    uint64 `db:"run_id"`
	CIDR     string `db:"cidr"`
	SourceID string `db:"source_id"`
	Action   string `db:"action"`
	Category string `db:"category"`
	Error    string `db:"error"`
}

type ModelsManager interface {
	CreateSyncRun(run *SyncRun) (uint64, error)
	RecordOutcomes(runID uint64, outcomes []*sync.CreationOutcome) error
	GetRecentRuns(limit int) ([]*SyncRun, error)
}

type SQLModelsManager struct {
	DB *sqlx.DB
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS sync_run (
		id BIGSERIAL PRIMARY KEY,
		source TEXT NOT NULL,
		network_view TEXT NOT NULL,
		dry_run BOOLEAN NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		matched INT NOT NULL,
		discrepant INT NOT NULL,
		missing INT NOT NULL,
		containers INT NOT NULL,
		errors INT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sync_outcome (
		id BIGSERIAL PRIMARY KEY,
		run_id BIGINT NOT NULL REFERENCES sync_run(id),
		cidr TEXT NOT NULL,
		source_id TEXT NOT NULL,
		action TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT ''
	)`,
}

func (m *SQLModelsManager) Migrate() error {
	for _, migration := range migrations {
		_, err := m.DB.Exec(migration)
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *SQLModelsManager) CreateSyncRun(run *SyncRun) (uint64, error) {
	var id uint64
	q := `INSERT INTO sync_run (source, network_view, dry_run, started_at, matched, discrepant, missing, containers, errors)
		VALUES (:source, :network_view, :dry_run, :started_at, :matched, :discrepant, :missing, :containers, :errors)
		RETURNING id`
	rewritten, args, err := m.DB.BindNamed(q, run)
	if err != nil {
		return 0, err
	}
	err = m.DB.Get(&id, rewritten, args...)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (m *SQLModelsManager) RecordOutcomes(runID uint64, outcomes []*sync.CreationOutcome) error {
	for _, o := range outcomes {
		row := &SyncOutcome{
			RunID:    runID,
			CIDR:     o.Record.CIDR,
			SourceID: o.Record.SourceID,
			Action:   string(o.Action),
			Category: string(o.Category),
		}
		if o.Err != nil {
			row.Error = o.Err.Error()
		}
		_, err := m.DB.NamedExec(
			`INSERT INTO sync_outcome (run_id, cidr, source_id, action, category, error)
			VALUES (:run_id, :cidr, :source_id, :action, :category, :error)`, row)
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *SQLModelsManager) GetRecentRuns(limit int) ([]*SyncRun, error) {
	runs := []*SyncRun{}
	err := m.DB.Select(&runs, `SELECT * FROM sync_run ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return runs, nil
}
