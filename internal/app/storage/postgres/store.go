// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"database/sql"
	"strings"
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/storage"
)

// Store implements every storage interface over a single *sql.DB handle.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.LedgerStore = (*Store)(nil)
var _ storage.ActivationStore = (*Store)(nil)
var _ storage.TreeStore = (*Store)(nil)
var _ storage.QueueStore = (*Store)(nil)
var _ storage.CommissionStore = (*Store)(nil)
var _ storage.RankStore = (*Store)(nil)
var _ storage.GlobalPhaseStore = (*Store)(nil)
var _ storage.FundsStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func toNullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
