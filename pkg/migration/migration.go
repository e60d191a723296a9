// Package migration applies and tracks schema migrations in batches.
//
// Migrations register themselves from init() in database/migrations:
//
//	func init() {
//	    migration.Register("20260301000000_create_file_system_items_table", &CreateFileSystemItemsTable{})
//	}
//
// The CLI exposes them as migrate, migrate:rollback and migrate:status.
package migration

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/filemanager/pkg/logger"
)

// Migration is one reversible schema change.
type Migration interface {
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

// Named pairs a migration with its timestamp-prefixed name. Names order
// execution.
type Named struct {
	Name string
	Migration
}

type record struct {
	ID    uint      `gorm:"primaryKey;autoIncrement"`
	Name  string    `gorm:"uniqueIndex;size:255;not null"`
	Batch int       `gorm:"not null"`
	RunAt time.Time `gorm:"autoCreateTime"`
}

func (record) TableName() string { return "filemanager_migrations" }

var (
	regMu    sync.Mutex
	registry = map[string]Migration{}
)

// Register adds m to the global set. It panics on a duplicate name, which
// can only be a programming error.
func Register(name string, m Migration) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("migration: duplicate name " + name)
	}
	registry[name] = m
}

// Registered returns the global set in name order.
func Registered() []Named {
	regMu.Lock()
	defer regMu.Unlock()
	out := make([]Named, 0, len(registry))
	for name, m := range registry {
		out = append(out, Named{Name: name, Migration: m})
	}
	sortNamed(out)
	return out
}

func sortNamed(list []Named) {
	slices.SortFunc(list, func(a, b Named) int { return strings.Compare(a.Name, b.Name) })
}

// Runner applies a fixed list of migrations to db.
type Runner struct {
	db   *gorm.DB
	out  io.Writer
	list []Named
}

// New runs the registered migrations. A nil out discards progress lines.
func New(db *gorm.DB, out io.Writer) *Runner {
	return NewFor(db, out, Registered())
}

// NewFor runs list instead of the global set.
func NewFor(db *gorm.DB, out io.Writer, list []Named) *Runner {
	if out == nil {
		out = io.Discard
	}
	list = slices.Clone(list)
	sortNamed(list)
	return &Runner{db: db, out: out, list: list}
}

// applied maps migration name to its tracking row.
func (r *Runner) applied() (map[string]record, error) {
	if err := r.db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("migration: tracking table: %w", err)
	}
	var rows []record
	if err := r.db.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("migration: read tracking table: %w", err)
	}
	out := make(map[string]record, len(rows))
	for _, row := range rows {
		out[row.Name] = row
	}
	return out, nil
}

// Run applies every pending migration as one new batch. Each migration and
// its tracking row commit together, so a failure leaves earlier steps of the
// batch recorded.
func (r *Runner) Run() (int, error) {
	done, err := r.applied()
	if err != nil {
		return 0, err
	}

	batch := 1
	for _, row := range done {
		batch = max(batch, row.Batch+1)
	}

	ran := 0
	for _, n := range r.list {
		if _, ok := done[n.Name]; ok {
			continue
		}
		fmt.Fprintf(r.out, "Migrating: %s\n", n.Name)
		err := r.db.Transaction(func(tx *gorm.DB) error {
			if err := n.Up(tx); err != nil {
				return err
			}
			return tx.Create(&record{Name: n.Name, Batch: batch}).Error
		})
		if err != nil {
			return ran, fmt.Errorf("migration: %s up: %w", n.Name, err)
		}
		ran++
		fmt.Fprintf(r.out, "Migrated:  %s\n", n.Name)
	}

	if ran == 0 {
		fmt.Fprintln(r.out, "Nothing to migrate.")
		return 0, nil
	}
	logger.Info("migration: batch applied", "batch", batch, "count", ran)
	return ran, nil
}

// ErrUnknownMigration is returned by Rollback for a recorded migration that
// is no longer registered.
var ErrUnknownMigration = errors.New("migration: recorded migration is not registered")

// Rollback reverts the most recent batch, newest first.
func (r *Runner) Rollback() (int, error) {
	done, err := r.applied()
	if err != nil {
		return 0, err
	}

	var last []record
	for _, row := range done {
		switch {
		case len(last) == 0 || row.Batch > last[0].Batch:
			last = []record{row}
		case row.Batch == last[0].Batch:
			last = append(last, row)
		}
	}
	if len(last) == 0 {
		fmt.Fprintln(r.out, "Nothing to roll back.")
		return 0, nil
	}
	slices.SortFunc(last, func(a, b record) int { return int(b.ID) - int(a.ID) })

	byName := make(map[string]Migration, len(r.list))
	for _, n := range r.list {
		byName[n.Name] = n.Migration
	}

	reverted := 0
	for _, row := range last {
		m, ok := byName[row.Name]
		if !ok {
			return reverted, fmt.Errorf("%w: %s", ErrUnknownMigration, row.Name)
		}
		fmt.Fprintf(r.out, "Rolling back: %s\n", row.Name)
		err := r.db.Transaction(func(tx *gorm.DB) error {
			if err := m.Down(tx); err != nil {
				return err
			}
			return tx.Delete(&record{}, row.ID).Error
		})
		if err != nil {
			return reverted, fmt.Errorf("migration: %s down: %w", row.Name, err)
		}
		reverted++
		fmt.Fprintf(r.out, "Rolled back:  %s\n", row.Name)
	}
	logger.Info("migration: batch rolled back", "batch", last[0].Batch, "count", reverted)
	return reverted, nil
}

// StatusRow is one line of Status. Batch is 0 for pending migrations.
type StatusRow struct {
	Name  string
	Ran   bool
	Batch int
}

// Status lists the runner's migrations in name order.
func (r *Runner) Status() ([]StatusRow, error) {
	done, err := r.applied()
	if err != nil {
		return nil, err
	}
	rows := make([]StatusRow, 0, len(r.list))
	for _, n := range r.list {
		row, ok := done[n.Name]
		rows = append(rows, StatusRow{Name: n.Name, Ran: ok, Batch: row.Batch})
	}
	return rows, nil
}
