package migration_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/filemanager/pkg/database"
	"github.com/shashiranjanraj/filemanager/pkg/migration"
)

type table struct {
	name string
	fail bool
}

func (m table) Up(db *gorm.DB) error {
	if m.fail {
		return errors.New("boom")
	}
	return db.Exec("CREATE TABLE " + m.name + " (id INTEGER PRIMARY KEY)").Error
}

func (m table) Down(db *gorm.DB) error {
	return db.Exec("DROP TABLE " + m.name).Error
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestRunAndRollbackInBatches(t *testing.T) {
	db := openDB(t)
	first := []migration.Named{
		{Name: "002_tags", Migration: table{name: "tags"}},
		{Name: "001_items", Migration: table{name: "items"}},
	}

	var out bytes.Buffer
	n, err := migration.NewFor(db, &out, first).Run()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Less(t, bytes.Index(out.Bytes(), []byte("001_items")), bytes.Index(out.Bytes(), []byte("002_tags")))
	assert.True(t, db.Migrator().HasTable("items"))

	n, err = migration.NewFor(db, nil, first).Run()
	require.NoError(t, err)
	assert.Zero(t, n)

	all := append(first, migration.Named{Name: "003_notes", Migration: table{name: "notes"}})
	r := migration.NewFor(db, nil, all)
	n, err = r.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := r.Status()
	require.NoError(t, err)
	assert.Equal(t, []migration.StatusRow{
		{Name: "001_items", Ran: true, Batch: 1},
		{Name: "002_tags", Ran: true, Batch: 1},
		{Name: "003_notes", Ran: true, Batch: 2},
	}, rows)

	n, err = r.Rollback()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, db.Migrator().HasTable("notes"))
	assert.True(t, db.Migrator().HasTable("tags"))

	n, err = r.Rollback()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, db.Migrator().HasTable("items"))

	var out2 bytes.Buffer
	n, err = migration.NewFor(db, &out2, all).Rollback()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, out2.String(), "Nothing to roll back.")
}

func TestFailedMigrationIsNotRecorded(t *testing.T) {
	db := openDB(t)
	list := []migration.Named{
		{Name: "001_items", Migration: table{name: "items"}},
		{Name: "002_broken", Migration: table{fail: true}},
	}

	n, err := migration.NewFor(db, nil, list).Run()
	require.Error(t, err)
	assert.Equal(t, 1, n)

	rows, err := migration.NewFor(db, nil, list).Status()
	require.NoError(t, err)
	assert.True(t, rows[0].Ran)
	assert.False(t, rows[1].Ran)
	assert.Zero(t, rows[1].Batch)
}

func TestRollbackNeedsRegisteredMigration(t *testing.T) {
	db := openDB(t)
	_, err := migration.NewFor(db, nil, []migration.Named{{Name: "001_items", Migration: table{name: "items"}}}).Run()
	require.NoError(t, err)

	_, err = migration.NewFor(db, nil, nil).Rollback()
	assert.ErrorIs(t, err, migration.ErrUnknownMigration)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	assert.Panics(t, func() {
		migration.Register("dup", table{name: "a"})
		migration.Register("dup", table{name: "a"})
	})
}
