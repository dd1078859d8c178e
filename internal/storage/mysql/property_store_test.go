package mysql

import (
	"context"
	"database/sql/driver"
	"testing"
	"testing/fstest"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"config-client/deploy/migrations"
	xerrors "config-client/internal/errors"
)

func fixedClock() time.Time { return time.Unix(1700000000, 0) }

func TestPropertyStoreLookup(t *testing.T) {
	db, drv := newMockDB(t,
		queryOp(selectPropertySQL, mockRowsData{
			columns: []string{"value"},
			values:  [][]driver.Value{{"hello"}},
		}),
		queryOp(selectPropertySQL, mockRowsData{columns: []string{"value"}}),
	)
	store := newPropertyStoreWithDB(db)
	ctx := context.Background()

	value, found, err := store.Lookup(ctx, "example.property")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", value)

	_, found, err = store.Lookup(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, "mysql", store.Name())
	drv.assertConsumed(t)
}

func TestPropertyStoreLookupMissingTable(t *testing.T) {
	db, drv := newMockDB(t,
		failingQueryOp(selectPropertySQL, &mysqldriver.MySQLError{Number: mysqlErrNoSuchTable, Message: "Table 'cfg.config_properties' doesn't exist"}),
	)
	store := newPropertyStoreWithDB(db)

	_, found, err := store.Lookup(context.Background(), "example.property")
	require.Error(t, err)
	assert.False(t, found)
	assert.Equal(t, xerrors.CodeStorageFailure, xerrors.CodeOf(err))
	assert.False(t, xerrors.RetryableError(err))
	drv.assertConsumed(t)
}

func TestPropertyStorePutAndDelete(t *testing.T) {
	db, drv := newMockDB(t,
		execOp(upsertPropertySQL, mockResult{rowsAffected: 1}),
		execOp(deletePropertySQL, mockResult{rowsAffected: 1}),
		execOp(deletePropertySQL, mockResult{rowsAffected: 0}),
	)
	store := newPropertyStoreWithDB(db)
	store.now = fixedClock
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "example.property", "hello"))
	require.NoError(t, store.Delete(ctx, "example.property"))

	err := store.Delete(ctx, "example.property")
	assert.Equal(t, xerrors.CodeNotFound, xerrors.CodeOf(err))

	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(store.Put(ctx, "", "x")))
	drv.assertConsumed(t)
}

func TestPropertyStoreRunMigrations(t *testing.T) {
	stmts := embeddedStatements(t)

	ops := []mockOperation{
		execOp(createSchemaMigrationsSQL, mockResult{}),
		queryOp(selectAppliedVersionsSQL, mockRowsData{columns: []string{"version"}}),
		beginOp(),
	}
	for _, stmt := range stmts {
		ops = append(ops, execOp(stmt, mockResult{}))
	}
	ops = append(ops,
		execOp(insertAppliedVersionSQL, mockResult{rowsAffected: 1}),
		commitOp(),
	)

	db, drv := newMockDB(t, ops...)
	store := newPropertyStoreWithDB(db)
	store.now = fixedClock

	require.NoError(t, store.runMigrations(context.Background()))
	drv.assertConsumed(t)
}

func TestPropertyStoreRunMigrationsSkipsApplied(t *testing.T) {
	db, drv := newMockDB(t,
		execOp(createSchemaMigrationsSQL, mockResult{}),
		queryOp(selectAppliedVersionsSQL, mockRowsData{
			columns: []string{"version"},
			values:  [][]driver.Value{{"0001"}},
		}),
	)
	store := newPropertyStoreWithDB(db)

	require.NoError(t, store.runMigrations(context.Background()))
	drv.assertConsumed(t)
}

func TestPropertyStoreRunMigrationsRollsBack(t *testing.T) {
	stmts := embeddedStatements(t)

	db, drv := newMockDB(t,
		execOp(createSchemaMigrationsSQL, mockResult{}),
		queryOp(selectAppliedVersionsSQL, mockRowsData{columns: []string{"version"}}),
		beginOp(),
		mockOperation{typ: opExec, query: stmts[0], err: &mysqldriver.MySQLError{Number: 1050, Message: "boom"}},
		rollbackOp(),
	)
	store := newPropertyStoreWithDB(db)

	err := store.runMigrations(context.Background())
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeStorageFailure, xerrors.CodeOf(err))
	drv.assertConsumed(t)
}

func TestOpenRejectsBadDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))

	_, err = Open(context.Background(), Config{DSN: "not a dsn"})
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
}

func TestLoadMigrationsOrdering(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_seed.sql":  {Data: []byte("-- seed\nINSERT INTO t VALUES (1);\nINSERT INTO t VALUES (2);")},
		"0001_init.sql":  {Data: []byte("CREATE TABLE t (id INT);")},
		"0003_empty.sql": {Data: []byte("-- nothing here\n")},
		"README.md":      {Data: []byte("ignored")},
	}

	list, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "0001", list[0].version)
	assert.Equal(t, []string{"CREATE TABLE t (id INT)"}, list[0].statements)
	assert.Equal(t, "0002", list[1].version)
	assert.Equal(t, []string{"INSERT INTO t VALUES (1)", "INSERT INTO t VALUES (2)"}, list[1].statements)
}

func TestMigrationVersion(t *testing.T) {
	assert.Equal(t, "0001", migrationVersion("0001_create_config_properties.sql"))
	assert.Equal(t, "0007", migrationVersion("0007.sql"))
}

func embeddedStatements(t *testing.T) []string {
	t.Helper()
	list, err := loadMigrations(migrations.Files)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	return list[0].statements
}
