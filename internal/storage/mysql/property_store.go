package mysql

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"time"

	driver "github.com/go-sql-driver/mysql"

	xerrors "config-client/internal/errors"
)

// mysqlErrNoSuchTable 是表不存在时 MySQL 返回的错误号。
const mysqlErrNoSuchTable = 1146

const (
	selectPropertySQL = `SELECT value FROM config_properties WHERE name = ?`
	upsertPropertySQL = `INSERT INTO config_properties (name, value, updated_at) VALUES (?, ?, ?)
    ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)`
	deletePropertySQL = `DELETE FROM config_properties WHERE name = ?`
)

// PropertyStore 使用 config_properties 表作为属性来源。
type PropertyStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPropertyStore 打开连接并在需要时执行内置迁移。
func NewPropertyStore(ctx context.Context, cfg Config) (*PropertyStore, error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := newPropertyStoreWithDB(db)
	if !cfg.SkipMigrations {
		if err := store.runMigrations(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return store, nil
}

func newPropertyStoreWithDB(db *sql.DB) *PropertyStore {
	return &PropertyStore{db: db, now: time.Now}
}

// Name 返回来源名称。
func (s *PropertyStore) Name() string { return "mysql" }

// Lookup 读取属性值，记录不存在时 found 为 false。
func (s *PropertyStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, selectPropertySQL, key).Scan(&value)
	switch {
	case err == nil:
		return value, true, nil
	case stdErrors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case isNoSuchTable(err):
		return "", false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "config_properties 表不存在，请执行迁移", xerrors.WithRetryable(false))
	default:
		return "", false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询属性失败")
	}
}

// Put 写入或覆盖属性值。
func (s *PropertyStore) Put(ctx context.Context, key, value string) error {
	if key == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "属性名不能为空")
	}
	if _, err := s.db.ExecContext(ctx, upsertPropertySQL, key, value, s.now().Unix()); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入属性失败")
	}
	return nil
}

// Delete 删除属性，不存在时返回 NOT_FOUND。
func (s *PropertyStore) Delete(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, deletePropertySQL, key)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "删除属性失败")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取影响行数失败")
	}
	if affected == 0 {
		return xerrors.New(xerrors.CodeNotFound, "属性不存在", xerrors.WithMetadata("key", key))
	}
	return nil
}

// Close 关闭连接池。
func (s *PropertyStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isNoSuchTable(err error) bool {
	var mysqlErr *driver.MySQLError
	return stdErrors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrNoSuchTable
}
