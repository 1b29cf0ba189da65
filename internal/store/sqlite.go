// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/migrations"
	"github.com/weavesync/weavesync/models"
)

// DB wraps the client-side sqlite connection.
type DB struct {
	*sql.DB
	log *logger.Logger
}

// OpenSQLite opens (creating if necessary) the record database at path and
// applies pending migrations.
func OpenSQLite(ctx context.Context, path string, log *logger.Logger) (*DB, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			f, err := os.Create(path)
			if err != nil {
				return nil, fmt.Errorf("create database file: %w", err)
			}
			_ = f.Close()
		}
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err = conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	db := &DB{DB: conn, log: log}
	if err = migrations.Migrate(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	log.Debug().Str("path", path).Msg("record database ready")
	return db, nil
}

// sqliteRecordStore is the durable RecordStore backing persistent
// collections (bookmarks, history, passwords).
type sqliteRecordStore struct {
	db *DB
}

// NewSQLiteRecordStore constructs a RecordStore on top of db.
func NewSQLiteRecordStore(db *DB) RecordStore {
	return &sqliteRecordStore{db: db}
}

func recordSelect() sq.SelectBuilder {
	return sq.Select("local_id", "collection", "guid", "last_modified", "deleted", "sort_index", "ttl", "fields").
		From("records")
}

func (s *sqliteRecordStore) Get(ctx context.Context, collection, guid string) (models.Record, error) {
	query, args, err := recordSelect().
		Where(sq.Eq{"collection": collection, "guid": guid}).
		Limit(2).
		ToSql()
	if err != nil {
		return models.Record{}, fmt.Errorf("build get query: %w", err)
	}

	records, err := s.queryRecords(ctx, query, args)
	if err != nil {
		return models.Record{}, err
	}
	switch len(records) {
	case 0:
		return models.Record{}, ErrRecordNotFound
	case 1:
		return records[0], nil
	default:
		return models.Record{}, ErrDuplicateGUID
	}
}

func (s *sqliteRecordStore) Insert(ctx context.Context, rec models.Record) (int64, error) {
	query, args, err := sq.Insert("records").
		Columns("collection", "guid", "last_modified", "deleted", "sort_index", "ttl", "fields").
		Values(rec.Collection, rec.GUID, rec.LastModified, rec.Deleted, rec.SortIndex, rec.TTL, string(rec.Fields)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert record %s/%s: %w", rec.Collection, rec.GUID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted row id: %w", err)
	}
	return id, nil
}

func (s *sqliteRecordStore) Update(ctx context.Context, rec models.Record) error {
	query, args, err := sq.Update("records").
		Set("guid", rec.GUID).
		Set("last_modified", rec.LastModified).
		Set("deleted", rec.Deleted).
		Set("sort_index", rec.SortIndex).
		Set("ttl", rec.TTL).
		Set("fields", string(rec.Fields)).
		Where(sq.Eq{"local_id": rec.LocalID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update record %s/%s: %w", rec.Collection, rec.GUID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *sqliteRecordStore) Delete(ctx context.Context, collection, guid string) error {
	query, args, err := sq.Delete("records").
		Where(sq.Eq{"collection": collection, "guid": guid}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete record %s/%s: %w", collection, guid, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *sqliteRecordStore) All(ctx context.Context, collection string) ([]models.Record, error) {
	query, args, err := recordSelect().
		Where(sq.Eq{"collection": collection}).
		OrderBy("local_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build fetch-all query: %w", err)
	}
	return s.queryRecords(ctx, query, args)
}

func (s *sqliteRecordStore) Since(ctx context.Context, collection string, since int64) ([]models.Record, error) {
	query, args, err := recordSelect().
		Where(sq.Eq{"collection": collection}).
		Where(sq.GtOrEq{"last_modified": since}).
		OrderBy("last_modified").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build fetch-since query: %w", err)
	}
	return s.queryRecords(ctx, query, args)
}

func (s *sqliteRecordStore) GUIDsSince(ctx context.Context, collection string, since int64) ([]string, error) {
	query, args, err := sq.Select("guid").
		From("records").
		Where(sq.Eq{"collection": collection}).
		Where(sq.GtOrEq{"last_modified": since}).
		OrderBy("last_modified").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build guids-since query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query guids since: %w", err)
	}
	defer rows.Close()

	var guids []string
	for rows.Next() {
		var guid string
		if err = rows.Scan(&guid); err != nil {
			return nil, fmt.Errorf("scan guid row: %w", err)
		}
		guids = append(guids, guid)
	}
	return guids, rows.Err()
}

func (s *sqliteRecordStore) ByGUIDs(ctx context.Context, collection string, guids []string) ([]models.Record, error) {
	query, args, err := recordSelect().
		Where(sq.Eq{"collection": collection, "guid": guids}).
		OrderBy("local_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build fetch-by-guids query: %w", err)
	}

	records, err := s.queryRecords(ctx, query, args)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if seen[rec.GUID] {
			return nil, ErrDuplicateGUID
		}
		seen[rec.GUID] = true
	}
	return records, nil
}

func (s *sqliteRecordStore) Wipe(ctx context.Context, collection string) error {
	query, args, err := sq.Delete("records").Where(sq.Eq{"collection": collection}).ToSql()
	if err != nil {
		return fmt.Errorf("build wipe query: %w", err)
	}
	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("wipe collection %s: %w", collection, err)
	}
	return nil
}

func (s *sqliteRecordStore) queryRecords(ctx context.Context, query string, args []any) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var (
			rec    models.Record
			fields sql.NullString
		)
		if err = rows.Scan(&rec.LocalID, &rec.Collection, &rec.GUID, &rec.LastModified,
			&rec.Deleted, &rec.SortIndex, &rec.TTL, &fields); err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		if fields.Valid && fields.String != "" {
			rec.Fields = []byte(fields.String)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
