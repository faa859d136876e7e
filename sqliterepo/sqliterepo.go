// Copyright 2025 go-oaipmh contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqliterepo is a reference oaipmh.BatchingRepository, grounded
// on tmc-arxiv's Cache (a local SQLite index with an on-disk sidecar
// file per record). Because cursor/batch_size pagination is
// native to a SQL LIMIT/OFFSET query, Server wraps this backend in a
// BatchingResumptionAdapter instead of the stateless variant.
package sqliterepo

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/czcorpus/go-oaipmh/oaipmh"
)

// Repo is a SQLite-backed, batching-capable Repository. Each record's
// metadata subtree is stored as a file under root/meta, named with a
// random UUID rather than the (potentially unsafe) identifier, the
// same segment-naming idiom tmc-arxiv's Cache uses for its PDF/source
// sidecar files.
type Repo struct {
	db   *sql.DB
	root string
	reg  *oaipmh.MetadataRegistry

	repositoryName string
	adminEmails    []string
	prefixes       []string
}

// Open creates or reopens a cache at root, initializing schema the
// way tmc-arxiv's Cache.Open does (mkdir sidecar dirs, open index.db,
// run an idempotent CREATE TABLE IF NOT EXISTS script).
func Open(root, repositoryName string, adminEmails, prefixes []string, reg *oaipmh.MetadataRegistry) (*Repo, error) {
	if err := os.MkdirAll(filepath.Join(root, "meta"), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(root, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	r := &Repo{db: db, root: root, reg: reg, repositoryName: repositoryName, adminEmails: adminEmails, prefixes: prefixes}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return r, nil
}

func (r *Repo) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		identifier TEXT PRIMARY KEY,
		datestamp TEXT NOT NULL,
		deleted INTEGER DEFAULT 0,
		metadata_prefix TEXT NOT NULL,
		meta_segment TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_records_datestamp ON records(datestamp);

	CREATE TABLE IF NOT EXISTS record_sets (
		identifier TEXT NOT NULL,
		set_spec TEXT NOT NULL,
		PRIMARY KEY (identifier, set_spec)
	);
	`
	_, err := r.db.Exec(schema)
	return err
}

func (r *Repo) Close() error { return r.db.Close() }

// PutRecord inserts or replaces one record, writing its metadata
// subtree (already rendered as the format's wire XML) to a new
// UUID-named segment file under root/meta.
func (r *Repo) PutRecord(ctx context.Context, prefix string, header oaipmh.Header, metadataXML []byte) error {
	var segment string
	if len(metadataXML) > 0 {
		segment = uuid.NewString() + ".xml"
		if err := os.WriteFile(filepath.Join(r.root, "meta", segment), metadataXML, 0o644); err != nil {
			return err
		}
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	deleted := 0
	if header.Deleted {
		deleted = 1
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO records (identifier, datestamp, deleted, metadata_prefix, meta_segment) VALUES (?, ?, ?, ?, ?)",
		header.Identifier, oaipmh.FormatDatestamp(header.Datestamp, false), deleted, prefix, segment,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM record_sets WHERE identifier = ?", header.Identifier); err != nil {
		return err
	}
	for _, s := range header.SetSpec {
		if _, err := tx.ExecContext(ctx, "INSERT INTO record_sets (identifier, set_spec) VALUES (?, ?)", header.Identifier, s); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repo) Identify(ctx context.Context) (oaipmh.Identify, error) {
	var earliest sql.NullString
	if err := r.db.QueryRowContext(ctx, "SELECT MIN(datestamp) FROM records").Scan(&earliest); err != nil {
		return oaipmh.Identify{}, err
	}
	var t time.Time
	if earliest.Valid {
		parsed, err := oaipmh.ParseDatestamp(earliest.String, false)
		if err != nil {
			return oaipmh.Identify{}, err
		}
		t = parsed
	}
	return oaipmh.Identify{
		RepositoryName:    r.repositoryName,
		AdminEmails:       r.adminEmails,
		EarliestDatestamp: t,
		DeletedRecord:     "persistent",
		Granularity:       oaipmh.GranularitySecond,
		Compression:       []string{"identity"},
	}, nil
}

func (r *Repo) GetRecord(ctx context.Context, prefix, identifier string) (oaipmh.Record, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT datestamp, deleted, meta_segment FROM records WHERE identifier = ? AND metadata_prefix = ?",
		identifier, prefix,
	)
	var datestampStr string
	var deletedInt int
	var segment sql.NullString
	if err := row.Scan(&datestampStr, &deletedInt, &segment); err != nil {
		if err == sql.ErrNoRows {
			return oaipmh.Record{}, oaipmh.NewProtocolError(oaipmh.ErrorCodeIDDoesNotExist, "No record found for identifier %s", identifier)
		}
		return oaipmh.Record{}, err
	}
	return r.hydrate(ctx, prefix, identifier, datestampStr, deletedInt == 1, segment)
}

func (r *Repo) hydrate(ctx context.Context, prefix, identifier, datestampStr string, deleted bool, segment sql.NullString) (oaipmh.Record, error) {
	t, err := oaipmh.ParseDatestamp(datestampStr, false)
	if err != nil {
		return oaipmh.Record{}, err
	}
	sets, err := r.setsOf(ctx, identifier)
	if err != nil {
		return oaipmh.Record{}, err
	}
	rec := oaipmh.Record{Header: oaipmh.Header{Identifier: identifier, Datestamp: t, Deleted: deleted, SetSpec: sets}}
	if !deleted && segment.Valid && segment.String != "" {
		data, err := os.ReadFile(filepath.Join(r.root, "meta", segment.String))
		if err != nil {
			return oaipmh.Record{}, err
		}
		el, err := oaipmh.ParseElementBytes(data)
		if err != nil {
			return oaipmh.Record{}, err
		}
		md, err := r.reg.ReadMetadata(prefix, el)
		if err != nil {
			return oaipmh.Record{}, err
		}
		rec.Metadata = md
	}
	return rec, nil
}

func (r *Repo) setsOf(ctx context.Context, identifier string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT set_spec FROM record_sets WHERE identifier = ?", identifier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) ListIdentifiers(ctx context.Context, params oaipmh.ListParams) ([]oaipmh.Header, error) {
	headers, err := r.ListIdentifiersBatch(ctx, params, 0, -1)
	return headers, err
}

func (r *Repo) ListRecords(ctx context.Context, params oaipmh.ListParams) ([]oaipmh.Record, error) {
	return r.ListRecordsBatch(ctx, params, 0, -1)
}

// ListIdentifiersBatch and ListRecordsBatch satisfy BatchingRepository
// directly with LIMIT/OFFSET, which is the whole reason this backend
// earns the batching resumption adapter instead of the stateless one.
func (r *Repo) ListIdentifiersBatch(ctx context.Context, params oaipmh.ListParams, cursor, batchSize int) ([]oaipmh.Header, error) {
	query, args := r.selectQuery(params, cursor, batchSize)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []oaipmh.Header
	for rows.Next() {
		var identifier, datestampStr string
		var deletedInt int
		if err := rows.Scan(&identifier, &datestampStr, &deletedInt); err != nil {
			return nil, err
		}
		t, err := oaipmh.ParseDatestamp(datestampStr, false)
		if err != nil {
			return nil, err
		}
		sets, err := r.setsOf(ctx, identifier)
		if err != nil {
			return nil, err
		}
		out = append(out, oaipmh.Header{Identifier: identifier, Datestamp: t, Deleted: deletedInt == 1, SetSpec: sets})
	}
	return out, rows.Err()
}

func (r *Repo) ListRecordsBatch(ctx context.Context, params oaipmh.ListParams, cursor, batchSize int) ([]oaipmh.Record, error) {
	query, args := r.selectQueryWithSegment(params, cursor, batchSize)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []oaipmh.Record
	for rows.Next() {
		var identifier, datestampStr string
		var deletedInt int
		var segment sql.NullString
		if err := rows.Scan(&identifier, &datestampStr, &deletedInt, &segment); err != nil {
			return nil, err
		}
		rec, err := r.hydrate(ctx, params.MetadataPrefix, identifier, datestampStr, deletedInt == 1, segment)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repo) selectQuery(params oaipmh.ListParams, cursor, batchSize int) (string, []any) {
	return r.buildQuery("identifier, datestamp, deleted", params, cursor, batchSize)
}

func (r *Repo) selectQueryWithSegment(params oaipmh.ListParams, cursor, batchSize int) (string, []any) {
	return r.buildQuery("identifier, datestamp, deleted, meta_segment", params, cursor, batchSize)
}

func (r *Repo) buildQuery(cols string, params oaipmh.ListParams, cursor, batchSize int) (string, []any) {
	where := []string{"metadata_prefix = ?"}
	args := []any{params.MetadataPrefix}
	if params.Set != "" {
		where = append(where, "identifier IN (SELECT identifier FROM record_sets WHERE set_spec = ?)")
		args = append(args, params.Set)
	}
	if params.From != nil {
		where = append(where, "datestamp >= ?")
		args = append(args, oaipmh.FormatDatestamp(*params.From, false))
	}
	if params.Until != nil {
		where = append(where, "datestamp <= ?")
		args = append(args, oaipmh.FormatDatestamp(*params.Until, false))
	}
	query := fmt.Sprintf("SELECT %s FROM records WHERE %s ORDER BY identifier", cols, strings.Join(where, " AND "))
	if batchSize >= 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, batchSize, cursor)
	}
	return query, args
}

func (r *Repo) ListMetadataFormats(ctx context.Context, identifier string) ([]oaipmh.MetadataFormat, error) {
	var out []oaipmh.MetadataFormat
	for _, p := range r.prefixes {
		if r.reg.HasWriter(p) {
			out = append(out, oaipmh.MetadataFormat{Prefix: p})
		}
	}
	return out, nil
}

func (r *Repo) ListSets(ctx context.Context) ([]oaipmh.Set, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT set_spec FROM record_sets ORDER BY set_spec")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []oaipmh.Set
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, oaipmh.Set{SetSpec: s, SetName: s})
	}
	return out, rows.Err()
}

func (r *Repo) SupportsSets() bool                  { return true }
func (r *Repo) SupportedMetadataPrefixes() []string { return r.prefixes }
