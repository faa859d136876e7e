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

// Package mysqlrepo is a reference oaipmh.Repository backed by MySQL,
// generalized away from the teacher's CNC-specific corpora/user schema
// (cncdb.CNCMySQLHandler) to a single generic oai_records table plus a
// set-membership join table. It is non-batching: Server wraps it in a
// StatelessResumptionAdapter automatically.
package mysqlrepo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/czcorpus/go-oaipmh/oaipmh"
)

// Config mirrors cncdb's plain host/user/pass/dbName connection shape.
type Config struct {
	Host   string
	User   string
	Pass   string
	DBName string

	RepositoryName string
	AdminEmails    []string
	DeletedRecord  string
}

// Repo implements oaipmh.Repository against a MySQL database holding
// one row per record in oai_records (identifier, datestamp, deleted,
// metadata_prefix, metadata_xml) and zero or more rows in
// oai_record_sets (identifier, set_spec).
type Repo struct {
	conn     *sql.DB
	conf     Config
	reg      *oaipmh.MetadataRegistry
	prefixes []string
}

// New opens the connection the way cncdb.NewCNCMySQLHandler does, via
// mysql.Config.FormatDSN, and binds reg for decoding stored metadata
// fragments back into oaipmh.Metadata when listing/getting records.
func New(conf Config, reg *oaipmh.MetadataRegistry, prefixes []string) (*Repo, error) {
	dsnConf := mysql.NewConfig()
	dsnConf.Net = "tcp"
	dsnConf.Addr = conf.Host
	dsnConf.User = conf.User
	dsnConf.Passwd = conf.Pass
	dsnConf.DBName = conf.DBName
	dsnConf.ParseTime = true
	dsnConf.Loc = time.Local
	db, err := sql.Open("mysql", dsnConf.FormatDSN())
	if err != nil {
		return nil, err
	}
	return &Repo{conn: db, conf: conf, reg: reg, prefixes: prefixes}, nil
}

func (r *Repo) Identify(ctx context.Context) (oaipmh.Identify, error) {
	var earliest time.Time
	row := r.conn.QueryRowContext(ctx, "SELECT MIN(datestamp) FROM oai_records")
	if err := row.Scan(&earliest); err != nil {
		return oaipmh.Identify{}, err
	}
	return oaipmh.Identify{
		RepositoryName:    r.conf.RepositoryName,
		AdminEmails:       r.conf.AdminEmails,
		EarliestDatestamp: earliest,
		DeletedRecord:     r.conf.DeletedRecord,
		Granularity:       oaipmh.GranularitySecond,
		Compression:       []string{"identity"},
	}, nil
}

func (r *Repo) GetRecord(ctx context.Context, prefix, identifier string) (oaipmh.Record, error) {
	var datestamp time.Time
	var deleted bool
	var metadataXML sql.NullString
	row := r.conn.QueryRowContext(ctx,
		"SELECT datestamp, deleted, metadata_xml FROM oai_records WHERE identifier = ? AND metadata_prefix = ?",
		identifier, prefix,
	)
	if err := row.Scan(&datestamp, &deleted, &metadataXML); err != nil {
		if err == sql.ErrNoRows {
			return oaipmh.Record{}, oaipmh.NewProtocolError(oaipmh.ErrorCodeIDDoesNotExist, "No record found for identifier %s", identifier)
		}
		return oaipmh.Record{}, err
	}
	rec := oaipmh.Record{Header: oaipmh.Header{Identifier: identifier, Datestamp: datestamp, Deleted: deleted}}
	sets, err := r.setsOf(ctx, identifier)
	if err != nil {
		return oaipmh.Record{}, err
	}
	rec.Header.SetSpec = sets
	if !deleted && metadataXML.Valid {
		md, err := r.decodeMetadata(prefix, metadataXML.String)
		if err != nil {
			return oaipmh.Record{}, err
		}
		rec.Metadata = md
	}
	return rec, nil
}

func (r *Repo) ListIdentifiers(ctx context.Context, params oaipmh.ListParams) ([]oaipmh.Header, error) {
	query, args := r.selectQuery(params, false)
	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []oaipmh.Header
	for rows.Next() {
		var identifier string
		var datestamp time.Time
		var deleted bool
		if err := rows.Scan(&identifier, &datestamp, &deleted); err != nil {
			return nil, err
		}
		sets, err := r.setsOf(ctx, identifier)
		if err != nil {
			return nil, err
		}
		out = append(out, oaipmh.Header{Identifier: identifier, Datestamp: datestamp, Deleted: deleted, SetSpec: sets})
	}
	return out, rows.Err()
}

func (r *Repo) ListRecords(ctx context.Context, params oaipmh.ListParams) ([]oaipmh.Record, error) {
	query, args := r.selectQuery(params, true)
	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []oaipmh.Record
	for rows.Next() {
		var identifier string
		var datestamp time.Time
		var deleted bool
		var metadataXML sql.NullString
		if err := rows.Scan(&identifier, &datestamp, &deleted, &metadataXML); err != nil {
			return nil, err
		}
		sets, err := r.setsOf(ctx, identifier)
		if err != nil {
			return nil, err
		}
		rec := oaipmh.Record{Header: oaipmh.Header{Identifier: identifier, Datestamp: datestamp, Deleted: deleted, SetSpec: sets}}
		if !deleted && metadataXML.Valid {
			md, err := r.decodeMetadata(params.MetadataPrefix, metadataXML.String)
			if err != nil {
				return nil, err
			}
			rec.Metadata = md
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// selectQuery is grounded on cncdb.ListRecordInfo's fmt.Sprintf +
// positional-placeholder style, generalized to the oai_records schema.
// The until bound is compared with <= as given; day-granular until
// values already arrive as the end of that day (oaipmh.ParseDatestamp).
func (r *Repo) selectQuery(params oaipmh.ListParams, withMetadata bool) (string, []any) {
	cols := "identifier, datestamp, deleted"
	if withMetadata {
		cols += ", metadata_xml"
	}
	where := []string{"metadata_prefix = ?"}
	args := []any{params.MetadataPrefix}
	if params.Set != "" {
		where = append(where, "identifier IN (SELECT identifier FROM oai_record_sets WHERE set_spec = ?)")
		args = append(args, params.Set)
	}
	if params.From != nil {
		where = append(where, "datestamp >= ?")
		args = append(args, *params.From)
	}
	if params.Until != nil {
		where = append(where, "datestamp <= ?")
		args = append(args, *params.Until)
	}
	query := fmt.Sprintf("SELECT %s FROM oai_records WHERE %s ORDER BY identifier", cols, strings.Join(where, " AND "))
	return query, args
}

func (r *Repo) setsOf(ctx context.Context, identifier string) ([]string, error) {
	rows, err := r.conn.QueryContext(ctx, "SELECT set_spec FROM oai_record_sets WHERE identifier = ?", identifier)
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

func (r *Repo) decodeMetadata(prefix, rawXML string) (*oaipmh.Metadata, error) {
	el, err := oaipmh.ParseElementBytes([]byte(rawXML))
	if err != nil {
		return nil, err
	}
	return r.reg.ReadMetadata(prefix, el)
}

func (r *Repo) ListMetadataFormats(ctx context.Context, identifier string) ([]oaipmh.MetadataFormat, error) {
	var formats []oaipmh.MetadataFormat
	for _, p := range r.prefixes {
		if r.reg.HasWriter(p) {
			formats = append(formats, oaipmh.MetadataFormat{Prefix: p})
		}
	}
	return formats, nil
}

func (r *Repo) ListSets(ctx context.Context) ([]oaipmh.Set, error) {
	rows, err := r.conn.QueryContext(ctx, "SELECT DISTINCT set_spec FROM oai_record_sets ORDER BY set_spec")
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

func (r *Repo) SupportsSets() bool { return true }

func (r *Repo) SupportedMetadataPrefixes() []string { return r.prefixes }
