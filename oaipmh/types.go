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

// Package oaipmh implements the OAI-PMH 2.0 protocol core: argument
// validation, the metadata format registry, the resumption-token
// adapter and the server-side XML rendering. The dispatcher itself
// takes plain url.Values; http.go adds gin handlers on top of it. The
// HTTP server and any persistence behind a Repository are supplied by
// the embedding program.
package oaipmh

import "time"

// Granularity is the datestamp precision a repository declares via Identify.
type Granularity string

const (
	GranularityDay    Granularity = "YYYY-MM-DD"
	GranularitySecond Granularity = "YYYY-MM-DDThh:mm:ssZ"
)

// Header is the identity/status tuple of a record, independent of its
// metadata content. It is never mutated after construction.
type Header struct {
	Identifier string
	Datestamp  time.Time
	SetSpec    []string
	Deleted    bool
}

// Metadata is a format-specific bag of fields, each either a single
// string or an ordered sequence of strings.
type Metadata struct {
	Fields map[string]any
}

// Text returns a scalar field's value or the first value of a
// multi-valued field, or the empty string if the field is absent or
// an empty list.
func (m *Metadata) Text(field string) string {
	if m == nil {
		return ""
	}
	switch v := m.Fields[field].(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// TextList returns the values of a field as a slice, wrapping a scalar
// in a single-element slice.
func (m *Metadata) TextList(field string) []string {
	if m == nil {
		return nil
	}
	switch v := m.Fields[field].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	}
	return nil
}

// Identify is the repository descriptor returned by the Identify verb.
type Identify struct {
	RepositoryName    string
	BaseURL           string
	ProtocolVersion   string
	AdminEmails       []string
	EarliestDatestamp time.Time
	DeletedRecord     string // "no", "transient" or "persistent"
	Granularity       Granularity
	Compression       []string
	Descriptions      [][]byte // raw XML fragments, emitted verbatim
}

// MetadataFormat is a (prefix, schema URL, namespace URI) triple.
type MetadataFormat struct {
	Prefix    string
	Schema    string
	Namespace string
}

// Set is a named grouping of records.
type Set struct {
	SetSpec        string
	SetName        string
	SetDescription []byte
}

// Record is a (Header, Metadata, About) triple. Metadata is nil iff
// Header.Deleted is true.
type Record struct {
	Header   Header
	Metadata *Metadata
	About    [][]byte
}

// ListParams carries the selection arguments common to ListIdentifiers
// and ListRecords. DayGranularity records whether From/Until were
// supplied on the wire as day-only datestamps, so the resumption
// token codec can serialize them back the same way.
type ListParams struct {
	MetadataPrefix string
	Set            string
	From           *time.Time
	Until          *time.Time
	DayGranularity bool
}
