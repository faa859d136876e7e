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

// These tests exercise Server.HandleRequest end to end against a
// small in-package Repository fake, avoiding an import of memrepo
// (which itself depends on oaipmh and would create a cycle from here).
package oaipmh

import (
	"context"
	"encoding/xml"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// testRepo is a minimal, hand-written Repository used instead of
// memrepo to keep this file free of an inter-package dependency on a
// sibling module; it mirrors memrepo's selection behaviour closely
// enough to drive Server's dispatch and resumption paths.
type testRepo struct {
	records  []Record
	identify Identify
	prefixes []string
	sets     []Set
}

func (r *testRepo) Identify(ctx context.Context) (Identify, error) { return r.identify, nil }

func (r *testRepo) GetRecord(ctx context.Context, prefix, identifier string) (Record, error) {
	for _, rec := range r.records {
		if rec.Header.Identifier == identifier {
			return rec, nil
		}
	}
	return Record{}, NewProtocolError(ErrorCodeIDDoesNotExist, "no record %s", identifier)
}

func (r *testRepo) selected(params ListParams) []Record {
	var out []Record
	for _, rec := range r.records {
		if params.From != nil && rec.Header.Datestamp.Before(*params.From) {
			continue
		}
		if params.Until != nil && rec.Header.Datestamp.After(*params.Until) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (r *testRepo) ListIdentifiers(ctx context.Context, params ListParams) ([]Header, error) {
	var out []Header
	for _, rec := range r.selected(params) {
		out = append(out, rec.Header)
	}
	return out, nil
}

func (r *testRepo) ListRecords(ctx context.Context, params ListParams) ([]Record, error) {
	return r.selected(params), nil
}

func (r *testRepo) ListMetadataFormats(ctx context.Context, identifier string) ([]MetadataFormat, error) {
	var out []MetadataFormat
	for _, p := range r.prefixes {
		out = append(out, MetadataFormat{Prefix: p})
	}
	return out, nil
}

func (r *testRepo) ListSets(ctx context.Context) ([]Set, error) {
	if len(r.sets) == 0 {
		return nil, NewProtocolError(ErrorCodeNoSetHierarchy, "no sets")
	}
	return r.sets, nil
}

func (r *testRepo) SupportsSets() bool                  { return len(r.sets) > 0 }
func (r *testRepo) SupportedMetadataPrefixes() []string { return r.prefixes }

func newTestServer(repo *testRepo, batchSize int) *Server {
	reg := NewMetadataRegistry()
	reg.RegisterReader("oai_dc", func(root *Element) (*Metadata, error) { return &Metadata{}, nil })
	reg.RegisterWriter("oai_dc", func(enc *xml.Encoder, md *Metadata) error { return nil })
	return NewServer(repo, reg, "http://example.org/oai", ServerOptions{BatchSize: batchSize})
}

func TestHandleRequestBadVerb(t *testing.T) {
	repo := &testRepo{prefixes: []string{"oai_dc"}}
	srv := newTestServer(repo, 10)
	resp := srv.HandleRequest(context.Background(), urlValues(map[string]string{"verb": "Bogus"}))
	assert.True(t, resp.HasErrors())
	assert.Equal(t, ErrorCodeBadVerb, resp.Errors[0].Code)
	assert.Equal(t, 400, resp.HTTPStatus())
}

func TestHandleRequestIdentify(t *testing.T) {
	repo := &testRepo{
		identify: Identify{
			RepositoryName:    "Test Repo",
			EarliestDatestamp: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			DeletedRecord:     "persistent",
			Granularity:       GranularitySecond,
		},
		prefixes: []string{"oai_dc"},
	}
	srv := newTestServer(repo, 10)
	resp := srv.HandleRequest(context.Background(), urlValues(map[string]string{"verb": "Identify"}))
	assert.False(t, resp.HasErrors())
	assert.Equal(t, "Test Repo", resp.Identify.RepositoryName)
	assert.Equal(t, "http://example.org/oai", resp.Identify.BaseURL)
	assert.Equal(t, "2.0", resp.Identify.ProtocolVersion)
}

func TestHandleRequestGetRecordUnknownFormat(t *testing.T) {
	repo := &testRepo{prefixes: []string{"oai_dc"}}
	srv := newTestServer(repo, 10)
	resp := srv.HandleRequest(context.Background(), urlValues(map[string]string{
		"verb":           "GetRecord",
		"identifier":     "oai:repo:1",
		"metadataPrefix": "mods",
	}))
	assert.True(t, resp.HasErrors())
	assert.Equal(t, ErrorCodeCannotDisseminateFormat, resp.Errors[0].Code)
}

func TestHandleRequestGetRecordNotFound(t *testing.T) {
	repo := &testRepo{prefixes: []string{"oai_dc"}}
	srv := newTestServer(repo, 10)
	resp := srv.HandleRequest(context.Background(), urlValues(map[string]string{
		"verb":           "GetRecord",
		"identifier":     "oai:repo:missing",
		"metadataPrefix": "oai_dc",
	}))
	assert.True(t, resp.HasErrors())
	assert.Equal(t, ErrorCodeIDDoesNotExist, resp.Errors[0].Code)
}

func TestHandleRequestListIdentifiersPaginatesViaResumptionToken(t *testing.T) {
	repo := &testRepo{prefixes: []string{"oai_dc"}}
	for i := 0; i < 5; i++ {
		repo.records = append(repo.records, Record{Header: Header{
			Identifier: fmt.Sprintf("oai:repo:%d", i),
			Datestamp:  time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC),
		}})
	}
	srv := newTestServer(repo, 2)

	resp := srv.HandleRequest(context.Background(), urlValues(map[string]string{
		"verb":           "ListIdentifiers",
		"metadataPrefix": "oai_dc",
	}))
	assert.False(t, resp.HasErrors())
	assert.Len(t, resp.headers, 2)
	assert.NotEmpty(t, resp.token)

	resp2 := srv.HandleRequest(context.Background(), urlValues(map[string]string{
		"verb":            "ListIdentifiers",
		"resumptionToken": resp.token,
	}))
	assert.False(t, resp2.HasErrors())
	assert.Len(t, resp2.headers, 2)
	assert.NotEmpty(t, resp2.token)

	resp3 := srv.HandleRequest(context.Background(), urlValues(map[string]string{
		"verb":            "ListIdentifiers",
		"resumptionToken": resp2.token,
	}))
	assert.False(t, resp3.HasErrors())
	assert.Len(t, resp3.headers, 1)
	assert.Empty(t, resp3.token)
}

func TestHandleRequestListRecordsNoRecordsMatch(t *testing.T) {
	repo := &testRepo{prefixes: []string{"oai_dc"}}
	srv := newTestServer(repo, 10)
	resp := srv.HandleRequest(context.Background(), urlValues(map[string]string{
		"verb":           "ListRecords",
		"metadataPrefix": "oai_dc",
	}))
	assert.True(t, resp.HasErrors())
	assert.Equal(t, ErrorCodeNoRecordsMatch, resp.Errors[0].Code)
}

func TestHandleRequestListSetsWithoutSets(t *testing.T) {
	repo := &testRepo{prefixes: []string{"oai_dc"}}
	srv := newTestServer(repo, 10)
	resp := srv.HandleRequest(context.Background(), urlValues(map[string]string{"verb": "ListSets"}))
	assert.True(t, resp.HasErrors())
	assert.Equal(t, ErrorCodeNoSetHierarchy, resp.Errors[0].Code)
	assert.Equal(t, 501, resp.HTTPStatus())
}

func TestHandleRequestGetMetadataDisabledByDefault(t *testing.T) {
	repo := &testRepo{prefixes: []string{"oai_dc"}}
	srv := newTestServer(repo, 10)
	resp := srv.HandleRequest(context.Background(), urlValues(map[string]string{
		"verb":           "GetMetadata",
		"identifier":     "oai:repo:1",
		"metadataPrefix": "oai_dc",
	}))
	assert.True(t, resp.HasErrors())
	assert.Equal(t, ErrorCodeBadVerb, resp.Errors[0].Code)
}

func TestHandleRequestDeletedRecordCarriesNoMetadata(t *testing.T) {
	repo := &testRepo{
		prefixes: []string{"oai_dc"},
		records: []Record{{
			Header: Header{Identifier: "oai:repo:1", Datestamp: time.Now(), Deleted: true},
		}},
	}
	srv := newTestServer(repo, 10)
	resp := srv.HandleRequest(context.Background(), urlValues(map[string]string{
		"verb":           "GetRecord",
		"identifier":     "oai:repo:1",
		"metadataPrefix": "oai_dc",
	}))
	assert.False(t, resp.HasErrors())
	assert.True(t, resp.record.Header.Deleted)
	assert.Nil(t, resp.record.Metadata)
}

// urlValues adapts a flat string map into the url.Values shape
// HandleRequest expects, without importing net/url twice in tests
// across this package.
func urlValues(m map[string]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = []string{v}
	}
	return out
}
