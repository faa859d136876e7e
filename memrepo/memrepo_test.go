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

package memrepo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/czcorpus/go-oaipmh/oaipmh"
)

func newPopulatedRepo() *Repo {
	repo := New(oaipmh.Identify{RepositoryName: "Test"}, []string{"oai_dc"})
	repo.Put(oaipmh.Record{Header: oaipmh.Header{
		Identifier: "oai:repo:1",
		Datestamp:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		SetSpec:    []string{"setA"},
	}})
	repo.Put(oaipmh.Record{Header: oaipmh.Header{
		Identifier: "oai:repo:2",
		Datestamp:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		SetSpec:    []string{"setB"},
	}})
	repo.Put(oaipmh.Record{Header: oaipmh.Header{
		Identifier: "oai:repo:3",
		Datestamp:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}})
	return repo
}

func TestGetRecordFoundAndMissing(t *testing.T) {
	repo := newPopulatedRepo()

	rec, err := repo.GetRecord(context.Background(), "oai_dc", "oai:repo:1")
	require.NoError(t, err)
	assert.Equal(t, "oai:repo:1", rec.Header.Identifier)

	_, err = repo.GetRecord(context.Background(), "oai_dc", "oai:repo:missing")
	require.Error(t, err)
	pe, ok := err.(*oaipmh.ProtocolError)
	require.True(t, ok)
	assert.Equal(t, oaipmh.ErrorCodeIDDoesNotExist, pe.Code)
}

func TestListIdentifiersSortsByIdentifier(t *testing.T) {
	repo := newPopulatedRepo()

	headers, err := repo.ListIdentifiers(context.Background(), oaipmh.ListParams{})
	require.NoError(t, err)
	require.Len(t, headers, 3)
	assert.Equal(t, []string{"oai:repo:1", "oai:repo:2", "oai:repo:3"},
		[]string{headers[0].Identifier, headers[1].Identifier, headers[2].Identifier})
}

func TestListRecordsFiltersByDateRange(t *testing.T) {
	repo := newPopulatedRepo()
	from := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)

	recs, err := repo.ListRecords(context.Background(), oaipmh.ListParams{From: &from, Until: &until})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "oai:repo:2", recs[0].Header.Identifier)
}

func TestListRecordsFiltersBySet(t *testing.T) {
	repo := newPopulatedRepo()

	recs, err := repo.ListRecords(context.Background(), oaipmh.ListParams{Set: "setA"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "oai:repo:1", recs[0].Header.Identifier)
}

func TestDeleteMarksHeaderAndClearsMetadata(t *testing.T) {
	repo := New(oaipmh.Identify{}, []string{"oai_dc"})
	repo.Put(oaipmh.Record{
		Header:   oaipmh.Header{Identifier: "oai:repo:1"},
		Metadata: &oaipmh.Metadata{Fields: map[string]any{"title": []string{"x"}}},
	})

	repo.Delete("oai:repo:1")

	rec, err := repo.GetRecord(context.Background(), "oai_dc", "oai:repo:1")
	require.NoError(t, err)
	assert.True(t, rec.Header.Deleted)
	assert.Nil(t, rec.Metadata)
}

func TestDeleteUnknownIdentifierIsNoop(t *testing.T) {
	repo := New(oaipmh.Identify{}, nil)
	assert.NotPanics(t, func() { repo.Delete("oai:repo:missing") })
}

func TestListSetsAndSupportsSets(t *testing.T) {
	repo := New(oaipmh.Identify{}, nil)
	assert.False(t, repo.SupportsSets())
	_, err := repo.ListSets(context.Background())
	require.Error(t, err)
	pe, ok := err.(*oaipmh.ProtocolError)
	require.True(t, ok)
	assert.Equal(t, oaipmh.ErrorCodeNoSetHierarchy, pe.Code)

	repo.SetSets([]oaipmh.Set{{SetSpec: "setA", SetName: "Set A"}})
	assert.True(t, repo.SupportsSets())
	sets, err := repo.ListSets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "setA", sets[0].SetSpec)
}

func TestListMetadataFormatsReturnsConfiguredPrefixes(t *testing.T) {
	repo := New(oaipmh.Identify{}, []string{"oai_dc", "mods"})
	formats, err := repo.ListMetadataFormats(context.Background(), "oai:repo:1")
	require.NoError(t, err)
	require.Len(t, formats, 2)
	assert.Equal(t, "oai_dc", formats[0].Prefix)
	assert.Equal(t, "mods", formats[1].Prefix)
}
