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

// Package memrepo is a plain in-memory oaipmh.Repository, used by this
// module's own tests and suitable as a starting point for an embedding
// program that has not yet picked a real storage backend. It never
// implements BatchingRepository, so Server always wraps it in a
// StatelessResumptionAdapter - useful for exercising that code path
// deterministically in tests (the literal scenarios S1-S4 of §8).
package memrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/czcorpus/go-oaipmh/oaipmh"
)

// Repo holds records keyed by identifier, plus one Identify
// descriptor and a fixed set of supported metadata prefixes.
type Repo struct {
	mu       sync.RWMutex
	records  map[string]oaipmh.Record
	identify oaipmh.Identify
	prefixes []string
	sets     []oaipmh.Set
}

// New returns an empty Repo. Use Put to populate it.
func New(identify oaipmh.Identify, prefixes []string) *Repo {
	return &Repo{
		records:  make(map[string]oaipmh.Record),
		identify: identify,
		prefixes: prefixes,
	}
}

// Put inserts or replaces a record, keyed by its header identifier.
func (r *Repo) Put(rec oaipmh.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.Header.Identifier] = rec
}

// Delete marks a record's header as deleted and clears its metadata,
// modeling the "deletion event" of scenario S4.
func (r *Repo) Delete(identifier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[identifier]
	if !ok {
		return
	}
	rec.Header.Deleted = true
	rec.Metadata = nil
	r.records[identifier] = rec
}

// SetSets defines the sets ListSets reports; an empty slice keeps
// SupportsSets false.
func (r *Repo) SetSets(sets []oaipmh.Set) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets = sets
}

func (r *Repo) Identify(ctx context.Context) (oaipmh.Identify, error) {
	return r.identify, nil
}

func (r *Repo) GetRecord(ctx context.Context, prefix, identifier string) (oaipmh.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[identifier]
	if !ok {
		return oaipmh.Record{}, oaipmh.NewProtocolError(oaipmh.ErrorCodeIDDoesNotExist, "No record found for identifier %s", identifier)
	}
	return rec, nil
}

func (r *Repo) sorted(params oaipmh.ListParams) []oaipmh.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]oaipmh.Record, 0, len(r.records))
	for _, rec := range r.records {
		if params.From != nil && rec.Header.Datestamp.Before(*params.From) {
			continue
		}
		if params.Until != nil && rec.Header.Datestamp.After(*params.Until) {
			continue
		}
		if params.Set != "" {
			found := false
			for _, s := range rec.Header.SetSpec {
				if s == params.Set {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Header.Identifier < out[j].Header.Identifier })
	return out
}

func (r *Repo) ListIdentifiers(ctx context.Context, params oaipmh.ListParams) ([]oaipmh.Header, error) {
	recs := r.sorted(params)
	out := make([]oaipmh.Header, len(recs))
	for i, rec := range recs {
		out[i] = rec.Header
	}
	return out, nil
}

func (r *Repo) ListRecords(ctx context.Context, params oaipmh.ListParams) ([]oaipmh.Record, error) {
	return r.sorted(params), nil
}

func (r *Repo) ListMetadataFormats(ctx context.Context, identifier string) ([]oaipmh.MetadataFormat, error) {
	out := make([]oaipmh.MetadataFormat, len(r.prefixes))
	for i, p := range r.prefixes {
		out[i] = oaipmh.MetadataFormat{Prefix: p}
	}
	return out, nil
}

func (r *Repo) ListSets(ctx context.Context) ([]oaipmh.Set, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.sets) == 0 {
		return nil, oaipmh.NewProtocolError(oaipmh.ErrorCodeNoSetHierarchy, "Sets functionality not implemented")
	}
	return r.sets, nil
}

func (r *Repo) SupportsSets() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sets) > 0
}

func (r *Repo) SupportedMetadataPrefixes() []string { return r.prefixes }
