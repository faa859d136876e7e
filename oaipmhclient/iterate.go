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

package oaipmhclient

import (
	"context"
	"net/url"
	"time"

	"github.com/czcorpus/go-oaipmh/oaipmh"
)

// ListParams mirrors oaipmh.ListParams at the client boundary. From
// and Until are serialized using the client's negotiated granularity
// (component K) when the iterator is constructed; a later
// UpdateGranularity call does not change an existing iterator's
// requests.
type ListParams struct {
	MetadataPrefix string
	Set            string
	From, Until    *time.Time
}

func (p ListParams) toValues(c *Client) url.Values {
	v := url.Values{}
	if p.MetadataPrefix != "" {
		v.Set(oaipmh.ArgMetadataPrefix, p.MetadataPrefix)
	}
	if p.Set != "" {
		v.Set(oaipmh.ArgSet, p.Set)
	}
	if p.From != nil {
		v.Set(oaipmh.ArgFrom, c.formatDate(*p.From))
	}
	if p.Until != nil {
		v.Set(oaipmh.ArgUntil, c.formatDate(*p.Until))
	}
	return v
}

// HeaderIterator is, per §9's design note against generator-style
// recursion, an explicit cross-batch iterator: Next performs the next
// HTTP round trip only when the current in-memory batch is exhausted.
// Termination (§4.8): a null token, or an empty batch, ends iteration
// even if a token was still returned (defends against a buggy server).
type HeaderIterator struct {
	client    *Client
	firstArgs url.Values
	batch     []oaipmh.Header
	pos       int
	token     string
	started   bool
	err       error
}

// ListIdentifiers starts a lazy iteration over the ListIdentifiers
// verb (component J).
func (c *Client) ListIdentifiers(params ListParams) *HeaderIterator {
	return &HeaderIterator{client: c, firstArgs: params.toValues(c)}
}

// Next advances the iterator, fetching the next batch over the wire
// if the current one is exhausted. It returns false at end of stream
// or on error; check Err to distinguish the two.
func (it *HeaderIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if it.pos < len(it.batch) {
		it.pos++
		return true
	}
	if it.started && it.token == "" {
		return false
	}
	if err := it.fetch(ctx); err != nil {
		it.err = err
		return false
	}
	if len(it.batch) == 0 {
		return false
	}
	it.pos = 1
	return true
}

func (it *HeaderIterator) fetch(ctx context.Context) error {
	args := it.firstArgs
	if it.started {
		args = url.Values{oaipmh.ArgResumptionToken: {it.token}}
	}
	root, err := it.client.request(ctx, oaipmh.VerbListIdentifiers, args)
	if err != nil {
		return err
	}
	payload := findVerbPayload(root, "ListIdentifiers")
	var headers []oaipmh.Header
	for _, h := range payload.Children {
		if h.Name.Local != "header" {
			continue
		}
		hdr, err := decodeHeader(h)
		if err != nil {
			return err
		}
		headers = append(headers, hdr)
	}
	it.batch = headers
	it.pos = 0
	it.token = childText(payload, "resumptionToken")
	it.started = true
	return nil
}

// Header returns the item Next just advanced onto.
func (it *HeaderIterator) Header() oaipmh.Header { return it.batch[it.pos-1] }

// Err reports the terminal error, if Next returned false because of
// one rather than a clean end of stream.
func (it *HeaderIterator) Err() error { return it.err }

// RecordIterator is ListIdentifiers's counterpart for ListRecords.
type RecordIterator struct {
	client    *Client
	firstArgs url.Values
	prefix    string
	batch     []oaipmh.Record
	pos       int
	token     string
	started   bool
	err       error
}

// ListRecords starts a lazy iteration over the ListRecords verb.
func (c *Client) ListRecords(params ListParams) *RecordIterator {
	return &RecordIterator{client: c, firstArgs: params.toValues(c), prefix: params.MetadataPrefix}
}

func (it *RecordIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if it.pos < len(it.batch) {
		it.pos++
		return true
	}
	if it.started && it.token == "" {
		return false
	}
	if err := it.fetch(ctx); err != nil {
		it.err = err
		return false
	}
	if len(it.batch) == 0 {
		return false
	}
	it.pos = 1
	return true
}

func (it *RecordIterator) fetch(ctx context.Context) error {
	args := it.firstArgs
	if it.started {
		args = url.Values{oaipmh.ArgResumptionToken: {it.token}}
	}
	root, err := it.client.request(ctx, oaipmh.VerbListRecords, args)
	if err != nil {
		return err
	}
	payload := findVerbPayload(root, "ListRecords")
	var records []oaipmh.Record
	for _, r := range payload.Children {
		if r.Name.Local != "record" {
			continue
		}
		rec, err := it.client.decodeRecord(r, it.prefix)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	it.batch = records
	it.pos = 0
	it.token = childText(payload, "resumptionToken")
	it.started = true
	return nil
}

func (it *RecordIterator) Record() oaipmh.Record { return it.batch[it.pos-1] }
func (it *RecordIterator) Err() error            { return it.err }
