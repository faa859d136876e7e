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

package oaipmh

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

func datestampOf(t *time.Time, dayGranularity bool) string {
	if t == nil {
		return ""
	}
	return FormatDatestamp(*t, dayGranularity)
}

// encodeResumptionToken serializes params plus an integer cursor into
// an opaque continuation string. §9's Open Question (i): pyoai applies
// a second, redundant layer of percent-encoding on top of the
// URL-encoded key=value string "to make the result opaque to the
// transport". url.Values.Encode() already produces a fully
// percent-encoded string that round-trips safely through a query
// string or form body, so this implementation does not double-encode;
// see DESIGN.md for the reasoning. Tokens are therefore not
// byte-compatible with a pyoai-issued token, which this module never
// needs to consume.
func encodeResumptionToken(params ListParams, cursor int) string {
	v := url.Values{}
	v.Set("metadataPrefix", params.MetadataPrefix)
	if params.Set != "" {
		v.Set("set", params.Set)
	}
	if from := datestampOf(params.From, params.DayGranularity); from != "" {
		v.Set("from", from)
	}
	if until := datestampOf(params.Until, params.DayGranularity); until != "" {
		v.Set("until", until)
	}
	if params.DayGranularity {
		v.Set("g", "d")
	}
	v.Set("cursor", strconv.Itoa(cursor))
	return v.Encode()
}

type decodedToken struct {
	params ListParams
	cursor int
}

func decodeResumptionToken(tok string) (decodedToken, error) {
	badToken := func() (decodedToken, error) {
		return decodedToken{}, NewProtocolError(ErrorCodeBadResumptionToken, "Unable to decode resumption token: %s", tok)
	}

	v, err := url.ParseQuery(tok)
	if err != nil {
		return badToken()
	}
	cursorStr := v.Get("cursor")
	if cursorStr == "" {
		return badToken()
	}
	cursor, err := strconv.Atoi(cursorStr)
	if err != nil || cursor < 0 {
		return badToken()
	}

	params := ListParams{
		MetadataPrefix: v.Get("metadataPrefix"),
		Set:            v.Get("set"),
		DayGranularity: v.Get("g") == "d",
	}
	if from := v.Get("from"); from != "" {
		t, err := ParseDatestamp(from, false)
		if err != nil {
			return badToken()
		}
		params.From = &t
	}
	if until := v.Get("until"); until != "" {
		t, err := ParseDatestamp(until, true)
		if err != nil {
			return badToken()
		}
		params.Until = &t
	}
	return decodedToken{params: params, cursor: cursor}, nil
}

// StatelessResumptionAdapter wraps a non-paging Repository and turns
// it into a paging one (§4.4 "Stateless variant"). For a list verb
// with no resumptionToken, it calls the backend, materializes the
// full sequence, returns the first BatchSize items, and if more
// remain issues a token encoding the original arguments plus a
// cursor. For a subsequent call with a token, it decodes to arguments
// and cursor, re-runs the full query, and slices
// [cursor:cursor+BatchSize).
//
// Trade-off: this re-executes the full query on every page - correct
// for a stable result set but O(N*pages). It exists for backends that
// cannot efficiently page themselves; BatchingResumptionAdapter is the
// alternative for those that can.
type StatelessResumptionAdapter struct {
	Repo      Repository
	BatchSize int
}

func NewStatelessResumptionAdapter(repo Repository, batchSize int) *StatelessResumptionAdapter {
	return &StatelessResumptionAdapter{Repo: repo, BatchSize: batchSize}
}

func (a *StatelessResumptionAdapter) ListIdentifiers(
	ctx context.Context, params ListParams, resumptionToken string,
) ([]Header, string, error) {
	effParams, cursor, firstCall, err := a.resolve(params, resumptionToken)
	if err != nil {
		return nil, "", err
	}
	full, err := a.Repo.ListIdentifiers(ctx, effParams)
	if err != nil {
		return nil, "", err
	}
	if firstCall && len(full) == 0 {
		return nil, "", NewProtocolError(ErrorCodeNoRecordsMatch, "no records match the selection")
	}
	page, next := a.paginate(full, cursor, effParams)
	return page, next, nil
}

func (a *StatelessResumptionAdapter) ListRecords(
	ctx context.Context, params ListParams, resumptionToken string,
) ([]Record, string, error) {
	effParams, cursor, firstCall, err := a.resolve(params, resumptionToken)
	if err != nil {
		return nil, "", err
	}
	full, err := a.Repo.ListRecords(ctx, effParams)
	if err != nil {
		return nil, "", err
	}
	if firstCall && len(full) == 0 {
		return nil, "", NewProtocolError(ErrorCodeNoRecordsMatch, "no records match the selection")
	}
	end := cursor + a.BatchSize
	if end > len(full) {
		end = len(full)
	}
	if cursor > len(full) {
		cursor = len(full)
	}
	page := full[cursor:end]
	next := ""
	if end < len(full) {
		next = encodeResumptionToken(effParams, end)
	}
	return page, next, nil
}

func (a *StatelessResumptionAdapter) resolve(
	params ListParams, resumptionToken string,
) (ListParams, int, bool, error) {
	if resumptionToken == "" {
		return params, 0, true, nil
	}
	dt, err := decodeResumptionToken(resumptionToken)
	if err != nil {
		return ListParams{}, 0, false, err
	}
	return dt.params, dt.cursor, false, nil
}

func (a *StatelessResumptionAdapter) paginate(full []Header, cursor int, params ListParams) ([]Header, string) {
	end := cursor + a.BatchSize
	if end > len(full) {
		end = len(full)
	}
	if cursor > len(full) {
		cursor = len(full)
	}
	page := full[cursor:end]
	next := ""
	if end < len(full) {
		next = encodeResumptionToken(params, end)
	}
	return page, next
}

// BatchingResumptionAdapter wraps a BatchingRepository (§4.4 "Batching
// variant"). It requests BatchSize+1 items to detect end-of-stream: if
// fewer than BatchSize+1 come back there is no next token; otherwise
// the extra item is dropped and a token with cursor advanced by
// BatchSize is issued.
type BatchingResumptionAdapter struct {
	Repo      BatchingRepository
	BatchSize int
}

func NewBatchingResumptionAdapter(repo BatchingRepository, batchSize int) *BatchingResumptionAdapter {
	return &BatchingResumptionAdapter{Repo: repo, BatchSize: batchSize}
}

func (a *BatchingResumptionAdapter) resolve(
	params ListParams, resumptionToken string,
) (ListParams, int, bool, error) {
	if resumptionToken == "" {
		return params, 0, true, nil
	}
	dt, err := decodeResumptionToken(resumptionToken)
	if err != nil {
		return ListParams{}, 0, false, err
	}
	return dt.params, dt.cursor, false, nil
}

func (a *BatchingResumptionAdapter) ListIdentifiers(
	ctx context.Context, params ListParams, resumptionToken string,
) ([]Header, string, error) {
	effParams, cursor, firstCall, err := a.resolve(params, resumptionToken)
	if err != nil {
		return nil, "", err
	}
	batch, err := a.Repo.ListIdentifiersBatch(ctx, effParams, cursor, a.BatchSize+1)
	if err != nil {
		return nil, "", err
	}
	if firstCall && len(batch) == 0 {
		return nil, "", NewProtocolError(ErrorCodeNoRecordsMatch, "no records match the selection")
	}
	if len(batch) <= a.BatchSize {
		return batch, "", nil
	}
	return batch[:a.BatchSize], encodeResumptionToken(effParams, cursor+a.BatchSize), nil
}

func (a *BatchingResumptionAdapter) ListRecords(
	ctx context.Context, params ListParams, resumptionToken string,
) ([]Record, string, error) {
	effParams, cursor, firstCall, err := a.resolve(params, resumptionToken)
	if err != nil {
		return nil, "", err
	}
	batch, err := a.Repo.ListRecordsBatch(ctx, effParams, cursor, a.BatchSize+1)
	if err != nil {
		return nil, "", err
	}
	if firstCall && len(batch) == 0 {
		return nil, "", NewProtocolError(ErrorCodeNoRecordsMatch, "no records match the selection")
	}
	if len(batch) <= a.BatchSize {
		return batch, "", nil
	}
	return batch[:a.BatchSize], encodeResumptionToken(effParams, cursor+a.BatchSize), nil
}
