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
	"time"
)

// ServerOptions configures a Server beyond its Repository and
// MetadataRegistry.
type ServerOptions struct {
	// BatchSize is the page size the resumption adapter uses. Zero
	// selects a default of 100.
	BatchSize int

	// EnableGetMetadata turns on the non-standard GetMetadata
	// extension verb (§9 design note iii): same arguments as
	// GetRecord, but the response carries only the metadata subtree.
	EnableGetMetadata bool
}

// resumptionEngine is satisfied by both StatelessResumptionAdapter and
// BatchingResumptionAdapter, letting Server stay agnostic of which
// variant a given Repository earns.
type resumptionEngine interface {
	ListIdentifiers(ctx context.Context, params ListParams, token string) ([]Header, string, error)
	ListRecords(ctx context.Context, params ListParams, token string) ([]Record, string, error)
}

// Server is the verb dispatcher and XML renderer (components E and H)
// bound to one Repository and one MetadataRegistry. BaseURL is cached
// at construction rather than recomputed per request (§9 Open
// Question ii).
type Server struct {
	Repo     Repository
	Registry *MetadataRegistry
	BaseURL  string
	Options  ServerOptions

	resumption resumptionEngine
}

// NewServer builds a Server, selecting the batching resumption
// adapter automatically when repo also implements BatchingRepository.
func NewServer(repo Repository, registry *MetadataRegistry, baseURL string, opts ServerOptions) *Server {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	opts.BatchSize = batchSize

	var engine resumptionEngine
	if br, ok := repo.(BatchingRepository); ok {
		engine = NewBatchingResumptionAdapter(br, batchSize)
	} else {
		engine = NewStatelessResumptionAdapter(repo, batchSize)
	}

	return &Server{
		Repo:       repo,
		Registry:   registry,
		BaseURL:    baseURL,
		Options:    opts,
		resumption: engine,
	}
}

// parsedRequest is the normalized, typed form of one incoming request,
// produced by parseRequest (§4.3 steps 1-4).
type parsedRequest struct {
	Verb            Verb
	Identifier      string
	MetadataPrefix  string
	Set             string
	From            *time.Time
	Until           *time.Time
	DayGranularity  bool
	ResumptionToken string
}

func (r *parsedRequest) listParams() ListParams {
	return ListParams{
		MetadataPrefix: r.MetadataPrefix,
		Set:            r.Set,
		From:           r.From,
		Until:          r.Until,
		DayGranularity: r.DayGranularity,
	}
}

// parseRequest implements §4.3 steps 1-4: extract and validate the
// verb, canonicalize from/until, enforce matching granularity, and run
// the resumption-aware argument schema.
func parseRequest(args url.Values) (*parsedRequest, *ProtocolError) {
	verb := Verb(args.Get(ArgVerb))
	if verb == "" || !KnownVerb(verb) {
		return nil, NewProtocolError(ErrorCodeBadVerb, "Illegal verb: %s", args.Get(ArgVerb))
	}

	flat := make(map[string]string, len(args))
	for k, vs := range args {
		if k == ArgVerb || len(vs) == 0 {
			continue
		}
		flat[k] = vs[0]
	}

	spec, _ := VerbSpec(verb)
	if err := spec.Validate(flat); err != nil {
		if pe, ok := err.(*ProtocolError); ok {
			return nil, pe
		}
		return nil, NewProtocolError(ErrorCodeBadArgument, "%v", err)
	}

	req := &parsedRequest{
		Verb:            verb,
		Identifier:      flat[ArgIdentifier],
		MetadataPrefix:  flat[ArgMetadataPrefix],
		Set:             flat[ArgSet],
		ResumptionToken: flat[ArgResumptionToken],
	}

	fromStr, hasFrom := flat[ArgFrom]
	untilStr, hasUntil := flat[ArgUntil]
	if hasFrom {
		t, err := ParseDatestamp(fromStr, false)
		if err != nil {
			return nil, NewProtocolError(ErrorCodeBadArgument, "Illegal datestamp in `from`: %s", fromStr)
		}
		req.From = &t
	}
	if hasUntil {
		t, err := ParseDatestamp(untilStr, true)
		if err != nil {
			return nil, NewProtocolError(ErrorCodeBadArgument, "Illegal datestamp in `until`: %s", untilStr)
		}
		req.Until = &t
	}
	if hasFrom && hasUntil && GranularityOf(fromStr) != GranularityOf(untilStr) {
		return nil, NewProtocolError(ErrorCodeBadArgument, "from and until must share one granularity")
	}
	req.DayGranularity = (hasFrom && GranularityOf(fromStr) == GranularityDay) ||
		(hasUntil && GranularityOf(untilStr) == GranularityDay)

	return req, nil
}

// HandleRequest runs the full server-side pipeline: parse, dispatch to
// the Repository/resumption adapter, and render either a verb payload
// or an error envelope. It never returns a Go error for a
// protocol-level failure; those are folded into the returned
// *Response's Errors.
func (s *Server) HandleRequest(ctx context.Context, args url.Values) *Response {
	req, perr := parseRequest(args)
	if perr != nil {
		return s.errorResponse(rawRequestEcho(args), perr)
	}

	resp := newResponse(s.BaseURL, s.Registry, req)

	switch req.Verb {
	case VerbIdentify:
		ident, err := s.Repo.Identify(ctx)
		if err != nil {
			return s.errorResponse(req, protocolErrorOf(err))
		}
		ident.BaseURL = s.BaseURL
		ident.ProtocolVersion = "2.0"
		resp.Identify = &ident

	case VerbGetRecord, VerbGetMetadata:
		if req.Verb == VerbGetMetadata && !s.Options.EnableGetMetadata {
			return s.errorResponse(req, NewProtocolError(ErrorCodeBadVerb, "Illegal verb: %s", req.Verb))
		}
		if !s.Registry.HasWriter(req.MetadataPrefix) {
			return s.errorResponse(req, NewProtocolError(ErrorCodeCannotDisseminateFormat, "Unknown metadata format: %s", req.MetadataPrefix))
		}
		rec, err := s.Repo.GetRecord(ctx, req.MetadataPrefix, req.Identifier)
		if err != nil {
			return s.errorResponse(req, protocolErrorOf(err))
		}
		resp.record = &rec
		resp.getMetadataOnly = req.Verb == VerbGetMetadata

	case VerbListIdentifiers:
		if err := s.checkSetsAndFormat(req); err != nil {
			return s.errorResponse(req, err)
		}
		headers, token, err := s.resumption.ListIdentifiers(ctx, req.listParams(), req.ResumptionToken)
		if err != nil {
			return s.errorResponse(req, protocolErrorOf(err))
		}
		resp.headers = headers
		resp.token = token
		resp.hasHeaders = true

	case VerbListRecords:
		if err := s.checkSetsAndFormat(req); err != nil {
			return s.errorResponse(req, err)
		}
		records, token, err := s.resumption.ListRecords(ctx, req.listParams(), req.ResumptionToken)
		if err != nil {
			return s.errorResponse(req, protocolErrorOf(err))
		}
		resp.records = records
		resp.token = token
		resp.hasRecords = true

	case VerbListMetadataFormats:
		formats, err := s.Repo.ListMetadataFormats(ctx, req.Identifier)
		if err != nil {
			return s.errorResponse(req, protocolErrorOf(err))
		}
		resp.formats = formats
		resp.hasFormats = true

	case VerbListSets:
		if !s.Repo.SupportsSets() {
			return s.errorResponse(req, NewProtocolError(ErrorCodeNoSetHierarchy, "Sets functionality not implemented"))
		}
		sets, err := s.Repo.ListSets(ctx)
		if err != nil {
			return s.errorResponse(req, protocolErrorOf(err))
		}
		resp.sets = sets
		resp.hasSets = true

	default:
		return s.errorResponse(req, NewProtocolError(ErrorCodeBadVerb, "Illegal verb: %s", req.Verb))
	}

	return resp
}

func (s *Server) checkSetsAndFormat(req *parsedRequest) *ProtocolError {
	if req.MetadataPrefix != "" {
		found := false
		for _, p := range s.Repo.SupportedMetadataPrefixes() {
			if p == req.MetadataPrefix {
				found = true
				break
			}
		}
		if !found {
			return NewProtocolError(ErrorCodeCannotDisseminateFormat, "Unknown metadata format: %s", req.MetadataPrefix)
		}
	}
	if req.Set != "" && !s.Repo.SupportsSets() {
		return NewProtocolError(ErrorCodeNoSetHierarchy, "Sets functionality not implemented")
	}
	return nil
}

func (s *Server) errorResponse(req *parsedRequest, perr *ProtocolError) *Response {
	resp := newResponse(s.BaseURL, s.Registry, req)
	resp.Errors = append(resp.Errors, *perr)
	return resp
}

// protocolErrorOf translates a Repository failure into the taxonomy;
// per §4.1, backend failures are expected to already be
// *ProtocolError values, and anything else is wrapped as Unknown
// rather than left to surface as an HTTP 500.
func protocolErrorOf(err error) *ProtocolError {
	if pe, ok := err.(*ProtocolError); ok {
		return pe
	}
	return NewProtocolError(ErrorCodeUnknown, "%v", err)
}

// rawRequestEcho builds a best-effort parsedRequest for rendering
// <request> when parseRequest itself failed (e.g. bad verb) - the
// response must still echo back whatever arguments it could read.
func rawRequestEcho(args url.Values) *parsedRequest {
	return &parsedRequest{
		Verb:           Verb(args.Get(ArgVerb)),
		Identifier:     args.Get(ArgIdentifier),
		MetadataPrefix: args.Get(ArgMetadataPrefix),
		Set:            args.Get(ArgSet),
	}
}
