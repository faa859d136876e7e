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

// Package oaipmhclient is the harvesting side of the protocol:
// component I (request engine), J (lazy cross-batch iteration) and K
// (granularity negotiation). It depends on oaipmh only for the shared
// domain types, error taxonomy and metadata registry; the HTTP
// transport and XML decoding are the standard library's.
package oaipmhclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/czcorpus/go-oaipmh/oaipmh"
)

// RetryPolicy governs how the engine reacts to a transient HTTP
// status (§4.7 step 3). The zero value is not usable; use
// DefaultRetryPolicy.
type RetryPolicy struct {
	// WaitDefault is used when the server's Retry-After header is
	// absent or not a plain integer.
	WaitDefault time.Duration
	MaxRetries  int
	// StatusCodes is the set of statuses that trigger a retry rather
	// than an immediate transport error.
	StatusCodes map[int]struct{}
}

// DefaultRetryPolicy matches §4.7: wait 120s, retry up to 5 times, on
// HTTP 503 only.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		WaitDefault: 120 * time.Second,
		MaxRetries:  5,
		StatusCodes: map[int]struct{}{http.StatusServiceUnavailable: {}},
	}
}

func (p RetryPolicy) retriable(status int) bool {
	_, ok := p.StatusCodes[status]
	return ok
}

// Transport is the round-trip abstraction the request engine drives.
// The default is httpTransport (net/http); FileTransport substitutes
// a local file read for the supplemented "local file" client mode
// (§4.7 closing paragraph, pulled from pyoai's ResumptionOAIPMH/
// FromFile into a first-class option here).
type Transport interface {
	Fetch(ctx context.Context, baseURL string, form url.Values, forceGet bool) (status int, header http.Header, body []byte, err error)
}

type httpTransport struct {
	client   *http.Client
	username string
	password string
	hasAuth  bool
}

func (t *httpTransport) Fetch(ctx context.Context, baseURL string, form url.Values, forceGet bool) (int, http.Header, []byte, error) {
	var req *http.Request
	var err error
	if forceGet {
		u := baseURL
		if strings.Contains(u, "?") {
			u += "&" + form.Encode()
		} else {
			u += "?" + form.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, baseURL, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return 0, nil, nil, &oaipmh.TransportError{Cause: err}
	}
	req.Header.Set("User-Agent", "pyoai")
	if t.hasAuth {
		req.SetBasicAuth(t.username, t.password)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, nil, &oaipmh.TransportError{Cause: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, resp.Header, nil, &oaipmh.TransportError{Cause: err}
	}
	return resp.StatusCode, resp.Header, body, nil
}

// FileTransport substitutes a local file read for the HTTP round-trip
// (pyoai's local-file harvesting mode); Fetch ignores form/forceGet
// entirely and always returns the same file contents as if the
// server had answered 200 OK.
type FileTransport struct {
	Path string
}

func (t *FileTransport) Fetch(ctx context.Context, baseURL string, form url.Values, forceGet bool) (int, http.Header, []byte, error) {
	body, err := os.ReadFile(t.Path)
	if err != nil {
		return 0, nil, nil, &oaipmh.TransportError{Cause: err}
	}
	return http.StatusOK, http.Header{}, body, nil
}

// Option configures a Client at construction time.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if ht, ok := c.transport.(*httpTransport); ok {
			ht.client = hc
		}
	}
}

func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		if ht, ok := c.transport.(*httpTransport); ok {
			ht.username, ht.password, ht.hasAuth = username, password, true
		}
	}
}

// WithForceGet makes every request a GET with the arguments on the
// query string rather than a POST with a form body.
func WithForceGet() Option {
	return func(c *Client) { c.forceGet = true }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithIgnoreBadCharacters strips ASCII control character 0x0C (form
// feed) from response bodies before parsing, a tolerant-parsing
// option pyoai calls ignoreBadCharacters; some production repositories
// emit it inside text nodes.
func WithIgnoreBadCharacters() Option {
	return func(c *Client) { c.ignoreBadCharacters = true }
}

// Client is the harvesting entry point bound to one repository base
// URL. A Client is safe for one call at a time; concurrent use of
// distinct Clients is always safe (§5).
type Client struct {
	baseURL             string
	registry            *oaipmh.MetadataRegistry
	transport           Transport
	forceGet            bool
	retry               RetryPolicy
	ignoreBadCharacters bool

	dayGranularity bool
	gotGranularity bool
}

// NewClient builds a Client against baseURL, using registry to decode
// metadata subtrees.
func NewClient(baseURL string, registry *oaipmh.MetadataRegistry, opts ...Option) *Client {
	c := &Client{
		baseURL:   baseURL,
		registry:  registry,
		transport: &httpTransport{client: http.DefaultClient},
		retry:     DefaultRetryPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// request implements §4.7 steps 1-6: build the query, perform the
// round trip (retrying on a configured transient status), and decode
// either an error envelope or a verb payload.
func (c *Client) request(ctx context.Context, verb oaipmh.Verb, args url.Values) (*oaipmh.Element, error) {
	form := url.Values{}
	for k, v := range args {
		form[k] = v
	}
	form.Set(oaipmh.ArgVerb, string(verb))

	attempts := 0
	for {
		status, header, body, err := c.transport.Fetch(ctx, c.baseURL, form, c.forceGet)
		if err != nil {
			return nil, err
		}
		if status >= 200 && status < 300 {
			return c.decode(body)
		}
		if !c.retry.retriable(status) {
			return nil, &oaipmh.TransportError{StatusCode: status}
		}
		attempts++
		if attempts > c.retry.MaxRetries {
			return nil, &oaipmh.TransportError{StatusCode: status}
		}
		wait := c.retry.WaitDefault
		if ra := header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				wait = time.Duration(secs) * time.Second
			}
		}
		select {
		case <-ctx.Done():
			return nil, &oaipmh.TransportError{Cause: ctx.Err()}
		case <-time.After(wait):
		}
	}
}

func (c *Client) decode(body []byte) (*oaipmh.Element, error) {
	if c.ignoreBadCharacters {
		body = stripBadCharacters(body)
	}
	root, err := oaipmh.ParseElementBytes(body)
	if err != nil {
		return nil, err
	}
	if errEl := findChild(root, "error"); errEl != nil {
		code := attrValue(errEl, "code")
		return nil, protocolErrorFromWireCode(code, strings.TrimSpace(errEl.Text))
	}
	return root, nil
}

func stripBadCharacters(body []byte) []byte {
	out := make([]byte, 0, len(body))
	for _, b := range body {
		if b == 0x0C {
			continue
		}
		out = append(out, b)
	}
	return out
}

func findChild(el *oaipmh.Element, local string) *oaipmh.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.Children {
		if c.Name.Local == local {
			return c
		}
	}
	return nil
}

func attrValue(el *oaipmh.Element, local string) string {
	for _, a := range el.Attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// protocolErrorFromWireCode maps a wire error code back to the
// taxonomy (§4.7 step 5); an unrecognised code becomes Unknown rather
// than failing to parse the response at all.
func protocolErrorFromWireCode(code, message string) *oaipmh.ProtocolError {
	switch oaipmh.ErrorCode(code) {
	case oaipmh.ErrorCodeBadArgument, oaipmh.ErrorCodeBadVerb, oaipmh.ErrorCodeBadResumptionToken,
		oaipmh.ErrorCodeCannotDisseminateFormat, oaipmh.ErrorCodeIDDoesNotExist,
		oaipmh.ErrorCodeNoRecordsMatch, oaipmh.ErrorCodeNoMetadataFormats, oaipmh.ErrorCodeNoSetHierarchy:
		return &oaipmh.ProtocolError{Code: oaipmh.ErrorCode(code), Message: message}
	default:
		return &oaipmh.ProtocolError{Code: oaipmh.ErrorCodeUnknown, Message: message}
	}
}

// formatDate serializes t using the negotiated granularity (§4.9); if
// UpdateGranularity was never called, full second precision is used.
func (c *Client) formatDate(t time.Time) string {
	return oaipmh.FormatDatestamp(t, c.dayGranularity)
}

// UpdateGranularity calls Identify and records the repository's
// datestamp granularity so subsequent date-bearing requests serialize
// at the right precision (component K). An unrecognised granularity
// value is a client-side ConfigError, never a protocol error.
func (c *Client) UpdateGranularity(ctx context.Context) error {
	id, err := c.Identify(ctx)
	if err != nil {
		return err
	}
	switch id.Granularity {
	case oaipmh.GranularityDay:
		c.dayGranularity = true
	case oaipmh.GranularitySecond:
		c.dayGranularity = false
	default:
		return &oaipmh.ConfigError{Message: fmt.Sprintf("unsupported granularity reported by repository: %s", id.Granularity)}
	}
	c.gotGranularity = true
	return nil
}

// Identify issues the Identify verb.
func (c *Client) Identify(ctx context.Context) (oaipmh.Identify, error) {
	root, err := c.request(ctx, oaipmh.VerbIdentify, url.Values{})
	if err != nil {
		return oaipmh.Identify{}, err
	}
	return decodeIdentify(root)
}

// GetRecord issues the GetRecord verb.
func (c *Client) GetRecord(ctx context.Context, metadataPrefix, identifier string) (oaipmh.Record, error) {
	args := url.Values{
		oaipmh.ArgMetadataPrefix: {metadataPrefix},
		oaipmh.ArgIdentifier:     {identifier},
	}
	root, err := c.request(ctx, oaipmh.VerbGetRecord, args)
	if err != nil {
		return oaipmh.Record{}, err
	}
	recEl := findVerbPayload(root, "GetRecord")
	rec := findChild(recEl, "record")
	return c.decodeRecord(rec, metadataPrefix)
}

// ListMetadataFormats issues the ListMetadataFormats verb.
func (c *Client) ListMetadataFormats(ctx context.Context, identifier string) ([]oaipmh.MetadataFormat, error) {
	args := url.Values{}
	if identifier != "" {
		args.Set(oaipmh.ArgIdentifier, identifier)
	}
	root, err := c.request(ctx, oaipmh.VerbListMetadataFormats, args)
	if err != nil {
		return nil, err
	}
	payload := findVerbPayload(root, "ListMetadataFormats")
	var out []oaipmh.MetadataFormat
	for _, f := range payload.Children {
		if f.Name.Local != "metadataFormat" {
			continue
		}
		out = append(out, oaipmh.MetadataFormat{
			Prefix:    childText(f, "metadataPrefix"),
			Schema:    childText(f, "schema"),
			Namespace: childText(f, "metadataNamespace"),
		})
	}
	return out, nil
}

// ListSets issues the ListSets verb, following every resumption token
// until exhausted.
func (c *Client) ListSets(ctx context.Context) ([]oaipmh.Set, error) {
	var out []oaipmh.Set
	args := url.Values{}
	token := ""
	for {
		reqArgs := args
		if token != "" {
			reqArgs = url.Values{oaipmh.ArgResumptionToken: {token}}
		}
		root, err := c.request(ctx, oaipmh.VerbListSets, reqArgs)
		if err != nil {
			return nil, err
		}
		payload := findVerbPayload(root, "ListSets")
		for _, s := range payload.Children {
			if s.Name.Local != "set" {
				continue
			}
			set := oaipmh.Set{SetSpec: childText(s, "setSpec"), SetName: childText(s, "setName")}
			if d := findChild(s, "setDescription"); d != nil {
				set.SetDescription = []byte(d.Text)
			}
			out = append(out, set)
		}
		token = childText(payload, "resumptionToken")
		if token == "" {
			break
		}
	}
	return out, nil
}

func (c *Client) decodeRecord(el *oaipmh.Element, prefix string) (oaipmh.Record, error) {
	if el == nil {
		return oaipmh.Record{}, &oaipmh.XMLSyntaxError{Cause: fmt.Errorf("missing record element")}
	}
	hdr, err := decodeHeader(findChild(el, "header"))
	if err != nil {
		return oaipmh.Record{}, err
	}
	rec := oaipmh.Record{Header: hdr}
	if !hdr.Deleted {
		if md := findChild(el, "metadata"); md != nil {
			m, err := c.registry.ReadMetadata(prefix, md)
			if err != nil {
				return oaipmh.Record{}, err
			}
			rec.Metadata = m
		}
	}
	return rec, nil
}

func decodeHeader(el *oaipmh.Element) (oaipmh.Header, error) {
	if el == nil {
		return oaipmh.Header{}, &oaipmh.XMLSyntaxError{Cause: fmt.Errorf("missing header element")}
	}
	datestampStr := childText(el, "datestamp")
	t, err := oaipmh.ParseDatestamp(datestampStr, false)
	if err != nil {
		return oaipmh.Header{}, &oaipmh.DatestampError{Datestamp: datestampStr}
	}
	h := oaipmh.Header{
		Identifier: childText(el, "identifier"),
		Datestamp:  t,
		Deleted:    attrValue(el, "status") == "deleted",
	}
	for _, s := range el.Children {
		if s.Name.Local == "setSpec" {
			h.SetSpec = append(h.SetSpec, strings.TrimSpace(s.Text))
		}
	}
	return h, nil
}

func decodeIdentify(root *oaipmh.Element) (oaipmh.Identify, error) {
	payload := findVerbPayload(root, "Identify")
	if payload == nil {
		return oaipmh.Identify{}, &oaipmh.XMLSyntaxError{Cause: fmt.Errorf("missing Identify element")}
	}
	earliestStr := childText(payload, "earliestDatestamp")
	earliest, err := oaipmh.ParseDatestamp(earliestStr, false)
	if err != nil {
		return oaipmh.Identify{}, &oaipmh.DatestampError{Datestamp: earliestStr}
	}
	id := oaipmh.Identify{
		RepositoryName:    childText(payload, "repositoryName"),
		BaseURL:           childText(payload, "baseURL"),
		ProtocolVersion:   childText(payload, "protocolVersion"),
		EarliestDatestamp: earliest,
		DeletedRecord:     childText(payload, "deletedRecord"),
		Granularity:       oaipmh.Granularity(childText(payload, "granularity")),
	}
	for _, c := range payload.Children {
		switch c.Name.Local {
		case "adminEmail":
			id.AdminEmails = append(id.AdminEmails, strings.TrimSpace(c.Text))
		case "compression":
			id.Compression = append(id.Compression, strings.TrimSpace(c.Text))
		case "description":
			id.Descriptions = append(id.Descriptions, []byte(c.Text))
		}
	}
	return id, nil
}

// findVerbPayload locates the element named verb directly under the
// OAI-PMH root (e.g. <GetRecord>, <ListRecords>).
func findVerbPayload(root *oaipmh.Element, verb string) *oaipmh.Element {
	return findChild(root, verb)
}

func childText(el *oaipmh.Element, local string) string {
	c := findChild(el, local)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text)
}
