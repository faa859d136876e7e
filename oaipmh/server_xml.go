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
	"bytes"
	"encoding/xml"
	"time"
)

// Response is the in-memory result of one Server.HandleRequest call:
// either a verb payload or an accumulated set of protocol errors. Call
// Render to obtain the final XML document.
type Response struct {
	baseURL        string
	req            *parsedRequest
	registry       *MetadataRegistry
	responseDate   time.Time
	dayGranularity bool

	Errors   []ProtocolError
	Identify *Identify

	record          *Record
	getMetadataOnly bool

	headers    []Header
	hasHeaders bool

	records    []Record
	hasRecords bool

	formats    []MetadataFormat
	hasFormats bool

	sets    []Set
	hasSets bool

	token string
}

func newResponse(baseURL string, registry *MetadataRegistry, req *parsedRequest) *Response {
	return &Response{
		baseURL:        baseURL,
		req:            req,
		registry:       registry,
		responseDate:   time.Now().UTC(),
		dayGranularity: req.DayGranularity,
	}
}

// HasErrors reports whether the response carries a protocol-error
// envelope rather than a verb payload.
func (r *Response) HasErrors() bool {
	return len(r.Errors) > 0
}

// HTTPStatus is the HTTP status an embedding transport should answer
// with: 200 for any successful payload, or the status associated with
// the first collected error.
func (r *Response) HTTPStatus() int {
	if len(r.Errors) == 0 {
		return 200
	}
	return r.Errors[0].Code.HTTPStatus()
}

// ---- wire types ----

type requestXML struct {
	URL             string `xml:",chardata"`
	Verb            Verb   `xml:"verb,attr,omitempty"`
	Identifier      string `xml:"identifier,attr,omitempty"`
	MetadataPrefix  string `xml:"metadataPrefix,attr,omitempty"`
	From            string `xml:"from,attr,omitempty"`
	Until           string `xml:"until,attr,omitempty"`
	Set             string `xml:"set,attr,omitempty"`
	ResumptionToken string `xml:"resumptionToken,attr,omitempty"`
}

type errorXML struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

type headerXML struct {
	Status     string   `xml:"status,attr,omitempty"`
	Identifier string   `xml:"identifier"`
	Datestamp  string   `xml:"datestamp"`
	SetSpec    []string `xml:"setSpec,omitempty"`
}

type metadataFormatXML struct {
	MetadataPrefix    string `xml:"metadataPrefix"`
	Schema            string `xml:"schema"`
	MetadataNamespace string `xml:"metadataNamespace"`
}

type setXML struct {
	SetSpec        string          `xml:"setSpec"`
	SetName        string          `xml:"setName"`
	SetDescription *rawElementXML `xml:"setDescription,omitempty"`
}

type identifyXML struct {
	RepositoryName    string          `xml:"repositoryName"`
	BaseURL           string          `xml:"baseURL"`
	ProtocolVersion   string          `xml:"protocolVersion"`
	AdminEmail        []string        `xml:"adminEmail"`
	EarliestDatestamp string          `xml:"earliestDatestamp"`
	DeletedRecord     string          `xml:"deletedRecord"`
	Granularity       string          `xml:"granularity"`
	Compression       []string        `xml:"compression,omitempty"`
	Description       []rawElementXML `xml:"description,omitempty"`
}

// rawElementXML passes caller-supplied XML fragments (Identify
// descriptions, set descriptions, About) through verbatim.
type rawElementXML struct {
	Bytes []byte `xml:",innerxml"`
}

// metadataXML delegates to a MetadataRegistry writer via
// encoding/xml's MarshalXML hook, since the registry's Writer type is
// a plain function rather than a struct encoding/xml can reflect over.
type metadataXML struct {
	write func(enc *xml.Encoder) error
}

func (m metadataXML) MarshalXML(enc *xml.Encoder, start xml.StartElement) error {
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := m.write(enc); err != nil {
		return err
	}
	return enc.EncodeToken(xml.EndElement{Name: start.Name})
}

type recordXML struct {
	Header   headerXML       `xml:"header"`
	Metadata *metadataXML    `xml:"metadata,omitempty"`
	About    []rawElementXML `xml:"about,omitempty"`
}

type resumptionTokenXML struct {
	Token string `xml:",chardata"`
}

type listIdentifiersXML struct {
	Headers         []headerXML         `xml:"header"`
	ResumptionToken *resumptionTokenXML `xml:"resumptionToken,omitempty"`
}

type listRecordsXML struct {
	Records         []recordXML         `xml:"record"`
	ResumptionToken *resumptionTokenXML `xml:"resumptionToken,omitempty"`
}

type listSetsXML struct {
	Sets            []setXML            `xml:"set"`
	ResumptionToken *resumptionTokenXML `xml:"resumptionToken,omitempty"`
}

type listMetadataFormatsXML struct {
	MetadataFormat []metadataFormatXML `xml:"metadataFormat"`
}

type responseXML struct {
	XMLName           xml.Name `xml:"OAI-PMH"`
	XMLNS             string   `xml:"xmlns,attr"`
	XMLNSXSI          string   `xml:"xmlns:xsi,attr"`
	XSISchemaLocation string   `xml:"xsi:schemaLocation,attr"`

	ResponseDate string     `xml:"responseDate"`
	Request      requestXML `xml:"request"`
	Errors       []errorXML `xml:"error,omitempty"`

	Identify            *identifyXML            `xml:"Identify,omitempty"`
	GetRecord           *recordXML              `xml:"GetRecord>record,omitempty"`
	GetMetadata         *metadataXML            `xml:"GetMetadata,omitempty"`
	ListMetadataFormats *listMetadataFormatsXML `xml:"ListMetadataFormats,omitempty"`
	ListIdentifiers     *listIdentifiersXML     `xml:"ListIdentifiers,omitempty"`
	ListRecords         *listRecordsXML         `xml:"ListRecords,omitempty"`
	ListSets            *listSetsXML            `xml:"ListSets,omitempty"`
}

// Render marshals the response to a complete XML document, XML
// declaration included.
func (r *Response) Render() ([]byte, error) {
	out := r.toWire()
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Response) toWire() *responseXML {
	out := &responseXML{
		XMLNS:             "http://www.openarchives.org/OAI/2.0/",
		XMLNSXSI:          "http://www.w3.org/2001/XMLSchema-instance",
		XSISchemaLocation: "http://www.openarchives.org/OAI/2.0/ http://www.openarchives.org/OAI/2.0/OAI-PMH.xsd",
		ResponseDate:      r.responseDate.Format("2006-01-02T15:04:05") + "Z",
		Request:           r.requestXML(),
	}
	for _, e := range r.Errors {
		out.Errors = append(out.Errors, errorXML{Code: e.Code.String(), Message: e.Message})
	}
	if r.HasErrors() {
		return out
	}

	switch {
	case r.Identify != nil:
		out.Identify = identifyToXML(r.Identify)
	case r.record != nil:
		rx := recordToXML(*r.record, r.dayGranularity, r.req.MetadataPrefix, r.registry)
		if r.getMetadataOnly {
			out.GetMetadata = rx.Metadata
		} else {
			out.GetRecord = rx
		}
	case r.hasHeaders:
		lx := &listIdentifiersXML{}
		for _, h := range r.headers {
			lx.Headers = append(lx.Headers, headerToXML(h, r.dayGranularity))
		}
		if r.token != "" {
			lx.ResumptionToken = &resumptionTokenXML{Token: r.token}
		}
		out.ListIdentifiers = lx
	case r.hasRecords:
		lx := &listRecordsXML{}
		for _, rec := range r.records {
			lx.Records = append(lx.Records, *recordToXML(rec, r.dayGranularity, r.req.MetadataPrefix, r.registry))
		}
		if r.token != "" {
			lx.ResumptionToken = &resumptionTokenXML{Token: r.token}
		}
		out.ListRecords = lx
	case r.hasFormats:
		lx := &listMetadataFormatsXML{}
		for _, f := range r.formats {
			lx.MetadataFormat = append(lx.MetadataFormat, metadataFormatXML{
				MetadataPrefix:    f.Prefix,
				Schema:            f.Schema,
				MetadataNamespace: f.Namespace,
			})
		}
		out.ListMetadataFormats = lx
	case r.hasSets:
		lx := &listSetsXML{}
		for _, s := range r.sets {
			sx := setXML{SetSpec: s.SetSpec, SetName: s.SetName}
			if len(s.SetDescription) > 0 {
				sx.SetDescription = &rawElementXML{Bytes: s.SetDescription}
			}
			lx.Sets = append(lx.Sets, sx)
		}
		if r.token != "" {
			lx.ResumptionToken = &resumptionTokenXML{Token: r.token}
		}
		out.ListSets = lx
	}
	return out
}

func (r *Response) requestXML() requestXML {
	req := r.req
	rx := requestXML{
		URL:        r.baseURL,
		Verb:       req.Verb,
		Identifier: req.Identifier,
	}
	if req.MetadataPrefix != "" {
		rx.MetadataPrefix = req.MetadataPrefix
	}
	if req.From != nil {
		rx.From = FormatDatestamp(*req.From, r.dayGranularity)
	}
	if req.Until != nil {
		rx.Until = FormatDatestamp(*req.Until, r.dayGranularity)
	}
	rx.Set = req.Set
	rx.ResumptionToken = req.ResumptionToken
	return rx
}

func headerToXML(h Header, dayGranularity bool) headerXML {
	hx := headerXML{
		Identifier: h.Identifier,
		Datestamp:  FormatDatestamp(h.Datestamp, dayGranularity),
		SetSpec:    h.SetSpec,
	}
	if h.Deleted {
		hx.Status = "deleted"
	}
	return hx
}

func identifyToXML(id *Identify) *identifyXML {
	ix := &identifyXML{
		RepositoryName:    id.RepositoryName,
		BaseURL:           id.BaseURL,
		ProtocolVersion:   id.ProtocolVersion,
		AdminEmail:        id.AdminEmails,
		EarliestDatestamp: FormatDatestamp(id.EarliestDatestamp, id.Granularity == GranularityDay),
		DeletedRecord:     id.DeletedRecord,
		Granularity:       string(id.Granularity),
	}
	if len(id.Compression) > 0 && !(len(id.Compression) == 1 && id.Compression[0] == "identity") {
		ix.Compression = id.Compression
	}
	for _, d := range id.Descriptions {
		ix.Description = append(ix.Description, rawElementXML{Bytes: d})
	}
	return ix
}

func recordToXML(rec Record, dayGranularity bool, prefix string, reg *MetadataRegistry) *recordXML {
	rx := &recordXML{Header: headerToXML(rec.Header, dayGranularity)}
	if !rec.Header.Deleted && rec.Metadata != nil && reg != nil {
		md := rec.Metadata
		rx.Metadata = &metadataXML{write: func(enc *xml.Encoder) error {
			return reg.WriteMetadata(prefix, enc, md)
		}}
	}
	for _, a := range rec.About {
		rx.About = append(rx.About, rawElementXML{Bytes: a})
	}
	return rx
}
