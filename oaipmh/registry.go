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
	"encoding/xml"
	"sync"
)

// FieldType is one of the four declarative extraction modes a
// field-map entry can request (§4.5).
type FieldType int

const (
	FieldBytes FieldType = iota
	FieldBytesList
	FieldText
	FieldTextList
)

// FieldSpec is one entry of a declarative field map: how to extract
// one named field from a metadata element.
type FieldSpec struct {
	Type FieldType
	Path string
}

// FieldMap declares a metadata reader: field name -> extraction rule.
type FieldMap map[string]FieldSpec

// Namespaces maps a short prefix (as used in FieldMap paths) to its
// namespace URI.
type Namespaces map[string]string

// Reader converts an XML metadata subtree into a Metadata value.
type Reader func(root *Element) (*Metadata, error)

// Writer appends the serialized form of md as a child of the element
// the encoder is currently positioned in.
type Writer func(enc *xml.Encoder, md *Metadata) error

// NewFieldReader builds a declarative Reader from a field map and its
// namespace table, mirroring pyoai's MetadataReader. An unknown
// FieldType is a registry-local configuration error, never a protocol
// error: it can only result from a programming mistake in how the
// reader was registered, not from anything a caller sent.
func NewFieldReader(fields FieldMap, ns Namespaces) Reader {
	compiled := make(map[string]struct {
		path fieldPath
		typ  FieldType
	}, len(fields))
	for name, spec := range fields {
		fp, err := compileFieldPath(spec.Path, ns)
		if err != nil {
			// Surfaced at call time below; keeping NewFieldReader
			// itself infallible matches the registration call sites,
			// which have no error return to offer.
			compiled[name] = struct {
				path fieldPath
				typ  FieldType
			}{fieldPath{}, -1}
			continue
		}
		compiled[name] = struct {
			path fieldPath
			typ  FieldType
		}{fp, spec.Type}
	}

	return func(root *Element) (*Metadata, error) {
		out := &Metadata{Fields: make(map[string]any, len(fields))}
		for name, c := range compiled {
			if c.typ == -1 {
				return nil, &ConfigError{Message: "invalid field path for " + name}
			}
			matches := c.path.eval(root)
			switch c.typ {
			case FieldBytes, FieldText:
				if len(matches) > 0 {
					out.Fields[name] = elementText(matches[0])
				} else {
					out.Fields[name] = ""
				}
			case FieldBytesList, FieldTextList:
				vals := make([]string, 0, len(matches))
				for _, m := range matches {
					vals = append(vals, elementText(m))
				}
				out.Fields[name] = vals
			default:
				return nil, &ConfigError{Message: "unknown field type for " + name}
			}
		}
		return out, nil
	}
}

type registryEntry struct {
	reader Reader
	writer Writer
}

// MetadataRegistry is a keyed mapping prefix -> (reader?, writer?). It
// is long-lived and usually populated at startup, then only read. All
// methods take an internal read/write lock, so registering concurrently
// with lookups is also safe.
type MetadataRegistry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

// NewMetadataRegistry returns an empty registry. Use
// DefaultMetadataRegistry for the process-wide convenience instance
// described in §9's design notes; an explicit instance is otherwise
// always preferred.
func NewMetadataRegistry() *MetadataRegistry {
	return &MetadataRegistry{entries: make(map[string]*registryEntry)}
}

func (r *MetadataRegistry) entry(prefix string) *registryEntry {
	e, ok := r.entries[prefix]
	if !ok {
		e = &registryEntry{}
		r.entries[prefix] = e
	}
	return e
}

func (r *MetadataRegistry) RegisterReader(prefix string, reader Reader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(prefix).reader = reader
}

func (r *MetadataRegistry) RegisterWriter(prefix string, writer Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(prefix).writer = writer
}

func (r *MetadataRegistry) HasReader(prefix string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[prefix]
	return ok && e.reader != nil
}

func (r *MetadataRegistry) HasWriter(prefix string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[prefix]
	return ok && e.writer != nil
}

func (r *MetadataRegistry) ReadMetadata(prefix string, root *Element) (*Metadata, error) {
	r.mu.RLock()
	e, ok := r.entries[prefix]
	r.mu.RUnlock()
	if !ok || e.reader == nil {
		return nil, &ConfigError{Message: "no reader registered for prefix " + prefix}
	}
	return e.reader(root)
}

func (r *MetadataRegistry) WriteMetadata(prefix string, enc *xml.Encoder, md *Metadata) error {
	r.mu.RLock()
	e, ok := r.entries[prefix]
	r.mu.RUnlock()
	if !ok || e.writer == nil {
		return NewProtocolError(ErrorCodeCannotDisseminateFormat, "no writer registered for prefix %s", prefix)
	}
	return e.writer(enc, md)
}

// Prefixes returns the set of prefixes with at least a reader or a
// writer registered, in no particular order.
func (r *MetadataRegistry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for p := range r.entries {
		out = append(out, p)
	}
	return out
}

var defaultRegistry = NewMetadataRegistry()

// DefaultMetadataRegistry is the opt-in process-wide registry
// mentioned in §9's design notes. Nothing in this package populates
// it implicitly; callers that want the convenience register formats
// into it themselves (see oaipmh/formats.RegisterDefaults).
func DefaultMetadataRegistry() *MetadataRegistry {
	return defaultRegistry
}
