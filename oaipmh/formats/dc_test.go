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

package formats

import (
	"bytes"
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/czcorpus/go-oaipmh/oaipmh"
)

func TestDublinCoreWriterThenReaderRoundTrip(t *testing.T) {
	md := &oaipmh.Metadata{Fields: map[string]any{
		"title":   []string{"A Corpus of Examples"},
		"creator": []string{"Jane Doe", "John Roe"},
		"rights":  []string{""}, // empty values must not be emitted
	}}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	err := DublinCoreWriter(enc, md)
	assert.NoError(t, err)
	assert.NoError(t, enc.Flush())

	wrapped := "<metadata>" + buf.String() + "</metadata>"
	root, err := oaipmh.ParseElementBytes([]byte(wrapped))
	assert.NoError(t, err)

	decoded, err := DublinCoreReader(root)
	assert.NoError(t, err)
	assert.Equal(t, "A Corpus of Examples", decoded.Text("title"))
	assert.Equal(t, []string{"Jane Doe", "John Roe"}, decoded.TextList("creator"))
	assert.Empty(t, decoded.TextList("rights"))
}

func TestRegisterDefaultsWiresReaderAndWriter(t *testing.T) {
	reg := oaipmh.NewMetadataRegistry()
	RegisterDefaults(reg)
	assert.True(t, reg.HasReader(DublinCoreMetadataPrefix))
	assert.True(t, reg.HasWriter(DublinCoreMetadataPrefix))
}

func TestDublinCoreFormatDescriptor(t *testing.T) {
	f := DublinCoreFormat()
	assert.Equal(t, "oai_dc", f.Prefix)
	assert.Contains(t, f.Schema, "oai_dc.xsd")
}
