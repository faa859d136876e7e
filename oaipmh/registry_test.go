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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFieldReaderScalarAndList(t *testing.T) {
	reader := NewFieldReader(
		FieldMap{
			"title":   {Type: FieldText, Path: "dc:title/text()"},
			"creator": {Type: FieldTextList, Path: "dc:creator/text()"},
		},
		Namespaces{},
	)
	root, err := ParseElementBytes([]byte(`<metadata>
		<dc:title>Corpus</dc:title>
		<dc:creator>A</dc:creator>
		<dc:creator>B</dc:creator>
	</metadata>`))
	assert.NoError(t, err)

	md, err := reader(root)
	assert.NoError(t, err)
	assert.Equal(t, "Corpus", md.Text("title"))
	assert.Equal(t, []string{"A", "B"}, md.TextList("creator"))
}

func TestRegistryReadWriteRoundTripUnregisteredPrefix(t *testing.T) {
	reg := NewMetadataRegistry()
	assert.False(t, reg.HasReader("oai_dc"))
	assert.False(t, reg.HasWriter("oai_dc"))

	_, err := reg.ReadMetadata("oai_dc", &Element{})
	assert.Error(t, err)

	err = reg.WriteMetadata("oai_dc", nil, &Metadata{})
	assert.Error(t, err)
	pe, ok := err.(*ProtocolError)
	assert.True(t, ok)
	assert.Equal(t, ErrorCodeCannotDisseminateFormat, pe.Code)
}

func TestRegistryPrefixesReflectsRegistrations(t *testing.T) {
	reg := NewMetadataRegistry()
	reg.RegisterReader("oai_dc", func(root *Element) (*Metadata, error) { return &Metadata{}, nil })
	assert.Contains(t, reg.Prefixes(), "oai_dc")
}

func TestMetadataTextAndTextListOnNilMetadata(t *testing.T) {
	var md *Metadata
	assert.Equal(t, "", md.Text("title"))
	assert.Nil(t, md.TextList("title"))
}
