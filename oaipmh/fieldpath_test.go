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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleMetadataXML = `<metadata>
  <oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/" xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>A Corpus of Examples</dc:title>
    <dc:creator>Jane Doe</dc:creator>
    <dc:creator>John Roe</dc:creator>
  </oai_dc:dc>
</metadata>`

func TestParseElementAndFieldPathEval(t *testing.T) {
	root, err := ParseElement(strings.NewReader(sampleMetadataXML))
	assert.NoError(t, err)
	assert.Equal(t, "metadata", root.Name.Local)

	ns := Namespaces{
		"oai_dc": "http://www.openarchives.org/OAI/2.0/oai_dc/",
		"dc":     "http://purl.org/dc/elements/1.1/",
	}
	fp, err := compileFieldPath("oai_dc:dc/dc:title/text()", ns)
	assert.NoError(t, err)
	assert.True(t, fp.wantText)
	matches := fp.eval(root)
	assert.Len(t, matches, 1)
	assert.Equal(t, "A Corpus of Examples", elementText(matches[0]))
}

func TestFieldPathEvalMultiValued(t *testing.T) {
	root, err := ParseElementBytes([]byte(sampleMetadataXML))
	assert.NoError(t, err)

	ns := Namespaces{
		"oai_dc": "http://www.openarchives.org/OAI/2.0/oai_dc/",
		"dc":     "http://purl.org/dc/elements/1.1/",
	}
	fp, err := compileFieldPath("oai_dc:dc/dc:creator/text()", ns)
	assert.NoError(t, err)
	matches := fp.eval(root)
	assert.Len(t, matches, 2)
	assert.Equal(t, "Jane Doe", elementText(matches[0]))
	assert.Equal(t, "John Roe", elementText(matches[1]))
}

func TestCompileFieldPathTextNotFinalIsError(t *testing.T) {
	_, err := compileFieldPath("text()/dc:title", Namespaces{})
	assert.Error(t, err)
}

func TestFieldPathUnboundPrefixFallsBackToLocalName(t *testing.T) {
	fp, err := compileFieldPath("dc:title/text()", Namespaces{})
	assert.NoError(t, err)
	assert.Len(t, fp.steps, 1)
	assert.Equal(t, "title", fp.steps[0].local)
	assert.Equal(t, "", fp.steps[0].namespace)
}
