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

func TestValidateRequiredArgumentsMissing(t *testing.T) {
	spec, ok := VerbSpec(VerbGetRecord)
	assert.True(t, ok)
	err := spec.Validate(map[string]string{ArgIdentifier: "oai:repo:1"})
	assert.Error(t, err)
	pe, ok := err.(*ProtocolError)
	assert.True(t, ok)
	assert.Equal(t, ErrorCodeBadArgument, pe.Code)
}

func TestValidateRequiredArgumentsOK(t *testing.T) {
	spec, _ := VerbSpec(VerbGetRecord)
	err := spec.Validate(map[string]string{
		ArgIdentifier:     "oai:repo:1",
		ArgMetadataPrefix: "oai_dc",
	})
	assert.NoError(t, err)
}

func TestValidateUnknownArgument(t *testing.T) {
	spec, _ := VerbSpec(VerbIdentify)
	err := spec.Validate(map[string]string{"bogus": "x"})
	assert.Error(t, err)
	pe := err.(*ProtocolError)
	assert.Equal(t, ErrorCodeBadArgument, pe.Code)
}

func TestValidateExclusiveArgumentAlone(t *testing.T) {
	spec, _ := VerbSpec(VerbListRecords)
	err := spec.Validate(map[string]string{ArgResumptionToken: "abc"})
	assert.NoError(t, err)
}

func TestValidateExclusiveArgumentMustBeAlone(t *testing.T) {
	spec, _ := VerbSpec(VerbListRecords)
	err := spec.Validate(map[string]string{
		ArgResumptionToken: "abc",
		ArgMetadataPrefix:  "oai_dc",
	})
	assert.Error(t, err)
	pe := err.(*ProtocolError)
	assert.Equal(t, ErrorCodeBadArgument, pe.Code)
}

func TestKnownVerbIncludesExtension(t *testing.T) {
	assert.True(t, KnownVerb(VerbGetMetadata))
	assert.False(t, KnownVerb(Verb("Bogus")))
}
