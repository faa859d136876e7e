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
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDatestampSecond(t *testing.T) {
	ts := time.Date(2024, 3, 5, 12, 30, 45, 0, time.UTC)
	assert.Equal(t, "2024-03-05T12:30:45Z", FormatDatestamp(ts, false))
}

func TestFormatDatestampDay(t *testing.T) {
	ts := time.Date(2024, 3, 5, 12, 30, 45, 0, time.UTC)
	assert.Equal(t, "2024-03-05", FormatDatestamp(ts, true))
}

func TestParseDatestampSecond(t *testing.T) {
	ts, err := ParseDatestamp("2024-03-05T12:30:45Z", false)
	assert.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2024, 3, 5, 12, 30, 45, 0, time.UTC)))
}

func TestParseDatestampDayExclusiveDefaultsToMidnight(t *testing.T) {
	ts, err := ParseDatestamp("2024-03-05", false)
	assert.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)))
}

func TestParseDatestampDayInclusiveDefaultsToEndOfDay(t *testing.T) {
	ts, err := ParseDatestamp("2024-03-05", true)
	assert.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2024, 3, 5, 23, 59, 59, 999999999, time.UTC)))
}

func TestParseDatestampRejectsMissingZ(t *testing.T) {
	_, err := ParseDatestamp("2024-03-05T12:30:45", false)
	assert.Error(t, err)
	var de *DatestampError
	assert.ErrorAs(t, err, &de)
}

func TestParseDatestampDropsFractionalSeconds(t *testing.T) {
	ts, err := ParseDatestamp("2024-03-05T12:30:45.123Z", false)
	assert.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2024, 3, 5, 12, 30, 45, 0, time.UTC)))
}

func TestParseLenientPartialForms(t *testing.T) {
	y, err := ParseLenient("2024")
	assert.NoError(t, err)
	assert.Equal(t, 2024, y.Year())

	ym, err := ParseLenient("2024-03")
	assert.NoError(t, err)
	assert.Equal(t, time.March, ym.Month())
}

func TestGranularityOf(t *testing.T) {
	assert.Equal(t, GranularityDay, GranularityOf("2024-03-05"))
	assert.Equal(t, GranularitySecond, GranularityOf("2024-03-05T12:30:45Z"))
}
