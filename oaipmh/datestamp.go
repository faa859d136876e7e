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
	"time"

	"github.com/jinzhu/now"
)

// FormatDatestamp serializes t (assumed UTC) to the wire form, either
// full seconds precision ("YYYY-MM-DDThh:mm:ssZ") or, when dayGranularity
// is set, truncated to "YYYY-MM-DD".
func FormatDatestamp(t time.Time, dayGranularity bool) string {
	t = t.UTC().Truncate(time.Second)
	if dayGranularity {
		return t.Format(time.DateOnly)
	}
	return t.Format("2006-01-02T15:04:05") + "Z"
}

// ParseDatestamp parses a wire datestamp of either granularity. When
// inclusive is true and only a date is given, the time defaults to
// the last instant of that day, 23:59:59.999999999 (used for an
// inclusive "until" bound); otherwise it defaults to 00:00:00.
//
// Fractional seconds, when present on a full timestamp, are dropped
// rather than rejected: some repositories emit them despite the spec
// forbidding it.
func ParseDatestamp(s string, inclusive bool) (time.Time, error) {
	datePart, timePart, hasTime := strings.Cut(s, "T")
	if hasTime {
		if !strings.HasSuffix(timePart, "Z") {
			return time.Time{}, &DatestampError{Datestamp: s}
		}
		timePart = strings.TrimSuffix(timePart, "Z")
		if dot := strings.IndexByte(timePart, '.'); dot >= 0 {
			timePart = timePart[:dot]
		}
		t, err := time.Parse("2006-01-02T15:04:05", datePart+"T"+timePart)
		if err != nil {
			return time.Time{}, &DatestampError{Datestamp: s}
		}
		return t.UTC(), nil
	}

	day, err := time.Parse(time.DateOnly, datePart)
	if err != nil {
		return time.Time{}, &DatestampError{Datestamp: s}
	}
	if inclusive {
		return now.New(day).EndOfDay().UTC(), nil
	}
	return now.New(day).BeginningOfDay().UTC(), nil
}

// ParseLenient accepts partial datestamps ("YYYY", "YYYY-MM",
// "YYYY-MM-DD") in addition to the strict forms ParseDatestamp
// accepts, rounding missing components down to their minimum. It
// exists for harvesting tolerance against non-conformant repositories
// and is never used by the strict round-tripping codec.
func ParseLenient(s string) (time.Time, error) {
	switch len(s) {
	case 4:
		return time.Parse("2006", s)
	case 7:
		return time.Parse("2006-01", s)
	default:
		return ParseDatestamp(s, false)
	}
}

// GranularityOf reports the wire granularity of a datestamp string,
// used to enforce that a "from"/"until" pair share one granularity.
func GranularityOf(s string) Granularity {
	if strings.Contains(s, "T") {
		return GranularitySecond
	}
	return GranularityDay
}
