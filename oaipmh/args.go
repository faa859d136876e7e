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

const (
	ArgVerb            string = "verb"
	ArgIdentifier      string = "identifier"
	ArgMetadataPrefix  string = "metadataPrefix"
	ArgFrom            string = "from"
	ArgUntil           string = "until"
	ArgSet             string = "set"
	ArgResumptionToken string = "resumptionToken"

	VerbIdentify            Verb = "Identify"
	VerbGetRecord           Verb = "GetRecord"
	VerbListIdentifiers     Verb = "ListIdentifiers"
	VerbListMetadataFormats Verb = "ListMetadataFormats"
	VerbListRecords         Verb = "ListRecords"
	VerbListSets            Verb = "ListSets"
	VerbGetMetadata         Verb = "GetMetadata" // extension, see ServerOptions.EnableGetMetadata
)

// Verb is the named operation carried in the `verb` request parameter.
type Verb string

func (v Verb) String() string {
	return string(v)
}

// ArgKind classifies one argument name within a verb's ArgumentSpec.
type ArgKind int

const (
	ArgOptional ArgKind = iota
	ArgRequired
	ArgExclusive
	ArgLocal
)

// ArgumentSpec is a per-verb mapping from argument name to its kind. A
// spec has at most one ArgExclusive name; when present in a request it
// must appear alone (aside from ArgLocal names, which are never part
// of the wire validation).
type ArgumentSpec map[string]ArgKind

// verbSpecs are the authoritative per-verb argument schemas (§4.2).
// GetMetadata shares GetRecord's shape per the extension note in §9.
var verbSpecs = map[Verb]ArgumentSpec{
	VerbGetRecord: {
		ArgIdentifier:     ArgRequired,
		ArgMetadataPrefix: ArgRequired,
	},
	VerbGetMetadata: {
		ArgIdentifier:     ArgRequired,
		ArgMetadataPrefix: ArgRequired,
	},
	VerbIdentify: {},
	VerbListIdentifiers: {
		ArgMetadataPrefix:  ArgRequired,
		ArgFrom:            ArgOptional,
		ArgUntil:           ArgOptional,
		ArgSet:             ArgOptional,
		ArgResumptionToken: ArgExclusive,
	},
	VerbListMetadataFormats: {
		ArgIdentifier: ArgOptional,
	},
	VerbListRecords: {
		ArgMetadataPrefix:  ArgRequired,
		ArgFrom:            ArgOptional,
		ArgUntil:           ArgOptional,
		ArgSet:             ArgOptional,
		ArgResumptionToken: ArgExclusive,
	},
	VerbListSets: {
		ArgResumptionToken: ArgExclusive,
	},
}

// VerbSpec returns the argument schema for v and whether v is a
// recognised verb (including the GetMetadata extension).
func VerbSpec(v Verb) (ArgumentSpec, bool) {
	spec, ok := verbSpecs[v]
	return spec, ok
}

// Validate implements the algorithm of §4.2 against args, a flat
// name-to-string map from the transport (`verb` itself is assumed
// already stripped by the caller).
func (spec ArgumentSpec) Validate(args map[string]string) error {
	var exclusiveKey string
	for name, kind := range spec {
		if kind == ArgExclusive {
			exclusiveKey = name
			break
		}
	}

	for name := range args {
		if _, ok := spec[name]; !ok {
			return NewProtocolError(ErrorCodeBadArgument, "Unknown argument: %s", name)
		}
	}

	if exclusiveKey != "" {
		if _, present := args[exclusiveKey]; present {
			nonLocal := 0
			for name := range args {
				if spec[name] != ArgLocal {
					nonLocal++
				}
			}
			if nonLocal != 1 {
				return NewProtocolError(
					ErrorCodeBadArgument,
					"Argument %s must appear alone", exclusiveKey,
				)
			}
			return nil
		}
	}

	for name, kind := range spec {
		if kind != ArgRequired {
			continue
		}
		if v, present := args[name]; !present || v == "" {
			return NewProtocolError(ErrorCodeBadArgument, "Missing required argument: %s", name)
		}
	}
	return nil
}

// KnownVerb reports whether v is one of the six core verbs plus the
// optional GetMetadata extension.
func KnownVerb(v Verb) bool {
	_, ok := verbSpecs[v]
	return ok
}

