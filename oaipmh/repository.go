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

import "context"

// Repository is the abstract contract a backend implements (§4.1).
// Sequences it returns MAY be backed by a lazy source; the resumption
// adapter consumes them eagerly when paginating a non-batching
// backend. Failures SHOULD be signalled with a *ProtocolError from
// this package's error taxonomy. Server does not pass any other error
// through: it renders it as an `unknown` protocol error.
type Repository interface {
	Identify(ctx context.Context) (Identify, error)
	GetRecord(ctx context.Context, prefix, identifier string) (Record, error)
	ListIdentifiers(ctx context.Context, params ListParams) ([]Header, error)
	ListMetadataFormats(ctx context.Context, identifier string) ([]MetadataFormat, error)
	ListRecords(ctx context.Context, params ListParams) ([]Record, error)
	ListSets(ctx context.Context) ([]Set, error)

	SupportsSets() bool
	SupportedMetadataPrefixes() []string
}

// BatchingRepository is a Repository whose list operations can
// additionally page server-side, accepting a cursor and batch size
// and returning exactly that slice (or the suffix, if shorter). The
// batching resumption adapter requires this interface; the stateless
// adapter only requires Repository.
type BatchingRepository interface {
	Repository

	ListIdentifiersBatch(ctx context.Context, params ListParams, cursor, batchSize int) ([]Header, error)
	ListRecordsBatch(ctx context.Context, params ListParams, cursor, batchSize int) ([]Record, error)
}
