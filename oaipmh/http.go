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
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// writeXMLResponse renders resp and writes it with the given status,
// generalized from the teacher's common.go helper of the same name.
func writeXMLResponse(w gin.ResponseWriter, status int, resp *Response) {
	body, err := resp.Render()
	if err != nil {
		log.Error().Err(err).Msg("failed to render OAI-PMH response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write OAI-PMH response")
	}
}

// HandleGet serves a GET /oai request, reading verb arguments from the
// query string.
func (s *Server) HandleGet(ctx *gin.Context) {
	resp := s.HandleRequest(ctx.Request.Context(), ctx.Request.URL.Query())
	writeXMLResponse(ctx.Writer, resp.HTTPStatus(), resp)
}

// HandlePost serves a POST /oai request, reading verb arguments from
// the form body per the protocol's required support for both methods.
func (s *Server) HandlePost(ctx *gin.Context) {
	if err := ctx.Request.ParseForm(); err != nil {
		log.Error().Err(err).Msg("failed to parse OAI-PMH POST form")
		ctx.AbortWithStatus(http.StatusBadRequest)
		return
	}
	resp := s.HandleRequest(ctx.Request.Context(), ctx.Request.PostForm)
	writeXMLResponse(ctx.Writer, resp.HTTPStatus(), resp)
}

// HandleRecordLink serves a convenience, non-standard per-record GET
// endpoint (`/record/:recordId`) that returns a GetRecord response
// directly, defaulting to oai_dc when no format is requested. This
// mirrors the teacher's HandleSelfLink.
func (s *Server) HandleRecordLink(ctx *gin.Context) {
	args := make(map[string][]string)
	args[ArgVerb] = []string{string(VerbGetRecord)}
	args[ArgIdentifier] = []string{ctx.Param("recordId")}
	args[ArgMetadataPrefix] = []string{ctx.DefaultQuery("format", "oai_dc")}
	resp := s.HandleRequest(ctx.Request.Context(), args)
	writeXMLResponse(ctx.Writer, resp.HTTPStatus(), resp)
}
