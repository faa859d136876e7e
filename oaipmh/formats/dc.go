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

// Package formats holds ready-made MetadataRegistry entries. The
// oai_dc format (Simple Dublin Core) is the one every conformant
// OAI-PMH repository supports; RegisterDefaults wires it into a
// registry the way an embedding program typically wants at startup.
package formats

import (
	"encoding/xml"
	"strings"

	"github.com/czcorpus/go-oaipmh/oaipmh"
)

const DublinCoreMetadataPrefix = "oai_dc"

var dublinCoreNamespaces = oaipmh.Namespaces{
	"oai_dc": "http://www.openarchives.org/OAI/2.0/oai_dc/",
	"dc":     "http://purl.org/dc/elements/1.1/",
}

// dublinCoreFields mirrors pyoai's oai_dc_reader field map: all
// fifteen Dublin Core elements, each multi-valued.
var dublinCoreFields = oaipmh.FieldMap{
	"title":       {Type: oaipmh.FieldTextList, Path: "oai_dc:dc/dc:title/text()"},
	"creator":     {Type: oaipmh.FieldTextList, Path: "oai_dc:dc/dc:creator/text()"},
	"subject":     {Type: oaipmh.FieldTextList, Path: "oai_dc:dc/dc:subject/text()"},
	"description": {Type: oaipmh.FieldTextList, Path: "oai_dc:dc/dc:description/text()"},
	"publisher":   {Type: oaipmh.FieldTextList, Path: "oai_dc:dc/dc:publisher/text()"},
	"contributor": {Type: oaipmh.FieldTextList, Path: "oai_dc:dc/dc:contributor/text()"},
	"date":        {Type: oaipmh.FieldTextList, Path: "oai_dc:dc/dc:date/text()"},
	"type":        {Type: oaipmh.FieldTextList, Path: "oai_dc:dc/dc:type/text()"},
	"format":      {Type: oaipmh.FieldTextList, Path: "oai_dc:dc/dc:format/text()"},
	"identifier":  {Type: oaipmh.FieldTextList, Path: "oai_dc:dc/dc:identifier/text()"},
	"source":      {Type: oaipmh.FieldTextList, Path: "oai_dc:dc/dc:source/text()"},
	"language":    {Type: oaipmh.FieldTextList, Path: "oai_dc:dc/dc:language/text()"},
	"relation":    {Type: oaipmh.FieldTextList, Path: "oai_dc:dc/dc:relation/text()"},
	"coverage":    {Type: oaipmh.FieldTextList, Path: "oai_dc:dc/dc:coverage/text()"},
	"rights":      {Type: oaipmh.FieldTextList, Path: "oai_dc:dc/dc:rights/text()"},
}

// dublinCoreFieldOrder fixes the element emission order for the
// writer, since Go map iteration is unordered and the schema expects
// a stable, readable document.
var dublinCoreFieldOrder = []string{
	"title", "creator", "subject", "description", "publisher",
	"contributor", "date", "type", "format", "identifier", "source",
	"language", "relation", "coverage", "rights",
}

// DublinCoreReader is the default reader for prefix oai_dc.
var DublinCoreReader = oaipmh.NewFieldReader(dublinCoreFields, dublinCoreNamespaces)

// DublinCoreWriter emits an <oai_dc:dc> element carrying the schema's
// xsi:schemaLocation, with one child per non-empty value, generalized
// from the teacher's NewDublinCore/GetDublinCoreFormat pattern away
// from its CNC-specific MultilangArray field type.
func DublinCoreWriter(enc *xml.Encoder, md *oaipmh.Metadata) error {
	start := xml.StartElement{
		Name: xml.Name{Local: "oai_dc:dc"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns:oai_dc"}, Value: dublinCoreNamespaces["oai_dc"]},
			{Name: xml.Name{Local: "xmlns:dc"}, Value: dublinCoreNamespaces["dc"]},
			{Name: xml.Name{Local: "xmlns:xsi"}, Value: "http://www.w3.org/2001/XMLSchema-instance"},
			{
				Name: xml.Name{Local: "xsi:schemaLocation"},
				Value: strings.Join([]string{
					"http://www.openarchives.org/OAI/2.0/oai_dc/",
					"http://www.openarchives.org/OAI/2.0/oai_dc.xsd",
				}, " "),
			},
		},
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, field := range dublinCoreFieldOrder {
		for _, v := range md.TextList(field) {
			if v == "" {
				continue
			}
			childName := xml.Name{Local: "dc:" + field}
			if err := enc.EncodeToken(xml.StartElement{Name: childName}); err != nil {
				return err
			}
			if err := enc.EncodeToken(xml.CharData(v)); err != nil {
				return err
			}
			if err := enc.EncodeToken(xml.EndElement{Name: childName}); err != nil {
				return err
			}
		}
	}
	return enc.EncodeToken(xml.EndElement{Name: start.Name})
}

func DublinCoreFormat() oaipmh.MetadataFormat {
	return oaipmh.MetadataFormat{
		Prefix:    DublinCoreMetadataPrefix,
		Schema:    "http://www.openarchives.org/OAI/2.0/oai_dc.xsd",
		Namespace: "http://www.openarchives.org/OAI/2.0/oai_dc/",
	}
}

// RegisterDefaults wires the oai_dc reader and writer into reg, the
// convenience the process-wide DefaultMetadataRegistry is meant for.
func RegisterDefaults(reg *oaipmh.MetadataRegistry) {
	reg.RegisterReader(DublinCoreMetadataPrefix, DublinCoreReader)
	reg.RegisterWriter(DublinCoreMetadataPrefix, DublinCoreWriter)
}
