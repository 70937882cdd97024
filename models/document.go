// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The ReliefHub Authors

package models

import (
	"encoding/xml"
	"time"
)

// Document is the canonical XML tree exchanged between repositories.
//
// The root element carries the export timestamp and the uuid of the
// exporting repository. Each child <resource> element describes one row of
// an entity table; component rows appear as nested <resource> elements.
//
//	<reliefhub export_time="2024-01-02T00:00:00Z" repository="...">
//	  <resource name="org_organisation" uuid="..." created_on="..." modified_on="...">
//	    <data field="name" value="ACME"/>
//	    <reference field="country_id" resource="gis_country" uuid="..."/>
//	    <resource name="org_office">...</resource>
//	  </resource>
//	</reliefhub>
type Document struct {
	XMLName    xml.Name          `xml:"reliefhub"`
	ExportTime string            `xml:"export_time,attr"`
	Repository string            `xml:"repository,attr,omitempty"`
	Resources  []ResourceElement `xml:"resource"`
}

// ResourceElement is one exported row. Exactly one of UUID or TUID
// identifies the row: UUID is the global identity, TUID a document-local
// tag used to reference rows that have not been assigned a uuid yet.
type ResourceElement struct {
	Name       string `xml:"name,attr"`
	UUID       string `xml:"uuid,attr,omitempty"`
	TUID       string `xml:"tuid,attr,omitempty"`
	CreatedOn  string `xml:"created_on,attr,omitempty"`
	ModifiedOn string `xml:"modified_on,attr,omitempty"`

	// Deleted marks a tombstone: the exporting side soft-deleted the row
	// and the receiving side should do the same.
	Deleted bool `xml:"deleted,attr,omitempty"`

	Data       []DataElement      `xml:"data"`
	References []ReferenceElement `xml:"reference"`
	Resources  []ResourceElement  `xml:"resource"`
}

// DataElement carries one primary-table field. Value holds the machine
// representation; the element text, when present, holds the display form.
type DataElement struct {
	Field string `xml:"field,attr"`
	Value string `xml:"value,attr,omitempty"`
	Text  string `xml:",chardata"`
}

// ReferenceElement carries one foreign-key field. Exactly one of UUID,
// TUID, or ID must be set. Numeric ids are trusted only when the payload
// originates from this repository.
type ReferenceElement struct {
	Field    string `xml:"field,attr"`
	Resource string `xml:"resource,attr"`
	UUID     string `xml:"uuid,attr,omitempty"`
	TUID     string `xml:"tuid,attr,omitempty"`
	ID       int64  `xml:"id,attr,omitempty"`
}

// DataValue returns the machine value of the named <data> field,
// falling back to the element text when no value attribute was present.
func (r *ResourceElement) DataValue(field string) (string, bool) {
	for _, d := range r.Data {
		if d.Field == field {
			if d.Value != "" {
				return d.Value, true
			}
			return d.Text, true
		}
	}
	return "", false
}

// ModifiedTime parses the modified_on attribute. The zero time and false
// are returned when the attribute is absent or malformed.
func (r *ResourceElement) ModifiedTime() (time.Time, bool) {
	if r.ModifiedOn == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(MetaTimeFormat, r.ModifiedOn)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// NewDocument constructs an empty canonical document stamped with the
// export time and the local repository uuid.
func NewDocument(repositoryUUID string, exportTime time.Time) *Document {
	return &Document{
		ExportTime: exportTime.UTC().Format(MetaTimeFormat),
		Repository: repositoryUUID,
	}
}

// ExportTimestamp parses the root export_time attribute.
func (d *Document) ExportTimestamp() (time.Time, error) {
	return time.Parse(MetaTimeFormat, d.ExportTime)
}
