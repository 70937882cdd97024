package serializer

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/reliefhub/reliefhub/internal/schema"
	"github.com/reliefhub/reliefhub/models"
)

// Parse reads a canonical XML payload into its Document tree.
func Parse(r io.Reader) (*models.Document, error) {
	var doc models.Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParsingDocument, err)
	}
	return &doc, nil
}

// Marshal renders a document tree into canonical XML with the standard
// header.
func Marshal(doc *models.Document) ([]byte, error) {
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodingDocument, err)
	}
	return append([]byte(xml.Header), data...), nil
}

// DecodeData parses the <data> elements of one resource element into typed
// field values keyed by field name. Unknown and read-only fields are left
// to the caller to reject or ignore.
func DecodeData(tbl *schema.Table, elem *models.ResourceElement) (map[string]any, error) {
	values := make(map[string]any, len(elem.Data))
	for _, d := range elem.Data {
		f, ok := tbl.Field(d.Field)
		if !ok {
			// carried through untyped so the importer can report the field
			values[d.Field] = d.Value
			continue
		}

		raw := d.Value
		if raw == "" {
			raw = d.Text
		}
		v, err := DecodeValue(f.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", d.Field, err)
		}
		values[d.Field] = v
	}
	return values, nil
}
