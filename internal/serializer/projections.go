package serializer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/reliefhub/reliefhub/internal/schema"
	"github.com/reliefhub/reliefhub/models"
)

// jsonResource mirrors a ResourceElement for the .json projection. The
// projection is mechanical: data fields flatten into a value map,
// references keep their target identity, components nest.
type jsonResource struct {
	Resource   string            `json:"resource"`
	UUID       string            `json:"uuid,omitempty"`
	TUID       string            `json:"tuid,omitempty"`
	CreatedOn  string            `json:"created_on,omitempty"`
	ModifiedOn string            `json:"modified_on,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	References []jsonReference   `json:"references,omitempty"`
	Components []jsonResource    `json:"components,omitempty"`
}

type jsonReference struct {
	Field    string `json:"field"`
	Resource string `json:"resource"`
	UUID     string `json:"uuid,omitempty"`
	TUID     string `json:"tuid,omitempty"`
	ID       int64  `json:"id,omitempty"`
}

type jsonDocument struct {
	ExportTime string         `json:"export_time"`
	Repository string         `json:"repository,omitempty"`
	Resources  []jsonResource `json:"resources"`
}

// EncodeJSON writes the .json projection of a canonical document.
func EncodeJSON(w io.Writer, doc *models.Document) error {
	out := jsonDocument{
		ExportTime: doc.ExportTime,
		Repository: doc.Repository,
		Resources:  make([]jsonResource, 0, len(doc.Resources)),
	}
	for i := range doc.Resources {
		out.Resources = append(out.Resources, toJSONResource(&doc.Resources[i]))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingDocument, err)
	}
	return nil
}

func toJSONResource(elem *models.ResourceElement) jsonResource {
	res := jsonResource{
		Resource:   elem.Name,
		UUID:       elem.UUID,
		TUID:       elem.TUID,
		CreatedOn:  elem.CreatedOn,
		ModifiedOn: elem.ModifiedOn,
	}

	if len(elem.Data) > 0 {
		res.Data = make(map[string]string, len(elem.Data))
		for _, d := range elem.Data {
			v := d.Value
			if v == "" {
				v = d.Text
			}
			res.Data[d.Field] = v
		}
	}

	for _, r := range elem.References {
		res.References = append(res.References, jsonReference{
			Field:    r.Field,
			Resource: r.Resource,
			UUID:     r.UUID,
			TUID:     r.TUID,
			ID:       r.ID,
		})
	}

	for i := range elem.Resources {
		res.Components = append(res.Components, toJSONResource(&elem.Resources[i]))
	}

	return res
}

// EncodeCSV writes the .csv projection of a flat document: one row per
// top-level resource element, columns uuid, created_on, modified_on, then
// the table's readable fields in declaration order. Reference fields render
// the target uuid; nested components are not projected.
func EncodeCSV(w io.Writer, tbl *schema.Table, doc *models.Document) error {
	out := csv.NewWriter(w)

	header := []string{"uuid", "created_on", "modified_on"}
	fields := make([]schema.Field, 0, len(tbl.Fields))
	for _, f := range tbl.Fields {
		if f.Readable {
			fields = append(fields, f)
			header = append(header, f.Name)
		}
	}
	if err := out.Write(header); err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingDocument, err)
	}

	for i := range doc.Resources {
		elem := &doc.Resources[i]
		row := []string{elem.UUID, elem.CreatedOn, elem.ModifiedOn}
		for _, f := range fields {
			row = append(row, csvCell(elem, &f))
		}
		if err := out.Write(row); err != nil {
			return fmt.Errorf("%w: %w", ErrEncodingDocument, err)
		}
	}

	out.Flush()
	if err := out.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingDocument, err)
	}
	return nil
}

func csvCell(elem *models.ResourceElement, f *schema.Field) string {
	if f.Type == schema.TypeReference {
		for _, r := range elem.References {
			if r.Field == f.Name {
				if r.UUID != "" {
					return r.UUID
				}
				if r.ID != 0 {
					return fmt.Sprintf("%d", r.ID)
				}
				return r.TUID
			}
		}
		return ""
	}

	v, _ := elem.DataValue(f.Name)
	return v
}
