package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/reliefhub/reliefhub/internal/schema"
	"github.com/reliefhub/reliefhub/internal/serializer"
	"github.com/reliefhub/reliefhub/models"
)

// Representation formats accepted as path suffixes. XML is the canonical
// default.
const (
	formatXML  = "xml"
	formatJSON = "json"
	formatCSV  = "csv"
)

// splitFormat strips a trailing representation suffix from a path segment:
// "organisation.json" -> ("organisation", "json").
func splitFormat(segment string) (string, string, error) {
	i := strings.LastIndex(segment, ".")
	if i < 0 {
		return segment, formatXML, nil
	}

	format := segment[i+1:]
	switch format {
	case formatXML, formatJSON, formatCSV:
		return segment[:i], format, nil
	default:
		return "", "", fmt.Errorf("%w: .%s", ErrUnknownFormat, format)
	}
}

// rowIdentifier is a path segment naming one row: numeric segments address
// by internal id, anything else by uuid.
type rowIdentifier struct {
	id   int64
	uuid string
}

func parseIdentifier(segment string) (rowIdentifier, error) {
	if segment == "" {
		return rowIdentifier{}, ErrBadIdentifier
	}
	if id, err := strconv.ParseInt(segment, 10, 64); err == nil {
		return rowIdentifier{id: id}, nil
	}
	return rowIdentifier{uuid: segment}, nil
}

// Query parameters reserved for the dispatcher; everything else is treated
// as a field filter.
var reservedParams = map[string]bool{
	"fields": true, "sort": true, "start": true, "limit": true,
	"msince": true, "components": true, "transform": true,
}

// parseQuery translates the request's query string into a resource query.
//
// Field filters use the `field` or `field__op` form, e.g. `name=ACME`,
// `total_beds__ge=10`, `name__like=Red%`. Values are decoded per the
// field's declared type. `uuid` and `msince` filter the metadata columns.
func parseQuery(r *http.Request, tbl *schema.Table) (models.Query, error) {
	var q models.Query
	params := r.URL.Query()

	if fields := params.Get("fields"); fields != "" {
		q.Fields = strings.Split(fields, ",")
	}

	var filters []*models.FilterNode

	if uuid := params.Get("uuid"); uuid != "" {
		filters = append(filters, models.Filter("uuid", models.OpEqual, uuid))
	}
	if msince := params.Get("msince"); msince != "" {
		since, err := time.Parse(models.MetaTimeFormat, msince)
		if err != nil {
			return q, fmt.Errorf("%w: msince %q", serializer.ErrBadValue, msince)
		}
		filters = append(filters, models.Filter("modified_on", models.OpGreater, since))
	}

	for key, values := range params {
		if reservedParams[key] || key == "uuid" || key == "msince" || len(values) == 0 {
			continue
		}

		name, op := key, models.OpEqual
		if i := strings.Index(key, "__"); i > 0 {
			name, op = key[:i], models.Operator(key[i+2:])
		}

		f, ok := tbl.Field(name)
		if !ok {
			return q, fmt.Errorf("%w: %s.%s", schema.ErrUnknownField, tbl.Name, name)
		}

		value, err := filterValue(f, op, values[0])
		if err != nil {
			return q, err
		}
		filters = append(filters, models.Filter(name, op, value))
	}

	switch len(filters) {
	case 0:
	case 1:
		q.Filter = filters[0]
	default:
		q.Filter = models.AllOf(filters...)
	}

	for _, field := range strings.Split(params.Get("sort"), ",") {
		if field == "" {
			continue
		}
		spec := models.SortSpec{Field: field}
		if strings.HasPrefix(field, "-") {
			spec = models.SortSpec{Field: field[1:], Desc: true}
		}
		q.Sort = append(q.Sort, spec)
	}

	if start := params.Get("start"); start != "" {
		n, err := strconv.ParseUint(start, 10, 64)
		if err != nil {
			return q, fmt.Errorf("%w: start %q", serializer.ErrBadValue, start)
		}
		q.Page.Start = n
	}
	if limit := params.Get("limit"); limit != "" {
		n, err := strconv.ParseUint(limit, 10, 64)
		if err != nil {
			return q, fmt.Errorf("%w: limit %q", serializer.ErrBadValue, limit)
		}
		q.Page.Limit = n
	}

	return q, nil
}

// filterValue decodes a filter operand per the field's declared type. The
// like and startswith operators always take the raw string; in takes a
// comma-separated list.
func filterValue(f *schema.Field, op models.Operator, raw string) (any, error) {
	switch op {
	case models.OpLike, models.OpStartsWith:
		return raw, nil
	case models.OpIn:
		parts := strings.Split(raw, ",")
		values := make([]any, 0, len(parts))
		for _, p := range parts {
			v, err := serializer.DecodeValue(f.Type, p)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil
	default:
		return serializer.DecodeValue(f.Type, raw)
	}
}

// exportOpts reads the export adjustments from the query string.
func exportOpts(r *http.Request) serializer.ExportOpts {
	params := r.URL.Query()
	return serializer.ExportOpts{
		Components: params.Get("components") == "1" || params.Get("components") == "true",
		Transform:  params.Get("transform"),
	}
}
