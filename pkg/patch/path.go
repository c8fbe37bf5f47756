package patch

import (
	"strconv"
	"strings"

	"github.com/scimware/scim-server/pkg/errors"
)

// Filter is the subset of RFC 7644 §3.5.2 filter syntax this engine
// understands: "<subAttr> eq <literal>" or the special "primary eq
// true|false" form. Anything else is rejected with an invalidFilter error.
type Filter struct {
	SubAttribute string
	Value        interface{}
}

// PathExpr is a parsed SCIM PATCH path: "attr",
// "attr.subAttr", "attr[filter].subAttr", or a schema-URN-qualified form
// of any of the above for extension attributes.
type PathExpr struct {
	SchemaURN    string
	Attribute    string
	SubAttribute string
	Filter       *Filter
}

// ParsePath parses a SCIM PATCH path expression, rejecting anything
// outside the supported grammar and filter subset.
func ParsePath(raw string) (*PathExpr, error) {
	if raw == "" {
		return nil, errors.NewInvalidPathError("path must not be empty")
	}

	schemaURN, rest := splitSchemaURN(raw)

	attrPart := rest
	subAttr := ""
	var filter *Filter

	if open := strings.IndexByte(rest, '['); open >= 0 {
		close := strings.IndexByte(rest, ']')
		if close < open {
			return nil, errors.NewInvalidPathError("unbalanced filter brackets in path %q", raw)
		}

		attrPart = rest[:open]

		f, err := parseFilter(rest[open+1 : close])
		if err != nil {
			return nil, err
		}

		filter = f

		tail := rest[close+1:]
		tail = strings.TrimPrefix(tail, ".")
		subAttr = tail
	} else if dot := strings.IndexByte(rest, '.'); dot >= 0 {
		attrPart = rest[:dot]
		subAttr = rest[dot+1:]
	}

	if attrPart == "" {
		return nil, errors.NewInvalidPathError("path %q names no attribute", raw)
	}

	return &PathExpr{
		SchemaURN:    schemaURN,
		Attribute:    attrPart,
		SubAttribute: subAttr,
		Filter:       filter,
	}, nil
}

// splitSchemaURN separates a schema-URN-qualified path ("urn:...:User:attr"
// or "urn:...:User:attr.sub") from its trailing attribute path, returning
// ("", raw) for an unqualified path.
func splitSchemaURN(raw string) (urn, rest string) {
	if !strings.HasPrefix(raw, "urn:") {
		return "", raw
	}

	idx := strings.LastIndex(raw, ":")
	if idx < 0 || idx == len("urn:")-1 {
		return "", raw
	}

	return raw[:idx], raw[idx+1:]
}

// parseFilter parses the content between a path's square brackets.
func parseFilter(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)

	fields := strings.Fields(expr)
	if len(fields) != 3 || !strings.EqualFold(fields[1], "eq") {
		return nil, errors.NewInvalidFilterError("unsupported filter expression %q", expr)
	}

	subAttr, literal := fields[0], fields[2]

	switch {
	case strings.EqualFold(subAttr, "primary") && (literal == "true" || literal == "false"):
		return &Filter{SubAttribute: "primary", Value: literal == "true"}, nil
	case strings.HasPrefix(literal, `"`) && strings.HasSuffix(literal, `"`) && len(literal) >= 2:
		return &Filter{SubAttribute: subAttr, Value: literal[1 : len(literal)-1]}, nil
	case literal == "true" || literal == "false":
		return &Filter{SubAttribute: subAttr, Value: literal == "true"}, nil
	default:
		if n, err := strconv.ParseFloat(literal, 64); err == nil {
			return &Filter{SubAttribute: subAttr, Value: n}, nil
		}

		return nil, errors.NewInvalidFilterError("unsupported filter literal %q", literal)
	}
}

// Matches reports whether a multi-valued complex element (a decoded JSON
// object) satisfies the filter.
func (f *Filter) Matches(element map[string]interface{}) bool {
	value, ok := lookupFold(element, f.SubAttribute)
	if !ok {
		return false
	}

	switch want := f.Value.(type) {
	case bool:
		got, ok := value.(bool)
		return ok && got == want
	case string:
		got, ok := value.(string)
		return ok && got == want
	case float64:
		got, ok := value.(float64)
		return ok && got == want
	default:
		return false
	}
}

func lookupFold(m map[string]interface{}, key string) (interface{}, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}

	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}

	return nil, false
}
