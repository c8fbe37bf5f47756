package server

import (
	"strconv"
	"strings"

	"github.com/scimware/scim-server/pkg/errors"
)

// parseFilter accepts the narrow search-filter grammar this server
// supports: a single `attr eq "value"` or `attr eq value` comparison.
// The full SCIM filter grammar's and/or/not and presence operators are
// deliberately not implemented. Returns the dotted attribute path
// and the comparison value, ready for provider.FindByAttribute.
func parseFilter(filter string) (attr, value string, err error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return "", "", errors.NewInvalidFilterError("a search requires a filter expression")
	}

	fields := strings.SplitN(filter, " ", 3)
	if len(fields) != 3 || !strings.EqualFold(fields[1], "eq") {
		return "", "", errors.NewInvalidFilterError("unsupported filter %q: only \"attr eq value\" is supported", filter)
	}

	attr = fields[0]
	value = unquote(fields[2])

	if attr == "" || value == "" {
		return "", "", errors.NewInvalidFilterError("unsupported filter %q: only \"attr eq value\" is supported", filter)
	}

	return attr, value, nil
}

// unquote strips a matching pair of double quotes from a filter value, the
// form RFC 7644 §3.4.2.2 requires for string comparisons; a bare token
// (e.g. a boolean or numeric literal) passes through unchanged.
func unquote(s string) string {
	if unquoted, err := strconv.Unquote(s); err == nil {
		return unquoted
	}

	return s
}
