package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"budgetbook/internal/core"
)

// HeaderUserID optionally names the user recorded on created expenses.
const HeaderUserID = "X-User-ID"

var errInvalidID = &core.ValidationError{Field: "id", Err: ErrNotInteger}

// pathID parses the {id} wildcard of the matched route.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// userIDFrom returns the caller identity header, sanitized and bounded.
func userIDFrom(r *http.Request) string {
	id := sanitizeInput(r.Header.Get(HeaderUserID))
	if len(id) > 64 {
		id = id[:64]
	}
	return id
}

// sanitizeInput removes control characters (except tab and newlines) and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// reportCacheKey builds a stable key from the report name and the listed query
// parameters. Unknown parameters do not split the cache.
func reportCacheKey(report string, q url.Values, params ...string) string {
	var b strings.Builder
	b.WriteString(report)
	for _, k := range params {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.TrimSpace(q.Get(k)))
	}
	return b.String()
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
