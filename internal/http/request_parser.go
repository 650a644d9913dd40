// Package http provides the JSON API server and its handlers.
//
// This file implements request body and query parsing. Bodies may be JSON or
// form-encoded; both are read through the same accessors so handlers do not care
// which one the client sent.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"budgetbook/internal/core"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

var (
	ErrBodyTooLarge = errors.New("request body too large")
	ErrNotInteger   = errors.New("must be an integer")
	ErrNotBoolean   = errors.New("must be true or false")
	ErrNotDate      = errors.New("must be a date in YYYY-MM-DD format")
	ErrNotIDList    = errors.New("must be a list of ids")
)

// RequestBodyParser reads a request body once and exposes its fields by name.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = ErrBodyTooLarge
	}
	return p
}

// Parse decodes the body as JSON when it looks like an object, otherwise as form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = fmt.Errorf("invalid JSON body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

// Has reports whether key is present with a non-null value.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		v, ok := p.jsonData[key]
		return ok && v != nil
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Int64 returns an integer field. Missing fields yield 0.
func (p *RequestBodyParser) Int64(key string) (int64, error) {
	s := p.Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &core.ValidationError{Field: key, Err: ErrNotInteger}
	}
	return n, nil
}

// Int returns an integer field, or def when it is missing.
func (p *RequestBodyParser) Int(key string, def int) (int, error) {
	if !p.Has(key) || p.Get(key) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(p.Get(key))
	if err != nil {
		return 0, &core.ValidationError{Field: key, Err: ErrNotInteger}
	}
	return n, nil
}

// Bool returns a boolean field, or def when it is missing.
func (p *RequestBodyParser) Bool(key string, def bool) (bool, error) {
	if !p.Has(key) || p.Get(key) == "" {
		return def, nil
	}
	b, err := parseBool(p.Get(key))
	if err != nil {
		return false, &core.ValidationError{Field: key, Err: ErrNotBoolean}
	}
	return b, nil
}

// Amount parses a decimal amount given as a JSON number or a string with a dot or
// comma separator.
func (p *RequestBodyParser) Amount(key string) (core.Money, error) {
	m, err := core.ParseAmount(p.Get(key))
	if err != nil {
		return core.Money{}, &core.ValidationError{Field: key, Err: err}
	}
	return m, nil
}

// Date parses a YYYY-MM-DD field. Missing or empty fields yield the zero Date.
func (p *RequestBodyParser) Date(key string) (core.Date, error) {
	d, err := core.ParseDate(p.Get(key))
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: key, Err: ErrNotDate}
	}
	return d, nil
}

// IDs returns a list of ids from a JSON array, repeated form values or a comma
// separated string.
func (p *RequestBodyParser) IDs(key string) ([]int64, error) {
	var raw []string
	switch {
	case p.jsonData != nil:
		switch v := p.jsonData[key].(type) {
		case nil:
		case []any:
			for _, item := range v {
				raw = append(raw, stringValue(item))
			}
		default:
			raw = strings.Split(stringValue(v), ",")
		}
	case p.formData != nil:
		for _, v := range p.formData[key] {
			raw = append(raw, strings.Split(v, ",")...)
		}
	}

	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			return nil, &core.ValidationError{Field: key, Err: ErrNotIDList}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetRaw returns the raw body bytes.
func (p *RequestBodyParser) GetRaw() []byte {
	return p.body
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, ErrNotBoolean
}

// parseExpenseInput reads the create/update payload of an expense. Every field is
// read before any error is returned so the reported field is the first failing one
// in validation order, whether it failed to parse or to validate.
func parseExpenseInput(p *RequestBodyParser, userID string) (core.ExpenseInput, error) {
	in := core.ExpenseInput{
		Description: p.Get("description"),
		Origin:      core.Origin(p.Get("origin")),
		UserID:      userID,
	}

	// Failed reads leave the zero value, which Validate rejects for the same field.
	parseErrs := make(map[string]error)
	var err error
	if in.Amount, err = p.Amount("amount"); err != nil {
		parseErrs["amount"] = err
	}
	if in.InstallmentCount, err = p.Int("installment_count", 1); err != nil {
		parseErrs["installment_count"] = err
	}
	if in.CategoryID, err = p.Int64("category_id"); err != nil {
		parseErrs["category_id"] = err
	}
	if in.ResponsibleID, err = p.Int64("responsible_id"); err != nil {
		parseErrs["responsible_id"] = err
	}
	if in.PaymentMethodID, err = p.Int64("payment_method_id"); err != nil {
		parseErrs["payment_method_id"] = err
	}
	if in.PurchaseDate, err = p.Date("purchase_date"); err != nil {
		parseErrs["purchase_date"] = err
	}
	if in.Paid, err = p.Bool("paid", false); err != nil {
		parseErrs["paid"] = err
	}

	if err := in.Validate(); err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			if perr, ok := parseErrs[ve.Field]; ok {
				return in, perr
			}
		}
		return in, err
	}
	if perr, ok := parseErrs["paid"]; ok {
		return in, perr
	}
	return in, nil
}

// parsePaymentMethod reads a payment method payload. Active defaults to true.
func parsePaymentMethod(p *RequestBodyParser) (core.PaymentMethod, error) {
	pm := core.PaymentMethod{
		Description: p.Get("description"),
		Kind:        core.PaymentKind(p.Get("kind")),
	}

	var err error
	if pm.Active, err = p.Bool("active", true); err != nil {
		return pm, err
	}
	if pm.ClosingDay, err = p.Int("closing_day", 0); err != nil {
		return pm, err
	}
	if pm.DueDay, err = p.Int("due_day", 0); err != nil {
		return pm, err
	}
	return pm, nil
}

// queryInt64 returns a pointer to an optional integer query parameter.
func queryInt64(q url.Values, key string) (*int64, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, &core.ValidationError{Field: key, Err: ErrNotInteger}
	}
	return &n, nil
}

// queryBool returns a pointer to an optional boolean query parameter.
func queryBool(q url.Values, key string) (*bool, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return nil, nil
	}
	b, err := parseBool(s)
	if err != nil {
		return nil, &core.ValidationError{Field: key, Err: ErrNotBoolean}
	}
	return &b, nil
}

func queryDate(q url.Values, key string) (core.Date, error) {
	d, err := core.ParseDate(q.Get(key))
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: key, Err: ErrNotDate}
	}
	return d, nil
}

// ParseLedgerFilter reads the ledger predicates from a query string. Every
// parameter is optional.
func ParseLedgerFilter(q url.Values) (core.LedgerFilter, error) {
	var (
		f   core.LedgerFilter
		err error
	)
	if f.PaymentMethodID, err = queryInt64(q, "payment_method_id"); err != nil {
		return f, err
	}
	if f.ResponsibleID, err = queryInt64(q, "responsible_id"); err != nil {
		return f, err
	}
	if f.Paid, err = queryBool(q, "paid"); err != nil {
		return f, err
	}
	dates := []struct {
		key string
		dst *core.Date
	}{
		{"purchase_from", &f.PurchaseDateFrom},
		{"purchase_to", &f.PurchaseDateTo},
		{"due_from", &f.DueDateFrom},
		{"due_to", &f.DueDateTo},
	}
	for _, d := range dates {
		if *d.dst, err = queryDate(q, d.key); err != nil {
			return f, err
		}
	}
	return f, nil
}

// ParseSummaryFilter reads the summary filter from a query string. Enumerations
// are checked by the report service.
func ParseSummaryFilter(q url.Values) (core.SummaryFilter, error) {
	f := core.SummaryFilter{
		Paid:      core.PaidFilter(strings.TrimSpace(q.Get("paid"))),
		DateField: core.DateField(strings.TrimSpace(q.Get("date_field"))),
		GroupBy:   core.GroupBy(strings.TrimSpace(q.Get("group_by"))),
	}
	var err error
	if f.From, err = queryDate(q, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(q, "to"); err != nil {
		return f, err
	}
	return f, nil
}
