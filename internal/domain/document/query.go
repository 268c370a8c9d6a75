package document

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fieldPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var operators = map[string]bool{
	"=": true, "!=": true, ">": true, ">=": true, "<": true, "<=": true, "like": true, "in": true,
}

// Filter условие выборки [field, op, value]
type Filter struct {
	Field string
	Op    string
	Value any
}

func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: "=", Value: value}
}

func Gte(field string, value any) Filter {
	return Filter{Field: field, Op: ">=", Value: value}
}

func (f Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{f.Field, f.Op, f.Value})
}

func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("filter must have 3 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &f.Field); err != nil {
		return fmt.Errorf("filter field: %w", err)
	}
	if err := json.Unmarshal(raw[1], &f.Op); err != nil {
		return fmt.Errorf("filter operator: %w", err)
	}
	return json.Unmarshal(raw[2], &f.Value)
}

func (f Filter) Validate() error {
	if !fieldPattern.MatchString(f.Field) {
		return fmt.Errorf("%w: field %q", ErrInvalidFilter, f.Field)
	}
	if !operators[strings.ToLower(f.Op)] {
		return fmt.Errorf("%w: operator %q", ErrInvalidFilter, f.Op)
	}
	return nil
}

// ListQuery параметры выборки списка
type ListQuery struct {
	Filters []Filter
	Fields  []string
	OrderBy string
	Start   int
	Limit   int
}

// OrderClause разбирает "field asc|desc"
func (q ListQuery) OrderClause() (string, bool, error) {
	if strings.TrimSpace(q.OrderBy) == "" {
		return "modified", true, nil
	}
	parts := strings.Fields(q.OrderBy)
	field := parts[0]
	if !fieldPattern.MatchString(field) {
		return "", false, fmt.Errorf("%w: order_by %q", ErrInvalidFilter, q.OrderBy)
	}
	desc := false
	if len(parts) > 1 {
		switch strings.ToLower(parts[1]) {
		case "desc":
			desc = true
		case "asc":
		default:
			return "", false, fmt.Errorf("%w: order_by %q", ErrInvalidFilter, q.OrderBy)
		}
	}
	return field, desc, nil
}

func (q ListQuery) validateFields() error {
	for _, f := range q.Fields {
		if f == "*" {
			continue
		}
		if !fieldPattern.MatchString(f) {
			return fmt.Errorf("%w: field %q", ErrInvalidFilter, f)
		}
	}
	return nil
}

// project оставляет в документе только запрошенные поля; "*" или пустой список возвращают документ целиком
func project(data json.RawMessage, fields []string) (json.RawMessage, error) {
	if len(fields) == 0 {
		return data, nil
	}
	for _, f := range fields {
		if f == "*" {
			return data, nil
		}
	}

	var full map[string]json.RawMessage
	if err := json.Unmarshal(data, &full); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	out := make(map[string]json.RawMessage, len(fields)+1)
	// name нужен клиенту для upsert
	if v, ok := full["name"]; ok {
		out["name"] = v
	}
	for _, f := range fields {
		if v, ok := full[f]; ok {
			out[f] = v
		}
	}
	return json.Marshal(out)
}
