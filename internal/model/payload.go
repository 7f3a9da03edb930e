package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// FieldError describes one rejected input field. Loc is the path to the
// field, e.g. ["body", "userId"].
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationError collects every field-level problem found in a payload.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(f.Loc, "."), f.Msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a problem with the named body field.
func (e *ValidationError) Add(field, typ, msg string) {
	loc := []string{"body"}
	if field != "" {
		loc = append(loc, field)
	}
	e.Fields = append(e.Fields, FieldError{Loc: loc, Msg: msg, Type: typ})
}

func (e *ValidationError) errOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Wire field names.
const (
	fieldUserID      = "userId"
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldStatus      = "status"
	fieldDueDate     = "dueDate"
)

// UnmarshalJSON decodes a create payload. userId, title and description must
// be present and non-null; description may be empty.
func (c *CreateTask) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}

	verr := &ValidationError{}
	var out CreateTask

	if raw, ok := present(fields, fieldUserID); !ok {
		verr.Add(fieldUserID, "missing", "Field required")
	} else if err := json.Unmarshal(raw, &out.UserID); err != nil {
		verr.Add(fieldUserID, "int_type", "Input should be a valid integer")
	}

	out.Title = requiredString(fields, fieldTitle, verr)
	out.Description = requiredString(fields, fieldDescription, verr)

	if raw, ok := present(fields, fieldStatus); ok {
		if s, ok := decodeStatus(raw, verr); ok {
			out.Status = s
		}
	}
	if raw, ok := present(fields, fieldDueDate); ok {
		if due, ok := decodeTimestamp(raw, fieldDueDate, verr); ok {
			out.DueDate = &due
		}
	}

	if err := verr.errOrNil(); err != nil {
		return err
	}
	*c = out
	return nil
}

// UnmarshalJSON decodes a partial update. A key that is absent or null leaves
// the field unset. Unknown keys are ignored. UpdatedAt is stamped with the
// decode time.
func (u *UpdateTask) UnmarshalJSON(data []byte) error {
	fields, err := decodeObject(data)
	if err != nil {
		return err
	}

	verr := &ValidationError{}
	out := NewUpdateTask()

	if raw, ok := present(fields, fieldTitle); ok {
		if s, ok := decodeString(raw, fieldTitle, verr); ok {
			out.Title = Some(s)
		}
	}
	if raw, ok := present(fields, fieldDescription); ok {
		if s, ok := decodeString(raw, fieldDescription, verr); ok {
			out.Description = Some(s)
		}
	}
	if raw, ok := present(fields, fieldStatus); ok {
		if s, ok := decodeStatus(raw, verr); ok {
			out.Status = Some(s)
		}
	}
	if raw, ok := present(fields, fieldDueDate); ok {
		if due, ok := decodeTimestamp(raw, fieldDueDate, verr); ok {
			out.DueDate = Some(due)
		}
	}

	if err := verr.errOrNil(); err != nil {
		return err
	}
	*u = out
	return nil
}

// ParseTime parses a timestamp in RFC 3339 form, or an ISO 8601 date-time
// without a zone (taken as UTC), or a bare date.
func ParseTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		time.DateOnly,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return normalizeTime(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: unsupported format", s)
}

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		verr := &ValidationError{}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			verr.Add("", "json_invalid", "JSON decode error")
		} else {
			verr.Add("", "model_attributes_type", "Input should be a valid dictionary or object")
		}
		return nil, verr
	}
	if fields == nil {
		verr := &ValidationError{}
		verr.Add("", "model_attributes_type", "Input should be a valid dictionary or object")
		return nil, verr
	}
	return fields, nil
}

// present returns the raw value for key when the key exists and is not null.
func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

func requiredString(fields map[string]json.RawMessage, key string, verr *ValidationError) string {
	raw, ok := present(fields, key)
	if !ok {
		verr.Add(key, "missing", "Field required")
		return ""
	}
	s, _ := decodeString(raw, key, verr)
	return s
}

func decodeString(raw json.RawMessage, key string, verr *ValidationError) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		verr.Add(key, "string_type", "Input should be a valid string")
		return "", false
	}
	return s, true
}

func decodeStatus(raw json.RawMessage, verr *ValidationError) (TaskStatus, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || !TaskStatus(s).Valid() {
		verr.Add(fieldStatus, "enum", "Input should be 'todo', 'in_progress' or 'done'")
		return "", false
	}
	return TaskStatus(s), true
}

// msThreshold is the magnitude above which a numeric timestamp is read as
// Unix milliseconds instead of seconds.
const msThreshold = 2e10

// decodeTimestamp accepts a JSON string in any ParseTime format or a JSON
// number of Unix epoch seconds, or milliseconds when its magnitude exceeds
// msThreshold. Instants outside years 0 to 9999 are rejected.
func decodeTimestamp(raw json.RawMessage, key string, verr *ValidationError) (time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if t, err := ParseTime(s); err == nil && InYearRange(t) {
				return t, true
			}
		}
		verr.Add(key, "datetime_parsing", "Input should be a valid datetime")
		return time.Time{}, false
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		verr.Add(key, "datetime_type", "Input should be a valid datetime")
		return time.Time{}, false
	}
	millis := math.Abs(n) > msThreshold

	secs := n
	if millis {
		secs = n / 1000
	}
	if secs < float64(minTime.Unix()) || secs > float64(maxTime.Unix()) {
		verr.Add(key, "datetime_parsing", "Input should be a valid datetime, year must be between 0 and 9999")
		return time.Time{}, false
	}

	whole, frac := math.Modf(n)
	if millis {
		return normalizeTime(time.UnixMilli(int64(whole)).Add(time.Duration(frac * 1e6))), true
	}
	return normalizeTime(time.Unix(int64(whole), int64(frac*1e9))), true
}
