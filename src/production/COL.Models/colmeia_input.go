package colmodels

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"
	"time"
)

// Optional tracks whether a JSON key was present and whether it held null.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns an Optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// UnmarshalJSON is only invoked for keys present in the document.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// Ptr returns nil when the value is absent or null.
func (o Optional[T]) Ptr() *T {
	if !o.Set || o.Null {
		return nil
	}
	v := o.Value
	return &v
}

// ColmeiaInput is the body accepted by create and update.
type ColmeiaInput struct {
	Identifier          Optional[string]  `json:"identifier"`
	Location            Optional[string]  `json:"location"`
	InstalledAt         Optional[Date]    `json:"installedAt"`
	InternalTemperature Optional[float64] `json:"internalTemperature"`
	InternalHumidity    Optional[float64] `json:"internalHumidity"`
	Weight              Optional[float64] `json:"weight"`
}

// dateLayouts are tried in order for string dates; strings without a zone are UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Date accepts an RFC 3339 timestamp, a date or date-time without zone, or
// epoch milliseconds as a JSON number.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				d.Time = t
				return nil
			}
		}
		return dateTypeError("string")
	}

	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return dateTypeError(jsonKind(data))
	}
	d.Time = time.UnixMilli(ms).UTC()
	return nil
}

func jsonKind(data []byte) string {
	switch {
	case len(data) == 0:
		return "value"
	case data[0] == '{':
		return "object"
	case data[0] == '[':
		return "array"
	case data[0] == 't' || data[0] == 'f':
		return "bool"
	}
	return "number"
}

// dateTypeError leaves Field empty so the decoder fills in the JSON path
func dateTypeError(value string) error {
	return &json.UnmarshalTypeError{Value: value, Type: reflect.TypeOf(time.Time{})}
}
