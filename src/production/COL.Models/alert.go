package colmodels

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Keys of AlertMessage.Unexpected
const (
	AlertFieldType          = "alertType"
	AlertFieldSensorID      = "sensorId"
	AlertFieldRecordedValue = "recordedValue"
	AlertFieldThreshold     = "threshold"
	AlertFieldTimestamp     = "timestamp"

	// AlertFieldPayload holds a payload that is valid JSON but not an object
	AlertFieldPayload = "payload"
)

var errNullAlert = errors.New("alert payload is null")

// AlertMessage is a critical sensor alert published by the sensor API.
// It is only logged, never persisted.
type AlertMessage struct {
	AlertType     string   `json:"tipoAlerta"`
	SensorID      SensorID `json:"sensorId"`
	RecordedValue *float64 `json:"valorRegistrado"`
	Threshold     *float64 `json:"limite"`
	Timestamp     string   `json:"timestamp"`

	// Unexpected keeps fields whose JSON type did not match, as compact raw JSON
	Unexpected map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON accepts the producer's keys and their English aliases
// (alertType, recordedValue, threshold). The producer's keys win when both are sent.
// Any valid JSON except null decodes; a field of the wrong type lands in Unexpected.
func (a *AlertMessage) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return errNullAlert
	}

	*a = AlertMessage{}
	if len(data) == 0 || data[0] != '{' {
		a.keepUnexpected(AlertFieldPayload, data)
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if raw, ok := pick(fields, "tipoAlerta", "alertType"); ok {
		if err := json.Unmarshal(raw, &a.AlertType); err != nil {
			a.keepUnexpected(AlertFieldType, raw)
		}
	}
	if raw, ok := pick(fields, "sensorId"); ok {
		if err := a.SensorID.UnmarshalJSON(raw); err != nil {
			a.SensorID = ""
			a.keepUnexpected(AlertFieldSensorID, raw)
		}
	}
	if raw, ok := pick(fields, "valorRegistrado", "recordedValue"); ok {
		a.RecordedValue = a.decodeFloat(AlertFieldRecordedValue, raw)
	}
	if raw, ok := pick(fields, "limite", "threshold"); ok {
		a.Threshold = a.decodeFloat(AlertFieldThreshold, raw)
	}
	if raw, ok := pick(fields, "timestamp"); ok {
		if err := json.Unmarshal(raw, &a.Timestamp); err != nil {
			a.keepUnexpected(AlertFieldTimestamp, raw)
		}
	}
	return nil
}

func (a *AlertMessage) decodeFloat(field string, raw json.RawMessage) *float64 {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		a.keepUnexpected(field, raw)
		return nil
	}
	return &v
}

func (a *AlertMessage) keepUnexpected(field string, raw []byte) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return
	}
	if a.Unexpected == nil {
		a.Unexpected = make(map[string]json.RawMessage)
	}
	a.Unexpected[field] = buf.Bytes()
}

// pick returns the first key holding a non-null value
func pick(fields map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, key := range keys {
		raw, ok := fields[key]
		if ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return raw, true
		}
	}
	return nil, false
}

// SensorID accepts either a JSON string or a JSON number.
type SensorID string

func (s *SensorID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = SensorID(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("sensorId must be a string or a number: %w", err)
	}
	*s = SensorID(num.String())
	return nil
}
