package weather

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Units selects which converter branch unit-dependent variables use.
type Units string

const (
	UnitsImperial Units = "imperial"
	UnitsMetric   Units = "metric"
)

// TimezoneMode selects the UTC offset applied to timestamps before formatting.
type TimezoneMode string

const (
	TimezoneLocation TimezoneMode = "location"
	TimezoneHost     TimezoneMode = "host"
	TimezoneUTC      TimezoneMode = "utc"
)

// Code is the provider's "cod" field. OpenWeatherMap sends it as a number on
// success and as a string on most error bodies.
type Code int

func (c *Code) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*c = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid cod %q: %w", s, err)
		}
		*c = Code(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = Code(n)
	return nil
}

// ConditionEntry is one element of the document's "weather" array.
type ConditionEntry struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// RawWeatherDocument is one decoded current-weather payload. It is never
// mutated after DecodeDocument returns.
type RawWeatherDocument struct {
	Cod      Code             `json:"cod"`
	Message  string           `json:"message"`
	Name     string           `json:"name"`
	Dt       int64            `json:"dt"`
	Timezone int64            `json:"timezone"`
	Weather  []ConditionEntry `json:"weather"`
	Sys      struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`

	// tree keeps the generic JSON so specs can resolve section+field.
	tree map[string]any
}

// DecodeDocument parses a provider body into a RawWeatherDocument.
func DecodeDocument(body []byte) (*RawWeatherDocument, error) {
	var doc RawWeatherDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode weather document: %w", err)
	}
	if err := json.Unmarshal(body, &doc.tree); err != nil {
		return nil, fmt.Errorf("decode weather document: %w", err)
	}
	return &doc, nil
}

// Condition returns the first condition entry, if any.
func (d *RawWeatherDocument) Condition() (ConditionEntry, bool) {
	if d == nil || len(d.Weather) == 0 {
		return ConditionEntry{}, false
	}
	return d.Weather[0], true
}

// IconCode returns the icon code of the first condition entry.
func (d *RawWeatherDocument) IconCode() string {
	c, _ := d.Condition()
	return c.Icon
}

// Lookup resolves a value by section and field. The empty section addresses
// the top level and "weather" addresses the first condition entry.
func (d *RawWeatherDocument) Lookup(section, field string) (any, bool) {
	if d == nil || d.tree == nil {
		return nil, false
	}
	if section == "" {
		v, ok := d.tree[field]
		return v, ok && v != nil
	}

	raw, ok := d.tree[section]
	if !ok {
		return nil, false
	}
	if list, isList := raw.([]any); isList {
		if len(list) == 0 {
			return nil, false
		}
		raw = list[0]
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := obj[field]
	return v, ok && v != nil
}

// Number resolves a numeric field.
func (d *RawWeatherDocument) Number(section, field string) (float64, bool) {
	v, ok := d.Lookup(section, field)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Text resolves a field as display text.
func (d *RawWeatherDocument) Text(section, field string) (string, bool) {
	v, ok := d.Lookup(section, field)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return formatNumber(t), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
