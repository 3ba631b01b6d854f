// Package mqtt subscribes to illuminance published by a remote sensor
// (Zigbee2MQTT, Tasmota, ESPHome, ...) and exposes it as a light capability.
package mqtt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultField is the JSON key Zigbee2MQTT uses for illuminance.
const DefaultField = "illuminance"

// ErrNoIlluminance indicates the payload did not carry the configured field.
var ErrNoIlluminance = errors.New("payload has no illuminance")

// ErrNotFinite indicates the payload carried NaN or an infinity.
var ErrNotFinite = errors.New("illuminance is not finite")

// ParsePayload extracts lux from a message. A payload is either a bare
// number ("42.5") or a JSON object; field is a dotted path into the object,
// e.g. "BH1750.Illuminance" for Tasmota.
func ParsePayload(payload []byte, field string) (float64, error) {
	v, err := parsePayload(payload, field)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %v", ErrNotFinite, v)
	}
	return v, nil
}

func parsePayload(payload []byte, field string) (float64, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return 0, fmt.Errorf("empty payload")
	}

	if v, err := strconv.ParseFloat(string(trimmed), 64); err == nil {
		return v, nil
	}

	if field == "" {
		field = DefaultField
	}

	var doc map[string]any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return 0, fmt.Errorf("decode payload: %w", err)
	}

	var cur any = doc
	for _, key := range strings.Split(field, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrNoIlluminance, field)
		}
		if cur, ok = obj[key]; !ok {
			return 0, fmt.Errorf("%w: %q", ErrNoIlluminance, field)
		}
	}

	switch v := cur.(type) {
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", field, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("field %q: not a number (%T)", field, cur)
	}
}
