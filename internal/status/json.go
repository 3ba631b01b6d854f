package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Ambient AmbientJSON `json:"ambient"`
}

// AmbientJSON contains the status details.
type AmbientJSON struct {
	Lux           *float64    `json:"lux"`
	Reading       string      `json:"reading"`
	Theme         string      `json:"theme"`
	Palette       PaletteJSON `json:"palette"`
	SensorStatus  string      `json:"sensor_status"`
	IsSupported   *bool       `json:"is_supported"`
	Error         *string     `json:"error"`
	Counts        CountsJSON  `json:"event_counts"`
	LastReading   string      `json:"last_reading,omitempty"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	StartTime     string      `json:"start_time"`
	Timestamp     string      `json:"timestamp"`
	Config        ConfigJSON  `json:"config"`
}

// PaletteJSON is the JSON representation of the active palette.
type PaletteJSON struct {
	Background string `json:"bg"`
	Foreground string `json:"color"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Readings int `json:"readings"`
	Errors   int `json:"errors"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Sensor         string `json:"sensor"`
	Source         string `json:"source,omitempty"`
	HTTPAddr       string `json:"http_addr"`
	RefreshSeconds int    `json:"refresh_seconds"`
}

// ClientStateJSON mirrors the {error, isSupported} object shown on the page.
type ClientStateJSON struct {
	Error       *string `json:"error"`
	IsSupported *bool   `json:"isSupported"`
}

func buildAmbient(snap Snapshot) AmbientJSON {
	a := AmbientJSON{
		Reading:       snap.State.Reading.String(),
		Theme:         string(snap.Theme),
		Palette:       PaletteJSON{Background: snap.Palette().Background, Foreground: snap.Palette().Foreground},
		SensorStatus:  string(snap.State.Status),
		IsSupported:   snap.State.Status.IsSupported(),
		Error:         errPtr(snap),
		Counts:        CountsJSON{Readings: snap.Counts.Readings, Errors: snap.Counts.Errors},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Config: ConfigJSON{
			Sensor:         snap.Config.Sensor,
			Source:         snap.Config.Source,
			HTTPAddr:       snap.Config.HTTPAddr,
			RefreshSeconds: snap.Config.RefreshSeconds,
		},
	}
	// JSON has no NaN or infinity; such a reading is reported as null.
	if lux := snap.State.Reading.Lux; snap.State.Reading.Known && !math.IsNaN(lux) && !math.IsInf(lux, 0) {
		a.Lux = &lux
	}
	if !snap.LastReading.IsZero() {
		a.LastReading = snap.LastReading.UTC().Format(time.RFC3339)
	}
	return a
}

func errPtr(snap Snapshot) *string {
	if snap.State.Err == nil {
		return nil
	}
	s := snap.State.ErrString()
	return &s
}

// FormatJSON returns the JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Ambient: buildAmbient(snap)}, "", "  ")
	return data
}

// FormatClientState returns the compact {error, isSupported} object.
func FormatClientState(snap Snapshot) []byte {
	data, _ := json.Marshal(ClientStateJSON{
		Error:       errPtr(snap),
		IsSupported: snap.State.Status.IsSupported(),
	})
	return data
}
