package station

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Manufacturer is reported in device metadata for every station.
const Manufacturer = "Davis Instruments"

// Payload is one validated live-data document.
//
// RTD holds the real-time readings keyed by field name and Info holds
// station metadata. Values are whatever JSON produced (string, float64,
// bool, nil); interpretation is left to readers.
type Payload struct {
	RTD  map[string]any
	Info map[string]any
}

// modelNames maps the station model code reported in info.stnmod.
var modelNames = map[int]string{
	0:  "Wizard III",
	1:  "Wizard II",
	2:  "Monitor",
	3:  "Perception",
	4:  "GroWeather",
	5:  "Energy Enviromonitor",
	6:  "Health Enviromonitor",
	16: "Vantage Pro/Pro2",
	17: "Vantage Vue",
}

// infoString returns the info value for key rendered as text, or "" if absent.
func (p *Payload) infoString(key string) string {
	if p == nil || p.Info == nil {
		return ""
	}
	v, ok := p.Info[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(formatValue(v))
}

// FirmwareVersion returns info.ver.
func (p *Payload) FirmwareVersion() string { return p.infoString("ver") }

// StationName returns info.stnname.
func (p *Payload) StationName() string { return p.infoString("stnname") }

// LoggerID returns info.wid, the data logger identifier.
func (p *Payload) LoggerID() string { return p.infoString("wid") }

// ModelCode returns the raw info.stnmod value as text.
func (p *Payload) ModelCode() string { return p.infoString("stnmod") }

// ModelName resolves info.stnmod to a human-readable model.
func (p *Payload) ModelName() string {
	raw := p.ModelCode()
	if raw == "" {
		return "Unknown Model"
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Sprintf("Invalid Model Code (%s)", raw)
	}
	if name, ok := modelNames[code]; ok {
		return name
	}
	return fmt.Sprintf("Unknown Model Code (%d)", code)
}

// DisplayUnits are the unit labels configured on the station console.
// They are informational; readings are always interpreted in base units.
type DisplayUnits struct {
	Temperature   string `json:"temperature,omitempty"`
	Wind          string `json:"wind,omitempty"`
	Barometer     string `json:"barometer,omitempty"`
	Precipitation string `json:"precipitation,omitempty"`
}

// DisplayUnits returns info.unitT, unitW, unitB and unitR.
func (p *Payload) DisplayUnits() DisplayUnits {
	return DisplayUnits{
		Temperature:   p.infoString("unitT"),
		Wind:          p.infoString("unitW"),
		Barometer:     p.infoString("unitB"),
		Precipitation: p.infoString("unitR"),
	}
}

// Identity is the stable identity and default title derived from a probe.
type Identity struct {
	UniqueID string
	Title    string
}

// Identify derives the configuration identity of a station.
//
// The unique id is the logger id when reported, otherwise
// "vantage_weather_<host>". The title is the station name, otherwise host.
func Identify(p *Payload, host string) Identity {
	id := Identity{
		UniqueID: p.LoggerID(),
		Title:    p.StationName(),
	}
	if id.UniqueID == "" {
		id.UniqueID = "vantage_weather_" + host
	}
	if id.Title == "" {
		id.Title = host
	}
	return id
}

// DeviceInfo is the device metadata attached to every entity of a station.
type DeviceInfo struct {
	Identifier       string `json:"identifier"`
	Name             string `json:"name"`
	Manufacturer     string `json:"manufacturer"`
	Model            string `json:"model"`
	SWVersion        string `json:"sw_version,omitempty"`
	ConfigurationURL string `json:"configuration_url"`
}

// Device builds device metadata for the station behind entryID.
// A nil payload yields placeholder model information.
func Device(p *Payload, entryID, name, host string) DeviceInfo {
	return DeviceInfo{
		Identifier:       entryID,
		Name:             name,
		Manufacturer:     Manufacturer,
		Model:            p.ModelName(),
		SWVersion:        p.FirmwareVersion(),
		ConfigurationURL: "http://" + host,
	}
}

// formatValue renders a decoded JSON scalar as text. Integral floats print
// without a fractional part so "16" and 16 read the same.
func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatFloat(t, 'f', 0, 64)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
