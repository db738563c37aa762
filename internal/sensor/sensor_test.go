package sensor

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/station"
)

// captureLogger records warnings for assertions.
type captureLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *captureLogger) Debug(string, ...any) {}
func (l *captureLogger) Info(string, ...any)  {}
func (l *captureLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *captureLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

func mustDescriptor(t *testing.T, key string) Descriptor {
	t.Helper()
	d, ok := LookupDescriptor(key)
	if !ok {
		t.Fatalf("LookupDescriptor(%q) not found", key)
	}
	return d
}

func TestDescriptors_Table(t *testing.T) {
	ds := Descriptors()
	if len(ds) != 23 {
		t.Fatalf("len(Descriptors()) = %d, want 23", len(ds))
	}
	if ds[0].Key != "tempin" || ds[len(ds)-1].Key != "uv" {
		t.Errorf("table order starts %q ends %q", ds[0].Key, ds[len(ds)-1].Key)
	}

	seen := make(map[string]bool)
	for _, d := range ds {
		if seen[d.Key] {
			t.Errorf("duplicate key %q", d.Key)
		}
		seen[d.Key] = true
		if d.StateClass == StateNone {
			t.Errorf("%s has no state class", d.Key)
		}
	}

	ds[0].Name = "mutated"
	if Descriptors()[0].Name == "mutated" {
		t.Error("Descriptors() exposes the shared table")
	}
}

func TestDescriptor_NativeUnitAndNumeric(t *testing.T) {
	tests := []struct {
		key         string
		wantUnit    string
		wantNumeric bool
	}{
		{"tempout", UnitFahrenheit, true},
		{"humin", UnitPercent, true},
		{"bar", UnitInchesHg, true},
		{"rainr", UnitInchesPerHour, true},
		{"raind", UnitInches, true},
		{"winddir", UnitDegree, true},
		{"gustdir", UnitDegree, true},
		{"solar", UnitWattsPerSquare, true},
		{"uv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			d := mustDescriptor(t, tt.key)
			if got := d.NativeUnit(); got != tt.wantUnit {
				t.Errorf("NativeUnit() = %q, want %q", got, tt.wantUnit)
			}
			if got := d.Numeric(); got != tt.wantNumeric {
				t.Errorf("Numeric() = %v, want %v", got, tt.wantNumeric)
			}
		})
	}

	text := Descriptor{Key: "forecast", Name: "Forecast"}
	if text.Numeric() {
		t.Error("unclassified reading without degree unit should pass through")
	}
}

func TestDescriptor_Value(t *testing.T) {
	tempout := mustDescriptor(t, "tempout")

	tests := []struct {
		name      string
		rtd       map[string]any
		want      any
		wantOK    bool
		wantWarns int
	}{
		{name: "string number", rtd: map[string]any{"tempout": "72.5"}, want: 72.5, wantOK: true},
		{name: "json number", rtd: map[string]any{"tempout": 68.0}, want: 68.0, wantOK: true},
		{name: "padded string", rtd: map[string]any{"tempout": " 70.1 "}, want: 70.1, wantOK: true},
		{name: "placeholder", rtd: map[string]any{"tempout": "---"}, wantOK: false},
		{name: "padded placeholder", rtd: map[string]any{"tempout": " --- "}, wantOK: false},
		{name: "blank", rtd: map[string]any{"tempout": "  "}, wantOK: false},
		{name: "null", rtd: map[string]any{"tempout": nil}, wantOK: false},
		{name: "missing", rtd: map[string]any{}, wantOK: false},
		{name: "garbage", rtd: map[string]any{"tempout": "n/a"}, wantOK: false, wantWarns: 1},
		{name: "boolean", rtd: map[string]any{"tempout": true}, wantOK: false, wantWarns: 1},
		{name: "nan", rtd: map[string]any{"tempout": "NaN"}, wantOK: false, wantWarns: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &captureLogger{}
			got, ok := tempout.Value(tt.rtd, log)
			if ok != tt.wantOK {
				t.Fatalf("Value() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Value() = %v (%T), want %v", got, got, tt.want)
			}
			if log.count() != tt.wantWarns {
				t.Errorf("warnings = %d, want %d", log.count(), tt.wantWarns)
			}
		})
	}
}

func TestDescriptor_ValuePassThrough(t *testing.T) {
	d := Descriptor{Key: "forecast", Name: "Forecast"}
	got, ok := d.Value(map[string]any{"forecast": "Mostly Clear"}, nil)
	if !ok || got != "Mostly Clear" {
		t.Errorf("Value() = %v, %v; want pass-through", got, ok)
	}
}

func TestBaroTrend(t *testing.T) {
	tests := []struct {
		name      string
		rtd       map[string]any
		wantLabel string
		wantIcon  string
		wantOK    bool
	}{
		{"falling rapidly", map[string]any{"bartr": "-60"}, TrendFallingRapidly, IconTrendingDown, true},
		{"falling slowly", map[string]any{"bartr": "-20"}, TrendFallingSlowly, IconTrendingDown, true},
		{"steady", map[string]any{"bartr": "0"}, TrendSteady, IconTrendingNeutral, true},
		{"rising slowly", map[string]any{"bartr": "20"}, TrendRisingSlowly, IconTrendingUp, true},
		{"rising slowly number", map[string]any{"bartr": 20.0}, TrendRisingSlowly, IconTrendingUp, true},
		{"rising rapidly", map[string]any{"bartr": "60"}, TrendRisingRapidly, IconTrendingUp, true},
		{"unrecognised code", map[string]any{"bartr": "17"}, TrendUnrecognised, IconTrendUnknown, true},
		{"nan code", map[string]any{"bartr": "NaN"}, TrendUnrecognised, IconTrendUnknown, true},
		{"infinite code", map[string]any{"bartr": "inf"}, TrendUnrecognised, IconTrendUnknown, true},
		{"non numeric", map[string]any{"bartr": "abc"}, TrendUnknown, IconTrendUnknown, true},
		{"placeholder", map[string]any{"bartr": "---"}, TrendUnknown, IconTrendUnknown, true},
		{"missing", map[string]any{}, "", IconBaroTrend, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, icon, ok := BaroTrend(tt.rtd, nil)
			if ok != tt.wantOK || label != tt.wantLabel || icon != tt.wantIcon {
				t.Errorf("BaroTrend() = (%q, %q, %v), want (%q, %q, %v)",
					label, icon, ok, tt.wantLabel, tt.wantIcon, tt.wantOK)
			}
		})
	}
}

func TestLastUpdate(t *testing.T) {
	loc := time.FixedZone("station", -5*3600)

	ts, ok := LastUpdate(map[string]any{"date": "2026/03/01", "time": "14:05:09"}, loc, nil)
	if !ok {
		t.Fatal("LastUpdate() ok = false for valid input")
	}
	want := time.Date(2026, 3, 1, 14, 5, 9, 0, loc)
	if !ts.Equal(want) {
		t.Errorf("LastUpdate() = %v, want %v", ts, want)
	}
	if ts.Location() != loc {
		t.Errorf("LastUpdate() zone = %v, want station zone", ts.Location())
	}

	failures := []struct {
		name      string
		rtd       map[string]any
		wantWarns int
	}{
		{"missing date", map[string]any{"time": "14:05:09"}, 0},
		{"missing time", map[string]any{"date": "2026/03/01"}, 0},
		{"empty", map[string]any{"date": "", "time": ""}, 0},
		{"wrong date format", map[string]any{"date": "03-01-2026", "time": "14:05:09"}, 1},
		{"impossible date", map[string]any{"date": "2026/02/30", "time": "14:05:09"}, 1},
		{"non string", map[string]any{"date": 20260301.0, "time": "14:05:09"}, 0},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			log := &captureLogger{}
			if _, ok := LastUpdate(tt.rtd, loc, log); ok {
				t.Error("LastUpdate() ok = true, want false")
			}
			if log.count() != tt.wantWarns {
				t.Errorf("warnings = %d, want %d", log.count(), tt.wantWarns)
			}
		})
	}
}

func TestEntities_Set(t *testing.T) {
	entities := Entities("entry1", time.UTC, nil)
	if len(entities) != len(Descriptors())+2 {
		t.Fatalf("len(Entities()) = %d, want %d", len(entities), len(Descriptors())+2)
	}

	ids := make(map[string]bool)
	for _, e := range entities {
		if want := fmt.Sprintf("entry1_%s", e.Key()); e.UniqueID() != want {
			t.Errorf("UniqueID() = %q, want %q", e.UniqueID(), want)
		}
		if ids[e.UniqueID()] {
			t.Errorf("duplicate unique id %q", e.UniqueID())
		}
		ids[e.UniqueID()] = true
	}

	trend := entities[len(entities)-2]
	if trend.Key() != KeyBaroTrend || trend.Name() != "Barometer Trend" || trend.Icon() != IconBaroTrend {
		t.Errorf("trend entity = %s/%s/%s", trend.Key(), trend.Name(), trend.Icon())
	}
	last := entities[len(entities)-1]
	if last.Key() != KeyLastUpdate || last.DeviceClass() != ClassTimestamp || last.Icon() != IconLastUpdate {
		t.Errorf("last update entity = %s/%s/%s", last.Key(), last.DeviceClass(), last.Icon())
	}

	var rain *Entity
	for _, e := range entities {
		if e.Key() == "rainr" {
			rain = e
		}
	}
	if rain == nil || rain.Unit() != UnitInchesPerHour || rain.StateClass() != StateMeasurement {
		t.Errorf("rain rate entity unit/state = %v", rain)
	}
}

func TestProject(t *testing.T) {
	entities := Entities("e", time.UTC, nil)
	p := &station.Payload{
		RTD: map[string]any{
			"tempout": "72.5",
			"uv":      "---",
			"bartr":   "20",
			"date":    "2026/03/01",
			"time":    "14:05:09",
		},
		Info: map[string]any{},
	}

	byKey := make(map[string]Reading)
	for _, r := range Project(entities, p) {
		byKey[r.Key] = r
	}

	temp := byKey["tempout"]
	if !temp.Available || temp.Value != 72.5 || temp.Unit != UnitFahrenheit || temp.DeviceClass != ClassTemperature {
		t.Errorf("tempout reading = %+v", temp)
	}
	if f, ok := temp.Float(); !ok || f != 72.5 {
		t.Errorf("tempout Float() = %v, %v", f, ok)
	}
	if uv := byKey["uv"]; uv.Value != nil || !uv.Available {
		t.Errorf("uv reading = %+v, want available with nil value", uv)
	}
	if hum := byKey["humout"]; hum.Value != nil {
		t.Errorf("missing humout value = %v, want nil", hum.Value)
	}
	if tr := byKey[KeyBaroTrend]; tr.Value != TrendRisingSlowly || tr.Icon != IconTrendingUp {
		t.Errorf("trend reading = %+v", tr)
	}
	lu := byKey[KeyLastUpdate]
	if ts, ok := lu.Value.(time.Time); !ok || !ts.Equal(time.Date(2026, 3, 1, 14, 5, 9, 0, time.UTC)) {
		t.Errorf("last update reading = %+v", lu)
	}
}

func TestProject_Unavailable(t *testing.T) {
	entities := Entities("e", time.UTC, nil)

	for _, p := range []*station.Payload{nil, {Info: map[string]any{}}} {
		for _, r := range Project(entities, p) {
			if r.Available || r.Value != nil {
				t.Errorf("%s = %+v, want unavailable", r.Key, r)
			}
		}
	}
}
