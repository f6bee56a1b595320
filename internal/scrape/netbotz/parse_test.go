package netbotz

import (
	"strings"
	"testing"
	"time"
)

const menuPage = `<html><body>
<a href="status.html?encid=nbHawkEnc_0" target="sensor">Sensor Pod</a>
<a href="status.html?encid=nbSensorSet_Alerting" target="sensor">Alerting</a>
<a href="status.html?encid=nbExtSensor_1" target="sensor">External Pod</a>
<a href="config.html" target="main">Configuration</a>
</body></html>`

const statusPage = `<html><body>
<table class="sensortable" border="1">
<tr><th>Sensor</th><th>Reading</th><th>Condition</th></tr>
<tr><td>Temperature:</td><td>72.5&deg;F (22.5&deg;C)</td><td>OK</td></tr>
<tr><td>Humidity:</td><td>45%</td><td>OK</td></tr>
<tr><td>Dew Point:</td><td>50.1&deg;F</td><td>OK</td></tr>
<tr><td>Door Switch (1):</td><td>Closed</td><td>OK</td></tr>
<tr><td>Motion:</td><td>No Motion</td><td>OK</td></tr>
<tr><td>Air Flow:</td><td>N/A</td><td>Disconnected</td></tr>
</table>
</body></html>`

func TestParseModuleList(t *testing.T) {
	modules, err := ParseModuleList(strings.NewReader(menuPage))
	if err != nil {
		t.Fatalf("ParseModuleList failed: %v", err)
	}

	want := []string{"nbHawkEnc_0", "nbExtSensor_1"}
	if len(modules) != len(want) {
		t.Fatalf("got modules %v, want %v", modules, want)
	}
	for i := range want {
		if modules[i] != want[i] {
			t.Errorf("modules[%d] = %q, want %q", i, modules[i], want[i])
		}
	}
}

func TestParseSensorTable(t *testing.T) {
	ts := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	readings, err := ParseSensorTable(strings.NewReader(statusPage), ts)
	if err != nil {
		t.Fatalf("ParseSensorTable failed: %v", err)
	}

	want := map[string]struct {
		value float64
		units string
	}{
		"Temperature":   {72.5, "F"},
		"Humidity":      {45, "%"},
		"Dew_Point":     {50.1, "F"},
		"Door_Switch_1": {0, ""}, // Closed remapped; parens stripped from key
		"Motion":        {0, ""}, // No Motion remapped
	}

	if len(readings) != len(want) {
		t.Fatalf("got %d readings, want %d: %+v", len(readings), len(want), readings)
	}
	for _, r := range readings {
		exp, ok := want[r.Sensor]
		if !ok {
			t.Errorf("unexpected sensor %q", r.Sensor)
			continue
		}
		if r.Value != exp.value {
			t.Errorf("%s value = %v, want %v", r.Sensor, r.Value, exp.value)
		}
		if r.Units != exp.units {
			t.Errorf("%s units = %q, want %q", r.Sensor, r.Units, exp.units)
		}
		if !r.Time.Equal(ts) {
			t.Errorf("%s time = %v, want %v", r.Sensor, r.Time, ts)
		}
	}
}

func TestParseSensorTable_NoTable(t *testing.T) {
	_, err := ParseSensorTable(strings.NewReader("<html><body><p>login required</p></body></html>"), time.Now())
	if err == nil {
		t.Fatal("expected an error for a page with no sensortable")
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		key  string
		raw  string
		want float64
		keep bool
	}{
		{"Temperature", "72.5°F (22.5°C)", 72.5, true},
		{"Humidity", "45%", 45, true},
		{"Audio", "12", 12, true},
		{"Air Flow", "N/A", 0, false},
		{"Door Switch", "Closed", 0, true},
		{"Door Switch", "Open", 1, true},
		{"Motion", "No Motion", 0, true},
		{"Motion", "Motion Detected", 1, true},
		{"Voltage", "12.3", 12.3, true},
		{"Camera", "Streaming", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseValue(tt.key, tt.raw)
		if ok != tt.keep {
			t.Errorf("parseValue(%q, %q) kept=%v, want %v", tt.key, tt.raw, ok, tt.keep)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("parseValue(%q, %q) = %v, want %v", tt.key, tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Dew Point", "Dew_Point"},
		{"Door Switch (1)", "Door_Switch_1"},
		{"Temperature", "Temperature"},
	}
	for _, tt := range tests {
		if got := normalizeKey(tt.in); got != tt.want {
			t.Errorf("normalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
