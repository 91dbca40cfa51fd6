package wiring

import (
	"strings"
	"testing"
)

func TestRender_I2CPair(t *testing.T) {
	r := newTestResolver(t)
	_, w, err := r.Wire([]string{"bme280", "ssd1306_oled"})
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}

	want := strings.Join([]string{
		"3.3V   --------> VCC@BME280",
		"GND    --------> GND@BME280",
		"GPIO21 --------> SDA@BME280",
		"GPIO22 --------> SCL@BME280",
		"",
		"3.3V   --------> VCC@SSD1306 OLED",
		"GND    --------> GND@SSD1306 OLED",
		"GPIO21 --------> SDA@SSD1306 OLED",
		"GPIO22 --------> SCL@SSD1306 OLED",
	}, "\n")
	if w.Diagram != want {
		t.Errorf("diagram =\n%s\nwant\n%s", w.Diagram, want)
	}
	if w.Warnings == nil || len(w.Warnings) != 0 {
		t.Errorf("warnings = %#v, want empty non-nil", w.Warnings)
	}
	if len(w.Components) != 2 || w.Components[1].Name != "SSD1306 OLED" {
		t.Errorf("components = %+v", w.Components)
	}
	if w.PinAssignments["bme280"]["SDA"] != "GPIO21" {
		t.Errorf("pin_assignments = %v", w.PinAssignments)
	}
}

func TestRender_ArrowsAlign(t *testing.T) {
	r := newTestResolver(t)
	_, w, err := r.Wire([]string{"led", "rc522_rfid", "soil_moisture", "relay"})
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}

	col := -1
	for _, line := range strings.Split(w.Diagram, "\n") {
		if line == "" {
			continue
		}
		i := strings.Index(line, Arrow)
		if i < 0 {
			t.Fatalf("line without arrow: %q", line)
		}
		if col == -1 {
			col = i
		}
		if i != col {
			t.Errorf("arrow at column %d, want %d: %q", i, col, line)
		}
	}
}

func TestRender_WarningsMatchConflicts(t *testing.T) {
	r := newTestResolver(t)
	ids := append([]string{"ghost"}, repeat("soil_moisture", 9)...)
	res, w, err := r.Wire(ids)
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	if len(w.Warnings) != len(res.Conflicts) {
		t.Fatalf("%d warnings for %d conflicts", len(w.Warnings), len(res.Conflicts))
	}
	if w.Warnings[0] != `unknown component "ghost"; skipped` {
		t.Errorf("warning[0] = %q", w.Warnings[0])
	}
	want := "ADC pool exhausted (GPIO32-GPIO39 already assigned); Soil Moisture Sensor #9 could not be placed (AOUT)"
	if w.Warnings[1] != want {
		t.Errorf("warning[1] = %q, want %q", w.Warnings[1], want)
	}
}

func TestRender_UnassignedRoleShowsNC(t *testing.T) {
	r := newTestResolver(t)
	_, w, err := r.Wire(repeat("potentiometer", 9))
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	if !strings.Contains(w.Diagram, "N/C    --------> WIPER@Potentiometer #9") {
		t.Errorf("diagram missing N/C line:\n%s", w.Diagram)
	}
	if _, ok := w.PinAssignments["potentiometer#9"]["WIPER"]; ok {
		t.Error("unassigned role must not appear in pin_assignments")
	}
}

func TestRender_ZeroRoleComponent(t *testing.T) {
	r := newTestResolver(t)
	_, w, err := r.Wire([]string{"breadboard"})
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	if w.Diagram != "" {
		t.Errorf("diagram = %q, want empty", w.Diagram)
	}
	m, ok := w.PinAssignments["breadboard"]
	if !ok || len(m) != 0 {
		t.Errorf("pin_assignments[breadboard] = %v, %v; want empty map", m, ok)
	}
}

func TestWire_EmptySelection(t *testing.T) {
	r := newTestResolver(t)
	if _, _, err := r.Wire(nil); err != ErrEmptySelection {
		t.Errorf("Wire(nil) error = %v", err)
	}
}
