package led

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		input   string
		want    Color
		wantErr bool
	}{
		{"Red", ColorRed, false},
		{"red", ColorRed, false},
		{"  MAGENTA ", ColorMagenta, false},
		{"white", ColorWhite, false},
		{"off", ColorOff, false},
		{"purple", ColorOff, true},
		{"", ColorOff, true},
		{"3", ColorOff, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseColor(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseColor(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrUnknownColor) {
				t.Errorf("error = %v, want ErrUnknownColor", err)
			}
			if got != tt.want {
				t.Errorf("ParseColor(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestColorWireValues(t *testing.T) {
	want := map[Color]int{
		ColorOff: 0, ColorRed: 1, ColorGreen: 2, ColorBlue: 3,
		ColorMagenta: 4, ColorYellow: 5, ColorCyan: 6, ColorWhite: 7,
	}
	for c, v := range want {
		if int(c) != v {
			t.Errorf("%s = %d, want %d", c, int(c), v)
		}
	}
	if Color(8).Valid() {
		t.Error("Color(8) should be invalid")
	}
}

func TestTableZeroValue(t *testing.T) {
	var table Table
	for i := 0; i < Count; i++ {
		if got := table.At(i); got != (Entry{}) {
			t.Errorf("At(%d) = %+v, want Off/Off", i, got)
		}
	}
}

func TestTableWithDoesNotMutate(t *testing.T) {
	var original Table

	updated, err := original.WithColor(2, ColorBlue)
	if err != nil {
		t.Fatalf("WithColor: %v", err)
	}
	updated, err = updated.WithBlink(2, BlinkOn)
	if err != nil {
		t.Fatalf("WithBlink: %v", err)
	}

	if original.At(2) != (Entry{}) {
		t.Errorf("original changed: %+v", original.At(2))
	}
	if got := updated.At(2); got != (Entry{Color: ColorBlue, Blink: BlinkOn}) {
		t.Errorf("updated.At(2) = %+v", got)
	}
}

func TestTableIndexBounds(t *testing.T) {
	var table Table
	for _, i := range []int{-1, Count, 100} {
		if _, err := table.With(i, Entry{}); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("With(%d) error = %v, want ErrIndexOutOfRange", i, err)
		}
	}
}

func TestTableJSON(t *testing.T) {
	table, _ := Table{}.With(0, Entry{Color: ColorRed, Blink: BlinkOn})
	table, _ = table.WithColor(6, ColorCyan)

	data, err := json.Marshal(table)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Table
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != table {
		t.Errorf("decoded = %s, want %s", decoded, table)
	}
}

func TestTableJSONRejectsWrongLength(t *testing.T) {
	var table Table
	err := json.Unmarshal([]byte(`[{"color":"red","blink":"on"}]`), &table)
	if err == nil {
		t.Fatal("expected error for short table")
	}
}
