package zwave

import (
	"errors"
	"strings"
	"testing"

	"github.com/yavuzozge/homeseer-dimmers/internal/led"
)

func TestColorAddress(t *testing.T) {
	for i := 0; i < led.Count; i++ {
		got, err := ColorAddress(37, i)
		if err != nil {
			t.Fatalf("ColorAddress(37, %d): %v", i, err)
		}
		want := "37-112-0-" + EncodeValue(21+i)
		if got != want {
			t.Errorf("ColorAddress(37, %d) = %q, want %q", i, got, want)
		}
	}
}

func TestBlinkAddressUsesBitmaskKey(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < led.Count; i++ {
		key, err := BlinkPropertyKey(i)
		if err != nil {
			t.Fatalf("BlinkPropertyKey(%d): %v", i, err)
		}
		if key != 1<<i {
			t.Errorf("BlinkPropertyKey(%d) = %d, want %d", i, key, 1<<i)
		}
		if seen[key] {
			t.Errorf("duplicate key %d", key)
		}
		seen[key] = true

		addr, err := BlinkAddress(5, i)
		if err != nil {
			t.Fatalf("BlinkAddress(5, %d): %v", i, err)
		}
		if !strings.HasPrefix(addr, "5-112-0-31-") {
			t.Errorf("BlinkAddress(5, %d) = %q, want prefix 5-112-0-31-", i, addr)
		}
	}

	addr, _ := BlinkAddress(5, 6)
	if addr != "5-112-0-31-64" {
		t.Errorf("BlinkAddress(5, 6) = %q, want 5-112-0-31-64", addr)
	}
}

func TestFixedAddresses(t *testing.T) {
	if got := CustomModeAddress(12); got != "12-112-0-13" {
		t.Errorf("CustomModeAddress = %q", got)
	}
	if got := BlinkFrequencyAddress(12); got != "12-112-0-30" {
		t.Errorf("BlinkFrequencyAddress = %q", got)
	}
}

func TestAddressIndexOutOfRange(t *testing.T) {
	for _, i := range []int{-1, 7} {
		if _, err := ColorAddress(1, i); !errors.Is(err, ErrLedIndex) {
			t.Errorf("ColorAddress(1, %d) error = %v, want ErrLedIndex", i, err)
		}
		if _, err := BlinkAddress(1, i); !errors.Is(err, ErrLedIndex) {
			t.Errorf("BlinkAddress(1, %d) error = %v, want ErrLedIndex", i, err)
		}
	}
}

func TestParseCommandClass(t *testing.T) {
	tests := []struct {
		input   string
		want    CommandClassID
		wantErr bool
	}{
		{"SwitchMultilevel", CommandClassSwitchMultilevel, false},
		{"NoOperation", CommandClassNoOperation, false},
		{"38", CommandClassSwitchMultilevel, false},
		{"98", CommandClassDoorLock, false},
		{"99", 0, true},
		{"switchmultilevel", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCommandClass(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
