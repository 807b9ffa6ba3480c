package xstream

import (
	"errors"
	"testing"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in   string
		want Strategy
	}{
		{"sync", Synchronous},
		{"Synchronous", Synchronous},
		{"signal", AsyncSignalWait},
		{"async", AsyncSignalWait},
		{" AsyncSignalWait ", AsyncSignalWait},
		{"stream", BackendStream},
		{"backend", BackendStream},
		{"BACKENDSTREAM", BackendStream},
	}

	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseStrategy(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}

	if _, err := ParseStrategy("fast"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("ParseStrategy(fast) error = %v, want ErrUnknownStrategy", err)
	}
}

func TestStrategy_String(t *testing.T) {
	for _, st := range allStrategies {
		got, err := ParseStrategy(st.String())
		if err != nil || got != st {
			t.Errorf("ParseStrategy(%q) = %v, %v; want %v", st.String(), got, err, st)
		}
	}
	if Strategy(-1).String() != "Unknown" {
		t.Errorf("Strategy(-1).String() = %q, want Unknown", Strategy(-1))
	}
}

func TestStrategy_Default(t *testing.T) {
	var zero Strategy
	if zero != AsyncSignalWait {
		t.Errorf("zero Strategy = %v, want AsyncSignalWait", zero)
	}
}
