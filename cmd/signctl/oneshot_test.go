package main

import (
	"errors"
	"testing"
)

func TestParseByte(t *testing.T) {
	tests := []struct {
		in      string
		want    byte
		wantErr bool
	}{
		{"0", 0, false},
		{"255", 255, false},
		{"0x1B", 0x1B, false},
		{" 7 ", 7, false},
		{"256", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseByte(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseByte(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseByte(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParsePairs(t *testing.T) {
	got, err := parsePairs("frame", []string{"1:30", "0x02:0x0A"})
	if err != nil {
		t.Fatalf("parsePairs() error = %v", err)
	}
	want := [][2]byte{{1, 30}, {2, 10}}
	if len(got) != len(want) {
		t.Fatalf("parsePairs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pair %d = %v, want %v", i, got[i], want[i])
		}
	}

	for _, bad := range []string{"1", "1:", ":2", "1:300"} {
		if _, err := parsePairs("frame", []string{bad}); err == nil {
			t.Errorf("parsePairs(%q) expected error", bad)
		}
	}
}

func TestParseOnOff(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"on", true, false},
		{"ON", true, false},
		{"enable", true, false},
		{"off", false, false},
		{"disable", false, false},
		{"false", false, false},
		{"maybe", false, true},
	}
	for _, tt := range tests {
		got, err := parseOnOff(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseOnOff(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseOnOff(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestReportedErrorKeepsCause(t *testing.T) {
	cause := errors.New("link down")
	err := reported(cause)
	if !errors.Is(err, errReported) {
		t.Error("reported error should match errReported")
	}
	if !errors.Is(err, cause) {
		t.Error("reported error should keep its cause")
	}
}
