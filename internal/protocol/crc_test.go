package protocol

import "testing"

func TestCRC(t *testing.T) {
	tests := []struct {
		name string
		data string
		want uint16
	}{
		{name: "check string", data: "123456789", want: 0x31C3},
		{name: "empty", data: "", want: 0x0000},
		{name: "heartbeat header", data: "\x01000001\x0205", want: 0xF02A},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CRC([]byte(tt.data)); got != tt.want {
				t.Errorf("CRC(%q) = 0x%04X, want 0x%04X", tt.data, got, tt.want)
			}
		})
	}
}

func TestCRCHex(t *testing.T) {
	if got := CRCHex([]byte("123456789")); got != "31C3" {
		t.Errorf("CRCHex() = %q, want %q", got, "31C3")
	}
}
