package protocol

import "testing"

func TestDerivePassword(t *testing.T) {
	tests := []struct {
		name           string
		seed           string
		seedOffset     string
		passwordOffset string
		want           string
		wantErr        bool
	}{
		{name: "reference vector", seed: "10", seedOffset: "20", passwordOffset: "5A5A", want: "458C"},
		{name: "all zero", seed: "0", seedOffset: "0", passwordOffset: "0", want: "0000"},
		{name: "seed wraps to zero", seed: "FF", seedOffset: "01", passwordOffset: "0000", want: "0000"},
		{name: "lowercase input", seed: "ab", seedOffset: "00", passwordOffset: "1234", want: "65E8"},
		{name: "empty seed", seed: "", seedOffset: "00", passwordOffset: "0000", wantErr: true},
		{name: "non-hex offset", seed: "10", seedOffset: "ZZ", passwordOffset: "0000", wantErr: true},
		{name: "password offset too wide", seed: "10", seedOffset: "00", passwordOffset: "10000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DerivePassword(tt.seed, tt.seedOffset, tt.passwordOffset)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DerivePassword() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DerivePassword() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildPassword(t *testing.T) {
	req, err := BuildPassword("10", "20", "5A5A")
	if err != nil {
		t.Fatalf("BuildPassword() error = %v", err)
	}
	if req.MI != MIPassword {
		t.Errorf("MI = %s, want %s", req.MI, MIPassword)
	}
	if string(req.Data) != "458C" {
		t.Errorf("data = %q, want %q", req.Data, "458C")
	}
}
