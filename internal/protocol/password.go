package protocol

import (
	"fmt"
	"strconv"
)

// DerivePassword turns a controller-issued seed into the session password.
//
// All inputs are hexadecimal strings. The seed plus seed offset is reduced to
// one byte, then shifted left sixteen times in a 16-bit register, feeding
// bit5 XOR bit7 XOR bit8 back into bit 0 on every shift. The password offset
// is added last and the result rendered as four uppercase hex digits. This
// matches controller firmware bit for bit.
func DerivePassword(seed, seedOffset, passwordOffset string) (string, error) {
	s, err := parseHexParam("seed", seed)
	if err != nil {
		return "", err
	}
	so, err := parseHexParam("seed offset", seedOffset)
	if err != nil {
		return "", err
	}
	po, err := parseHexParam("password offset", passwordOffset)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04X", derivePassword(s, so, po)), nil
}

func derivePassword(seed, seedOffset, passwordOffset uint16) uint16 {
	r := uint16((uint32(seed) + uint32(seedOffset)) % 256)
	for i := 0; i < 16; i++ {
		b5 := (r >> 5) & 1
		b7 := (r >> 7) & 1
		b8 := (r >> 8) & 1
		r = r<<1 + (b5 ^ b7 ^ b8)
	}
	return r + passwordOffset
}

func parseHexParam(name, s string) (uint16, error) {
	if s == "" {
		return 0, fmt.Errorf("%s is empty", name)
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a 16-bit hex value: %w", name, s, err)
	}
	return uint16(v), nil
}
