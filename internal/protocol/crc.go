package protocol

import (
	"fmt"

	"github.com/sigurn/crc16"
)

// CRC-16/XMODEM is CRC-CCITT with polynomial 0x1021, zero seed, no reflection
// and no final xor, which is exactly the checksum sign controllers compute.
var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// CRC returns the CRC-CCITT checksum of data.
func CRC(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}

// CRCHex returns the checksum of data as four uppercase hex digits.
func CRCHex(data []byte) string {
	return fmt.Sprintf("%04X", CRC(data))
}
