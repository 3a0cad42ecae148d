package types

import (
	"encoding/hex"
	"fmt"

	"go.vocdoni.io/anonvote/util"
)

// HexBytes is a []byte which encodes as hexadecimal in json, as opposed to the
// base64 default.
type HexBytes []byte

func (b HexBytes) String() string {
	return hex.EncodeToString(b)
}

// MarshalText makes HexBytes travel as a hex string in JSON and as a plain
// string in URL paths.
func (b HexBytes) MarshalText() ([]byte, error) {
	return hex.AppendEncode(nil, b), nil
}

// UnmarshalText decodes hex, with or without a "0x" prefix. The receiver's
// buffer is reused when large enough.
func (b *HexBytes) UnmarshalText(data []byte) error {
	data = []byte(util.TrimHex(string(data)))
	dec, err := hex.AppendDecode((*b)[:0], data)
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}
	*b = dec
	return nil
}

// HexStringToHexBytes decodes a hex string into HexBytes. A leading "0x" or
// "0X" is accepted.
func HexStringToHexBytes(hexString string) (HexBytes, error) {
	return hex.DecodeString(util.TrimHex(hexString))
}

// HexStringToFixedBytes decodes a hex string and checks that the result is
// exactly size bytes long.
func HexStringToFixedBytes(hexString string, size int) (HexBytes, error) {
	b, err := HexStringToHexBytes(hexString)
	if err != nil {
		return nil, err
	}
	if len(b) != size {
		return nil, fmt.Errorf("expected %d bytes, got %d", size, len(b))
	}
	return b, nil
}
