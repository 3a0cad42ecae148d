package util

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var recordEncMode cbor.EncMode

func init() {
	var err error
	recordEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// EncodeRecord serializes v with the deterministic CBOR encoding, so equal
// records always produce equal bytes.
func EncodeRecord(v any) ([]byte, error) {
	data, err := recordEncMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// DecodeRecord deserializes data produced by EncodeRecord into out.
func DecodeRecord(data []byte, out any) error {
	if err := cbor.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}
