package types

import (
	"encoding/json"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp"
)

func TestBigInt(t *testing.T) {
	a := NewBigInt(big.NewInt(300))

	j, err := a.MarshalText()
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, string(j), qt.Equals, "300")

	c := new(BigInt)
	qt.Assert(t, c.UnmarshalText([]byte("123")), qt.IsNil)
	qt.Assert(t, c.String(), qt.Equals, "123")
	qt.Assert(t, c.UnmarshalText([]byte("0xff")), qt.IsNil)
	qt.Assert(t, c.String(), qt.Equals, "255")
	qt.Assert(t, c.UnmarshalText([]byte("abc")), qt.Not(qt.IsNil))

	js := &jsonStructTest{
		Name:   "first",
		BigInt: NewBigInt(new(big.Int).SetUint64(12312312312312312312)),
	}
	data, err := json.Marshal(js)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, string(data), qt.Equals, `{"name":"first","number":"12312312312312312312"}`)

	js2 := &jsonStructTest{}
	qt.Assert(t, json.Unmarshal(data, js2), qt.IsNil)
	if diff := cmp.Diff(js, js2); diff != "" {
		t.Fatalf("unexpected decoded struct (-want +got):\n%s", diff)
	}

	var nilInt *BigInt
	qt.Assert(t, nilInt.String(), qt.Equals, "<nil>")
	qt.Assert(t, nilInt.Equal(nil), qt.IsTrue)
	qt.Assert(t, c.Equal(NewBigInt(big.NewInt(255))), qt.IsTrue)

	x := big.NewInt(7)
	w := NewBigInt(x)
	x.SetInt64(8)
	qt.Assert(t, w.String(), qt.Equals, "7")
	qt.Assert(t, NewBigInt(nil) == nil, qt.IsTrue)
}

type jsonStructTest struct {
	Name   string  `json:"name"`
	BigInt *BigInt `json:"number"`
}
