package types

import (
	"fmt"
	"math/big"
)

// BigInt is a big.Int wrapper which marshals JSON to a string representation
// of the big number. Field elements such as scopes and signals travel in this
// form, since they do not fit in a JSON number.
type BigInt big.Int

// NewBigInt wraps a copy of x. A nil x yields nil.
func NewBigInt(x *big.Int) *BigInt {
	if x == nil {
		return nil
	}
	return (*BigInt)(new(big.Int).Set(x))
}

func (i BigInt) MarshalText() ([]byte, error) {
	return []byte((*big.Int)(&i).String()), nil
}

// UnmarshalText accepts decimal numbers and 0x prefixed hex numbers.
func (i *BigInt) UnmarshalText(data []byte) error {
	i2, ok := new(big.Int).SetString(string(data), 0)
	if !ok {
		return fmt.Errorf("wrong format for bigInt: %q", string(data))
	}
	*i = (BigInt)(*i2)
	return nil
}

func (i *BigInt) String() string {
	if i == nil {
		return "<nil>"
	}
	return (*big.Int)(i).String()
}

// MathBigInt converts b to a math/big *Int.
func (i *BigInt) MathBigInt() *big.Int {
	return (*big.Int)(i)
}

// Equal helps us with go-cmp.
func (i *BigInt) Equal(j *BigInt) bool {
	if i == nil || j == nil {
		return (i == nil) == (j == nil)
	}
	return i.MathBigInt().Cmp(j.MathBigInt()) == 0
}
