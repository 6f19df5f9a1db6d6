// Package residue translates stored residue codes into protein letters.
package residue

import (
	"errors"
	"fmt"
)

// Alphabet lists the protein symbols in code order: byte value i decodes to Alphabet[i].
const Alphabet = "-ABCDEFGHIKLMNPQRSTVWXYZU*OJ"

// ErrInvalidCode is returned when a stored byte has no symbol.
var ErrInvalidCode = errors.New("blastdb: invalid residue code")

// CodeError reports the first byte outside the alphabet.
type CodeError struct {
	Offset int
	Code   byte
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("%v: byte %d at offset %d (alphabet has %d symbols)", ErrInvalidCode, e.Code, e.Offset, len(Alphabet))
}

func (e *CodeError) Unwrap() error {
	return ErrInvalidCode
}

// Decode translates raw codes into residue letters.
// Any code outside the alphabet fails the whole decode.
func Decode(raw []byte) (string, error) {
	out := make([]byte, len(raw))
	for i, c := range raw {
		if int(c) >= len(Alphabet) {
			return "", &CodeError{Offset: i, Code: c}
		}
		out[i] = Alphabet[c]
	}
	return string(out), nil
}
