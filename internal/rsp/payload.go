package rsp

import (
	"bytes"
	"fmt"
)

const escapeByte = 0x7d

// ExpandRLE expands run-length encoded response payloads. A '*' repeats the
// preceding byte; the following byte minus 29 gives the repeat count.
func ExpandRLE(in []byte) ([]byte, error) {
	if !bytes.ContainsRune(in, '*') {
		return in, nil
	}
	out := make([]byte, 0, len(in))
	for i := 0; i < len(in); i++ {
		if in[i] != '*' {
			out = append(out, in[i])
			continue
		}
		if i == 0 || i+1 >= len(in) {
			return nil, fmt.Errorf("%w: dangling run-length marker", ErrFraming)
		}
		v := in[i-1]
		i++
		for n := int(in[i]) - 29; n > 0; n-- {
			out = append(out, v)
		}
	}
	return out, nil
}

// Escape protects delimiter bytes in a binary payload: each of '$', '#',
// '*' and the escape byte itself is replaced by 0x7d followed by the byte
// xored with 0x20.
func Escape(in []byte) []byte {
	out := make([]byte, 0, len(in))
	for _, b := range in {
		if b == '$' || b == '#' || b == '*' || b == escapeByte {
			out = append(out, escapeByte, b^0x20)
			continue
		}
		out = append(out, b)
	}
	return out
}

// Unescape reverses Escape.
func Unescape(in []byte) ([]byte, error) {
	out := make([]byte, 0, len(in))
	for i := 0; i < len(in); i++ {
		if in[i] != escapeByte {
			out = append(out, in[i])
			continue
		}
		if i+1 >= len(in) {
			return nil, fmt.Errorf("%w: dangling escape byte", ErrFraming)
		}
		i++
		out = append(out, in[i]^0x20)
	}
	return out, nil
}
