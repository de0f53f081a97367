// Package signature provides helper functions for handling the blockchain
// hashing needs.
package signature

import (
	"bytes"
	"crypto/sha256"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents the previous hash value used by the genesis block.
const ZeroHash string = "0"

// HashLength is the number of hex characters produced by every supported
// hasher.
const HashLength = 64

// Set of errors returned by the package.
var (
	ErrUnknownHasher = errors.New("unknown hasher")
	ErrInvalidUTF8   = errors.New("payload contains invalid utf-8")
)

// =============================================================================

// Hasher produces the hex encoded digest for the specified data.
type Hasher func(data []byte) string

// SHA256 hashes the data using sha256. This is the default hasher.
func SHA256(data []byte) string {
	hash := sha256.Sum256(data)
	return common.Bytes2Hex(hash[:])
}

// Keccak256 hashes the data using the Ethereum keccak256 function.
func Keccak256(data []byte) string {
	return common.Bytes2Hex(crypto.Keccak256(data))
}

// ParseHasher returns the hasher associated with the specified name.
func ParseHasher(name string) (Hasher, error) {
	switch strings.ToLower(name) {
	case "", "sha256":
		return SHA256, nil
	case "keccak256":
		return Keccak256, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownHasher, name)
}

// =============================================================================

// Canonical returns a deterministic JSON encoding of the value. Object keys
// are sorted at every depth, numbers keep their literal form, and only the
// escapes JSON requires are written, so the same logical value always
// produces the same bytes. Strings holding invalid UTF-8 are rejected, the
// encoder would otherwise replace the bad bytes and distinct payloads would
// encode the same.
func Canonical(value any) ([]byte, error) {
	data, err := encode(value)
	if err != nil {
		return nil, err
	}

	if !utf8.Valid(data) || !validUTF8(reflect.ValueOf(value)) {
		return nil, ErrInvalidUTF8
	}

	// Decoding into a generic value turns every object into a map, and maps
	// are marshaled with sorted keys.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	data, err = encode(generic)
	if err != nil {
		return nil, err
	}

	return unescapeSeparators(data), nil
}

// encode marshals the value without escaping HTML characters.
func encode(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// unescapeSeparators restores the U+2028 and U+2029 characters the encoder
// always escapes. Backslashes only appear inside strings as the start of an
// escape, so walking escape by escape cannot misread an escaped backslash.
func unescapeSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' {
			out = append(out, data[i])
			continue
		}

		switch {
		case bytes.HasPrefix(data[i:], []byte(`\u2028`)):
			out = append(out, "\u2028"...)
			i += 5
		case bytes.HasPrefix(data[i:], []byte(`\u2029`)):
			out = append(out, "\u2029"...)
			i += 5
		default:
			out = append(out, data[i], data[i+1])
			i++
		}
	}

	return out
}

var (
	jsonMarshaler = reflect.TypeFor[json.Marshaler]()
	textMarshaler = reflect.TypeFor[encoding.TextMarshaler]()
)

// validUTF8 walks the value looking for strings the encoder would silently
// repair. Types with their own marshaling are left to the utf8 check of
// their encoded form. The value must already have marshaled successfully so
// it holds no cycles.
func validUTF8(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}

	if v.Type().Implements(jsonMarshaler) || v.Type().Implements(textMarshaler) {
		return true
	}

	switch v.Kind() {
	case reflect.String:
		return utf8.ValidString(v.String())

	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return true
		}
		return validUTF8(v.Elem())

	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return true
		}
		for i := range v.Len() {
			if !validUTF8(v.Index(i)) {
				return false
			}
		}

	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if !validUTF8(iter.Key()) || !validUTF8(iter.Value()) {
				return false
			}
		}

	case reflect.Struct:
		for i := range v.NumField() {
			if v.Type().Field(i).IsExported() && !validUTF8(v.Field(i)) {
				return false
			}
		}
	}

	return true
}

// =============================================================================

// LeadingZeros returns the length of the run of '0' characters at the
// start of the hash.
func LeadingZeros(hash string) int {
	var n int
	for n < len(hash) && hash[n] == '0' {
		n++
	}

	return n
}

// IsHashSolved checks the hash to make sure it complies with the POW rules.
// We need to match a difficulty number of 0's.
func IsHashSolved(difficulty uint, hash string) bool {
	return uint(LeadingZeros(hash)) >= difficulty
}
