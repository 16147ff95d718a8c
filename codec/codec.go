// Package codec provides the reversible key encoding used by the spill
// containers: a key is serialized with msgpack and the resulting bytes are
// widened rune-for-byte into a string, so any comparable key can be used as
// a TEXT key in the backing store and recovered exactly on iteration.
package codec

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrKeyEncoding marks keys that cannot be serialized to the canonical
// store form, and store keys that cannot be decoded back.
var ErrKeyEncoding = errors.New("codec: key encoding failed")

// Encode serializes key with msgpack and widens each byte to a single
// rune. The mapping is deterministic and injective over msgpack-encodable
// keys, and Decode inverts it exactly.
func Encode(key any) (string, error) {
	data, err := msgpack.Marshal(key)
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "codec: marshal key"), ErrKeyEncoding)
	}
	var sb strings.Builder
	sb.Grow(len(data))
	for _, b := range data {
		sb.WriteRune(rune(b))
	}
	return sb.String(), nil
}

// Decode narrows each rune of an Encode result back to a byte and
// deserializes the key. Runes outside the byte range mean the string was
// not produced by Encode.
func Decode[K any](encoded string) (K, error) {
	var key K
	data := make([]byte, 0, len(encoded))
	for _, r := range encoded {
		if r > 0xFF {
			return key, errors.Mark(errors.Newf("codec: rune %q outside byte range", r), ErrKeyEncoding)
		}
		data = append(data, byte(r))
	}
	if err := msgpack.Unmarshal(data, &key); err != nil {
		return key, errors.Mark(errors.Wrap(err, "codec: unmarshal key"), ErrKeyEncoding)
	}
	return key, nil
}
