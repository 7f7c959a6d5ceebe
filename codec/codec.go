// Package codec implements the frame pipeline that binds the coordinator
// and worker state machines together: serialize, compress, then
// authenticate-and-encrypt a Message, and the inverse.
package codec

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/klauspost/compress/flate"
	"golang.org/x/crypto/chacha20poly1305"
)

// CodecError is returned for any failure in the decode pipeline: a bad
// authentication tag, a corrupt compressed stream, or malformed
// serialized data. All three collapse into this one error kind so a
// caller can never use the failure mode itself as a decryption oracle.
type CodecError struct {
	cause error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec: failed to decode frame: %v", e.cause)
}

func (e *CodecError) Unwrap() error {
	return e.cause
}

var msgpackHandle = &codec.MsgpackHandle{}

// Encode serializes msg, compresses the result, and seals it with an AEAD
// keyed by key. The returned bytes are the entire wire frame for one
// request or reply — there is no separate length prefix.
func Encode[W, R any](msg Message[W, R], key [32]byte) ([]byte, error) {
	serialized, err := serialize(msg)
	if err != nil {
		return nil, fmt.Errorf("codec: failed to serialize frame: %w", err)
	}

	compressed := compress(serialized)

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("codec: failed to build cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("codec: failed to generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, compressed, nil), nil
}

// Decode inverts Encode: authenticate and decrypt, decompress, then
// deserialize into a Message. Any failure at any stage is reported as the
// single CodecError kind.
func Decode[W, R any](frame []byte, key [32]byte) (Message[W, R], error) {
	var zero Message[W, R]

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return zero, &CodecError{cause: err}
	}

	if len(frame) < aead.NonceSize() {
		return zero, &CodecError{cause: fmt.Errorf("frame shorter than nonce")}
	}
	nonce, ciphertext := frame[:aead.NonceSize()], frame[aead.NonceSize():]

	compressed, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return zero, &CodecError{cause: err}
	}

	serialized, err := decompress(compressed)
	if err != nil {
		return zero, &CodecError{cause: err}
	}

	var msg Message[W, R]
	if err := deserialize(serialized, &msg); err != nil {
		return zero, &CodecError{cause: err}
	}

	return msg, nil
}

func serialize(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, msgpackHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deserialize(data []byte, v any) error {
	dec := codec.NewDecoder(bytes.NewReader(data), msgpackHandle)
	return dec.Decode(v)
}

func compress(data []byte) []byte {
	var buf bytes.Buffer
	w, _ := flate.NewWriter(&buf, flate.BestSpeed)
	_, _ = w.Write(data)
	_ = w.Close()
	return buf.Bytes()
}

func decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return io.ReadAll(r)
}
