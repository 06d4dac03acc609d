// Package packer converts typed values to and from contiguous byte buffers.
//
// A Packer encodes a list of values as one record. Unpack must be given
// outputs of matching types, in the same order, for the record to decode.
package packer

import (
	"errors"
	"fmt"
	"strings"
)

// Packer encodes and decodes records of values.
// Implementations must be safe for concurrent use.
type Packer interface {
	// Pack encodes values, in order, as one record.
	Pack(values ...any) ([]byte, error)

	// Unpack decodes a record produced by Pack into outs.
	// Each out must be a pointer (or message) the encoding can fill.
	Unpack(data []byte, outs ...any) error

	// Name identifies the encoding, for configuration and logs.
	Name() string
}

// Sentinel errors for packing.
var (
	// ErrValueCount indicates a record holds a different number of values
	// than Unpack was given outputs for.
	ErrValueCount = errors.New("packer: value count mismatch")

	// ErrNotProtoMessage indicates a value given to the proto packer is
	// neither a proto.Message nor a supported scalar.
	ErrNotProtoMessage = errors.New("packer: value is not a proto message or scalar")

	// ErrInvalidUTF8 indicates a string value that is not valid UTF-8 and
	// so cannot be packed without altering it.
	ErrInvalidUTF8 = errors.New("packer: string is not valid UTF-8")

	// ErrUnknownPacker indicates ByName was given an unregistered name.
	ErrUnknownPacker = errors.New("packer: unknown packer")
)

// ByName returns the packer registered under name ("json" or "proto").
func ByName(name string) (Packer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON{}, nil
	case "proto", "protobuf":
		return Proto{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPacker, name)
	}
}
