package packer

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Proto packs a record as a sequence of length-delimited protobuf messages.
//
// Values must be proto.Message or one of the scalar types string, bool,
// int, int32, int64, uint32, uint64, float32, float64 and []byte; scalars
// travel as the matching wrapperspb message. Outputs are proto.Message or
// pointers to those scalar types.
type Proto struct{}

// Compile-time interface check.
var _ Packer = Proto{}

// Name implements Packer.
func (Proto) Name() string { return "proto" }

// Pack implements Packer.
func (Proto) Pack(values ...any) ([]byte, error) {
	opts := proto.MarshalOptions{Deterministic: true}
	buf := []byte{}
	for i, v := range values {
		m, ok := toMessage(v)
		if !ok {
			return nil, fmt.Errorf("%w: value %d is %T", ErrNotProtoMessage, i, v)
		}
		b, err := opts.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("proto pack value %d: %w", i, err)
		}
		buf = protowire.AppendBytes(buf, b)
	}
	return buf, nil
}

// Unpack implements Packer.
func (Proto) Unpack(data []byte, outs ...any) error {
	for i, out := range outs {
		m, assign, ok := outMessage(out)
		if !ok {
			return fmt.Errorf("%w: output %d is %T", ErrNotProtoMessage, i, out)
		}
		if len(data) == 0 {
			return fmt.Errorf("%w: record has %d, want %d", ErrValueCount, i, len(outs))
		}
		b, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return fmt.Errorf("proto unpack value %d: %w", i, protowire.ParseError(n))
		}
		data = data[n:]
		if err := proto.Unmarshal(b, m); err != nil {
			return fmt.Errorf("proto unpack value %d: %w", i, err)
		}
		assign()
	}
	if len(data) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrValueCount, len(data))
	}
	return nil
}

// toMessage converts a packable value to a message.
func toMessage(v any) (proto.Message, bool) {
	switch val := v.(type) {
	case proto.Message:
		return val, true
	case string:
		return wrapperspb.String(val), true
	case bool:
		return wrapperspb.Bool(val), true
	case int:
		return wrapperspb.Int64(int64(val)), true
	case int32:
		return wrapperspb.Int32(val), true
	case int64:
		return wrapperspb.Int64(val), true
	case uint32:
		return wrapperspb.UInt32(val), true
	case uint64:
		return wrapperspb.UInt64(val), true
	case float32:
		return wrapperspb.Float(val), true
	case float64:
		return wrapperspb.Double(val), true
	case []byte:
		return wrapperspb.Bytes(val), true
	}
	return nil, false
}

// outMessage returns the message to decode into for out, and a function
// that copies the decoded value into out.
func outMessage(out any) (proto.Message, func(), bool) {
	switch p := out.(type) {
	case proto.Message:
		return p, func() {}, true
	case *string:
		m := &wrapperspb.StringValue{}
		return m, func() { *p = m.GetValue() }, true
	case *bool:
		m := &wrapperspb.BoolValue{}
		return m, func() { *p = m.GetValue() }, true
	case *int:
		m := &wrapperspb.Int64Value{}
		return m, func() { *p = int(m.GetValue()) }, true
	case *int32:
		m := &wrapperspb.Int32Value{}
		return m, func() { *p = m.GetValue() }, true
	case *int64:
		m := &wrapperspb.Int64Value{}
		return m, func() { *p = m.GetValue() }, true
	case *uint32:
		m := &wrapperspb.UInt32Value{}
		return m, func() { *p = m.GetValue() }, true
	case *uint64:
		m := &wrapperspb.UInt64Value{}
		return m, func() { *p = m.GetValue() }, true
	case *float32:
		m := &wrapperspb.FloatValue{}
		return m, func() { *p = m.GetValue() }, true
	case *float64:
		m := &wrapperspb.DoubleValue{}
		return m, func() { *p = m.GetValue() }, true
	case *[]byte:
		m := &wrapperspb.BytesValue{}
		return m, func() { *p = m.GetValue() }, true
	}
	return nil, nil, false
}
