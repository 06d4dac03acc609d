package packer

import (
	"fmt"
	"reflect"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// JSON packs a record as a JSON array with one element per value.
type JSON struct{}

// Compile-time interface check.
var _ Packer = JSON{}

// Name implements Packer.
func (JSON) Name() string { return "json" }

// Pack implements Packer.
func (JSON) Pack(values ...any) ([]byte, error) {
	if values == nil {
		values = []any{}
	}
	for i, v := range values {
		if err := checkUTF8(reflect.ValueOf(v), make(map[uintptr]bool)); err != nil {
			return nil, fmt.Errorf("json pack value %d: %w", i, err)
		}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("json pack: %w", err)
	}
	return data, nil
}

// Unpack implements Packer.
func (JSON) Unpack(data []byte, outs ...any) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("json unpack: %w", err)
	}
	if len(raw) != len(outs) {
		return fmt.Errorf("%w: record has %d, want %d", ErrValueCount, len(raw), len(outs))
	}
	for i, out := range outs {
		if err := json.Unmarshal(raw[i], out); err != nil {
			return fmt.Errorf("json unpack value %d: %w", i, err)
		}
	}
	return nil
}

// checkUTF8 rejects strings JSON would rewrite with U+FFFD, so a packed
// record always unpacks to the exact values given.
func checkUTF8(v reflect.Value, seen map[uintptr]bool) error {
	switch v.Kind() {
	case reflect.String:
		if !utf8.ValidString(v.String()) {
			return fmt.Errorf("%w: %q", ErrInvalidUTF8, v.String())
		}
	case reflect.Pointer:
		if v.IsNil() || seen[v.Pointer()] {
			return nil
		}
		seen[v.Pointer()] = true
		return checkUTF8(v.Elem(), seen)
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return checkUTF8(v.Elem(), seen)
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return nil
		}
		for i := range v.Len() {
			if err := checkUTF8(v.Index(i), seen); err != nil {
				return err
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if err := checkUTF8(iter.Key(), seen); err != nil {
				return err
			}
			if err := checkUTF8(iter.Value(), seen); err != nil {
				return err
			}
		}
	case reflect.Struct:
		t := v.Type()
		for i := range v.NumField() {
			if !t.Field(i).IsExported() {
				continue
			}
			if err := checkUTF8(v.Field(i), seen); err != nil {
				return err
			}
		}
	}
	return nil
}
