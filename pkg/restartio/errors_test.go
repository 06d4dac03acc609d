package restartio_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/randalmurphal/restartio/pkg/restartio"
	"github.com/stretchr/testify/assert"
)

func TestEncodingError_Error(t *testing.T) {
	err := &restartio.EncodingError{
		Op:      "pack",
		Group:   "/report_step",
		Dataset: "12",
		Err:     errors.New("unsupported type"),
	}
	assert.Equal(t, "pack /report_step/12: unsupported type", err.Error())

	err = &restartio.EncodingError{Op: "unpack", Group: "/", Dataset: "simulator_info", Err: errors.New("short")}
	assert.Equal(t, "unpack /simulator_info: short", err.Error())
}

func TestIOError_Error(t *testing.T) {
	err := &restartio.IOError{Op: "list", Group: "/report_step", Err: errors.New("locked")}
	assert.Equal(t, "list /report_step: locked", err.Error())
}

func TestErrors_Is(t *testing.T) {
	cause := errors.New("cause")
	enc := &restartio.EncodingError{Op: "pack", Group: "/", Dataset: "x", Err: cause}
	io := &restartio.IOError{Op: "write", Group: "/", Dataset: "x", Err: restartio.ErrNotFound}

	assert.ErrorIs(t, enc, restartio.ErrEncoding)
	assert.ErrorIs(t, enc, cause)
	assert.NotErrorIs(t, enc, restartio.ErrIO)

	assert.ErrorIs(t, io, restartio.ErrIO)
	assert.ErrorIs(t, io, restartio.ErrNotFound)
	assert.NotErrorIs(t, io, restartio.ErrEncoding)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want restartio.Kind
	}{
		{"nil", nil, restartio.KindNone},
		{"encoding", &restartio.EncodingError{Err: errors.New("x")}, restartio.KindEncoding},
		{"io", &restartio.IOError{Err: errors.New("x")}, restartio.KindIO},
		{"wrapped io", fmt.Errorf("restart: %w", &restartio.IOError{Err: errors.New("x")}), restartio.KindIO},
		{"foreign", errors.New("x"), restartio.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, restartio.Classify(tt.err))
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "none", restartio.KindNone.String())
	assert.Equal(t, "encoding", restartio.KindEncoding.String())
	assert.Equal(t, "io", restartio.KindIO.String())
	assert.Equal(t, "unknown", restartio.KindUnknown.String())
	assert.Equal(t, "unknown", restartio.Kind(99).String())
}

func TestWriteOutcome_Valid(t *testing.T) {
	assert.True(t, restartio.WriteOutcome{Size: 0}.Valid())
	assert.True(t, restartio.WriteOutcome{Size: 1 << 40}.Valid())
	assert.False(t, restartio.WriteOutcome{Size: restartio.InvalidPackSize}.Valid())
}
