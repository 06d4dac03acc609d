package benchmarks

import (
	"testing"

	"github.com/randalmurphal/restartio/pkg/restartio/packer"
)

// BenchmarkJSON_Pack measures JSON packing of a report-step payload.
func BenchmarkJSON_Pack(b *testing.B) {
	p := packer.JSON{}
	state := createLargeState()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.Pack(state)
	}
}

// BenchmarkJSON_Unpack measures JSON unpacking of a report-step payload.
func BenchmarkJSON_Unpack(b *testing.B) {
	p := packer.JSON{}
	data, _ := p.Pack(createLargeState())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var s LargeState
		_ = p.Unpack(data, &s)
	}
}

// BenchmarkProto_PackHeader measures proto packing of the six header fields.
func BenchmarkProto_PackHeader(b *testing.B) {
	p := packer.Proto{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.Pack("flow", "2024.10", "2024-10-01T00:00:00Z", "NORNE", "", 16)
	}
}

// BenchmarkProto_UnpackHeader measures proto unpacking of the six header fields.
func BenchmarkProto_UnpackHeader(b *testing.B) {
	p := packer.Proto{}
	data, _ := p.Pack("flow", "2024.10", "2024-10-01T00:00:00Z", "NORNE", "", 16)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var name, version, stamp, caseName, params string
		var procs int
		_ = p.Unpack(data, &name, &version, &stamp, &caseName, &params, &procs)
	}
}
