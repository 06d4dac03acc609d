package restartio

import (
	"context"

	"github.com/randalmurphal/restartio/pkg/restartio/observability"
	"github.com/randalmurphal/restartio/pkg/restartio/procgroup"
)

// Fixed address of the header record.
const (
	HeaderGroup   = "/"
	HeaderDataset = "simulator_info"
)

// Header is the provenance record stamped on every checkpoint file.
type Header struct {
	SimulatorName string
	ModuleVersion string
	TimeStamp     string
	CaseName      string
	Params        string
	NumProcs      int
}

// NewHeader builds a Header whose NumProcs is the size of pg.
func NewHeader(simulator, version, stamp, caseName, params string, pg procgroup.Group) Header {
	h := Header{
		SimulatorName: simulator,
		ModuleVersion: version,
		TimeStamp:     stamp,
		CaseName:      caseName,
		Params:        params,
	}
	if pg != nil {
		h.NumProcs = pg.Size()
	}
	return h
}

// WriteHeader packs the six header fields as one record and writes it to
// the header address as RootOnly. Every rank packs; only the root writes.
func (s *Serializer) WriteHeader(ctx context.Context, h Header) (WriteOutcome, error) {
	outcome, err := s.write(ctx, observability.SpanHeader, HeaderGroup, HeaderDataset, RootOnly,
		h.SimulatorName, h.ModuleVersion, h.TimeStamp, h.CaseName, h.Params, h.NumProcs)
	if err != nil {
		return outcome, err
	}
	if procgroup.IsRoot(s.group) {
		observability.LogHeader(s.logger, h.SimulatorName, h.ModuleVersion, h.CaseName, h.NumProcs)
	}
	return outcome, nil
}

// ReadHeader reads the header record.
func (s *Serializer) ReadHeader(ctx context.Context) (Header, error) {
	var h Header
	err := s.ReadValues(ctx, HeaderGroup, HeaderDataset, RootOnly,
		&h.SimulatorName, &h.ModuleVersion, &h.TimeStamp, &h.CaseName, &h.Params, &h.NumProcs)
	if err != nil {
		return Header{}, err
	}
	return h, nil
}
