/*
Package restartio reads and writes simulator checkpoint files.

# Overview

A checkpoint file holds three kinds of record:
  - arbitrary state, addressed by (group, dataset)
  - one dataset per saved report step, under the group /report_step
  - a header record describing who wrote the file, at /simulator_info

Every record passes through a Packer on its way to and from a Backend:

	write: state -> Packer -> []byte -> Backend
	read:  Backend -> []byte -> Packer -> state

# Basic Usage

	pg, _ := procgroup.New(rank, size, 0)

	s, err := restartio.Open("restart.db", restartio.OpenCreate, pg)
	if err != nil {
	    log.Fatal(err)
	}
	defer s.Close()

	h := restartio.NewHeader("flow", "2024.10", time.Now().Format(time.RFC3339), "NORNE", "", pg)
	if _, err := s.WriteHeader(ctx, h); err != nil {
	    log.Fatal(err)
	}

	if _, err := s.WriteReportStep(ctx, 12, wellState); err != nil {
	    log.Fatal(err)
	}

To restart, open the file read-only and restore the newest step:

	s, err := restartio.Open("restart.db", restartio.OpenRead, pg)
	...
	step, err := s.LastReportStep(ctx)
	if step == restartio.NoReportStep {
	    // nothing to restart from
	}
	err = s.ReadReportStep(ctx, step, &wellState)

# Distribution

Writes default to ProcessSplit: every rank stores its own slice and reads
back its own slice. RootOnly records are written by the group's root
alone; other ranks still pack the record and report its size, but do not
touch the backend. The header is always RootOnly.

# Pack Size

Every write returns a WriteOutcome. Its Size is the packed byte length,
or InvalidPackSize if packing failed, in which case nothing was written.
A write that packed but failed in the backend keeps the real size, so the
two failures can be told apart. PackSize mirrors the most recent outcome.

# Errors

Packing failures are *EncodingError and match ErrEncoding. Backend
failures are *IOError and match ErrIO; the backend cause (ErrNotFound,
ErrModeMismatch, ErrReadOnly, ...) stays reachable through errors.Is.
Classify maps any error to a Kind.

# Report Steps

Report-step dataset names are parsed like C atoi, so a malformed name
counts as step 0 rather than being skipped. ParseReportStep and
ReportStepEntries report whether a name was an exact integer.

# Observability

Pass WithLogger, WithMetrics and WithTracing to Open. Without them the
session logs nothing and records no telemetry.
*/
package restartio
