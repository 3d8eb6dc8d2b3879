package ingest

import "errors"

var (
	ErrConfigMissing    = errors.New("ingest: store has no completed config record")
	ErrHierarchyMissing = errors.New("ingest: store has no hierarchy record")
	ErrSourceMismatch   = errors.New("ingest: store was built from a different trace")
	ErrMetaVersion      = errors.New("ingest: unsupported config record version")
	ErrLayoutMismatch   = errors.New("ingest: store was built with a different puddle layout")
	ErrAlreadyRun       = errors.New("ingest: an ingester can only run once")
)
