package ingest

import "github.com/prometheus/client_golang/prometheus"

type Options struct {
	DBName string
	// SourceDigest is recorded in the config record. When nil the digest of
	// the input is computed while it is read.
	SourceDigest []byte
	// Registerer receives the ingestion metrics, nil leaves them
	// unregistered.
	Registerer prometheus.Registerer
}

// Option is a generic option type. Implementations type assert to their
// options record and ignore options that do not apply.
type Option func(any)

func WithDBName(name string) Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.DBName = name
		}
	}
}

func WithSourceDigest(digest []byte) Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.SourceDigest = digest
		}
	}
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.Registerer = reg
		}
	}
}
