package wavestore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/forestrie/go-wavestore/config"
	"github.com/forestrie/go-wavestore/puddlestore"
)

type Options struct {
	// DataDir holds the database file <Name>.db. Ignored when KV is set.
	DataDir string
	// Name is the database name. Defaults to the trace file name without its
	// extension.
	Name string
	// KV replaces the bolt file. The handle owns it and closes it.
	KV puddlestore.KV

	Compress        bool
	CacheSize       int
	LoadConcurrency int
	BoltTimeout     time.Duration
	// Registerer receives ingestion metrics.
	Registerer prometheus.Registerer
}

// Option is a generic option type. Implementations type assert to their
// options record and ignore options that do not apply.
type Option func(any)

func defaultOptions() Options {
	d := config.Default()
	return Options{
		DataDir:         d.DataDir,
		Compress:        d.Compress,
		CacheSize:       d.CacheSize,
		LoadConcurrency: d.LoadConcurrency,
		BoltTimeout:     d.BoltTimeout,
	}
}

// WithConfig applies every store setting of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.DataDir = cfg.DataDir
			o.Compress = cfg.Compress
			o.CacheSize = cfg.CacheSize
			o.LoadConcurrency = cfg.LoadConcurrency
			o.BoltTimeout = cfg.BoltTimeout
		}
	}
}

func WithDataDir(dir string) Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.DataDir = dir
		}
	}
}

func WithName(name string) Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.Name = name
		}
	}
}

func WithKV(kv puddlestore.KV) Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.KV = kv
		}
	}
}

func WithCompression(enabled bool) Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.Compress = enabled
		}
	}
}

func WithCacheSize(n int) Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.CacheSize = n
		}
	}
}

func WithLoadConcurrency(n int) Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.LoadConcurrency = n
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
