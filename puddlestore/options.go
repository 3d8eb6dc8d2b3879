package puddlestore

// StoreOptions configure a Store.
type StoreOptions struct {
	// Compress stores puddle values zstd compressed. Reading handles either
	// codec regardless.
	Compress bool
	// CacheSize is the number of decoded puddles kept, zero disables the
	// cache.
	CacheSize int
}

// Option is a generic option type. Implementations type assert to their
// options record and ignore options that do not apply.
type Option func(any)

func WithCompression(enabled bool) Option {
	return func(opts any) {
		if o, ok := opts.(*StoreOptions); ok {
			o.Compress = enabled
		}
	}
}

func WithCacheSize(n int) Option {
	return func(opts any) {
		if o, ok := opts.(*StoreOptions); ok {
			o.CacheSize = n
		}
	}
}
