package waveform

// DefaultConcurrency bounds the puddle retrievals in flight during Load.
const DefaultConcurrency = 8

type Options struct {
	Concurrency int
}

// Option is a generic option type. Implementations type assert to their
// options record and ignore options that do not apply.
type Option func(any)

func WithConcurrency(n int) Option {
	return func(opts any) {
		if o, ok := opts.(*Options); ok {
			o.Concurrency = n
		}
	}
}
