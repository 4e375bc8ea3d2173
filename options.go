package redirect

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(opts)
	}
}

// WithPrefix provides an optional prefix for a generated id (see NewID).
func WithPrefix(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*idOptions); ok {
			o.withPrefix = prefix
		}
	}
}

// WithNow provides an optional time source, used when validating an
// id_token's time based claims.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if o, ok := o.(*verifierOptions); ok {
			o.withNowFunc = now
		}
	}
}

// WithLogger provides an optional hclog.Logger for a Processor. Without it,
// the processor is silent.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*processorOptions); ok {
			o.withLogger = l
		}
	}
}

// WithStateKey overrides the session key the single-use state value is bound
// under.
func WithStateKey(key string) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok {
			o.withStateKey = key
		}
	}
}

// WithNonceKey overrides the session key the single-use nonce value is bound
// under.
func WithNonceKey(key string) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok {
			o.withNonceKey = key
		}
	}
}

// WithUserKey overrides the session key a resolved user id is persisted
// under.
func WithUserKey(key string) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok {
			o.withUserKey = key
		}
	}
}
