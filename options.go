// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package recbuf

import "go.uber.org/zap"

// Mode selects which of the two content-framing variants the Driver runs:
// the TLS branch (handshake messages may span records, record-boundary
// header splits are recoverable via ErrRetry) or the DTLS branch (each
// record carries a self-contained fragment, per-fragment headers, no
// retry path across records).
type Mode uint8

const (
	TLS Mode = iota + 1
	DTLS
)

func (m Mode) String() string {
	switch m {
	case TLS:
		return "tls"
	case DTLS:
		return "dtls"
	default:
		return "mode(unknown)"
	}
}

// defaultMaxGroups bounds nested-group depth: a small constant,
// statically sufficient for the nesting depth real handshake flights use.
const defaultMaxGroups = 5

// Options configures a Driver (and, via WithMaxGroups, an ExtWriter used
// standalone).
type Options struct {
	// MaxGroups bounds the extended writer's nested group stack depth.
	MaxGroups int

	// AllowInterleaving is a runtime switch rather than a compile-time
	// one: when false (the default), the Driver rejects opening a
	// non-Handshake write channel while a handshake message is Paused
	// (ErrNoInterleaving).
	AllowInterleaving bool

	// Logger receives structured debug/warn events from the Driver. It
	// defaults to zap.NewNop(), and a nil Logger is replaced with it, so callers
	// that don't configure one observe no behavior change.
	Logger *zap.Logger
}

var defaultOptions = Options{
	MaxGroups:         defaultMaxGroups,
	AllowInterleaving: false,
	Logger:            zap.NewNop(),
}

// Option configures Options.
type Option func(*Options)

// WithMaxGroups overrides the extended writer's nested group stack depth.
func WithMaxGroups(n int) Option {
	return func(o *Options) { o.MaxGroups = n }
}

// WithAllowInterleaving allows non-handshake content to be dispatched
// while a handshake message is paused.
func WithAllowInterleaving(allow bool) Option {
	return func(o *Options) { o.AllowInterleaving = allow }
}

// WithLogger attaches a structured logger to the Driver.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func resolveOptions(opts []Option) Options {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	if o.MaxGroups <= 0 {
		o.MaxGroups = defaultMaxGroups
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
