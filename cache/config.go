package cache

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

// Config exposes the manager's tunables.
type Config struct {
	// DefaultTTL applies when GetOrFetch is called with a non-positive ttl.
	DefaultTTL time.Duration

	// FetchTimeout bounds a single shared fetch. Every waiter of a fetch that
	// exceeds it receives ErrFetchTimeout.
	FetchTimeout time.Duration

	// Codec names the payload serializer ("msgpack" or "json").
	Codec string
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:   5 * time.Minute,
		FetchTimeout: 10 * time.Second,
		Codec:        CodecMsgpack,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.DefaultTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.FetchTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.Codec, validation.In(CodecMsgpack, CodecJSON, "")),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid cache configuration")
	}
	return nil
}
