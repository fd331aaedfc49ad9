package target

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig defines startup connect retry behavior. There is no mid-run
// reconnect: a session that drops stays down until the process restarts.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Delay returns the backoff for attempt N (1-based).
func (b BackoffConfig) Delay(attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return b.InitialDelay
	}
	if b.InitialDelay <= 0 {
		return 0
	}
	if b.Multiplier < 1.0 {
		b.Multiplier = 1.0
	}
	delay := float64(b.InitialDelay) * math.Pow(b.Multiplier, float64(attempt-1))
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	if b.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}

// Config defines transport timeouts and read shaping.
type Config struct {
	// ConnectTimeout bounds a single dial attempt.
	ConnectTimeout time.Duration
	// AckTimeout bounds the wait for the '+'/'-' acknowledgement after a
	// send. Response packets themselves are read without a deadline: a hung
	// target stalls the loop, which is accepted for this client.
	AckTimeout time.Duration
	// WriteTimeout bounds a single packet write.
	WriteTimeout time.Duration
	// MaxConnectAttempts caps startup dial attempts before giving up.
	MaxConnectAttempts int
	// MaxSendAttempts caps resends after negative acknowledgements.
	MaxSendAttempts int
	// MaxReadChunk splits large memory reads into bounded requests.
	MaxReadChunk int

	Backoff BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:     5 * time.Second,
		AckTimeout:         2 * time.Second,
		WriteTimeout:       5 * time.Second,
		MaxConnectAttempts: 3,
		MaxSendAttempts:    3,
		MaxReadChunk:       1024,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = def.AckTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.MaxConnectAttempts <= 0 {
		c.MaxConnectAttempts = def.MaxConnectAttempts
	}
	if c.MaxSendAttempts <= 0 {
		c.MaxSendAttempts = def.MaxSendAttempts
	}
	if c.MaxReadChunk <= 0 {
		c.MaxReadChunk = def.MaxReadChunk
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = def.Backoff
	}
	return c
}
