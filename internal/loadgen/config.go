package loadgen

// MaxDurationSeconds caps Config.DurationSeconds at one day.
const MaxDurationSeconds = 24 * 60 * 60

// Config is immutable for the lifetime of one run.
type Config struct {
	DurationSeconds int `json:"duration_seconds"`
	PayloadBytes    int `json:"payload_bytes"`
	Workers         int `json:"workers"`
}

// Limits are operator ceilings applied on top of the fixed lower bounds.
// A value < 1 disables that ceiling.
type Limits struct {
	Workers      int
	PayloadBytes int
}

// DefaultConfig fills fields a start request leaves out.
func DefaultConfig() Config {
	return Config{DurationSeconds: 10, PayloadBytes: 0, Workers: 1}
}

// Clamp forces every field into its valid range.
func (c Config) Clamp(l Limits) Config {
	c.DurationSeconds = min(max(c.DurationSeconds, 1), MaxDurationSeconds)
	c.PayloadBytes = max(c.PayloadBytes, 0)
	c.Workers = max(c.Workers, 1)

	if l.Workers >= 1 {
		c.Workers = min(c.Workers, l.Workers)
	}
	if l.PayloadBytes >= 1 {
		c.PayloadBytes = min(c.PayloadBytes, l.PayloadBytes)
	}

	return c
}
