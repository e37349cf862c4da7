package workload

import (
	"errors"
	"fmt"
	"time"
)

// Config shapes a workload run.
type Config struct {
	// Callers is the number of concurrent callers.
	Callers int

	// Keys is the size of the key space. Each caller picks a key from
	// "0" to strconv.Itoa(Keys-1) uniformly at random.
	Keys int

	// Work is how long the guarded work takes.
	Work time.Duration

	// FailureRate is the probability (0.0-1.0) that one run of the work fails.
	FailureRate float64

	// Concurrency caps the number of callers in flight. Zero means no cap.
	Concurrency int

	// Attempts is the number of barrier calls a caller makes before giving
	// up on failing work. Values below 2 disable retries.
	Attempts int

	// Seed makes key choice and failure injection reproducible.
	Seed uint64
}

// DefaultConfig returns 100 callers over 10 keys with 5 seconds of work.
func DefaultConfig() Config {
	return Config{
		Callers:  100,
		Keys:     10,
		Work:     5 * time.Second,
		Attempts: 1,
		Seed:     1,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Callers < 1:
		return fmt.Errorf("callers must be positive, got %d", c.Callers)
	case c.Keys < 1:
		return fmt.Errorf("keys must be positive, got %d", c.Keys)
	case c.Work < 0:
		return errors.New("work cannot be negative")
	case c.FailureRate < 0 || c.FailureRate > 1:
		return fmt.Errorf("failure rate must be within [0, 1], got %v", c.FailureRate)
	case c.Concurrency < 0:
		return fmt.Errorf("concurrency cannot be negative, got %d", c.Concurrency)
	case c.Attempts < 0:
		return fmt.Errorf("attempts cannot be negative, got %d", c.Attempts)
	}
	return nil
}
