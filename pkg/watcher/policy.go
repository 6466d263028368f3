package watcher

import "time"

// DefaultReconnectDelay is the wait before reopening a closed socket.
const DefaultReconnectDelay = 3 * time.Second

// ReconnectPolicy decides how long to wait before each reconnect.
//
// The n-th consecutive reconnect waits Delay * Multiplier^(n-1), capped at
// MaxDelay when that is set. MaxAttempts of zero means no limit. The attempt
// count resets whenever a socket opens.
type ReconnectPolicy struct {
	Delay       time.Duration `yaml:"delay"`
	Multiplier  float64       `yaml:"multiplier"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// DefaultReconnectPolicy reconnects forever with a fixed 3s delay.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{Delay: DefaultReconnectDelay, Multiplier: 1}
}

// Next returns the wait before reconnect number attempt (1-based) and false
// when the policy gives up.
func (p ReconnectPolicy) Next(attempt int) (time.Duration, bool) {
	if p.MaxAttempts > 0 && attempt > p.MaxAttempts {
		return 0, false
	}

	delay := p.Delay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}

	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	d := float64(delay)
	for i := 1; i < attempt; i++ {
		d *= mult
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			return p.MaxDelay, true
		}
	}

	if p.MaxDelay > 0 && time.Duration(d) > p.MaxDelay {
		return p.MaxDelay, true
	}

	return time.Duration(d), true
}
