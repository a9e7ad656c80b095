package retry

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"net"
	"syscall"
	"time"
)

// Operation is retried until it succeeds, is classified as permanent,
// or the policy's attempt budget is exhausted.
type Operation = func(ctx context.Context) error

// Classifier reports whether an error is worth another attempt.
type Classifier = func(err error) bool

type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	// JitterFraction is the upper bound of the random delay add-on,
	// as a fraction of the computed backoff. Zero disables jitter.
	JitterFraction float64
}

func NewDefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		Multiplier:     2.0,
		MaxDelay:       30 * time.Second,
		JitterFraction: 0.5,
	}
}

// NewSlowServicePolicy fits unusually slow backing calls: more attempts,
// longer delays.
func NewSlowServicePolicy() *Policy {
	return &Policy{
		MaxAttempts:    5,
		InitialDelay:   2 * time.Second,
		Multiplier:     2.0,
		MaxDelay:       60 * time.Second,
		JitterFraction: 0.5,
	}
}

// Delay returns the backoff before attempt n+1, given n completed
// attempts: min(InitialDelay * Multiplier^n, MaxDelay), without jitter.
func (p *Policy) Delay(completed int) time.Duration {
	if completed < 1 {
		completed = 1
	}
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(completed-1))
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Do runs op up to MaxAttempts times. Errors rejected by retryable are
// returned immediately; otherwise Do sleeps Delay(n) plus jitter between
// attempts and returns the last error once the budget is spent.
func (p *Policy) Do(ctx context.Context, op Operation, retryable Classifier) error {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			return err
		}

		delay := p.Delay(attempt)
		if p.JitterFraction > 0 {
			delay += time.Duration(rnd.Float64() * p.JitterFraction * float64(delay))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

// IsNetworkError reports whether err looks like a socket-level or timeout
// failure: connection refused/reset, broken pipe, DNS trouble, deadline
// expiry.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout() || isTemporary(netErr)
	}
	return false
}

func isTemporary(err net.Error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}
	return false
}
