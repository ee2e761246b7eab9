package ai

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// Retrying wraps a Provider and retries transient transport failures
// (timeouts, refused or reset connections). Status errors and malformed
// bodies are returned on the first attempt.
type Retrying struct {
	next     Provider
	attempts int
	backoff  time.Duration
	log      *log.Helper

	sleep func(ctx context.Context, d time.Duration) error
}

func WithRetry(next Provider, attempts int, backoff time.Duration, logger log.Logger) *Retrying {
	if attempts <= 0 {
		attempts = 3
	}
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Retrying{
		next:     next,
		attempts: attempts,
		backoff:  backoff,
		log:      log.NewHelper(logger),
		sleep:    sleepCtx,
	}
}

func (r *Retrying) Generate(ctx context.Context, req Request) (string, error) {
	var err error
	wait := r.backoff
	for attempt := 1; attempt <= r.attempts; attempt++ {
		var out string
		out, err = r.next.Generate(ctx, req)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil || !IsTransient(err) || attempt == r.attempts {
			break
		}
		r.log.WithContext(ctx).Warnw("msg", "generation attempt failed, retrying",
			"attempt", attempt, "backoff", wait.String(), "err", err)
		if serr := r.sleep(ctx, wait); serr != nil {
			return "", serr
		}
		wait *= 2
	}
	return "", err
}

// IsTransient reports whether err looks like a network hiccup worth another
// attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var op *net.OpError
	if errors.As(err, &op) {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
