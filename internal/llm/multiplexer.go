package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/x7722/mobile-use/internal/telemetry"
)

// Profile names a configured provider/model pairing, resolved from
// internal/config's provider profiles (spec.md §7 "ProfileNotFound").
type Profile struct {
	Name     string
	Client   Client
	Fallback string // Profile.Name of a fallback to retry once on LLMFailure

	// Limiter throttles outbound calls against this profile client-side,
	// ahead of the provider's own 429s. Nil disables throttling.
	Limiter *rate.Limiter
}

// NotificationFunc is invoked when a call exceeds the non-fatal notification
// timeout (spec.md §5 "Timeouts": default 10s, does not cancel the call).
type NotificationFunc func(profile string)

// Multiplexer selects among configured provider profiles, applies the
// non-fatal notification timeout, and retries once against a fallback
// profile on rate limiting, a deadline overrun, or a missing structured
// output.
type Multiplexer struct {
	Profiles            map[string]Profile
	NotificationTimeout time.Duration
	Notify              NotificationFunc
	Logger              telemetry.Logger
}

// NewMultiplexer constructs a Multiplexer with the spec's default 10s
// notification timeout.
func NewMultiplexer(profiles map[string]Profile, logger telemetry.Logger) *Multiplexer {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Multiplexer{
		Profiles:            profiles,
		NotificationTimeout: 10 * time.Second,
		Logger:              logger,
	}
}

// ErrProfileNotFound indicates the requested profile name is not configured.
var ErrProfileNotFound = errors.New("llm: profile not found")

// Complete resolves profileName to a Client, issues the request, and retries
// once against Profile.Fallback when the error is ErrRateLimited,
// ErrStructuredOutputRequired, or context.DeadlineExceeded. Any other
// provider error is returned without trying the fallback. The notification
// timeout fires a non-fatal callback but never cancels the underlying call.
func (m *Multiplexer) Complete(ctx context.Context, profileName string, req *Request) (*Response, error) {
	profile, ok := m.Profiles[profileName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, profileName)
	}

	resp, err := m.completeWithNotification(ctx, profile, req)
	if err == nil {
		return resp, nil
	}
	if !isRetriable(err) || profile.Fallback == "" {
		return nil, err
	}

	m.Logger.Warn(ctx, "llm profile failed, retrying with fallback",
		"profile", profileName,
		"fallback", profile.Fallback,
		"error", err.Error(),
	)
	fallback, ok := m.Profiles[profile.Fallback]
	if !ok {
		return nil, fmt.Errorf("%w: %q (fallback for %q)", ErrProfileNotFound, profile.Fallback, profileName)
	}
	return m.completeWithNotification(ctx, fallback, req)
}

func (m *Multiplexer) completeWithNotification(ctx context.Context, profile Profile, req *Request) (*Response, error) {
	if profile.Limiter != nil {
		if err := profile.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("llm: rate limit wait for %q: %w", profile.Name, err)
		}
	}

	done := make(chan struct{})
	defer close(done)

	if m.Notify != nil && m.NotificationTimeout > 0 {
		go func() {
			timer := time.NewTimer(m.NotificationTimeout)
			defer timer.Stop()
			select {
			case <-timer.C:
				m.Notify(profile.Name)
			case <-done:
			}
		}()
	}

	return profile.Client.Complete(ctx, req)
}

func isRetriable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrStructuredOutputRequired) || errors.Is(err, context.DeadlineExceeded)
}
