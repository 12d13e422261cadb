package errorreporting

import (
	"fmt"
	"regexp"
	"time"

	"github.com/getsentry/sentry-go"
)

// Patterns scrubbed from outgoing events. Cache keys and factory errors
// can carry local music file paths and external API credentials.
var scrubPatterns = []*regexp.Regexp{
	// Discogs / MusicBrainz tokens and generic API keys
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret)["\s:=]+[a-zA-Z0-9_-]{16,}`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_-]{20,}`),
	// Email addresses
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	// Local library paths (Windows drive or Unix home), often embedded in track keys
	regexp.MustCompile(`(?i)[a-z]:\\[^\s"']+`),
	regexp.MustCompile(`/(?:home|Users)/[^\s"']+`),
}

var enabled bool

// Init initializes Sentry error reporting. An empty DSN disables
// reporting without error.
func Init(dsn, environment, release string) error {
	if dsn == "" {
		enabled = false
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		BeforeSend:       beforeSend,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	enabled = true
	return nil
}

// beforeSend scrubs file paths and credentials before events leave the process.
func beforeSend(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	for i := range event.Exception {
		event.Exception[i].Value = Scrub(event.Exception[i].Value)
	}
	if event.Message != "" {
		event.Message = Scrub(event.Message)
	}
	for key, value := range event.Extra {
		if str, ok := value.(string); ok {
			event.Extra[key] = Scrub(str)
		}
	}
	return event
}

// Scrub removes library paths and credentials from a string.
func Scrub(text string) string {
	result := text
	for _, pattern := range scrubPatterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// CaptureError captures an error and sends it to Sentry.
func CaptureError(err error) {
	if err == nil || !enabled {
		return
	}
	sentry.CaptureException(err)
}

// CaptureErrorWithContext captures an error with additional tags and extras.
func CaptureErrorWithContext(err error, tags map[string]string, extras map[string]interface{}) {
	if err == nil || !enabled {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		for k, v := range extras {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// IsEnabled returns true if Sentry reporting is active.
func IsEnabled() bool {
	return enabled
}

// Flush waits for all pending events to be sent.
func Flush(timeout time.Duration) bool {
	if !enabled {
		return true
	}
	return sentry.Flush(timeout)
}
