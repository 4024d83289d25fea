// Package sentry configures error reporting and scrubs sensitive data from
// Sentry events before they leave the process.
package sentry

import (
	"net/url"

	"github.com/getsentry/sentry-go"
)

// sensitiveHeaders are HTTP headers that should be redacted from Sentry events.
var sensitiveHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
	"Set-Cookie":    true,
}

// sensitiveKeys are field names that may contain sensitive data in tags,
// breadcrumb metadata or query strings.
var sensitiveKeys = map[string]bool{
	"token":          true,
	"secret":         true,
	"hostSecret":     true,
	"hostSecretHash": true,
	"joinCode":       true,
	"jwt":            true,
	"authorization":  true,
	"cookie":         true,
}

// Init configures the global Sentry client. An empty DSN disables reporting
// and is not an error.
func Init(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:                   dsn,
		Environment:           environment,
		Release:               release,
		AttachStacktrace:      true,
		SendDefaultPII:        false,
		BeforeSend:            ScrubEvent,
		BeforeSendTransaction: ScrubTransaction,
	})
}

// ScrubEvent removes sensitive data from a Sentry event before it is sent.
// It redacts sensitive headers and query parameters, strips request bodies,
// and scrubs tags.
func ScrubEvent(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if event.Request != nil {
		for header := range event.Request.Headers {
			if sensitiveHeaders[header] {
				event.Request.Headers[header] = "[Filtered]"
			}
		}
		// Request bodies may carry host secrets and join codes.
		event.Request.Data = ""
		event.Request.QueryString = scrubQuery(event.Request.QueryString)
	}

	for key := range event.Tags {
		if sensitiveKeys[key] {
			event.Tags[key] = "[Filtered]"
		}
	}

	for i := range event.Breadcrumbs {
		for key := range event.Breadcrumbs[i].Data {
			if sensitiveKeys[key] {
				event.Breadcrumbs[i].Data[key] = "[Filtered]"
			}
		}
	}

	return event
}

// ScrubTransaction applies the same scrubbing logic to transaction events.
func ScrubTransaction(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	return ScrubEvent(event, hint)
}

func scrubQuery(raw string) string {
	if raw == "" {
		return raw
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "[Filtered]"
	}
	changed := false
	for key := range values {
		if sensitiveKeys[key] {
			values.Set(key, "[Filtered]")
			changed = true
		}
	}
	if !changed {
		return raw
	}
	return values.Encode()
}
