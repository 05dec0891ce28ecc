// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements AccessLog, the one structured line written per request.
//
// Bodies are never logged: order payloads carry names, phone numbers and
// delivery addresses. Query parameters that hold the same data (address,
// phonenumber, firstname, lastname, comment) are masked outright; every other
// parameter and the logged headers are scrubbed of emails, UUIDs and phone
// numbers, including the Russian formats customers type
// ("8 (999) 123-45-67", "+7 999 1234567").
//
// Only an allowlist of request headers is logged at all.
package middleware

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const redacted = "[REDACTED]"

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Trunk 8 or +7, then 3-3-2-2 digit groups.
	ruPhoneRE = regexp.MustCompile(`(?:\+7|\b8|\b7)[ .-]?\(?\d{3}\)?[ .-]?\d{3}[ .-]?\d{2}[ .-]?\d{2}\b`)
	// Digits only, so hex runs of an ID never match.
	intlPhoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// Order-form fields that may show up in query strings.
var defaultMaskParams = []string{"address", "phonenumber", "phone", "firstname", "lastname", "comment"}

var defaultLogHeaders = []string{
	"User-Agent",
	"Content-Type",
	"Content-Length",
	"If-None-Match",
	HeaderIdempotencyKey,
}

// AccessLogOptions configures AccessLog. Nil slices select the defaults.
type AccessLogOptions struct {
	// MaskParams are query parameter names (case-insensitive) whose values
	// are replaced entirely.
	MaskParams []string
	// LogHeaders are the request headers copied into the log line.
	LogHeaders []string
}

// scrub replaces IDs, emails and phone numbers in s. IDs go first so the
// phone patterns never see their digit groups.
func scrub(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	s = ruPhoneRE.ReplaceAllString(s, "[REDACTED:phone]")
	return intlPhoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// safeQuery renders raw with masked and scrubbed values, keys sorted. A query
// that does not parse is scrubbed as a whole.
func safeQuery(raw string, mask map[string]struct{}) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return truncate(scrub(raw), maxQueryLogLength)
	}
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		_, masked := mask[strings.ToLower(k)]
		for _, v := range vals[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(k)
			b.WriteByte('=')
			if masked {
				b.WriteString(redacted)
			} else {
				b.WriteString(scrub(v))
			}
		}
	}
	return truncate(b.String(), maxQueryLogLength)
}

// AccessLog returns a middleware that logs each finished request through the
// request-scoped logger (see ContextLogger), so request_id and trace_id come
// along. Level is info, warn for 4xx, error for 5xx or when handlers attached
// errors to the context.
func AccessLog(opts AccessLogOptions) gin.HandlerFunc {
	maskList := opts.MaskParams
	if maskList == nil {
		maskList = defaultMaskParams
	}
	mask := make(map[string]struct{}, len(maskList))
	for _, p := range maskList {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			mask[p] = struct{}{}
		}
	}
	headers := opts.LogHeaders
	if headers == nil {
		headers = defaultLogHeaders
	}

	return func(c *gin.Context) {
		start := time.Now()
		query := safeQuery(c.Request.URL.RawQuery, mask)
		hdr := zerolog.Dict()
		for _, h := range headers {
			if v := c.GetHeader(h); v != "" {
				hdr = hdr.Str(h, scrub(v))
			}
		}

		c.Next()

		status := c.Writer.Status()
		l := LoggerFrom(c)
		var ev *zerolog.Event
		switch {
		case len(c.Errors) > 0:
			ev = l.Error().Str("errors", c.Errors.String())
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		default:
			ev = l.Info()
		}

		// Without ContextLogger upstream the logger carries no request fields.
		if _, ok := c.Get(loggerKey); !ok {
			rid := c.Writer.Header().Get(requestIDHeader)
			if rid == "" {
				rid = c.GetHeader(requestIDHeader)
			}
			ev = ev.Str("request_id", rid).
				Str("method", c.Request.Method).
				Str("path", routeLabel(c))
		}
		if id := c.Param("id"); id != "" {
			ev = ev.Str("resource_id", id)
		}
		if c.Writer.Header().Get(HeaderIdempotencyReplayed) == "true" {
			ev = ev.Bool("replayed", true)
		}

		ev.Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Dict("headers", hdr).
			Msg("http_request")
	}
}
