// Package health tracks per-component health and rolls it up for the
// gateway's /healthz endpoint.
package health

import (
	"regexp"
	"time"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/component"
)

// sanitizeRules strip operational detail from error text before it is
// exposed on a health endpoint. Order matters: URLs embed paths, so they
// are replaced first.
var sanitizeRules = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`https?://[^\s]+`), "[URL]"},
	{regexp.MustCompile(`nats://[^\s]+`), "[URL]"},
	{regexp.MustCompile(`wss?://[^\s]+`), "[URL]"},
	{regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`), "[PATH]"},
	{regexp.MustCompile(`[A-Z]:\\[^:\s]+`), "[PATH]"},
	{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), "[IP]"},
	{regexp.MustCompile(`:\d{2,5}\b`), "[PORT]"},
	{regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`), "[REDACTED]"},
}

// Status is the health state of one component, or of the whole gateway
// when it carries SubStatuses.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"` // true only when Status is "healthy"
	Status      string    `json:"status"`  // "healthy", "unhealthy", "degraded"
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics is the operational detail attached to a status.
type Metrics struct {
	Uptime            time.Duration `json:"uptime"`
	ErrorCount        int           `json:"error_count"`
	MessagesProcessed int64         `json:"messages_processed,omitempty"`
	LastActivity      time.Time     `json:"last_activity,omitempty"`
}

// IsHealthy reports whether the status is "healthy".
func (s Status) IsHealthy() bool {
	return s.Status == "healthy"
}

// IsDegraded reports whether the status is "degraded".
func (s Status) IsDegraded() bool {
	return s.Status == "degraded"
}

// IsUnhealthy reports whether the status is "unhealthy".
func (s Status) IsUnhealthy() bool {
	return s.Status == "unhealthy"
}

// WithMetrics returns a copy of the status carrying the given metrics.
func (s Status) WithMetrics(metrics *Metrics) Status {
	s.Metrics = metrics
	return s
}

// WithSubStatus returns a copy of the status with one more sub-status.
// The sub-status slice is reallocated so copies never share backing
// arrays.
func (s Status) WithSubStatus(subStatus Status) Status {
	subStatuses := make([]Status, len(s.SubStatuses), len(s.SubStatuses)+1)
	copy(subStatuses, s.SubStatuses)
	s.SubStatuses = append(subStatuses, subStatus)
	return s
}

// sanitizeErrorMessage scrubs URLs, paths, addresses, ports and
// credential-looking fragments from an error string. Applied by
// FromComponentHealth so raw connection errors never leak topology or
// secrets through /healthz.
func sanitizeErrorMessage(err string) string {
	if err == "" {
		return ""
	}

	sanitized := err
	for _, rule := range sanitizeRules {
		sanitized = rule.pattern.ReplaceAllString(sanitized, rule.replacement)
	}
	return sanitized
}

// FromComponentHealth converts a component's self-reported
// component.HealthStatus into a Status suitable for the monitor.
func FromComponentHealth(name string, ch component.HealthStatus) Status {
	state := "unhealthy"
	if ch.Healthy {
		state = "healthy"
	}

	message := "component healthy"
	if ch.LastError != "" {
		message = sanitizeErrorMessage(ch.LastError)
	}

	return Status{
		Component: name,
		Healthy:   ch.Healthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
		Metrics: &Metrics{
			Uptime:       ch.Uptime,
			ErrorCount:   ch.ErrorCount,
			LastActivity: ch.LastCheck,
		},
	}
}
