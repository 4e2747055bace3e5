// Package types provides core domain types and validation utilities for
// fbxmetrics. It defines fundamental types like MetricName, AppID and
// TrackID along with their validation logic and error definitions.
package types

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MetricName represents a Prometheus metric name.
type MetricName string

// LabelName represents a Prometheus label name.
type LabelName string

// AppID represents the application identifier registered with the Freebox.
type AppID string

// TrackID represents the registration tracking identifier issued by the
// Freebox while an authorization request awaits operator approval.
type TrackID int

var (
	// ErrInvalidMetricName is returned when a metric name is invalid.
	ErrInvalidMetricName = errors.New("invalid metric name")
	// ErrInvalidAppID is returned when an application ID is invalid.
	ErrInvalidAppID = errors.New("invalid app ID")
	// ErrInvalidTrackID is returned when a track ID is invalid.
	ErrInvalidTrackID = errors.New("invalid track ID")

	metricNameRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	labelNameRegex  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	appIDRegex      = regexp.MustCompile(`^[a-z][a-z0-9._\-]*$`)

	invalidMetricChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	repeatedUnderscore = regexp.MustCompile(`_+`)
)

// NewMetricName creates a new MetricName with validation.
func NewMetricName(name string) (MetricName, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidMetricName)
	}
	if !metricNameRegex.MatchString(name) {
		return "", fmt.Errorf("%w: %s", ErrInvalidMetricName, name)
	}
	return MetricName(name), nil
}

// IsValid checks if the MetricName meets the Prometheus naming rules.
func (m MetricName) IsValid() bool {
	return metricNameRegex.MatchString(string(m))
}

func (m MetricName) String() string {
	return string(m)
}

// SanitizeMetricName normalizes an arbitrary counter key into a valid metric
// name suffix. The mapping is deterministic so the same logical counter
// always maps to the same name across runs.
func SanitizeMetricName(raw string) string {
	s := strings.ToLower(raw)
	s = invalidMetricChars.ReplaceAllString(s, "_")
	s = repeatedUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unnamed"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return s
}

// SanitizeLabelName normalizes a JSON key into a valid label name.
func SanitizeLabelName(raw string) string {
	return SanitizeMetricName(raw)
}

// IsValid checks if the LabelName is valid.
func (l LabelName) IsValid() bool {
	return labelNameRegex.MatchString(string(l))
}

func (l LabelName) String() string {
	return string(l)
}

// NewAppID creates a new AppID with validation. The Freebox shows the app ID
// on its front panel during authorization, so it must be well-formed.
func NewAppID(id string) (AppID, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAppID)
	}
	if len(id) > 64 {
		return "", fmt.Errorf("%w: too long (%d characters)", ErrInvalidAppID, len(id))
	}
	if !appIDRegex.MatchString(id) {
		return "", fmt.Errorf("%w: %s", ErrInvalidAppID, id)
	}
	return AppID(id), nil
}

func (a AppID) String() string {
	return string(a)
}

// NewTrackID creates a new TrackID with validation.
func NewTrackID(id int) (TrackID, error) {
	if id <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidTrackID, id)
	}
	return TrackID(id), nil
}

// IsValid checks if the TrackID has been assigned by the device.
func (t TrackID) IsValid() bool {
	return t > 0
}

func (t TrackID) Int() int {
	return int(t)
}
