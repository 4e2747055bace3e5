// Package collector polls the configured counter endpoints through an
// authorized session and normalizes the heterogeneous JSON responses into a
// flat sample set.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Dlizzz/fbxmetrics/internal/metrics"
	"github.com/Dlizzz/fbxmetrics/internal/types"
	"github.com/Dlizzz/fbxmetrics/pkg/sample"
)

// Requester is the authorized request capability the collector needs.
// Satisfied by *fbx.Session.
type Requester interface {
	AuthorizedRequest(ctx context.Context, method, path string, body any) (json.RawMessage, error)
}

// TargetError records one poll target's total failure. Partial failures
// never abort the remaining targets; the caller decides what to do with
// partial results.
type TargetError struct {
	Target string
	Err    error
}

func (e TargetError) Error() string {
	return fmt.Sprintf("target %s: %v", e.Target, e.Err)
}

func (e TargetError) Unwrap() error {
	return e.Err
}

// Collector issues the fixed set of authorized API calls and flattens the
// responses.
type Collector struct {
	session Requester
	targets []Target
	prefix  string
	now     func() time.Time
}

// New creates a collector over the given session and target table.
func New(session Requester, prefix string, targets []Target) *Collector {
	return &Collector{
		session: session,
		targets: targets,
		prefix:  prefix,
		now:     time.Now,
	}
}

// Collect runs one collection cycle. It returns the samples of every target
// that answered plus the list of targets that failed and why. A malformed
// field is skipped; a malformed target is reported; neither is fatal.
func (c *Collector) Collect(ctx context.Context) ([]sample.Sample, []TargetError) {
	var samples []sample.Sample
	var failures []TargetError
	at := c.now()

	for _, target := range c.targets {
		result, err := c.session.AuthorizedRequest(ctx, http.MethodGet, target.Path, nil)
		if err != nil {
			failures = append(failures, TargetError{Target: target.Name, Err: err})
			metrics.CollectErrors.WithLabelValues(target.Name).Inc()
			slog.Warn("poll target failed", "target", target.Name, "path", target.Path, "error", err)
			continue
		}

		flat, err := c.flatten(target, result, at)
		if err != nil {
			failures = append(failures, TargetError{Target: target.Name, Err: err})
			metrics.CollectErrors.WithLabelValues(target.Name).Inc()
			slog.Warn("poll target unparsable", "target", target.Name, "error", err)
			continue
		}

		samples = append(samples, flat...)
	}

	sample.Sort(samples)
	return samples, failures
}

func (c *Collector) flatten(target Target, result json.RawMessage, at time.Time) ([]sample.Sample, error) {
	base := c.prefix + target.Name

	switch target.Shape {
	case ShapeObject:
		var fields map[string]any
		if err := json.Unmarshal(result, &fields); err != nil {
			return nil, fmt.Errorf("decode object body: %w", err)
		}
		var out []sample.Sample
		flattenFields(base, "", fields, nil, at, &out)
		return out, nil

	case ShapeList:
		var entries []map[string]any
		if err := json.Unmarshal(result, &entries); err != nil {
			return nil, fmt.Errorf("decode list body: %w", err)
		}
		var out []sample.Sample
		for i, entry := range entries {
			labels := map[string]string{
				target.ItemLabel: entryLabel(entry, target.ItemKey, i),
			}
			flattenFields(base, "", entry, labels, at, &out)
		}
		return out, nil
	}

	return nil, fmt.Errorf("unknown target shape %d", target.Shape)
}

// entryLabel derives a list entry's label value from its identifying field,
// falling back to the entry index.
func entryLabel(entry map[string]any, key string, index int) string {
	if key != "" {
		switch v := entry[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return strconv.Itoa(index)
}

// flattenFields walks one JSON object, emitting a sample per numeric leaf.
// Nested objects join their keys into the metric name; booleans map to 0/1;
// strings and nested arrays are skipped. One bad field never drops the rest.
func flattenFields(base, keypath string, fields map[string]any, labels map[string]string, at time.Time, out *[]sample.Sample) {
	for key, value := range fields {
		path := key
		if keypath != "" {
			path = keypath + "_" + key
		}

		switch v := value.(type) {
		case float64:
			emit(base, path, v, labels, at, out)
		case bool:
			n := 0.0
			if v {
				n = 1.0
			}
			emit(base, path, n, labels, at, out)
		case map[string]any:
			flattenFields(base, path, v, labels, at, out)
		default:
			// strings, nulls and nested arrays carry no counter value
		}
	}
}

func emit(base, keypath string, value float64, labels map[string]string, at time.Time, out *[]sample.Sample) {
	name := base + "_" + types.SanitizeMetricName(keypath)
	if !types.MetricName(name).IsValid() {
		slog.Debug("skipping field with unusable name", "name", name)
		return
	}
	*out = append(*out, sample.New(name, value, labels, at))
}
