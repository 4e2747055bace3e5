// Package sample defines the flat metric sample produced by one collection
// cycle. Samples are immutable once built and carry everything the push
// client needs to render one exposition line.
package sample

import (
	"sort"
	"strings"
	"time"
)

// Sample is a single named numeric observation with its label set.
type Sample struct {
	Name   string
	Value  float64
	Labels map[string]string
	At     time.Time
}

// New builds a sample, copying the label map so later mutation of the
// caller's map cannot alias into the sample.
func New(name string, value float64, labels map[string]string, at time.Time) Sample {
	var copied map[string]string
	if len(labels) > 0 {
		copied = make(map[string]string, len(labels))
		for k, v := range labels {
			copied[k] = v
		}
	}
	return Sample{Name: name, Value: value, Labels: copied, At: at}
}

// LabelString renders the label set as `k1="v1",k2="v2"` with keys sorted,
// so the same logical sample always serializes identically.
func (s Sample) LabelString() string {
	if len(s.Labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(s.Labels))
	for k := range s.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(escapeLabelValue(s.Labels[k]))
		b.WriteByte('"')
	}
	return b.String()
}

func escapeLabelValue(v string) string {
	if !strings.ContainsAny(v, "\\\"\n") {
		return v
	}
	var b strings.Builder
	for _, r := range v {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Sort orders samples by name, then by serialized label set. The sink does
// not care about order; stable output matters for diffing dry-run payloads.
func Sort(samples []Sample) {
	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}
		return samples[i].LabelString() < samples[j].LabelString()
	})
}
