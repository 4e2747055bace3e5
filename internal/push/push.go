// Package push serializes a collection cycle into the Prometheus text
// exposition format and delivers it to a Pushgateway. One push replaces the
// whole job/instance group, so a cycle's payload fully supersedes the
// previous one and stale series cannot accumulate at the sink.
package push

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	fbxerrors "github.com/Dlizzz/fbxmetrics/internal/errors"
	"github.com/Dlizzz/fbxmetrics/pkg/sample"
)

// Client delivers exposition payloads to one Pushgateway group.
type Client struct {
	base       *url.URL
	job        string
	instance   string
	httpClient *http.Client

	// gatherer supplies the collector's own instrumentation, appended to
	// every network payload. Nil disables the section.
	gatherer prometheus.Gatherer
}

// New creates a push client for the given sink and grouping labels.
func New(sinkURL, job, instance string, timeout time.Duration, gatherer prometheus.Gatherer) (*Client, error) {
	u, err := url.Parse(normalizeBase(sinkURL))
	if err != nil {
		return nil, fmt.Errorf("parse sink URL: %w", err)
	}

	return &Client{
		base:       u,
		job:        job,
		instance:   instance,
		httpClient: &http.Client{Timeout: timeout},
		gatherer:   gatherer,
	}, nil
}

func normalizeBase(s string) string {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return strings.TrimRight(s, "/")
	}
	return "http://" + strings.TrimRight(s, "/")
}

// groupURL builds the Pushgateway group path. Job and instance are path
// segments and get escaped accordingly.
func (c *Client) groupURL() string {
	return strings.TrimRight(c.base.String(), "/") +
		"/metrics/job/" + url.PathEscape(c.job) +
		"/instance/" + url.PathEscape(c.instance)
}

// Render serializes samples into exposition lines: one line per sample,
// `name{label="value"} value`. Input order is preserved; callers hand in
// sorted samples so identical cycles render identical payloads.
func Render(samples []sample.Sample) []byte {
	var b bytes.Buffer
	for _, s := range samples {
		b.WriteString(s.Name)
		b.WriteByte('{')
		b.WriteString(s.LabelString())
		b.WriteString("} ")
		b.WriteString(strconv.FormatFloat(s.Value, 'g', -1, 64))
		b.WriteByte('\n')
	}
	return b.Bytes()
}

// WriteTo writes the rendered payload to w. This is the dry-run path: same
// serialization as a push, no network side effect.
func (c *Client) WriteTo(w io.Writer, samples []sample.Sample) error {
	_, err := w.Write(Render(samples))
	return err
}

// Push delivers one cycle. The PUT verb makes the group replace its previous
// content. Failures are classified, logged by the caller, and never fatal:
// the next cycle simply tries again.
func (c *Client) Push(ctx context.Context, samples []sample.Sample) error {
	const op = "push.send"

	body := bytes.NewBuffer(Render(samples))
	if err := c.appendSelfMetrics(body); err != nil {
		slog.Debug("skipping self-instrumentation section", "error", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.groupURL(), body)
	if err != nil {
		return fbxerrors.E(fbxerrors.KindPushUnreachable, op, err)
	}
	req.Header.Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fbxerrors.E(fbxerrors.KindPushUnreachable, op, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fbxerrors.Errorf(fbxerrors.KindPushRejected, op,
			"sink returned status %d", resp.StatusCode)
	}

	slog.Debug("payload pushed", "samples", len(samples), "url", c.groupURL())
	return nil
}

// appendSelfMetrics encodes the instrumentation registry after the sample
// section so cycle health ships with the counters it describes.
func (c *Client) appendSelfMetrics(w io.Writer) error {
	if c.gatherer == nil {
		return nil
	}

	families, err := c.gatherer.Gather()
	if err != nil {
		return err
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			return err
		}
	}
	return nil
}
