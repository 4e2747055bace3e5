// Package discovery resolves the Freebox management API endpoint on the
// local network. The Freebox advertises itself over mDNS as `_fbx-api._tcp`;
// when mDNS is unavailable (container without multicast, segmented network)
// the well-known gateway hostname answers the same description on
// `/api_version`.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	fbxerrors "github.com/Dlizzz/fbxmetrics/internal/errors"
)

const serviceType = "_fbx-api._tcp"

// Endpoint describes a resolved Freebox API entry point. Immutable once
// resolved.
type Endpoint struct {
	Host        string
	Port        int
	APIBasePath string
	APIVersion  string
	UID         string
	DeviceType  string
	HTTPS       bool
}

// BaseURL builds the versioned API root, e.g.
// `http://mafreebox.freebox.fr/api/v4`. Only the major version appears in
// the path, as the Freebox API mandates.
func (e Endpoint) BaseURL() string {
	scheme := "http"
	defaultPort := 80
	if e.HTTPS {
		scheme = "https"
		defaultPort = 443
	}

	hostport := e.Host
	if e.Port != 0 && e.Port != defaultPort {
		hostport = fmt.Sprintf("%s:%d", e.Host, e.Port)
	}

	base := e.APIBasePath
	if base == "" {
		base = "/api/"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	return fmt.Sprintf("%s://%s%sv%s", scheme, hostport, base, e.MajorVersion())
}

// MajorVersion returns the major component of the advertised API version.
func (e Endpoint) MajorVersion() string {
	if i := strings.IndexByte(e.APIVersion, '.'); i > 0 {
		return e.APIVersion[:i]
	}
	if e.APIVersion == "" {
		return "4"
	}
	return e.APIVersion
}

// Resolver finds the Freebox endpoint and caches the result. One resolution
// per run is the norm; the scheduler invalidates the cache after a failed
// cycle so the next one re-resolves.
type Resolver struct {
	timeout      time.Duration
	fallbackBase string
	client       *http.Client

	mu     sync.Mutex
	cached *Endpoint
}

// NewResolver creates a resolver. fallbackHost is the gateway hostname tried
// over plain HTTP when mDNS yields nothing.
func NewResolver(fallbackHost string, timeout time.Duration) *Resolver {
	return &Resolver{
		timeout:      timeout,
		fallbackBase: "http://" + fallbackHost,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Resolve returns the cached endpoint or performs a fresh discovery.
func (r *Resolver) Resolve(ctx context.Context) (Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil {
		return *r.cached, nil
	}

	ep, err := r.browse(ctx)
	if err != nil {
		slog.Debug("mDNS discovery failed, trying gateway hostname", "error", err)
		ep, err = r.describe(ctx)
		if err != nil {
			return Endpoint{}, err
		}
	}

	slog.Info("freebox discovered",
		"host", ep.Host,
		"api_version", ep.APIVersion,
		"uid", ep.UID,
		"device_type", ep.DeviceType)

	r.cached = &ep
	return ep, nil
}

// Invalidate drops the cached endpoint so the next Resolve re-discovers.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = nil
}

// browse performs the bounded mDNS browse for the Freebox service.
func (r *Resolver) browse(ctx context.Context) (Endpoint, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return Endpoint{}, fbxerrors.E(fbxerrors.KindUnreachable, "discovery.browse", err)
	}

	browseCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(browseCtx, serviceType, "local.", entries); err != nil {
		return Endpoint{}, fbxerrors.E(fbxerrors.KindUnreachable, "discovery.browse", err)
	}

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return Endpoint{}, fbxerrors.Errorf(fbxerrors.KindUnreachable,
					"discovery.browse", "no freebox found on the local network")
			}
			if entry == nil {
				continue
			}
			if ep, ok := endpointFromEntry(entry); ok {
				return ep, nil
			}
		case <-browseCtx.Done():
			return Endpoint{}, fbxerrors.Errorf(fbxerrors.KindUnreachable,
				"discovery.browse", "no freebox found on the local network after %v", r.timeout)
		}
	}
}

// endpointFromEntry maps one mDNS answer to an Endpoint. The Freebox
// publishes its API description as TXT records.
func endpointFromEntry(entry *zeroconf.ServiceEntry) (Endpoint, bool) {
	txt := make(map[string]string, len(entry.Text))
	for _, kv := range entry.Text {
		if i := strings.IndexByte(kv, '='); i > 0 {
			txt[kv[:i]] = kv[i+1:]
		}
	}

	ep := Endpoint{
		Port:        entry.Port,
		APIBasePath: txt["api_base_url"],
		APIVersion:  txt["api_version"],
		UID:         txt["uid"],
		DeviceType:  txt["device_type"],
	}

	// Prefer the stable API domain over the mDNS address; it matches the
	// certificate when HTTPS is configured on the box.
	if domain := txt["api_domain"]; domain != "" && txt["https_available"] == "1" {
		ep.Host = domain
		ep.HTTPS = true
		if p, err := strconv.Atoi(txt["https_port"]); err == nil {
			ep.Port = p
		}
	} else if entry.HostName != "" {
		ep.Host = strings.TrimSuffix(entry.HostName, ".")
	} else if len(entry.AddrIPv4) > 0 {
		ep.Host = entry.AddrIPv4[0].String()
	}

	if ep.Host == "" || ep.APIVersion == "" {
		return Endpoint{}, false
	}
	return ep, true
}

// apiVersionDescription is the (unwrapped) body of GET /api_version.
type apiVersionDescription struct {
	UID            string `json:"uid"`
	DeviceName     string `json:"device_name"`
	DeviceType     string `json:"device_type"`
	APIVersion     string `json:"api_version"`
	APIBaseURL     string `json:"api_base_url"`
	APIDomain      string `json:"api_domain"`
	HTTPSAvailable bool   `json:"https_available"`
	HTTPSPort      int    `json:"https_port"`
}

// describe queries the gateway hostname for its API description.
func (r *Resolver) describe(ctx context.Context) (Endpoint, error) {
	url := r.fallbackBase + "/api_version"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Endpoint{}, fbxerrors.E(fbxerrors.KindUnreachable, "discovery.describe", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Endpoint{}, fbxerrors.E(fbxerrors.KindUnreachable, "discovery.describe", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Endpoint{}, fbxerrors.Errorf(fbxerrors.KindUnreachable,
			"discovery.describe", "gateway returned status %d", resp.StatusCode)
	}

	var desc apiVersionDescription
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return Endpoint{}, fbxerrors.E(fbxerrors.KindUnreachable, "discovery.describe", err)
	}

	if desc.APIVersion == "" {
		return Endpoint{}, fbxerrors.Errorf(fbxerrors.KindUnreachable,
			"discovery.describe", "gateway answered without an API version")
	}

	ep := Endpoint{
		APIBasePath: desc.APIBaseURL,
		APIVersion:  desc.APIVersion,
		UID:         desc.UID,
		DeviceType:  desc.DeviceType,
	}
	if u, err := neturl.Parse(r.fallbackBase); err == nil {
		ep.Host = u.Hostname()
		if p, err := strconv.Atoi(u.Port()); err == nil {
			ep.Port = p
		}
	}
	return ep, nil
}
