package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

var (
	// ErrUnsupported is returned for references the loader cannot resolve.
	ErrUnsupported = errors.New("unsupported media reference")
	// ErrForbiddenAddress is returned when a remote reference resolves to a
	// loopback, private, link-local or otherwise non-public address.
	ErrForbiddenAddress = errors.New("address not allowed")
)

// maxRedirects bounds redirect chains of remote media.
const maxRedirects = 5

// DefaultMaxBytes bounds a fetched background (uploads are limited to 50MB).
const DefaultMaxBytes = 50 << 20

// Fetcher returns the raw bytes behind a reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// HTTPFetcher resolves data URLs, root-relative paths from Assets, and
// http(s) URLs.
type HTTPFetcher struct {
	Client   *http.Client
	Assets   fs.FS
	MaxBytes int64
}

func NewHTTPFetcher(assets fs.FS, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		Client:   PublicClient(timeout),
		Assets:   assets,
		MaxBytes: DefaultMaxBytes,
	}
}

// PublicClient returns an HTTP client that only connects to public unicast
// addresses. The check runs on the resolved address of every dial, so it
// also covers redirect targets. Proxies from the environment are ignored.
func PublicClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: refusePrivate,
	}
	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("%w: redirect to %s", ErrUnsupported, req.URL.Scheme)
			}
			return nil
		},
	}
}

func refusePrivate(network, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, address)
	}
	if !publicAddr(ap.Addr()) {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, ap.Addr())
	}
	return nil
}

var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

func publicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch {
	case !addr.IsValid(),
		addr.IsUnspecified(),
		addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(),
		addr.IsMulticast(),
		sharedAddressSpace.Contains(addr):
		return false
	}
	return addr.IsGlobalUnicast()
}

func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case strings.HasPrefix(ref, "data:"):
		return DecodeDataURL(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return f.fetchRemote(ctx, ref)
	case strings.HasPrefix(ref, "/"):
		return f.fetchAsset(ref)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, truncate(ref))
}

func (f *HTTPFetcher) fetchRemote(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch %s: status %d", ref, resp.StatusCode)
	}
	return f.readLimited(resp.Body)
}

func (f *HTTPFetcher) fetchAsset(ref string) ([]byte, error) {
	if f.Assets == nil {
		return nil, fmt.Errorf("%w: no asset filesystem for %s", ErrUnsupported, ref)
	}
	p := ref
	if u, err := url.Parse(ref); err == nil {
		p = u.Path
	}
	file, err := f.Assets.Open(strings.TrimPrefix(p, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to open asset %s: %w", ref, err)
	}
	defer file.Close()
	return f.readLimited(file)
}

func (f *HTTPFetcher) readLimited(r io.Reader) ([]byte, error) {
	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("media larger than %d bytes", limit)
	}
	return data, nil
}

// DecodeDataURL returns the payload of a base64 or percent-encoded data URL.
func DecodeDataURL(ref string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data url")
	}
	if strings.HasSuffix(header, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("malformed data url: %w", err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("malformed data url: %w", err)
	}
	return []byte(s), nil
}

// EncodeDataURL builds a base64 data URL.
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func truncate(ref string) string {
	if len(ref) > 64 {
		return ref[:64] + "..."
	}
	return ref
}
