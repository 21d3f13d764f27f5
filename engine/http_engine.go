package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/use-agent/pricewatch/models"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// maxBody caps how much of a response is read.
const maxBody = 10 << 20

// HTTPEngine is the static fetch path: a plain GET with browser-like
// headers and a Chrome TLS fingerprint. It never executes page scripts.
type HTTPEngine struct {
	client *http.Client
}

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// http.Transport cannot speak h2 over a utls conn, so only offer http/1.1.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHTTPEngine creates an HTTPEngine. proxy may be empty or an http(s) proxy URL.
func NewHTTPEngine(proxy string) *HTTPEngine {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
		IdleConnTimeout:   90 * time.Second,
	}
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return newHTTPEngineWithClient(&http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	})
}

func newHTTPEngineWithClient(c *http.Client) *HTTPEngine {
	return &HTTPEngine{client: c}
}

func (e *HTTPEngine) Name() string { return string(models.PathStatic) }

func (e *HTTPEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, models.NewPermanentError(req.URL, 0, fmt.Errorf("http_engine: build request: %w", err))
	}

	httpReq.Header.Set("User-Agent", ChromeUA)
	httpReq.Header.Set("Accept", acceptHTML)
	httpReq.Header.Set("Accept-Language", acceptLanguage)
	httpReq.Header.Set("Accept-Encoding", "identity")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, classifyNetError(req.URL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, models.NewTransientError(req.URL, resp.StatusCode, nil)
	case resp.StatusCode >= 400:
		return nil, models.NewPermanentError(req.URL, resp.StatusCode, nil)
	}

	ct := resp.Header.Get("Content-Type")
	if !isHTMLContentType(ct) {
		return nil, models.NewPermanentError(req.URL, 0,
			fmt.Errorf("http_engine: non-html content-type %q", ct))
	}

	// Decode to UTF-8 using the header charset or <meta charset>.
	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBody), ct)
	if err != nil {
		return nil, models.NewPermanentError(req.URL, resp.StatusCode, fmt.Errorf("http_engine: charset: %w", err))
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, models.NewTransientError(req.URL, 0, fmt.Errorf("http_engine: read body: %w", err))
	}

	htmlStr := string(raw)
	return &FetchResult{
		HTML:       htmlStr,
		Title:      extractTitle(htmlStr),
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		EngineName: e.Name(),
	}, nil
}

// classifyNetError marks DNS not-found as permanent and every other
// transport failure (timeouts, resets, refused) as transient.
func classifyNetError(rawURL string, err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return models.NewPermanentError(rawURL, 0, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && strings.Contains(urlErr.Err.Error(), "unsupported protocol scheme") {
		return models.NewPermanentError(rawURL, 0, err)
	}
	return models.NewTransientError(rawURL, 0, err)
}

// isHTMLContentType returns true if the content-type header looks like HTML.
// A missing header is accepted; some storefronts omit it.
func isHTMLContentType(ct string) bool {
	if ct == "" {
		return true
	}
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// extractTitle uses the Go HTML tokenizer to find the first <title> element.
func extractTitle(htmlStr string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	inTitle := false
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}
