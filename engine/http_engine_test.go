package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/use-agent/pricewatch/models"
)

func TestHTTPEngine_Fetch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Language") != acceptLanguage || r.Header.Get("User-Agent") != ChromeUA {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title> Blue Mug </title></head><body>EGP 229</body></html>`)
	}))
	defer srv.Close()

	eng := newHTTPEngineWithClient(srv.Client())
	res, err := eng.Fetch(context.Background(), &FetchRequest{URL: srv.URL + "/p/mug"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Title != "Blue Mug" {
		t.Errorf("title = %q, want Blue Mug", res.Title)
	}
	if !strings.Contains(res.HTML, "EGP 229") {
		t.Errorf("html = %q", res.HTML)
	}
	if res.StatusCode != 200 || res.EngineName != "static" {
		t.Errorf("status/engine = %d/%s", res.StatusCode, res.EngineName)
	}
	if res.FinalURL != srv.URL+"/p/mug" {
		t.Errorf("final url = %q", res.FinalURL)
	}
}

func TestHTTPEngine_DecodesCharset(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<html><body>Caf\xe9 cr\xe8me</body></html>"))
	}))
	defer srv.Close()

	res, err := newHTTPEngineWithClient(srv.Client()).Fetch(context.Background(), &FetchRequest{URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(res.HTML, "Café crème") {
		t.Errorf("html not decoded to UTF-8: %q", res.HTML)
	}
}

func TestHTTPEngine_ClassifiesStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name          string
		status        int
		contentType   string
		wantTransient bool
		wantStatus    int
	}{
		{"service unavailable", http.StatusServiceUnavailable, "text/html", true, 503},
		{"bad gateway", http.StatusBadGateway, "text/html", true, 502},
		{"too many requests", http.StatusTooManyRequests, "text/html", true, 429},
		{"not found", http.StatusNotFound, "text/html", false, 404},
		{"forbidden", http.StatusForbidden, "text/html", false, 403},
		{"json body", http.StatusOK, "application/json", false, 0},
		{"image body", http.StatusOK, "image/png", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				fmt.Fprint(w, "<html></html>")
			}))
			defer srv.Close()

			_, err := newHTTPEngineWithClient(srv.Client()).Fetch(context.Background(), &FetchRequest{URL: srv.URL})
			if err == nil {
				t.Fatal("expected an error")
			}
			var fe *models.FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("error %v is not a *FetchError", err)
			}
			if got := models.IsTransient(err); got != tt.wantTransient {
				t.Errorf("transient = %v, want %v", got, tt.wantTransient)
			}
			if fe.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", fe.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestHTTPEngine_ConnectionRefusedIsTransient(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	client := srv.Client()
	srv.Close()

	_, err := newHTTPEngineWithClient(client).Fetch(context.Background(), &FetchRequest{URL: url})
	if err == nil {
		t.Fatal("expected an error from a closed server")
	}
	if !models.IsTransient(err) {
		t.Errorf("connection failure should be transient: %v", err)
	}
}

func TestClassifyNetError(t *testing.T) {
	t.Parallel()
	dns := &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}
	if models.IsTransient(classifyNetError("https://nope.invalid", dns)) {
		t.Error("DNS not found should be permanent")
	}
	if !models.IsTransient(classifyNetError("https://a.example", errors.New("connection reset by peer"))) {
		t.Error("reset should be transient")
	}
}

func TestIsHTMLContentType(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"":                         true,
		"text/html":                true,
		"TEXT/HTML; charset=UTF-8": true,
		"application/xhtml+xml":    true,
		"application/json":         false,
		"text/plain":               false,
	}
	for ct, want := range tests {
		if got := isHTMLContentType(ct); got != want {
			t.Errorf("isHTMLContentType(%q) = %v, want %v", ct, got, want)
		}
	}
}

func TestRodEngine_Classifies(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name          string
		result        *FetchResult
		err           error
		wantErr       bool
		wantTransient bool
	}{
		{"ok with unknown status", &FetchResult{HTML: "<p>x</p>"}, nil, false, false},
		{"server error", &FetchResult{StatusCode: 500}, nil, true, true},
		{"not found", &FetchResult{StatusCode: 404}, nil, true, false},
		{"timeout", nil, models.NewScrapeError(models.ErrCodeTimeout, "navigation timed out", context.DeadlineExceeded), true, true},
		{"browser crash", nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "launch failed", nil), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			eng := NewRodEngine(func(context.Context, *FetchRequest) (*FetchResult, error) {
				return tt.result, tt.err
			})
			res, err := eng.Fetch(context.Background(), &FetchRequest{URL: pageURL})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if got := models.IsTransient(err); got != tt.wantTransient {
					t.Errorf("transient = %v, want %v", got, tt.wantTransient)
				}
				return
			}
			if res.StatusCode != 200 || res.EngineName != "dynamic" {
				t.Errorf("status/engine = %d/%s", res.StatusCode, res.EngineName)
			}
		})
	}
}
