package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSignVerify(t *testing.T) {
	t.Parallel()
	body := []byte(`{"type":"run.completed"}`)
	sig := Sign("s3cret", body)

	if len(sig) != len("sha256=")+64 {
		t.Errorf("signature %q has unexpected length", sig)
	}
	if !Verify("s3cret", body, sig) {
		t.Error("valid signature rejected")
	}
	if Verify("other", body, sig) {
		t.Error("signature accepted with the wrong secret")
	}
	if Verify("s3cret", []byte(`{"type":"tampered"}`), sig) {
		t.Error("signature accepted for a different body")
	}
}

func TestDeliver_SignsBody(t *testing.T) {
	t.Parallel()
	var got Event
	var verified atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		verified.Store(Verify("s3cret", body, r.Header.Get(SignatureHeader)))
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ev := &Event{Type: EventRunCompleted, RunID: "20260301_090000", Timestamp: 1772355600, Data: map[string]int{"records": 12}}
	if err := Deliver(context.Background(), srv.URL, "s3cret", ev); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if !verified.Load() {
		t.Error("endpoint could not verify the signature")
	}
	if got.Type != EventRunCompleted || got.RunID != ev.RunID {
		t.Errorf("endpoint received %+v", got)
	}
}

func TestDeliver_NoSecretNoSignature(t *testing.T) {
	t.Parallel()
	var header atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header.Store(r.Header.Get(SignatureHeader))
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "", &Event{Type: EventRunCompleted}); err != nil {
		t.Fatal(err)
	}
	if h, _ := header.Load().(string); h != "" {
		t.Errorf("unexpected signature header %q", h)
	}
}

func TestDeliver_ErrorStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "", &Event{Type: EventRunCompleted}); err == nil {
		t.Error("expected an error for a 500 response")
	}
}

func TestDeliverWithRetry_RecoversAfterFailure(t *testing.T) {
	// Not parallel: shortens the package-level retry delays.
	saved := retryDelays
	retryDelays = []time.Duration{0, time.Millisecond, time.Millisecond}
	defer func() { retryDelays = saved }()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := DeliverWithRetry(context.Background(), srv.URL, "", &Event{Type: EventRunCompleted}); err != nil {
		t.Fatalf("DeliverWithRetry: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}
