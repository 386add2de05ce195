package transport

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// testClient wires a delay recorder in place of real sleeping.
func testClient(t *testing.T, delays *[]time.Duration, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithSleep(func(req *http.Request, d time.Duration) error {
			*delays = append(*delays, d)
			return req.Context().Err()
		}),
	}
	return NewClient(nopLogger(), append(base, opts...)...)
}

func postReq(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader([]byte(`{"x":1}`)))
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestDoRetriesRateLimitThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var delays []time.Duration
	c := testClient(t, &delays, WithJitter(func() time.Duration { return 500 * time.Millisecond }))

	resp, err := c.Do(postReq(t, srv.URL))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
	want := []time.Duration{
		5*time.Second + 500*time.Millisecond,
		10*time.Second + 500*time.Millisecond,
	}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v", delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestDoDelaysMonotonicAndWithinJitterWindow(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 4 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var delays []time.Duration
	c := testClient(t, &delays) // default random jitter

	resp, err := c.Do(postReq(t, srv.URL))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if len(delays) != 4 {
		t.Fatalf("delays = %v", delays)
	}
	for n, d := range delays {
		lo := defaultBaseDelay * (1 << n)
		hi := lo + time.Second
		if d < lo || d >= hi {
			t.Fatalf("delay[%d] = %v, want within [%v, %v)", n, d, lo, hi)
		}
		if n > 0 && d < delays[n-1] {
			t.Fatalf("delays not monotonic: %v", delays)
		}
	}
}

func TestDoExhaustsRetryBudgetExactlyOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "slow down"}}`)
	}))
	defer srv.Close()

	var delays []time.Duration
	c := testClient(t, &delays, WithMaxRetries(2), WithJitter(func() time.Duration { return 0 }))

	_, err := c.Do(postReq(t, srv.URL))
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *transport.Error", err)
	}
	if te.Kind != KindFatal {
		t.Fatalf("kind = %s, want fatal", te.Kind)
	}
	if te.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", te.Attempts)
	}
	before := atomic.LoadInt32(&calls)
	if before != 3 {
		t.Fatalf("network calls = %d, want 3", before)
	}
	// The failed call must not keep retrying in the background.
	time.Sleep(50 * time.Millisecond)
	if after := atomic.LoadInt32(&calls); after != before {
		t.Fatalf("calls kept going after failure: %d -> %d", before, after)
	}
	if !IsRateLimited(err) {
		t.Fatal("exhausted rate-limit failure should classify as rate-limited")
	}
}

func TestDoNonRetryableClientErrorFailsImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"message": "model not found"}}`)
	}))
	defer srv.Close()

	var delays []time.Duration
	c := testClient(t, &delays)

	_, err := c.Do(postReq(t, srv.URL))
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *transport.Error", err)
	}
	if te.Kind != KindRemoteFault || te.Status != http.StatusBadRequest {
		t.Fatalf("kind=%s status=%d", te.Kind, te.Status)
	}
	if te.Message != "model not found" {
		t.Fatalf("message = %q, want remote message verbatim", te.Message)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls = %d, want 1 (no retry budget consumed)", calls)
	}
	if len(delays) != 0 {
		t.Fatalf("unexpected backoff: %v", delays)
	}
}

func TestDoRetriesNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse every connection

	var delays []time.Duration
	c := testClient(t, &delays, WithMaxRetries(2), WithJitter(func() time.Duration { return 0 }))

	_, err := c.Do(postReq(t, srv.URL))
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *transport.Error", err)
	}
	if te.Kind != KindFatal || te.Attempts != 3 {
		t.Fatalf("kind=%s attempts=%d", te.Kind, te.Attempts)
	}
	if len(delays) != 2 {
		t.Fatalf("delays = %v, want 2 backoffs", delays)
	}
}

func TestDoRewindsBodyAcrossRetries(t *testing.T) {
	var calls int32
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		bodies = append(bodies, buf.String())
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var delays []time.Duration
	c := testClient(t, &delays, WithJitter(func() time.Duration { return 0 }))

	resp, err := c.Do(postReq(t, srv.URL))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if len(bodies) != 2 || bodies[0] != bodies[1] || bodies[0] != `{"x":1}` {
		t.Fatalf("bodies = %v", bodies)
	}
}
