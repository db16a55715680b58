package testutil

import (
	"net/http"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// NewVCRRecorder creates a recorder for cassettePath (without the .yaml
// suffix). In recording mode requests go through realTransport and are
// written out when the returned stop function runs.
func NewVCRRecorder(t *testing.T, cassettePath string, mode recorder.Mode, realTransport http.RoundTripper) (*recorder.Recorder, func()) {
	t.Helper()

	r, err := recorder.NewAsMode(cassettePath, mode, realTransport)
	if err != nil {
		t.Fatalf("Failed to create VCR recorder: %v", err)
	}

	// Streaming bodies differ per attempt only by content, so method and
	// URL are enough to pick the interaction.
	r.SetMatcher(func(r *http.Request, i cassette.Request) bool {
		return r.Method == i.Method && r.URL.String() == i.URL
	})

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		if err := r.Stop(); err != nil {
			t.Errorf("Failed to stop VCR recorder: %v", err)
		}
	}
	t.Cleanup(stop)

	return r, stop
}

// VCRHTTPClient returns an HTTP client that routes through the recorder.
func VCRHTTPClient(r *recorder.Recorder) *http.Client {
	return &http.Client{
		Transport: r,
	}
}
