package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStatus_String(t *testing.T) {
	if Available.String() != "available" {
		t.Errorf("Available.String() = %q", Available.String())
	}
	if Unavailable.String() != "unavailable" {
		t.Errorf("Unavailable.String() = %q", Unavailable.String())
	}
}

func TestStatic(t *testing.T) {
	if got := Static(Available).Check(context.Background()); got != Available {
		t.Errorf("Static(Available) = %v", got)
	}
	if got := Static(Unavailable).Check(context.Background()); got != Unavailable {
		t.Errorf("Static(Unavailable) = %v", got)
	}
}

func TestNewProbe_Validation(t *testing.T) {
	if _, err := NewProbe("", time.Second); err == nil {
		t.Error("expected error for empty url")
	}
	p, err := NewProbe("https://example.org", 0)
	if err != nil {
		t.Fatalf("NewProbe() error = %v", err)
	}
	if p.timeout != DefaultProbeTimeout {
		t.Errorf("timeout = %v, want %v", p.timeout, DefaultProbeTimeout)
	}
}

func TestProbe_Check(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Status
	}{
		{name: "ok", status: http.StatusOK, want: Available},
		{name: "error status still reachable", status: http.StatusServiceUnavailable, want: Available},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodHead {
					t.Errorf("method = %s, want HEAD", r.Method)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p, err := NewProbe(srv.URL, time.Second)
			if err != nil {
				t.Fatal(err)
			}
			if got := p.Check(context.Background()); got != tt.want {
				t.Errorf("Check() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProbe_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p, err := NewProbe(url, 200*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Check(context.Background()); got != Unavailable {
		t.Errorf("Check() = %v, want Unavailable", got)
	}
}

func TestProbe_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	p, err := NewProbe(srv.URL, 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Check(context.Background()); got != Unavailable {
		t.Errorf("Check() = %v, want Unavailable", got)
	}
}
