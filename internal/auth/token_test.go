package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"live-transcription-engine/internal/recognizer"
)

func TestStaticProvider(t *testing.T) {
	p := &StaticProvider{Token: "tok-abc"}
	tok, err := p.IssueToken(context.Background())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if tok != "tok-abc" {
		t.Errorf("expected tok-abc, got %s", tok)
	}

	empty := &StaticProvider{}
	if _, err := empty.IssueToken(context.Background()); recognizer.CodeOf(err) != recognizer.CodeTokenUnavailable {
		t.Errorf("expected token_unavailable, got %v", err)
	}
}

func TestHTTPProvider_IssuesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"tok-minted"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second)
	tok, err := p.IssueToken(context.Background())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if tok != "tok-minted" {
		t.Errorf("expected tok-minted, got %s", tok)
	}
}

func TestHTTPProvider_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"issuer error status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota", http.StatusTooManyRequests)
		}},
		{"empty token", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"token":""}`))
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p := NewHTTPProvider(srv.URL, time.Second)
			_, err := p.IssueToken(context.Background())
			if recognizer.CodeOf(err) != recognizer.CodeTokenUnavailable {
				t.Errorf("expected token_unavailable, got %v", err)
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	if _, err := FromConfig("", "", time.Second); err == nil {
		t.Error("expected error when no token source is configured")
	}

	p, err := FromConfig("", "tok", time.Second)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if _, ok := p.(*StaticProvider); !ok {
		t.Errorf("expected StaticProvider, got %T", p)
	}

	p, err = FromConfig("http://issuer.local/token", "tok", time.Second)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if _, ok := p.(*HTTPProvider); !ok {
		t.Errorf("expected HTTPProvider to take precedence, got %T", p)
	}
}
