package enrichment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nofone/solmatch/internal/company"
)

func TestAwardClientFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/awards/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("recipient"); got != "Acme Cyber" {
			t.Errorf("recipient = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"total": 3,
			"results": [
				{"awarding_agency": "DISA", "amount": 1500000},
				{"awarding_agency": "DLA", "amount": 500000},
				{"awarding_agency": "", "amount": 100000}
			]
		}`))
	}))
	defer server.Close()

	c := NewAwardClient(server.URL, "solmatch-test", time.Second, zap.NewNop())
	got, err := c.Fetch(context.Background(), &company.Profile{ID: "c1", Name: "Acme Cyber"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Summary != "3 federal awards on record totaling $2100000." {
		t.Fatalf("summary = %q", got.Summary)
	}
	if len(got.AwardSignals) != 2 {
		t.Fatalf("signals = %v", got.AwardSignals)
	}
	if !strings.Contains(got.AwardSignals[0], "DISA") {
		t.Fatalf("signals = %v", got.AwardSignals)
	}
}

func TestAwardClientNoHistory(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"total": 0, "results": []}`))
	}))
	defer server.Close()

	c := NewAwardClient(server.URL, "", time.Second, zap.NewNop())
	got, err := c.Fetch(context.Background(), &company.Profile{ID: "c1", Name: "Unknown Co"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Empty() {
		t.Fatalf("expected empty context, got %+v", got)
	}
}

func TestAwardClientBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewAwardClient(server.URL, "", time.Second, zap.NewNop())
	if _, err := c.Fetch(context.Background(), &company.Profile{ID: "c1", Name: "Acme"}); err == nil {
		t.Fatal("expected error for bad upstream status")
	}
}
