package leads

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/harunnryd/lily/pkg/errorsx"
)

func leadLine(overrides map[string]string) string {
	values := make([]string, len(leadFields))
	for i, name := range leadFields {
		if v, ok := overrides[name]; ok {
			values[i] = v
		}
	}
	return strings.Join(values, "|")
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL, Password: "secret"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, srv
}

func TestFetchParsesLead(t *testing.T) {
	var gotQuery string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(leadLine(map[string]string{
			"lead_id":      "4821",
			"status":       "NEW",
			"first_name":   "Dana",
			"last_name":    "Reed",
			"phone_number": "5551234567",
			"email":        "dana@example.com",
		}) + "\n"))
	})

	lead, err := c.Fetch(context.Background(), "5551234567")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if lead == nil {
		t.Fatalf("expected a lead")
	}
	if lead.LeadID != "4821" || lead.FullName() != "Dana Reed" {
		t.Fatalf("unexpected lead %+v", lead)
	}
	if !strings.Contains(gotQuery, "function=lead_all_info") ||
		!strings.Contains(gotQuery, "phone_number=5551234567") {
		t.Fatalf("unexpected query %s", gotQuery)
	}
}

func TestFetchUnknownCallerReturnsNil(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("\n"))
	})

	lead, err := c.Fetch(context.Background(), "5550000000")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if lead != nil {
		t.Fatalf("expected nil lead for unknown caller, got %+v", lead)
	}
}

func TestFetchMalformedLayoutReturnsNil(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ERROR: invalid source\n"))
	})

	lead, err := c.Fetch(context.Background(), "5550000000")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if lead != nil {
		t.Fatalf("expected nil lead for malformed response")
	}
}

func TestFetchServerErrorHasReason(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Fetch(context.Background(), "5551234567")
	if !errorsx.HasReason(err, errorsx.ReasonLeadFetch) {
		t.Fatalf("expected lead_fetch reason, got %v", err)
	}
}

func TestUpdateSendsDispositionAndComments(t *testing.T) {
	var gotQuery string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("SUCCESS: lead updated\n"))
	})

	err := c.Update(context.Background(), "4821", "XFER", "Total Debt: 15000")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !strings.Contains(gotQuery, "function=update_lead") ||
		!strings.Contains(gotQuery, "lead_id=4821") ||
		!strings.Contains(gotQuery, "status=XFER") {
		t.Fatalf("unexpected query %s", gotQuery)
	}
}

func TestUpdateDoesNotRetryRejectedRequest(t *testing.T) {
	attempts := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	})
	c.retry.MaxRetries = 3
	c.retry.Backoff = 0

	if err := c.Update(context.Background(), "4821", "HU", ""); err == nil {
		t.Fatalf("expected error on rejected request")
	}
	if attempts != 1 {
		t.Fatalf("rejected requests must not be retried, got %d attempts", attempts)
	}
}

func TestUpdateRetriesTransientFailure(t *testing.T) {
	attempts := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("SUCCESS\n"))
	})
	c.retry.MaxRetries = 2
	c.retry.Backoff = 0

	if err := c.Update(context.Background(), "4821", "HU", ""); err != nil {
		t.Fatalf("update should succeed after retry: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}
