package inaturalist_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"crittersync/internal/inaturalist"
	"crittersync/internal/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *inaturalist.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := inaturalist.New(server.URL, "en", inaturalist.WithRateLimit(0, 0))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := inaturalist.New(" ", "en"); err == nil {
		t.Fatal("expected error when base url missing")
	}
}

func TestSearchTaxaSendsQueryAndLocale(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/taxa" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("q") != "Chromis viridis" {
			t.Errorf("expected q parameter, got %q", r.URL.RawQuery)
		}
		if r.URL.Query().Get("locale") != "en" {
			t.Errorf("expected locale parameter, got %q", r.URL.RawQuery)
		}
		if r.URL.Query().Has("is_active") {
			t.Errorf("search must include inactive taxa, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total_results":1,"page":1,"results":[{"id":1,"name":"Chromis viridis","rank":"species","is_active":true}]}`))
	})

	resp, err := client.SearchTaxa(context.Background(), " Chromis viridis ")
	if err != nil {
		t.Fatalf("SearchTaxa returned error: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Name != "Chromis viridis" {
		t.Fatalf("unexpected response: %#v", resp)
	}
}

func TestSearchTaxaHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := client.SearchTaxa(context.Background(), "fail")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected 429 to be transient, got %v", err)
	}
}

func TestSearchTaxaClientErrorIsNotTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})
	_, err := client.SearchTaxa(context.Background(), "fail")
	if err == nil || errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestLookupTimeoutIsMarked(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	client, err := inaturalist.New(server.URL, "en", inaturalist.WithRateLimit(0, 0), inaturalist.WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = client.LookupByScientificName(context.Background(), "Chromis viridis")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
}

func TestSearchTaxaEmptyQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if _, err := client.SearchTaxa(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestLookupByScientificNamePicksExactActiveMatchAndFetchesAncestors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/taxa":
			_, _ = w.Write([]byte(`{"results":[
				{"id":10,"name":"Chromis viridis viridis","rank":"subspecies","is_active":true},
				{"id":11,"name":"Chromis viridis","rank":"species","is_active":false},
				{"id":12,"name":"Chromis viridis","rank":"species","is_active":true}
			]}`))
		case "/taxa/12":
			_, _ = w.Write([]byte(`{"results":[{"id":12,"name":"Chromis viridis","preferred_common_name":"Blue-green Chromis","iconic_taxon_name":"Actinopterygii","is_active":true,
				"ancestors":[{"id":1,"name":"Animalia","rank":"kingdom"},{"id":47178,"name":"Actinopterygii","rank":"class","preferred_common_name":"Ray-finned Fishes"}]}]}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	taxon, err := client.LookupByScientificName(context.Background(), "chromis  VIRIDIS")
	if err != nil {
		t.Fatalf("LookupByScientificName returned error: %v", err)
	}
	if taxon.ID != 12 {
		t.Fatalf("expected active exact match 12, got %d", taxon.ID)
	}
	if len(taxon.Ancestors) != 2 || taxon.Ancestors[1].Rank != "class" {
		t.Fatalf("expected ancestors from detail call, got %+v", taxon.Ancestors)
	}
	if taxon.PreferredCommonName != "Blue-green Chromis" {
		t.Fatalf("unexpected common name %q", taxon.PreferredCommonName)
	}
}

func TestLookupByScientificNameFallsBackToInactiveExactMatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[
			{"id":21,"name":"Amphiprion percula","rank":"species","is_active":true,"matched_term":"Amphiprion perculus"},
			{"id":20,"name":"Amphiprion perculus","rank":"species","is_active":false,
				"ancestors":[{"id":1,"name":"Animalia","rank":"kingdom"}]}
		]}`))
	})
	taxon, err := client.LookupByScientificName(context.Background(), "Amphiprion perculus")
	if err != nil {
		t.Fatalf("LookupByScientificName returned error: %v", err)
	}
	if taxon.ID != 20 {
		t.Fatalf("expected inactive exact match 20, got %d", taxon.ID)
	}
}

func TestLookupByScientificNameResolvesSynonymByMatchedTerm(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[
			{"id":30,"name":"Other fish","rank":"species","is_active":true,"matched_term":"Other fish"},
			{"id":31,"name":"Tridacna noae","rank":"species","is_active":true,"matched_term":"Tridacna  maxima noae",
				"ancestors":[{"id":1,"name":"Animalia","rank":"kingdom"},{"id":2,"name":"Bivalvia","rank":"class"}]}
		]}`))
	})
	taxon, err := client.LookupByScientificName(context.Background(), "tridacna maxima noae")
	if err != nil {
		t.Fatalf("LookupByScientificName returned error: %v", err)
	}
	if taxon.ID != 31 || taxon.Name != "Tridacna noae" {
		t.Fatalf("expected current taxon for synonym, got %+v", taxon)
	}
}

func TestLookupByScientificNameNoMatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"id":3,"name":"Something else","is_active":true}]}`))
	})
	_, err := client.LookupByScientificName(context.Background(), "Nonexistent species")
	if !errors.Is(err, inaturalist.ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestGetTaxonRejectsInvalidID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	if _, err := client.GetTaxon(context.Background(), 0); err == nil {
		t.Fatal("expected error for non-positive id")
	}
}

func TestRateLimitWaitHonoursContext(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	t.Cleanup(server.Close)

	client, err := inaturalist.New(server.URL, "", inaturalist.WithRateLimit(0.001, 1))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.SearchTaxa(context.Background(), "first"); err != nil {
		t.Fatalf("first search returned error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.SearchTaxa(ctx, "second"); err == nil {
		t.Fatal("expected limiter wait to fail on cancelled context")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one request to reach the server, got %d", calls.Load())
	}
}
