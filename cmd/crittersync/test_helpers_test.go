package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"crittersync/internal/config"
	"crittersync/internal/inaturalist"
	"crittersync/internal/testsupport"
)

type cliTestEnv struct {
	macdive    *testsupport.MacDive
	server     *httptest.Server
	configPath string
	baseDir    string
	lookups    *atomic.Int64
}

// fakeTaxa is what the stub iNaturalist API knows about, keyed by lower-case
// scientific name.
var fakeTaxa = map[string]inaturalist.Taxon{
	"paracanthurus hepatus": {
		ID: 101, Name: "Paracanthurus hepatus", Rank: "species", PreferredCommonName: "blue tang",
		IconicTaxonName: "Actinopterygii", IsActive: true,
		Ancestors: []inaturalist.Ancestor{
			{ID: 1, Name: "Animalia", Rank: "kingdom", PreferredCommonName: "animals"},
			{ID: 10, Name: "Actinopterygii", Rank: "class", PreferredCommonName: "bony fishes"},
		},
	},
	"acanthaster planci": {
		ID: 102, Name: "Acanthaster planci", Rank: "species", PreferredCommonName: "crown of thorns starfish",
		IconicTaxonName: "Animalia", IsActive: true,
		Ancestors: []inaturalist.Ancestor{
			{ID: 1, Name: "Animalia", Rank: "kingdom", PreferredCommonName: "animals"},
			{ID: 20, Name: "Asteroidea", Rank: "class", PreferredCommonName: "sea stars"},
		},
	},
	"chromodoris willani": {
		ID: 103, Name: "Chromodoris willani", Rank: "species", PreferredCommonName: "willans chromodoris",
		IconicTaxonName: "Mollusca", IsActive: true,
		Ancestors: []inaturalist.Ancestor{
			{ID: 1, Name: "Animalia", Rank: "kingdom", PreferredCommonName: "animals"},
			{ID: 30, Name: "Gastropoda", Rank: "class", PreferredCommonName: "gastropods"},
		},
	},
}

// setupCLITestEnv seeds a MacDive database with one critter already in its
// group, one in a category nothing else wants, and one without a category.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	macdive := testsupport.NewMacDive(t,
		[]testsupport.FixtureCategory{{ID: 1, Name: "Bony Fishes"}, {ID: 2, Name: "Coral"}},
		[]testsupport.FixtureCritter{
			{ID: 1, Name: "Blue Tang", Species: "Paracanthurus hepatus", CategoryID: 1},
			{ID: 2, Name: "Crown of thorns", Species: "Acanthaster planci", CategoryID: 2},
			{ID: 3, Name: "", Species: "Chromodoris willani"},
		},
	)

	lookups := &atomic.Int64{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/taxa" {
			http.NotFound(w, r)
			return
		}
		lookups.Add(1)
		resp := inaturalist.Response{Page: 1, PerPage: 30}
		if taxon, ok := fakeTaxa[strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))]; ok {
			resp.Results = []inaturalist.Taxon{taxon}
			resp.TotalResults = 1
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)

	opts = append([]testsupport.ConfigOption{
		testsupport.WithDatabase(macdive.Path),
		testsupport.WithINaturalist(server.URL),
	}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	cfg.INaturalist.Concurrency = 2
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		macdive:    macdive,
		server:     server,
		configPath: configPath,
		baseDir:    base,
		lookups:    lookups,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create config: %v", err)
	}
	defer f.Close()
	if err := cfg.Encode(f); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
