package ratelimit

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTiersFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write tiers file: %v", err)
	}
	return path
}

func TestLoadTiersBuiltins(t *testing.T) {
	table, err := LoadTiers("", "free")
	if err != nil {
		t.Fatalf("LoadTiers failed: %v", err)
	}

	tier := table.For("anyone")
	if tier.Name != "free" {
		t.Errorf("Unassigned caller tier = %s, want free", tier.Name)
	}
	if tier.Bucket.Capacity != 10 {
		t.Errorf("Free tier capacity = %v, want 10", tier.Bucket.Capacity)
	}

	if pro, ok := table.tiers["pro"]; !ok || pro.Bucket.Capacity != 300 {
		t.Errorf("Pro tier = %+v, want capacity 300", pro)
	}
	if unl, ok := table.tiers["unlimited"]; !ok || !unl.Unlimited {
		t.Error("Built-ins should include an unlimited tier")
	}
}

func TestLoadTiersFile(t *testing.T) {
	path := writeTiersFile(t, `tiers:
  free:
    capacity: 5
    refill_per_sec: 0.1
  burst:
    capacity: 500
    refill_per_sec: 25
callers:
  svc-a: burst
  svc-b: pro
default_tier: basic
`)

	table, err := LoadTiers(path, "free")
	if err != nil {
		t.Fatalf("LoadTiers failed: %v", err)
	}

	if tier := table.For("svc-a"); tier.Name != "burst" || tier.Bucket.Capacity != 500 {
		t.Errorf("svc-a tier = %+v", tier)
	}
	// Assignments may reference built-in tiers the file never mentions.
	if tier := table.For("svc-b"); tier.Name != "pro" {
		t.Errorf("svc-b tier = %s, want pro", tier.Name)
	}
	// The file's default_tier wins over the configured fallback.
	if tier := table.For("unassigned"); tier.Name != "basic" {
		t.Errorf("Default tier = %s, want basic", tier.Name)
	}
	// File entries override built-ins of the same name.
	if free := table.tiers["free"]; free.Bucket.Capacity != 5 {
		t.Errorf("Overridden free capacity = %v, want 5", free.Bucket.Capacity)
	}
}

func TestLoadTiersErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		defTier string
	}{
		{"MissingFile", filepath.Join(t.TempDir(), "absent.yaml"), "free"},
		{"MalformedYAML", writeTiersFile(t, "tiers: ["), "free"},
		{"UnknownDefault", "", "platinum"},
		{"CallerOnUnknownTier", writeTiersFile(t, "callers:\n  svc-a: platinum\n"), "free"},
		{"NonPositiveShape", writeTiersFile(t, "tiers:\n  broken:\n    capacity: 0\n    refill_per_sec: 1\n"), "free"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadTiers(tt.path, tt.defTier); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}
