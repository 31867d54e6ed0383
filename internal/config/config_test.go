package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoadConfigAppliesAnalyticsDefaults(t *testing.T) {
	dir := writeConfig(t, `
server:
  mode: debug
database:
  driver: sqlite
  path: ":memory:"
storage:
  type: local
  local_path: `+filepath.Join(t.TempDir(), "uploads")+`
log:
  path: `+filepath.Join(t.TempDir(), "app.log")+`
`)

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Analytics != DefaultAnalytics() {
		t.Fatalf("analytics defaults = %+v, want %+v", cfg.Analytics, DefaultAnalytics())
	}
	if cfg.Analytics.CacheTTL() != time.Minute {
		t.Fatalf("CacheTTL = %v", cfg.Analytics.CacheTTL())
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("server.port default = %q", cfg.Server.Port)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"short secret in release": `
server:
  mode: release
jwt:
  secret: short
database:
  driver: sqlite
`,
		"unknown driver": `
database:
  driver: oracle
`,
		"threshold out of range": `
database:
  driver: sqlite
analytics:
  completion_threshold: 120
`,
		"bad timezone": `
database:
  driver: sqlite
analytics:
  timezone: Mars/Olympus
`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := writeConfig(t, body+"log:\n  path: "+filepath.Join(t.TempDir(), "app.log")+"\n")
			if _, err := LoadConfig(dir); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestAnalyticsLocation(t *testing.T) {
	a := AnalyticsConfig{}
	if a.Location() != time.Local {
		t.Fatalf("empty timezone should map to time.Local")
	}
	a.Timezone = "UTC"
	if a.Location().String() != "UTC" {
		t.Fatalf("Location = %v", a.Location())
	}
}
