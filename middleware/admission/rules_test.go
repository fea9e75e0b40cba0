package admission

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"sentinela-gateway/middleware/admission/domain"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write rules file: %v", err)
	}
	return path
}

func TestLoadRulesFile_OverridesDefaults(t *testing.T) {
	path := writeRules(t, `
windows:
  short: 30s
  long: 2h
categories:
  auth:
    prefixes: ["/signin", "/signup"]
    per_minute: 3
    per_hour: 10
  general:
    per_minute: 50
anomaly:
  failed_auth: 5
  retention: 5m
`)

	f, err := LoadRulesFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rules, err := f.Rules()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rules.ShortWindow != 30*time.Second || rules.LongWindow != 2*time.Hour {
		t.Fatalf("unexpected windows: %s / %s", rules.ShortWindow, rules.LongWindow)
	}
	if got := rules.Classify("/signin"); got != domain.CategoryAuth {
		t.Fatalf("expected /signin to classify as auth, got %s", got)
	}
	if got := rules.Classify("/auth/login"); got != domain.CategoryGeneral {
		t.Fatalf("expected default auth prefix to be replaced, got %s", got)
	}
	if rule := rules.Limits[domain.CategoryAuth]; rule.PerMinute != 3 || rule.PerHour != 10 {
		t.Fatalf("unexpected auth rule: %+v", rule)
	}
	if rule := rules.Limits[domain.CategoryGeneral]; rule.PerMinute != 50 || rule.PerHour != 1000 {
		t.Fatalf("expected partial override to keep default per_hour, got %+v", rule)
	}
	// api não tocada: mantém o padrão
	if rule := rules.Limits[domain.CategoryAPI]; rule.PerMinute != 200 {
		t.Fatalf("expected api defaults, got %+v", rule)
	}

	thresholds := f.Thresholds()
	if thresholds.FailedAuth != 5 || thresholds.ClientErrors != 20 {
		t.Fatalf("unexpected thresholds: %+v", thresholds)
	}

	retention, err := f.Retention()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retention != 5*time.Minute {
		t.Fatalf("expected retention 5m, got %s", retention)
	}
}

func TestLoadRulesFile_EmptyFileKeepsDefaults(t *testing.T) {
	path := writeRules(t, "")

	f, err := LoadRulesFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rules, err := f.Rules()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defaults := domain.DefaultRules()
	if rules.ShortWindow != defaults.ShortWindow || rules.LongWindow != defaults.LongWindow {
		t.Fatalf("expected default windows, got %s / %s", rules.ShortWindow, rules.LongWindow)
	}
	if rules.Limits[domain.CategoryAuth] != defaults.Limits[domain.CategoryAuth] {
		t.Fatalf("expected default auth rule")
	}
}

func TestLoadRulesFile_RejectsInvalidWindow(t *testing.T) {
	path := writeRules(t, `
windows:
  short: banana
`)

	if _, err := LoadRulesFile(path); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestLoadRulesFile_RejectsLongShorterThanShort(t *testing.T) {
	path := writeRules(t, `
windows:
  short: 1h
  long: 1m
`)

	if _, err := LoadRulesFile(path); err == nil {
		t.Fatalf("expected error for long < short")
	}
}

func TestLoadRulesFile_MissingFile(t *testing.T) {
	if _, err := LoadRulesFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
