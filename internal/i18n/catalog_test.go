package i18n

import (
	"os"
	"path/filepath"
	"testing"
)

func writeLocale(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadCatalog_FlattensNestedKeys(t *testing.T) {
	dir := t.TempDir()
	writeLocale(t, dir, "en_us.yml", `
tollgate:
  teleport:
    charged: "Charged {currency}{amount} to {type}."
    insufficient: "You need {currency}{amount} to {type}."
`)

	c, err := LoadCatalog(dir, "en_us", nil)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	got := c.Translate("tollgate.teleport.charged", map[string]string{
		"currency": "$",
		"amount":   "10",
		"type":     "teleport",
	}, "en_us")
	want := "Charged $10 to teleport."
	if got != want {
		t.Errorf("Translate() = %q, want %q", got, want)
	}
}

func TestCatalog_FallbackChain(t *testing.T) {
	c := NewCatalog("en_us", map[string]map[string]string{
		"en_us": {"tollgate.open.charged": "Charged."},
		"fr_fr": {},
	})

	// Locale exists but lacks the key: fall back to default language.
	if got := c.Translate("tollgate.open.charged", nil, "fr_fr"); got != "Charged." {
		t.Errorf("fr_fr fallback = %q, want \"Charged.\"", got)
	}

	// Unknown locale: default language.
	if got := c.Translate("tollgate.open.charged", nil, "xx_yy"); got != "Charged." {
		t.Errorf("unknown locale = %q, want \"Charged.\"", got)
	}

	// Key missing everywhere: literal key renders.
	key := "tollgate.open.unknown"
	if got := c.Translate(key, nil, "en_us"); got != key {
		t.Errorf("missing key = %q, want literal key %q", got, key)
	}
}

func TestCatalog_EmptyLocaleUsesDefault(t *testing.T) {
	c := NewCatalog("en_us", map[string]map[string]string{
		"en_us": {"k": "v"},
	})
	if got := c.Translate("k", nil, ""); got != "v" {
		t.Errorf("Translate with empty locale = %q, want \"v\"", got)
	}
}

func TestLoadCatalog_ListJoinsWithNewlines(t *testing.T) {
	dir := t.TempDir()
	writeLocale(t, dir, "en_us.yml", `
motd:
  - line one
  - line two
`)

	c, err := LoadCatalog(dir, "en_us", nil)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if got := c.Translate("motd", nil, "en_us"); got != "line one\nline two" {
		t.Errorf("Translate(motd) = %q", got)
	}
}

func TestLoadCatalog_MissingDirIsEmptyCatalog(t *testing.T) {
	c, err := LoadCatalog(filepath.Join(t.TempDir(), "absent"), "en_us", nil)
	if err != nil {
		t.Fatalf("LoadCatalog on missing dir: %v", err)
	}
	if got := c.Translate("some.key", nil, "en_us"); got != "some.key" {
		t.Errorf("Translate = %q, want literal key", got)
	}
}

func TestGenerateDefault_ProducesLoadableCatalog(t *testing.T) {
	dir := t.TempDir()
	if err := GenerateDefault(filepath.Join(dir, "en_us.yml")); err != nil {
		t.Fatalf("GenerateDefault: %v", err)
	}

	c, err := LoadCatalog(dir, "en_us", nil)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	got := c.Translate("tollgate.teleport.charged", map[string]string{
		"currency": "$",
		"amount":   "25",
	}, "en_us")
	if got != "&aYou paid $25 to teleport." {
		t.Errorf("Translate = %q", got)
	}
	for _, key := range []string{
		"tollgate.economy.unavailable",
		"tollgate.open.insufficient",
		"tollgate.autoloot.failed",
		"tollgate.block_break.charged",
	} {
		if c.Translate(key, nil, "en_us") == key {
			t.Errorf("generated catalog missing %s", key)
		}
	}
}

func TestCatalog_ReloadPicksUpEdits(t *testing.T) {
	dir := t.TempDir()
	writeLocale(t, dir, "en_us.yml", "greeting: hello")

	c, err := LoadCatalog(dir, "en_us", nil)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if got := c.Translate("greeting", nil, "en_us"); got != "hello" {
		t.Fatalf("Translate = %q, want \"hello\"", got)
	}

	writeLocale(t, dir, "en_us.yml", "greeting: bonjour")
	if err := c.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := c.Translate("greeting", nil, "en_us"); got != "bonjour" {
		t.Errorf("Translate after reload = %q, want \"bonjour\"", got)
	}
}

func TestLoadCatalog_SkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	writeLocale(t, dir, "bad.yml", "greeting: [unclosed")
	writeLocale(t, dir, "en_us.yml", "greeting: hello")

	c, err := LoadCatalog(dir, "en_us", nil)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if got := c.Translate("greeting", nil, "en_us"); got != "hello" {
		t.Errorf("Translate(greeting) = %q, want \"hello\"", got)
	}
	if len(c.Locales()) != 1 {
		t.Errorf("Locales() = %v, want only en_us", c.Locales())
	}
}
