// Package i18n loads locale message catalogs and resolves message keys
// with placeholder substitution. Catalogs are YAML files in a languages
// directory, one file per locale (en_us.yml, fr_fr.yml, ...). Nested maps
// flatten to dotted keys: tollgate.teleport.charged.
package i18n

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Catalog holds the loaded translations for all locales. It is safe for
// concurrent use; Reload re-reads the languages directory in place.
type Catalog struct {
	mu              sync.RWMutex
	dir             string
	defaultLanguage string
	translations    map[string]map[string]string
	logger          *slog.Logger
}

// LoadCatalog reads every *.yml and *.yaml file in dir. A missing or empty
// directory yields an empty catalog, not an error; Translate then falls
// back to returning keys verbatim. Individual unreadable files are skipped
// with a warning so one bad locale cannot take down the rest.
func LoadCatalog(dir, defaultLanguage string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultLanguage == "" {
		defaultLanguage = "en_us"
	}

	c := &Catalog{
		dir:             dir,
		defaultLanguage: strings.ToLower(defaultLanguage),
		translations:    make(map[string]map[string]string),
		logger:          logger.With("component", "i18n.Catalog"),
	}

	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the languages directory, replacing all translations.
func (c *Catalog) Reload() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			c.logger.Warn("languages directory missing, messages fall back to keys", "dir", c.dir)
			return nil
		}
		return fmt.Errorf("read languages dir %s: %w", c.dir, err)
	}

	translations := make(map[string]map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yml" && ext != ".yaml" {
			continue
		}

		path := filepath.Join(c.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			c.logger.Warn("skipping unreadable locale file", "path", path, "error", err)
			continue
		}

		var root map[string]any
		if err := yaml.Unmarshal(data, &root); err != nil {
			c.logger.Warn("skipping malformed locale file", "path", path, "error", err)
			continue
		}

		locale := strings.ToLower(strings.TrimSuffix(entry.Name(), ext))
		flat := make(map[string]string)
		flatten("", root, flat)
		translations[locale] = flat
	}

	c.mu.Lock()
	c.translations = translations
	c.mu.Unlock()
	return nil
}

// NewCatalog builds a catalog directly from flattened locale maps. Used by
// tests and embedders that manage their own message sources.
func NewCatalog(defaultLanguage string, translations map[string]map[string]string) *Catalog {
	if defaultLanguage == "" {
		defaultLanguage = "en_us"
	}
	if translations == nil {
		translations = make(map[string]map[string]string)
	}
	return &Catalog{
		defaultLanguage: strings.ToLower(defaultLanguage),
		translations:    translations,
		logger:          slog.Default(),
	}
}

// Translate resolves key for the locale, falling back to the default
// language and finally to the key itself so something always renders.
// Placeholders replace {name} tokens in the resolved message.
func (c *Catalog) Translate(key string, placeholders map[string]string, locale string) string {
	lc := strings.ToLower(locale)
	if lc == "" {
		lc = c.defaultLanguage
	}

	msg, ok := c.lookup(lc, key)
	if !ok {
		msg, ok = c.lookup(c.defaultLanguage, key)
	}
	if !ok {
		return key
	}

	for name, value := range placeholders {
		msg = strings.ReplaceAll(msg, "{"+name+"}", value)
	}
	return msg
}

// Locales returns the loaded locale names.
func (c *Catalog) Locales() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.translations))
	for locale := range c.translations {
		out = append(out, locale)
	}
	return out
}

func (c *Catalog) lookup(locale, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.translations[locale]
	if !ok {
		return "", false
	}
	msg, ok := m[key]
	return msg, ok
}

// flatten walks a parsed YAML tree, emitting dotted keys for scalars and
// newline-joined strings for lists.
func flatten(prefix string, node map[string]any, out map[string]string) {
	for key, val := range node {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}

		switch v := val.(type) {
		case map[string]any:
			flatten(full, v, out)
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			out[full] = strings.Join(parts, "\n")
		case nil:
			// skip empty nodes
		default:
			out[full] = fmt.Sprint(v)
		}
	}
}
