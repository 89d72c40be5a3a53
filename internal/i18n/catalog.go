// Package i18n is the resource-keyed string catalog for every screen.
// Locales are TOML files embedded at build time; nested tables flatten to
// dotted keys ("alert.payment_failed"). English is the fallback for any key a
// locale lacks.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Fallback is the locale every other one falls back to.
const Fallback = "en"

//go:embed locales/*.toml
var locales embed.FS

// Catalog resolves keys for one language.
type Catalog struct {
	lang     string
	strings  map[string]string
	fallback map[string]string
}

// Load returns the catalog for lang.
func Load(lang string) (*Catalog, error) {
	if lang == "" {
		lang = Fallback
	}
	base, err := readLocale(Fallback)
	if err != nil {
		return nil, err
	}
	if lang == Fallback {
		return &Catalog{lang: lang, strings: base, fallback: base}, nil
	}
	own, err := readLocale(lang)
	if err != nil {
		return nil, err
	}
	return &Catalog{lang: lang, strings: own, fallback: base}, nil
}

// MustLoad is Load for static locale names known to exist.
func MustLoad(lang string) *Catalog {
	c, err := Load(lang)
	if err != nil {
		panic(err)
	}
	return c
}

// Lang returns the catalog language.
func (c *Catalog) Lang() string { return c.lang }

// Has reports whether key resolves in this catalog or the fallback.
func (c *Catalog) Has(key string) bool {
	if _, ok := c.strings[key]; ok {
		return true
	}
	_, ok := c.fallback[key]
	return ok
}

// T resolves key and formats it with args. An unknown key returns itself so
// a missing string is visible instead of blank.
func (c *Catalog) T(key string, args ...any) string {
	s, ok := c.strings[key]
	if !ok {
		s, ok = c.fallback[key]
	}
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(s, args...)
	}
	return s
}

// Languages lists the embedded locales.
func Languages() []string {
	entries, err := locales.ReadDir("locales")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".toml"); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func readLocale(lang string) (map[string]string, error) {
	raw, err := locales.ReadFile(path.Join("locales", lang+".toml"))
	if err != nil {
		return nil, fmt.Errorf("unknown locale %q", lang)
	}
	var tree map[string]any
	if err := toml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", lang, err)
	}
	out := make(map[string]string)
	flatten("", tree, out)
	return out, nil
}

func flatten(prefix string, tree map[string]any, out map[string]string) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}
