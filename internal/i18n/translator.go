// Package i18n resolves display labels from YAML catalogs.
package i18n

import (
	_ "embed"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog maps a locale to its translated keys.
type Catalog map[string]map[string]string

// Decode reads a YAML catalog.
func Decode(r io.Reader) (Catalog, error) {
	var c Catalog
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return Catalog{}, nil
		}
		return nil, errors.Wrap(err, "decode catalog")
	}
	return c, nil
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}
	defer func() { _ = f.Close() }()

	return Decode(f)
}

// Translator looks up labels by locale, falling back to the closest
// supported locale, then to the default locale, then to the key itself.
// It is safe for concurrent use.
type Translator struct {
	tags     []language.Tag
	matcher  language.Matcher
	messages []map[string]string
}

// NewTranslator returns a Translator over the embedded catalog merged with
// overrides. Later catalogs win.
func NewTranslator(defaultLocale string, overrides ...Catalog) (*Translator, error) {
	def, err := language.Parse(defaultLocale)
	if err != nil {
		return nil, errors.Wrapf(err, "parse default locale %q", defaultLocale)
	}

	embedded, err := yamlCatalog(defaultCatalog)
	if err != nil {
		return nil, err
	}

	merged := make(map[language.Tag]map[string]string)
	for _, c := range append([]Catalog{embedded}, overrides...) {
		for locale, keys := range c {
			tag, err := language.Parse(locale)
			if err != nil {
				return nil, errors.Wrapf(err, "parse locale %q", locale)
			}
			if merged[tag] == nil {
				merged[tag] = make(map[string]string, len(keys))
			}
			for k, v := range keys {
				merged[tag][k] = v
			}
		}
	}

	// The matcher falls back to the first tag.
	t := &Translator{
		tags:     []language.Tag{def},
		messages: []map[string]string{merged[def]},
	}
	others := make([]language.Tag, 0, len(merged))
	for tag := range merged {
		if tag != def {
			others = append(others, tag)
		}
	}
	slices.SortFunc(others, func(a, b language.Tag) int {
		return strings.Compare(a.String(), b.String())
	})
	for _, tag := range others {
		t.tags = append(t.tags, tag)
		t.messages = append(t.messages, merged[tag])
	}
	t.matcher = language.NewMatcher(t.tags)
	return t, nil
}

func yamlCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "decode embedded catalog")
	}
	return c, nil
}

// Translate returns the label for key in the locale closest to locale.
func (t *Translator) Translate(locale, key string) string {
	idx := 0
	if locale != "" {
		if tag, err := language.Parse(locale); err == nil {
			_, idx, _ = t.matcher.Match(tag)
		}
	}
	if v, ok := t.messages[idx][key]; ok {
		return v
	}
	if v, ok := t.messages[0][key]; ok {
		return v
	}
	return key
}

// Locales returns the supported locales, default first.
func (t *Translator) Locales() []string {
	out := make([]string, len(t.tags))
	for i, tag := range t.tags {
		out[i] = tag.String()
	}
	return out
}
