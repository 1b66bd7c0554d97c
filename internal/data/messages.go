package data

import (
	"fmt"
	"os"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// MessageTable is the localized announcement catalog loaded from
// messages.yaml. Keys look like "disasters.<id>.start".
//
//	languages:
//	  en:
//	    disasters.meteor_shower.start: "Meteors are falling on {region}!"
type MessageTable struct {
	cat     *catalog.Builder
	tags    []language.Tag
	matcher language.Matcher
	count   int
}

type messageFile struct {
	Fallback  string                       `yaml:"fallback"`
	Languages map[string]map[string]string `yaml:"languages"`
}

// LoadMessageTable loads messages.yaml.
func LoadMessageTable(path string) (*MessageTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read message list %s: %w", path, err)
	}
	return ParseMessageTable(raw)
}

// ParseMessageTable builds the catalog from an in-memory document.
func ParseMessageTable(raw []byte) (*MessageTable, error) {
	var f messageFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse message list: %w", err)
	}
	fallback := language.English
	if f.Fallback != "" {
		tag, err := language.Parse(f.Fallback)
		if err != nil {
			return nil, fmt.Errorf("fallback language %q: %w", f.Fallback, err)
		}
		fallback = tag
	}

	cat := catalog.NewBuilder(catalog.Fallback(fallback))
	t := &MessageTable{cat: cat}

	// Deterministic registration order keeps the matcher stable.
	langs := make([]string, 0, len(f.Languages))
	for l := range f.Languages {
		langs = append(langs, l)
	}
	sort.Strings(langs)

	for _, l := range langs {
		tag, err := language.Parse(l)
		if err != nil {
			return nil, fmt.Errorf("language %q: %w", l, err)
		}
		for key, text := range f.Languages[l] {
			if err := cat.SetString(tag, key, text); err != nil {
				return nil, fmt.Errorf("message %s/%s: %w", l, key, err)
			}
			t.count++
		}
	}
	t.tags = cat.Languages()
	t.matcher = language.NewMatcher(t.tags)
	return t, nil
}

// Count returns the number of (language, key) entries.
func (t *MessageTable) Count() int {
	return t.count
}

// Resolver returns a resolver for the best catalog match of lang.
func (t *MessageTable) Resolver(lang string) *MessageResolver {
	tag := language.English
	if len(t.tags) > 0 {
		_, idx := language.MatchStrings(t.matcher, lang)
		tag = t.tags[idx]
	}
	return &MessageResolver{p: message.NewPrinter(tag, message.Catalog(t.cat))}
}

// MessageResolver resolves message keys for one language.
type MessageResolver struct {
	p *message.Printer
}

// Resolve returns the text for key, or fallback when the catalog has none.
func (r *MessageResolver) Resolve(key, fallback string) string {
	return r.p.Sprintf(message.Key(key, fallback))
}
