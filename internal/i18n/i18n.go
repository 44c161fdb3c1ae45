// Package i18n renders analyzer message keys into user-facing text.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"strings"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/kanoo-op/PostureAI-sub004/internal/exercise"
)

//go:embed locales/*.json
var localeFS embed.FS

// Translator localises exercise messages. It is safe for concurrent use once built.
type Translator struct {
	bundle *goi18n.Bundle
}

// New loads the embedded locales. English is the fallback language.
func New() (*Translator, error) {
	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	files, err := fs.Glob(localeFS, "locales/*.json")
	if err != nil {
		return nil, fmt.Errorf("listing locales: %w", err)
	}
	for _, f := range files {
		if _, err := bundle.LoadMessageFileFS(localeFS, f); err != nil {
			return nil, fmt.Errorf("loading locale %s: %w", path.Base(f), err)
		}
	}
	return &Translator{bundle: bundle}, nil
}

// MustNew is New for package initialisation; it panics on a broken locale file.
func MustNew() *Translator {
	t, err := New()
	if err != nil {
		panic(err)
	}
	return t
}

// Languages lists the loaded locales.
func (t *Translator) Languages() []string {
	tags := t.bundle.LanguageTags()
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = tag.String()
	}
	return out
}

// Localize renders msg in locale (a BCP 47 tag such as "ko" or "en-GB").
// Unknown locales fall back to English and unknown keys render as the key.
// A "checkpoint" parameter is itself localised.
func (t *Translator) Localize(locale string, msg exercise.Message) string {
	loc := goi18n.NewLocalizer(t.bundle, locale, language.English.String())

	data := maps.Clone(msg.Params)
	if cp, ok := data["checkpoint"].(string); ok {
		if name, err := loc.Localize(&goi18n.LocalizeConfig{MessageID: "checkpoint." + cp}); err == nil {
			data["checkpoint"] = name
		}
	}

	s, err := loc.Localize(&goi18n.LocalizeConfig{MessageID: msg.Key, TemplateData: data})
	if err != nil || s == "" {
		return msg.Key
	}
	return s
}

// LocalizeAll renders messages joined by a separator.
func (t *Translator) LocalizeAll(locale string, msgs []exercise.Message, sep string) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, t.Localize(locale, m))
	}
	return strings.Join(parts, sep)
}
