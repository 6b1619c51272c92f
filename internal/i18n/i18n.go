package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

const (
	LangEN = "en"
	LangRU = "ru"
)

//go:embed locales/*.json
var embeddedLocales embed.FS

type Manager struct {
	defaultLanguage string
	locales         map[string]map[string]string
	supported       []string
}

// NewManager loads the locales compiled into the binary.
func NewManager(defaultLanguage string) (*Manager, error) {
	locales, err := fs.Sub(embeddedLocales, "locales")
	if err != nil {
		return nil, fmt.Errorf("open embedded locales: %w", err)
	}
	return NewManagerFromFS(defaultLanguage, locales)
}

func NewManagerFromFS(defaultLanguage string, locales fs.FS) (*Manager, error) {
	entries, err := fs.ReadDir(locales, ".")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}

	manager := &Manager{locales: map[string]map[string]string{}}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".json" {
			continue
		}

		language := strings.ToLower(strings.TrimSuffix(entry.Name(), ".json"))
		content, err := fs.ReadFile(locales, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", language, err)
		}
		messages := map[string]string{}
		if err := json.Unmarshal(content, &messages); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", language, err)
		}
		if len(messages) == 0 {
			return nil, fmt.Errorf("locale %s is empty", language)
		}

		manager.locales[language] = messages
		manager.supported = append(manager.supported, language)
	}

	for _, required := range []string{LangEN, LangRU} {
		if _, ok := manager.locales[required]; !ok {
			return nil, fmt.Errorf("required locale %q missing", required)
		}
	}

	sort.Strings(manager.supported)
	manager.defaultLanguage = LangEN
	manager.defaultLanguage = manager.NormalizeLanguage(defaultLanguage)
	return manager, nil
}

func (manager *Manager) DefaultLanguage() string {
	return manager.defaultLanguage
}

func (manager *Manager) SupportedLanguages() []string {
	return append([]string(nil), manager.supported...)
}

func (manager *Manager) NormalizeLanguage(raw string) string {
	if language := languageTag(raw); manager.isSupported(language) {
		return language
	}
	return manager.defaultLanguage
}

// DetectFromAcceptLanguage returns the first supported language in an
// Accept-Language header, ignoring quality values.
func (manager *Manager) DetectFromAcceptLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag, _, _ := strings.Cut(part, ";")
		if language := languageTag(tag); manager.isSupported(language) {
			return language
		}
	}
	return manager.defaultLanguage
}

// Messages returns the catalog for language with default-language entries
// filling any gaps.
func (manager *Manager) Messages(language string) map[string]string {
	base := manager.locales[manager.defaultLanguage]
	target := manager.locales[manager.NormalizeLanguage(language)]

	merged := make(map[string]string, len(base))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range target {
		if strings.TrimSpace(value) != "" {
			merged[key] = value
		}
	}
	return merged
}

func (manager *Manager) Translate(language string, key string) string {
	if value, ok := manager.Messages(language)[key]; ok {
		return value
	}
	return key
}

func (manager *Manager) isSupported(language string) bool {
	_, ok := manager.locales[language]
	return language != "" && ok
}

func languageTag(raw string) string {
	language := strings.ToLower(strings.TrimSpace(raw))
	language = strings.ReplaceAll(language, "_", "-")
	language, _, _ = strings.Cut(language, "-")
	return language
}
