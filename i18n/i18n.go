package i18n

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// DefaultLocale is the fallback for unknown or missing locales.
const DefaultLocale = "en"

var supported = map[string]bool{
	"en": true,
	"de": true,
	"es": true,
}

var catalogs = loadCatalogs()

func loadCatalogs() map[string]map[string]string {
	loaded := make(map[string]map[string]string, len(supported))
	for locale := range supported {
		data, err := localeFS.ReadFile("locales/" + locale + ".yaml")
		if err != nil {
			panic(fmt.Sprintf("i18n: missing embedded catalog for %q: %v", locale, err))
		}
		catalog := map[string]string{}
		if err := yaml.Unmarshal(data, &catalog); err != nil {
			panic(fmt.Sprintf("i18n: malformed catalog for %q: %v", locale, err))
		}
		loaded[locale] = catalog
	}
	return loaded
}

// T translates a key for a locale with optional {placeholder} interpolation.
// Missing translations fall back to English, and unknown keys are returned
// verbatim.
func T(key, locale string, args map[string]string) string {
	val, ok := catalogs[locale][key]
	if !ok {
		val, ok = catalogs[DefaultLocale][key]
	}
	if !ok {
		return key
	}
	for name, value := range args {
		val = strings.ReplaceAll(val, "{"+name+"}", value)
	}
	return val
}

// DetectLocale picks the best supported locale from an Accept-Language
// header value.
func DetectLocale(acceptLanguage string) string {
	if acceptLanguage == "" {
		return DefaultLocale
	}
	for _, part := range strings.Split(acceptLanguage, ",") {
		lang := strings.TrimSpace(part)
		if i := strings.IndexByte(lang, ';'); i >= 0 {
			lang = lang[:i]
		}
		if i := strings.IndexByte(lang, '-'); i >= 0 {
			lang = lang[:i]
		}
		lang = strings.ToLower(strings.TrimSpace(lang))
		if supported[lang] {
			return lang
		}
	}
	return DefaultLocale
}
