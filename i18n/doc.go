// Package i18n localizes API response messages.
//
// Catalogs are YAML files embedded at build time. Lookups fall back to
// English, and unknown keys echo the key itself so a missing translation
// never blanks a response.
package i18n
