// Package i18n localizes sitei18n's own messages.
//
// Catalogs are gettext .po files embedded from locales/<lang>/LC_MESSAGES/
// and read with gotext. Messages without a translation pass through
// unchanged.
package i18n

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/language"
)

//go:embed all:locales
var locales embed.FS

const domain = "sitei18n"

var (
	po      *gotext.Locale
	catalog string
)

// Init loads the catalog for lang. An empty lang is detected from the
// environment.
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}
	catalog = catalogName(lang)
	po = gotext.NewLocaleFSWithPath(catalog, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// Lang returns the active catalog name, or "" before Init.
func Lang() string {
	if po == nil {
		return ""
	}
	return catalog
}

// T translates msgid.
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// Tf translates format and applies args.
func Tf(format string, args ...any) string {
	return fmt.Sprintf(T(format), args...)
}

// N translates a message with plural forms.
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

// detectLanguage follows gettext: LANGUAGE, LC_ALL, LC_MESSAGES, LANG.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		if i := strings.IndexAny(val, ".@"); i >= 0 {
			val = val[:i]
		}
		if val == "" || val == "C" || val == "POSIX" {
			continue
		}
		return val
	}
	return "en"
}

// catalogName maps a locale or BCP 47 tag to the catalog directory name.
// Chinese scripts pick the regional catalog: zh-Hans is zh_CN, zh-Hant is
// zh_TW.
func catalogName(lang string) string {
	tag, err := language.Parse(strings.ReplaceAll(lang, "_", "-"))
	if err != nil {
		return lang
	}
	base, _ := tag.Base()
	if base.String() != "zh" {
		if region, conf := tag.Region(); conf == language.Exact {
			return base.String() + "_" + region.String()
		}
		return base.String()
	}
	if script, _ := tag.Script(); script.String() == "Hant" {
		return "zh_TW"
	}
	return "zh_CN"
}
