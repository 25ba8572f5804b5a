// Package i18n localizes the messages bookkit prints on the terminal.
//
// Catalogues are gettext .po files embedded in the binary. Init picks the
// language from the environment; T and N translate.
//
//	i18n.Init("")
//	fmt.Println(i18n.T("Translation memory cleared"))
//	fmt.Println(i18n.N("%d chapter", "%d chapters", n))
package i18n

import (
	"embed"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

// locales holds locales/{lang}/LC_MESSAGES/bookkit.po.
//
//go:embed all:locales
var locales embed.FS

const domain = "bookkit"

var (
	po   *gotext.Locale
	lang string
)

// Init loads the catalogue for l. An empty l is detected from LANGUAGE,
// LC_ALL, LC_MESSAGES and LANG, in the GNU gettext order. Call it once
// before T or N.
func Init(l string) {
	if l == "" {
		l = detectLanguage()
	}
	lang = l

	po = gotext.NewLocaleFSWithPath(l, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// Lang returns the language passed to or detected by Init, "" before Init.
func Lang() string { return lang }

// T translates msgid, returning it unchanged when there is no translation.
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// N picks the plural form for n.
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		// ur_PK.UTF-8 -> ur_PK, ur_PK@latin -> ur_PK
		if idx := strings.IndexAny(val, ".@"); idx >= 0 {
			val = val[:idx]
		}
		if val == "" || val == "C" || val == "POSIX" {
			continue
		}
		return val
	}
	return "en"
}
