// Package langmeta provides the language metadata registry used in
// translation prompts and CLI output: English and native names plus the
// writing direction of the script.
package langmeta

import "strings"

// Meta describes one language.
type Meta struct {
	// Name is the English name, used inside prompts.
	Name string
	// Native is the name in the language itself, used in CLI output.
	Native string
	// RTL is true for right-to-left scripts.
	RTL bool
}

// Registry contains canonical language metadata.
// Locale variants are resolved in Resolve() via normalization and base fallback.
var Registry = map[string]Meta{
	"ar":    {Name: "Arabic", Native: "العربية", RTL: true},
	"bn":    {Name: "Bengali", Native: "বাংলা"},
	"de":    {Name: "German", Native: "Deutsch"},
	"en":    {Name: "English", Native: "English"},
	"en-GB": {Name: "English (UK)", Native: "English (UK)"},
	"en-US": {Name: "English (US)", Native: "English (US)"},
	"es":    {Name: "Spanish", Native: "Español"},
	"fa":    {Name: "Persian", Native: "فارسی", RTL: true},
	"fr":    {Name: "French", Native: "Français"},
	"gu":    {Name: "Gujarati", Native: "ગુજરાતી"},
	"he":    {Name: "Hebrew", Native: "עברית", RTL: true},
	"hi":    {Name: "Hindi", Native: "हिन्दी"},
	"id":    {Name: "Indonesian", Native: "Bahasa Indonesia"},
	"it":    {Name: "Italian", Native: "Italiano"},
	"ja":    {Name: "Japanese", Native: "日本語"},
	"ko":    {Name: "Korean", Native: "한국어"},
	"ms":    {Name: "Malay", Native: "Bahasa Melayu"},
	"nl":    {Name: "Dutch", Native: "Nederlands"},
	"pa":    {Name: "Punjabi", Native: "ਪੰਜਾਬੀ"},
	"pl":    {Name: "Polish", Native: "Polski"},
	"ps":    {Name: "Pashto", Native: "پښتو", RTL: true},
	"pt":    {Name: "Portuguese", Native: "Português"},
	"pt-BR": {Name: "Portuguese (Brazil)", Native: "Português (Brasil)"},
	"ru":    {Name: "Russian", Native: "Русский"},
	"sd":    {Name: "Sindhi", Native: "سنڌي", RTL: true},
	"sw":    {Name: "Swahili", Native: "Kiswahili"},
	"ta":    {Name: "Tamil", Native: "தமிழ்"},
	"tr":    {Name: "Turkish", Native: "Türkçe"},
	"uk":    {Name: "Ukrainian", Native: "Українська"},
	"ur":    {Name: "Urdu", Native: "اردو", RTL: true},
	"vi":    {Name: "Vietnamese", Native: "Tiếng Việt"},
	"zh":    {Name: "Chinese", Native: "中文"},
	"zh-CN": {Name: "Chinese (Simplified)", Native: "简体中文"},
	"zh-TW": {Name: "Chinese (Traditional)", Native: "繁體中文"},
}

func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Resolve returns best-effort language metadata for language codes,
// supporting variants like pt_BR, pt-BR, and locale fallbacks. Unknown
// codes come back with the code itself as both names.
func Resolve(lang string) Meta {
	if m, ok := Registry[lang]; ok {
		return m
	}
	normalized := canonicalize(lang)
	if m, ok := Registry[normalized]; ok {
		return m
	}
	if parts := strings.SplitN(normalized, "-", 2); len(parts) == 2 {
		if m, ok := Registry[parts[0]]; ok {
			return m
		}
	}
	return Meta{Name: lang, Native: lang}
}

// Known reports whether lang (or its base language) is in the registry.
func Known(lang string) bool {
	return Resolve(lang).Name != lang
}

// Label formats a code for prompts, e.g. "Urdu (ur)".
func Label(lang string) string {
	m := Resolve(lang)
	if m.Name == lang {
		return lang
	}
	return m.Name + " (" + lang + ")"
}
