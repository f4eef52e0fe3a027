package jobs

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	msgStarted = "Generation started!"
	msgReady   = "\"%s\" is ready!"
	msgFailed  = "\"%s\" failed: %s"
)

var (
	supportedLocales = []language.Tag{language.English, language.Indonesian}
	localeMatcher    = language.NewMatcher(supportedLocales)
	notifyCatalog    = newNotifyCatalog()
)

func newNotifyCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	_ = b.SetString(language.English, msgStarted, msgStarted)
	_ = b.SetString(language.English, msgReady, msgReady)
	_ = b.SetString(language.English, msgFailed, msgFailed)
	_ = b.SetString(language.Indonesian, msgStarted, "Pembuatan dimulai!")
	_ = b.SetString(language.Indonesian, msgReady, "\"%s\" sudah siap!")
	_ = b.SetString(language.Indonesian, msgFailed, "\"%s\" gagal: %s")
	return b
}

// localize renders a notification in the closest supported locale.
func localize(locale string, key string, args ...any) string {
	tag := language.English
	if locale != "" {
		if parsed, err := language.Parse(locale); err == nil {
			_, idx, _ := localeMatcher.Match(parsed)
			tag = supportedLocales[idx]
		}
	}
	return message.NewPrinter(tag, message.Catalog(notifyCatalog)).Sprintf(key, args...)
}
