package waitlist

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys double as the English text.
const (
	MsgInvalidEmail       = "Invalid email address"
	MsgAlreadyRegistered  = "This email address is already registered"
	MsgRegistrationFailed = "Registration failed"
	MsgServerError        = "Server error"
)

var supportedLocales = []language.Tag{language.Japanese, language.English}

var japaneseMessages = map[string]string{
	MsgInvalidEmail:       "無効なメールアドレスです",
	MsgAlreadyRegistered:  "このメールアドレスは既に登録済みです",
	MsgRegistrationFailed: "登録に失敗しました",
	MsgServerError:        "サーバーエラー",
}

// Localizer resolves response messages from an Accept-Language header.
type Localizer struct {
	catalog  *catalog.Builder
	matcher  language.Matcher
	fallback language.Tag
}

func NewLocalizer(defaultLocale string) *Localizer {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, text := range japaneseMessages {
		_ = b.SetString(language.Japanese, key, text)
		_ = b.SetString(language.English, key, key)
	}

	l := &Localizer{
		catalog:  b,
		matcher:  language.NewMatcher(supportedLocales),
		fallback: language.Japanese,
	}

	if tag, ok := l.match(defaultLocale); ok {
		l.fallback = tag
	}

	return l
}

// Locale returns the supported tag for acceptLanguage, or the default locale.
func (l *Localizer) Locale(acceptLanguage string) language.Tag {
	if tag, ok := l.match(acceptLanguage); ok {
		return tag
	}
	return l.fallback
}

func (l *Localizer) Translate(acceptLanguage, key string) string {
	p := message.NewPrinter(l.Locale(acceptLanguage), message.Catalog(l.catalog))
	return p.Sprintf(key)
}

func (l *Localizer) match(value string) (language.Tag, bool) {
	if value == "" {
		return language.Und, false
	}

	tags, _, err := language.ParseAcceptLanguage(value)
	if err != nil || len(tags) == 0 {
		return language.Und, false
	}

	_, index, confidence := l.matcher.Match(tags...)
	if confidence == language.No {
		return language.Und, false
	}

	return supportedLocales[index], true
}
