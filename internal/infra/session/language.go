package session

import (
	"golang.org/x/text/language"
)

// LanguageMatcher はAccept-Languageから対応言語を1つ選ぶ。
type LanguageMatcher struct {
	matcher language.Matcher
	codes   []string
}

// defaultLangが先頭（一致しないときに使う）
func NewLanguageMatcher(defaultLang string, supported []string) *LanguageMatcher {
	codes := []string{defaultLang}
	for _, s := range supported {
		if s != "" && s != defaultLang {
			codes = append(codes, s)
		}
	}
	tags := make([]language.Tag, 0, len(codes))
	for _, c := range codes {
		tags = append(tags, language.Make(c))
	}
	return &LanguageMatcher{matcher: language.NewMatcher(tags), codes: codes}
}

func (m *LanguageMatcher) Negotiate(acceptLanguage string) string {
	if acceptLanguage == "" {
		return m.codes[0]
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return m.codes[0]
	}
	_, idx, conf := m.matcher.Match(tags...)
	if conf == language.No {
		return m.codes[0]
	}
	return m.codes[idx]
}
