package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Target is one of the service's supported dubbing languages, identified by
// the word sent as the target_language form field.
type Target string

const (
	Spanish    Target = "spanish"
	French     Target = "french"
	German     Target = "german"
	Japanese   Target = "japanese"
	Chinese    Target = "chinese"
	Korean     Target = "korean"
	Portuguese Target = "portuguese"
	Italian    Target = "italian"
	Arabic     Target = "arabic"
	Hindi      Target = "hindi"
	Russian    Target = "russian"
	Turkish    Target = "turkish"
)

type entry struct {
	target Target
	code   string // translation code used by the service
	voice  string // neural voice the service synthesizes with
	tag    language.Tag
}

var targets = []entry{
	{Spanish, "es", "es-ES-AlvaroNeural", language.Spanish},
	{French, "fr", "fr-FR-HenriNeural", language.French},
	{German, "de", "de-DE-ConradNeural", language.German},
	{Japanese, "ja", "ja-JP-KeitaNeural", language.Japanese},
	{Chinese, "zh-cn", "zh-CN-YunxiNeural", language.SimplifiedChinese},
	{Korean, "ko", "ko-KR-InJoonNeural", language.Korean},
	{Portuguese, "pt", "pt-BR-AntonioNeural", language.BrazilianPortuguese},
	{Italian, "it", "it-IT-DiegoNeural", language.Italian},
	{Arabic, "ar", "ar-SA-HamedNeural", language.Arabic},
	{Hindi, "hi", "hi-IN-MadhurNeural", language.Hindi},
	{Russian, "ru", "ru-RU-DmitryNeural", language.Russian},
	{Turkish, "tr", "tr-TR-AhmetNeural", language.Turkish},
}

var titleCaser = cases.Title(language.English)

// All returns every supported target in presentation order.
func All() []Target {
	out := make([]Target, len(targets))
	for i, e := range targets {
		out[i] = e.target
	}
	return out
}

func lookup(t Target) (entry, bool) {
	for _, e := range targets {
		if e.target == t {
			return e, true
		}
	}
	return entry{}, false
}

// Valid reports whether t is one of the supported targets.
func (t Target) Valid() bool {
	_, ok := lookup(t)
	return ok
}

// String returns the form value sent to the service.
func (t Target) String() string {
	return string(t)
}

// DisplayName returns the capitalized language name.
func (t Target) DisplayName() string {
	if t == "" {
		return "Unknown"
	}
	return titleCaser.String(string(t))
}

// Code returns the translation code the service pairs with the target.
func (t Target) Code() string {
	e, _ := lookup(t)
	return e.code
}

// Voice returns the synthesis voice the service uses for the target.
func (t Target) Voice() string {
	e, _ := lookup(t)
	return e.voice
}

// Tag returns the BCP 47 tag of the target, or language.Und when unknown.
func (t Target) Tag() language.Tag {
	e, ok := lookup(t)
	if !ok {
		return language.Und
	}
	return e.tag
}

// Parse maps a language word, service code or BCP 47 tag onto a Target.
func Parse(value string) (Target, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "", fmt.Errorf("target language is required (one of %s)", strings.Join(Names(), ", "))
	}
	for _, e := range targets {
		if normalized == string(e.target) || normalized == e.code {
			return e.target, nil
		}
	}
	tag, err := language.Parse(normalized)
	if err == nil {
		base, confidence := tag.Base()
		if confidence != language.No {
			for _, e := range targets {
				if want, _ := e.tag.Base(); want == base {
					return e.target, nil
				}
			}
		}
	}
	return "", fmt.Errorf("unsupported target language %q (one of %s)", value, strings.Join(Names(), ", "))
}

// Names returns the form values of every supported target.
func Names() []string {
	out := make([]string, len(targets))
	for i, e := range targets {
		out[i] = string(e.target)
	}
	return out
}
