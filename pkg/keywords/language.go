package keywords

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// AutoLanguage is the language setting that asks for detection.
const AutoLanguage = "auto"

// Google Ads language constant ids for the languages the detector knows.
var languageConstants = map[lingua.Language]string{
	lingua.English:    "1000",
	lingua.German:     "1001",
	lingua.French:     "1002",
	lingua.Spanish:    "1003",
	lingua.Italian:    "1004",
	lingua.Japanese:   "1005",
	lingua.Danish:     "1009",
	lingua.Dutch:      "1010",
	lingua.Finnish:    "1011",
	lingua.Korean:     "1012",
	lingua.Bokmal:     "1013",
	lingua.Portuguese: "1014",
	lingua.Swedish:    "1015",
	lingua.Chinese:    "1017",
	lingua.Arabic:     "1019",
	lingua.Bulgarian:  "1020",
	lingua.Czech:      "1021",
	lingua.Greek:      "1022",
	lingua.Hindi:      "1023",
	lingua.Hungarian:  "1024",
	lingua.Indonesian: "1025",
	lingua.Icelandic:  "1026",
	lingua.Hebrew:     "1027",
	lingua.Latvian:    "1028",
	lingua.Lithuanian: "1029",
	lingua.Polish:     "1030",
	lingua.Russian:    "1031",
	lingua.Romanian:   "1032",
	lingua.Slovak:     "1033",
	lingua.Slovene:    "1034",
	lingua.Serbian:    "1035",
	lingua.Ukrainian:  "1036",
	lingua.Turkish:    "1037",
	lingua.Catalan:    "1038",
	lingua.Croatian:   "1039",
	lingua.Vietnamese: "1040",
	lingua.Urdu:       "1041",
	lingua.Estonian:   "1043",
	lingua.Thai:       "1044",
}

// maxSample bounds how many keywords are fed to the detector.
const maxSample = 500

// LanguageDetector guesses the Google Ads language constant for a keyword
// list.
type LanguageDetector struct {
	once     sync.Once
	detector lingua.LanguageDetector
}

func NewLanguageDetector() *LanguageDetector {
	return &LanguageDetector{}
}

func (d *LanguageDetector) build() {
	d.once.Do(func() {
		languages := make([]lingua.Language, 0, len(languageConstants))
		for lang := range languageConstants {
			languages = append(languages, lang)
		}
		d.detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			Build()
	})
}

// Detect returns the language constant id of the dominant language and
// false when nothing could be detected reliably.
func (d *LanguageDetector) Detect(keywords []string) (string, bool) {
	if len(keywords) == 0 {
		return "", false
	}
	if len(keywords) > maxSample {
		keywords = keywords[:maxSample]
	}

	d.build()
	lang, ok := d.detector.DetectLanguageOf(strings.Join(keywords, "\n"))
	if !ok {
		return "", false
	}
	id, ok := languageConstants[lang]
	return id, ok
}

// ResolveLanguage returns configured unless it is AutoLanguage, in which
// case detection runs and falls back to fallback.
func (d *LanguageDetector) ResolveLanguage(configured string, keywords []string, fallback string) string {
	if !strings.EqualFold(configured, AutoLanguage) {
		if configured == "" {
			return fallback
		}
		return configured
	}
	if id, ok := d.Detect(keywords); ok {
		return id
	}
	return fallback
}
