package config

import (
	"strings"
	"sync"
	"time"
)

var (
	extractorOnce   sync.Once
	extractorConfig *ExtractorConfig
)

type ExtractorConfig struct {
	TemplatesDir    string
	Languages       []string
	DPI             int
	TextThreshold   int
	PdftoppmPath    string
	Workers         int
	DocumentTimeout time.Duration
	// AdvisorLocales maps an advisor id to its decimal-separator
	// convention ("comma" or "period").
	AdvisorLocales map[string]string
}

func GetExtractorConfig() *ExtractorConfig {
	extractorOnce.Do(func() {
		loadEnv()

		timeout := time.Duration(getEnvInt("DOCUMENT_TIMEOUT_SECONDS", 120)) * time.Second

		extractorConfig = &ExtractorConfig{
			TemplatesDir:    getEnv("TEMPLATES_DIR", "templates"),
			Languages:       splitList(getEnv("OCR_LANGUAGES", "spa,glg,eng")),
			DPI:             getEnvInt("OCR_DPI", 300),
			TextThreshold:   getEnvInt("TEXT_THRESHOLD", 200),
			PdftoppmPath:    getEnv("PDFTOPPM_PATH", "pdftoppm"),
			Workers:         getEnvInt("BATCH_WORKERS", 0), // 0 = GOMAXPROCS
			DocumentTimeout: timeout,
			AdvisorLocales:  splitPairs(getEnv("ADVISOR_LOCALES", "")),
		}
	})
	return extractorConfig
}

// splitPairs parses "key=value,key2=value2" lists, e.g.
// ADVISOR_LOCALES=asesoria-lugo=comma,us-branch=period.
func splitPairs(s string) map[string]string {
	out := make(map[string]string)
	for _, item := range splitList(s) {
		key, value, ok := strings.Cut(item, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
