// Package config handles pipeline configuration from the environment.
package config

import (
	"image"
	"image/color"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string

	// Translation sidecar (LibreTranslate protocol).
	TranslateAddr   string
	TranslateAPIKey string

	SourceLang string // BCP-47 tag fed to OCR and the sidecar
	TargetLang string

	CaptureRate   float64 // Hz
	CaptureRegion image.Rectangle // zero rect captures the full display

	DiffThreshold    float64 // changed-pixel fraction
	DiffPixelDelta   int
	DiffHashDistance int

	MergeMinOverlap   float64
	MergeWrapGapRatio float64
	MergeMaxGapRatio  float64
	IdentityOverlap   float64

	OCRMinConfidence float64

	CacheCapacity int

	// ShowPending publishes untranslated blocks with source text as a
	// placeholder; off withholds them until the translation resolves.
	ShowPending bool

	DefaultFG color.RGBA
	DefaultBG color.RGBA
}

// Load reads configuration, first from a .env file if present, then the
// process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Debug("no .env file loaded", "error", err)
	}

	return &Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8700"),
		TranslateAddr:    getEnv("TRANSLATE_ADDR", "http://localhost:5000"),
		TranslateAPIKey:  getEnv("TRANSLATE_API_KEY", ""),
		SourceLang:       getEnv("SOURCE_LANG", "en"),
		TargetLang:       getEnv("TARGET_LANG", "es"),
		CaptureRate:      getEnvFloat("CAPTURE_RATE", 1.0),
		CaptureRegion:    getEnvRegion("CAPTURE_REGION"),
		DiffThreshold:    getEnvFloat("DIFF_THRESHOLD", 0.02),
		DiffPixelDelta:   getEnvInt("DIFF_PIXEL_DELTA", 16),
		DiffHashDistance: getEnvInt("DIFF_HASH_DISTANCE", 3),
		MergeMinOverlap:  getEnvFloat("MERGE_MIN_OVERLAP", 0.3),
		MergeWrapGapRatio: getEnvFloat("MERGE_WRAP_GAP_RATIO", 0.8),
		MergeMaxGapRatio: getEnvFloat("MERGE_MAX_GAP_RATIO", 1.5),
		IdentityOverlap:  getEnvFloat("IDENTITY_OVERLAP", 0.5),
		OCRMinConfidence: getEnvFloat("OCR_MIN_CONFIDENCE", 0.3),
		CacheCapacity:    getEnvInt("CACHE_CAPACITY", 500),
		ShowPending:      getEnvBool("SHOW_PENDING", true),
		DefaultFG:        getEnvColor("DEFAULT_FG", color.RGBA{0xF0, 0xF0, 0xF0, 0xFF}),
		DefaultBG:        getEnvColor("DEFAULT_BG", color.RGBA{0x20, 0x20, 0x20, 0xFF}),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

// getEnvRegion parses "x,y,w,h". Anything else means full display.
func getEnvRegion(key string) image.Rectangle {
	v := os.Getenv(key)
	if v == "" {
		return image.Rectangle{}
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		slog.Warn("ignoring malformed capture region", "value", v)
		return image.Rectangle{}
	}
	nums := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			slog.Warn("ignoring malformed capture region", "value", v)
			return image.Rectangle{}
		}
		nums[i] = n
	}
	return image.Rect(nums[0], nums[1], nums[0]+nums[2], nums[1]+nums[3])
}

// getEnvColor parses "#RRGGBB".
func getEnvColor(key string, def color.RGBA) color.RGBA {
	v := strings.TrimPrefix(os.Getenv(key), "#")
	if len(v) != 6 {
		return def
	}
	n, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		return def
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xFF}
}
