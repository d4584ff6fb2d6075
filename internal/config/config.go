package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables
// with sensible defaults for local development.
type Config struct {
	ModelsDir     string
	CropModelPath string

	SupportedCrops []string

	ImageSize     int
	Normalization string

	CropThreshold  float32
	ModelCacheSize int
	MaxUploadBytes int64

	Port string
}

const (
	defaultModelsDir     = "models/disease_models"
	defaultCropModelPath = "models/crop_detector.onnx"
	defaultImageSize     = 224
	defaultCacheSize     = 3
	defaultMaxUpload     = 10 << 20 // 10MB
)

// Load reads configuration from a .env file (if present) and the process
// environment.
func Load() *Config {
	// Ignore the error: a missing .env file just means plain env vars.
	_ = godotenv.Load()

	cfg := &Config{
		ModelsDir:      getEnv("MODELS_DIR", defaultModelsDir),
		CropModelPath:  getEnv("CROP_MODEL_PATH", defaultCropModelPath),
		SupportedCrops: splitList(getEnv("SUPPORTED_CROPS", "corn,tomato,grape,mango,peanut")),
		ImageSize:      getEnvInt("IMAGE_SIZE", defaultImageSize),
		Normalization:  getEnv("IMAGE_NORMALIZATION", "standard"),
		CropThreshold:  getEnvFloat("CROP_DETECTION_THRESHOLD", 0.5),
		ModelCacheSize: getEnvInt("MODEL_CACHE_SIZE", defaultCacheSize),
		MaxUploadBytes: int64(getEnvInt("MAX_IMAGE_SIZE", defaultMaxUpload)),
		Port:           getEnv("PORT", "8080"),
	}

	return cfg
}

// Validate returns a list of configuration problems, empty if everything
// checks out.
func (c *Config) Validate() []string {
	var issues []string

	if len(c.SupportedCrops) == 0 {
		issues = append(issues, "SUPPORTED_CROPS cannot be empty")
	}
	if c.ImageSize <= 0 {
		issues = append(issues, "IMAGE_SIZE must be positive")
	}
	if c.CropThreshold < 0.0 || c.CropThreshold > 1.0 {
		issues = append(issues, "CROP_DETECTION_THRESHOLD must be between 0.0 and 1.0")
	}
	if c.ModelCacheSize <= 0 {
		issues = append(issues, "MODEL_CACHE_SIZE must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		issues = append(issues, "MAX_IMAGE_SIZE must be positive")
	}
	switch c.Normalization {
	case "standard", "imagenet", "centered":
	default:
		issues = append(issues, fmt.Sprintf("IMAGE_NORMALIZATION %q is not one of standard, imagenet, centered", c.Normalization))
	}

	return issues
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
