package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, []string{"corn", "tomato", "grape", "mango", "peanut"}, cfg.SupportedCrops)
	require.Equal(t, 224, cfg.ImageSize)
	require.Equal(t, "standard", cfg.Normalization)
	require.InDelta(t, 0.5, cfg.CropThreshold, 1e-6)
	require.Equal(t, 3, cfg.ModelCacheSize)
	require.Equal(t, "8080", cfg.Port)
	require.Empty(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SUPPORTED_CROPS", "Corn, Rice ")
	t.Setenv("MODEL_CACHE_SIZE", "5")
	t.Setenv("CROP_DETECTION_THRESHOLD", "0.7")

	cfg := Load()
	require.Equal(t, []string{"corn", "rice"}, cfg.SupportedCrops)
	require.Equal(t, 5, cfg.ModelCacheSize)
	require.InDelta(t, 0.7, cfg.CropThreshold, 1e-6)
}

func TestValidate_ReportsProblems(t *testing.T) {
	cfg := Load()
	cfg.SupportedCrops = nil
	cfg.ImageSize = 0
	cfg.CropThreshold = 1.5
	cfg.ModelCacheSize = 0
	cfg.Normalization = "nope"

	issues := cfg.Validate()
	require.Len(t, issues, 5)
}
