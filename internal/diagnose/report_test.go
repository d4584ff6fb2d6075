package diagnose

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/cropsight/internal/classify"
)

func TestSynthesize(t *testing.T) {
	det := &classify.Detection{Crop: "corn", Confidence: 0.8, AutoDetected: true}
	diag := &Diagnosis{Class: "Corn__Blight", Name: "Blight", Crop: "corn", ModelUsed: "corn_disease_model"}

	report := Synthesize(det, diag)
	require.Equal(t, "success", report.Status)
	require.Same(t, det, report.CropDetection)
	require.Same(t, diag, report.DiseaseDetection)
	require.Equal(t, "corn_disease_model", report.ModelUsed)
	require.WithinDuration(t, time.Now(), report.Timestamp, time.Minute)
}
