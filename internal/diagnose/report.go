package diagnose

import (
	"time"

	"github.com/verdantlabs/cropsight/internal/classify"
)

// Report is the combined crop-plus-disease payload returned to clients.
type Report struct {
	Status           string              `json:"status"`
	CropDetection    *classify.Detection `json:"crop_detection"`
	DiseaseDetection *Diagnosis          `json:"disease_detection"`
	ModelUsed        string              `json:"model_used"`
	Timestamp        time.Time           `json:"timestamp"`
}

// Synthesize merges a crop detection and a diagnosis into one report. Pure
// structural composition; no business logic lives here.
func Synthesize(det *classify.Detection, diag *Diagnosis) *Report {
	return &Report{
		Status:           "success",
		CropDetection:    det,
		DiseaseDetection: diag,
		ModelUsed:        diag.ModelUsed,
		Timestamp:        time.Now(),
	}
}
