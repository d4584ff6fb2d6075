// Package diagnose turns raw classifier output into a structured plant
// disease diagnosis: normalized name, severity tier and treatment advice.
package diagnose

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/verdantlabs/cropsight/internal/model"
)

// cropTokens are stripped from raw class labels when extracting the disease
// name ("Corn__Common_Rust" -> "Common Rust").
var cropTokens = map[string]bool{
	"corn":   true,
	"tomato": true,
	"grape":  true,
	"mango":  true,
	"peanut": true,
	"potato": true,
	"rice":   true,
	"wheat":  true,
}

// Diagnosis is the full disease-detection result for one image.
type Diagnosis struct {
	Class           string             `json:"disease_class"`
	Name            string             `json:"disease_name"`
	Type            string             `json:"disease_type"`
	Confidence      float32            `json:"confidence"`
	Severity        Severity           `json:"severity"`
	Healthy         bool               `json:"is_healthy"`
	Probabilities   map[string]float32 `json:"all_predictions"`
	Crop            string             `json:"crop_type"`
	ModelUsed       string             `json:"model_used"`
	Recommendations Recommendations    `json:"recommendations"`
}

// Engine coordinates the registry's per-crop models and the diagnosis
// post-processing.
type Engine struct {
	registry *model.Registry
}

func NewEngine(registry *model.Registry) *Engine {
	return &Engine{registry: registry}
}

// DetectDisease diagnoses one preprocessed tensor for the given crop. It
// fails with ErrUnknownCrop when the crop has no model in the catalog and
// with a load/prediction error when the registry cannot produce a result.
func (e *Engine) DetectDisease(ctx context.Context, tensor []float32, crop string) (*Diagnosis, error) {
	crop = strings.ToLower(crop)

	if !e.registry.HasModel(crop) {
		return nil, fmt.Errorf("%w: no model available for crop type %s", model.ErrUnknownCrop, crop)
	}

	prediction, err := e.registry.Predict(ctx, crop, tensor)
	if err != nil {
		return nil, fmt.Errorf("disease detection failed for %s: %w", crop, err)
	}

	name, diseaseType, healthy := NormalizeDisease(prediction.Class)
	severity := SeverityNone
	if !healthy {
		severity = AdjustSeverity(BaseSeverity(prediction.Class), prediction.Confidence)
	}

	diag := &Diagnosis{
		Class:           prediction.Class,
		Name:            name,
		Type:            diseaseType,
		Confidence:      prediction.Confidence,
		Severity:        severity,
		Healthy:         healthy,
		Probabilities:   prediction.Probabilities,
		Crop:            crop,
		ModelUsed:       fmt.Sprintf("%s_disease_model", crop),
		Recommendations: Recommend(prediction.Class, severity),
	}

	log.Printf("disease detection completed for %s: %s (%.3f)", crop, prediction.Class, prediction.Confidence)
	return diag, nil
}

// NormalizeDisease converts a raw class label into a display name, a disease
// type and a healthy flag. Any label containing "healthy" is canonicalized
// to a healthy diagnosis, which makes the normalization idempotent.
func NormalizeDisease(rawClass string) (name, diseaseType string, healthy bool) {
	lower := strings.ToLower(rawClass)
	if strings.Contains(lower, "healthy") {
		return "Healthy Plant", "healthy", true
	}

	parts := strings.Fields(strings.ReplaceAll(rawClass, "_", " "))
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if !cropTokens[strings.ToLower(part)] {
			filtered = append(filtered, part)
		}
	}

	// A Caser is stateful, so build one per call rather than sharing.
	titleCaser := cases.Title(language.English)

	// A single-word label names neither a crop prefix nor a disease token we
	// can tell apart, so its type stays unknown.
	switch {
	case len(parts) > 1 && len(filtered) > 0:
		name = titleCaser.String(strings.Join(filtered, " "))
		diseaseType = strings.ToLower(filtered[len(filtered)-1])
	case len(parts) > 0:
		name = titleCaser.String(strings.Join(parts, " "))
		diseaseType = "unknown"
	default:
		name = rawClass
		diseaseType = "unknown"
	}
	return name, diseaseType, false
}

// Recommend builds the treatment bundle for a diagnosis. Urgency and actions
// derive from the severity tier; treatment and prevention from the disease
// substring table with a generic fallback.
func Recommend(rawClass string, severity Severity) Recommendations {
	if severity == SeverityNone {
		return healthyRecommendations
	}

	tier, ok := actionsBySeverity[severity]
	if !ok {
		tier = actionsBySeverity[SeverityMild]
	}

	lower := strings.ToLower(rawClass)
	info := genericTreatment
	for _, t := range treatments {
		if strings.Contains(lower, t.token) {
			info = t.info
			break
		}
	}

	return Recommendations{
		Treatment:  info.treatment,
		Actions:    tier.actions,
		Prevention: info.prevention,
		Urgency:    tier.urgency,
		FollowUp:   "Monitor for 7-14 days after treatment",
	}
}

// BatchItem is one unit of work for DetectBatch.
type BatchItem struct {
	Tensor []float32
	Crop   string
}

// BatchResult carries either a diagnosis or the error that replaced it,
// tagged with the item's original index.
type BatchResult struct {
	Index     int
	Diagnosis *Diagnosis
	Err       error
}

// DetectBatch diagnoses items independently: a failure on one item is
// recorded in its result and the rest proceed unaffected.
func (e *Engine) DetectBatch(ctx context.Context, items []BatchItem) []BatchResult {
	results := make([]BatchResult, len(items))
	for i, item := range items {
		diag, err := e.DetectDisease(ctx, item.Tensor, item.Crop)
		if err != nil {
			log.Printf("error processing batch item %d: %v", i, err)
		}
		results[i] = BatchResult{Index: i, Diagnosis: diag, Err: err}
	}
	return results
}

// Stats aggregates a set of batch results. Distributions and the health
// percentage only count successful items.
type Stats struct {
	TotalProcessed       int              `json:"total_processed"`
	Successful           int              `json:"successful"`
	Failed               int              `json:"failed"`
	HealthyPlants        int              `json:"healthy_plants"`
	DiseasedPlants       int              `json:"diseased_plants"`
	DiseaseDistribution  map[string]int   `json:"disease_distribution"`
	SeverityDistribution map[Severity]int `json:"severity_distribution"`
	HealthPercentage     float64          `json:"health_percentage"`
}

// Statistics summarizes batch results. An empty input yields an empty
// aggregate.
func Statistics(results []BatchResult) *Stats {
	stats := &Stats{
		DiseaseDistribution: make(map[string]int),
		SeverityDistribution: map[Severity]int{
			SeverityNone:     0,
			SeverityMild:     0,
			SeverityModerate: 0,
			SeveritySevere:   0,
		},
	}

	for _, r := range results {
		stats.TotalProcessed++
		if r.Err != nil || r.Diagnosis == nil {
			stats.Failed++
			continue
		}
		stats.Successful++
		if r.Diagnosis.Healthy {
			stats.HealthyPlants++
		} else {
			stats.DiseasedPlants++
		}
		stats.DiseaseDistribution[r.Diagnosis.Name]++
		stats.SeverityDistribution[r.Diagnosis.Severity]++
	}

	if stats.Successful > 0 {
		stats.HealthPercentage = float64(stats.HealthyPlants) / float64(stats.Successful) * 100
	}
	return stats
}
