package diagnose

// Recommendations bundles the treatment advice attached to a diagnosis.
type Recommendations struct {
	Treatment  string   `json:"treatment"`
	Actions    []string `json:"actions,omitempty"`
	Prevention []string `json:"prevention"`
	Urgency    string   `json:"urgency"`
	FollowUp   string   `json:"follow_up,omitempty"`
}

type treatmentInfo struct {
	treatment  string
	prevention []string
}

// treatments maps disease-type substrings to specific advice. Looked up
// against the lower-cased raw class label.
var treatments = []struct {
	token string
	info  treatmentInfo
}{
	{"rust", treatmentInfo{
		treatment: "Apply fungicide containing propiconazole or tebuconazole",
		prevention: []string{
			"Plant rust-resistant varieties",
			"Avoid overhead irrigation",
			"Remove volunteer plants",
		},
	}},
	{"blight", treatmentInfo{
		treatment: "Apply copper-based fungicide or chlorothalonil",
		prevention: []string{
			"Ensure good drainage",
			"Avoid working with wet plants",
			"Practice 3-4 year crop rotation",
		},
	}},
	{"spot", treatmentInfo{
		treatment: "Apply fungicide and improve air circulation",
		prevention: []string{
			"Space plants properly",
			"Water at soil level",
			"Remove plant debris",
		},
	}},
	{"mold", treatmentInfo{
		treatment: "Apply fungicide and reduce humidity",
		prevention: []string{
			"Improve ventilation",
			"Avoid overcrowding",
			"Control greenhouse humidity",
		},
	}},
}

var genericTreatment = treatmentInfo{
	treatment: "Consult local agricultural extension service",
	prevention: []string{
		"Follow integrated pest management practices",
	},
}

var healthyRecommendations = Recommendations{
	Treatment: "No treatment needed",
	Prevention: []string{
		"Continue regular monitoring",
		"Maintain good plant hygiene",
		"Ensure proper spacing and ventilation",
	},
	Urgency: "none",
}

var actionsBySeverity = map[Severity]struct {
	urgency string
	actions []string
}{
	SeverityMild: {"low", []string{
		"Monitor closely for progression",
		"Remove affected leaves if few in number",
		"Improve air circulation around plants",
	}},
	SeverityModerate: {"medium", []string{
		"Apply appropriate fungicide or treatment",
		"Remove and destroy affected plant parts",
		"Increase monitoring frequency",
	}},
	SeveritySevere: {"high", []string{
		"Immediate treatment required",
		"Consider removing severely affected plants",
		"Apply systemic treatment",
		"Consult agricultural expert",
	}},
}
