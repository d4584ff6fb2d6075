package main

import (
	"log"
	"net/http"

	"github.com/verdantlabs/cropsight/internal/classify"
	"github.com/verdantlabs/cropsight/internal/config"
	"github.com/verdantlabs/cropsight/internal/diagnose"
	"github.com/verdantlabs/cropsight/internal/handlers"
	"github.com/verdantlabs/cropsight/internal/imaging"
	"github.com/verdantlabs/cropsight/internal/model"
)

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func main() {
	cfg := config.Load()
	if issues := cfg.Validate(); len(issues) > 0 {
		for _, issue := range issues {
			log.Printf("config error: %s", issue)
		}
		log.Fatalf("invalid configuration, refusing to start")
	}

	if err := model.InitRuntime(); err != nil {
		log.Fatalf("failed to initialize ONNX runtime: %v", err)
	}
	defer model.ShutdownRuntime()

	registry := model.NewRegistry(cfg.ModelsDir, cfg.SupportedCrops, cfg.ModelCacheSize, model.ONNXLoader)
	if err := registry.Discover(); err != nil {
		log.Fatalf("model discovery failed: %v", err)
	}
	defer registry.UnloadAll()
	if err := registry.LoadClassConfig(); err != nil {
		log.Fatalf("loading model configs failed: %v", err)
	}

	classifier := classify.NewClassifier(cfg.CropModelPath, cfg.SupportedCrops, cfg.CropThreshold, model.ONNXLoader)
	if err := classifier.Load(); err != nil {
		log.Fatalf("failed to initialize crop classifier: %v", err)
	}
	defer classifier.Close()

	engine := diagnose.NewEngine(registry)
	processor := imaging.NewProcessor(cfg.ImageSize, cfg.Normalization)
	handler := handlers.NewHandler(registry, classifier, engine, processor, cfg.MaxUploadBytes)

	http.HandleFunc("/health", enableCORS(handler.Health))
	http.HandleFunc("/models", enableCORS(handler.Models))
	http.HandleFunc("/model-status", enableCORS(handler.ModelStatus))
	http.HandleFunc("/detect-disease", enableCORS(handler.DetectDisease))
	http.HandleFunc("/detect-crop", enableCORS(handler.DetectCrop))
	http.HandleFunc("/activate-model", enableCORS(handler.ActivateModel))

	log.Printf("server starting on port %s", cfg.Port)
	log.Printf("models directory: %s", cfg.ModelsDir)
	log.Printf("available models: %v", registry.AvailableModels())
	if classifier.Degraded() {
		log.Printf("warning: crop classifier running in degraded mode")
	}
	log.Println("endpoints:")
	log.Println("  GET  /health         - Health check")
	log.Println("  GET  /models         - List available crop models")
	log.Println("  GET  /model-status   - Per-model status snapshot")
	log.Println("  POST /detect-disease - Full diagnosis from image upload")
	log.Println("  POST /detect-crop    - Crop type only")
	log.Println("  POST /activate-model - Pre-warm a crop model")

	if err := http.ListenAndServe(":"+cfg.Port, nil); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
