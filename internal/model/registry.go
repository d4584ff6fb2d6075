package model

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const configFileName = "model_configs.json"

// Registry owns every per-crop disease model: the catalog of discovered
// artifacts, the set of loaded handles and the active-crop marker. The
// loaded set is bounded; when it grows past cacheSize the least recently
// used model is evicted.
//
// Construct one per service and pass it around explicitly.
type Registry struct {
	modelsDir      string
	supportedCrops []string
	cacheSize      int
	loader         PredictorLoader

	mu       sync.RWMutex
	catalog  map[string]CatalogEntry
	configs  map[string]ClassConfig
	loaded   map[string]*Handle
	inflight map[string]chan struct{}
	active   string

	// lru orders loaded crops, front = most recently used.
	lru *list.List
}

func NewRegistry(modelsDir string, supportedCrops []string, cacheSize int, loader PredictorLoader) *Registry {
	return &Registry{
		modelsDir:      modelsDir,
		supportedCrops: supportedCrops,
		cacheSize:      cacheSize,
		loader:         loader,
		catalog:        make(map[string]CatalogEntry),
		configs:        make(map[string]ClassConfig),
		loaded:         make(map[string]*Handle),
		inflight:       make(map[string]chan struct{}),
		lru:            list.New(),
	}
}

// Discover scans the models directory for .onnx artifacts and maps each to a
// supported crop by filename substring. Unmatched artifacts are skipped with
// a warning. A missing or empty directory leaves the catalog empty and is
// not an error.
func (r *Registry) Discover() error {
	entries, err := os.ReadDir(r.modelsDir)
	if err != nil {
		log.Printf("warning: models directory %s is not readable: %v", r.modelsDir, err)
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".onnx") {
			continue
		}
		name := strings.ToLower(strings.TrimSuffix(entry.Name(), ".onnx"))

		var crop string
		for _, c := range r.supportedCrops {
			if strings.Contains(name, c) {
				crop = c
				break
			}
		}
		if crop == "" {
			log.Printf("warning: could not determine crop type for model %s", entry.Name())
			continue
		}

		path := filepath.Join(r.modelsDir, entry.Name())
		r.catalog[crop] = CatalogEntry{Crop: crop, Path: path}
		log.Printf("found model for %s: %s", crop, path)
	}

	return nil
}

// LoadClassConfig reads the per-crop class configuration file. When the file
// is absent, defaults are synthesized for every discovered crop and written
// back best-effort; a write failure is logged and ignored so startup never
// fails on it.
func (r *Registry) LoadClassConfig() error {
	path := filepath.Join(r.modelsDir, configFileName)

	data, err := os.ReadFile(path)
	if err == nil {
		var configs map[string]ClassConfig
		if jsonErr := json.Unmarshal(data, &configs); jsonErr != nil {
			log.Printf("warning: invalid %s, synthesizing defaults: %v", configFileName, jsonErr)
		} else {
			r.mu.Lock()
			r.configs = configs
			r.mu.Unlock()
			log.Printf("loaded model configurations for %d crops", len(configs))
			return nil
		}
	}

	r.synthesizeDefaultConfigs(path)
	return nil
}

func (r *Registry) synthesizeDefaultConfigs(path string) {
	r.mu.Lock()
	configs := make(map[string]ClassConfig, len(r.catalog))
	for crop := range r.catalog {
		configs[crop] = defaultClassConfig(crop)
	}
	r.configs = configs
	r.mu.Unlock()

	data, err := json.MarshalIndent(configs, "", "  ")
	if err == nil {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		log.Printf("warning: could not persist default model configs: %v", err)
		return
	}
	log.Printf("created default model configurations at %s", path)
}

func defaultClassConfig(crop string) ClassConfig {
	cfg := ClassConfig{
		Classes:       []string{},
		InputShape:    []int64{1, 3, 224, 224},
		Preprocessing: "standard",
	}
	// The corn class list ships with the service; the rest are enriched
	// once their models' label orders are confirmed.
	if crop == "corn" {
		cfg.Classes = []string{
			"Corn__Blight",
			"Corn__Common_Rust",
			"Corn__Gray_Leaf_Spot",
			"Corn__Healthy",
		}
	}
	return cfg
}

// Load lazily materializes the model for a crop. Successful loads are
// memoized; concurrent loads of the same crop perform exactly one
// deserialization. The context only bounds the wait for a load already in
// flight elsewhere.
func (r *Registry) Load(ctx context.Context, crop string) error {
	crop = strings.ToLower(crop)

	for {
		r.mu.Lock()
		if _, ok := r.loaded[crop]; ok {
			r.touchLocked(crop)
			r.mu.Unlock()
			return nil
		}
		entry, ok := r.catalog[crop]
		if !ok {
			r.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnknownCrop, crop)
		}
		if ch, inFlight := r.inflight[crop]; inFlight {
			r.mu.Unlock()
			select {
			case <-ch:
				continue // re-check the loaded set
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		ch := make(chan struct{})
		r.inflight[crop] = ch
		cfg := r.configs[crop]
		r.mu.Unlock()

		err := r.loadOne(crop, entry, cfg)

		r.mu.Lock()
		delete(r.inflight, crop)
		r.mu.Unlock()
		close(ch)
		return err
	}
}

// loadOne runs the actual deserialization outside the registry lock.
func (r *Registry) loadOne(crop string, entry CatalogEntry, cfg ClassConfig) error {
	log.Printf("loading model for %s from %s", crop, entry.Path)

	predictor, err := r.loader(entry.Path, cfg)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLoadFailed, crop, err)
	}

	if len(cfg.Classes) > 0 && len(cfg.Classes) != predictor.OutputSize() {
		_ = predictor.Close()
		return fmt.Errorf("%w: %s has %d classes configured, model outputs %d",
			ErrClassCountMismatch, crop, len(cfg.Classes), predictor.OutputSize())
	}

	handle := &Handle{
		Crop:      crop,
		Predictor: predictor,
		Classes:   cfg.Classes,
		LoadedAt:  time.Now(),
	}

	r.mu.Lock()
	r.loaded[crop] = handle
	r.touchLocked(crop)
	evicted := r.evictOverCapacityLocked(crop)
	r.mu.Unlock()

	for _, h := range evicted {
		log.Printf("evicting least recently used model: %s", h.Crop)
		h.retire()
	}

	log.Printf("successfully loaded %s model", crop)
	return nil
}

// touchLocked moves crop to the front of the LRU, inserting it if absent.
// Caller holds r.mu.
func (r *Registry) touchLocked(crop string) {
	for e := r.lru.Front(); e != nil; e = e.Next() {
		if e.Value.(string) == crop {
			r.lru.MoveToFront(e)
			return
		}
	}
	r.lru.PushFront(crop)
}

// evictOverCapacityLocked removes least recently used models until the
// loaded set fits the cache size, never evicting keep. Caller holds r.mu;
// the returned handles must be closed outside the lock.
func (r *Registry) evictOverCapacityLocked(keep string) []*Handle {
	if r.cacheSize <= 0 {
		return nil
	}
	var evicted []*Handle
	for len(r.loaded) > r.cacheSize {
		e := r.lru.Back()
		if e == nil {
			break
		}
		victim := e.Value.(string)
		if victim == keep {
			// The newest load must survive even with cacheSize 1.
			e = e.Prev()
			if e == nil {
				break
			}
			victim = e.Value.(string)
		}
		r.lru.Remove(e)
		if h, ok := r.loaded[victim]; ok {
			delete(r.loaded, victim)
			if r.active == victim {
				r.active = ""
			}
			evicted = append(evicted, h)
		}
	}
	return evicted
}

// Activate loads the model if needed and records it as the active crop. The
// marker is a pre-warming hint, not an access gate, and activation never
// unloads other models.
func (r *Registry) Activate(ctx context.Context, crop string) error {
	crop = strings.ToLower(crop)
	if err := r.Load(ctx, crop); err != nil {
		return err
	}
	r.mu.Lock()
	r.active = crop
	r.mu.Unlock()
	log.Printf("activated model for %s", crop)
	return nil
}

// Get returns the handle for a crop, loading on demand. Returns nil and an
// error if the crop is unknown or the load fails; it never panics.
func (r *Registry) Get(ctx context.Context, crop string) (*Handle, error) {
	crop = strings.ToLower(crop)
	if err := r.Load(ctx, crop); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.loaded[crop]
	if !ok {
		// Evicted between Load returning and here; extremely tight cache.
		return nil, fmt.Errorf("%w: %s evicted before use", ErrLoadFailed, crop)
	}
	r.touchLocked(crop)
	return h, nil
}

// Predict runs the crop's model over the tensor and maps the arg-max index
// to a class label. Indices beyond the configured class list produce a
// Class_<idx> placeholder, which signals a configuration mismatch operators
// should fix. The handle stays pinned for the duration of the inference
// call, so a concurrent eviction or unload cannot close the predictor out
// from under it.
func (r *Registry) Predict(ctx context.Context, crop string, tensor []float32) (*Prediction, error) {
	var handle *Handle
	for {
		h, err := r.Get(ctx, crop)
		if err != nil {
			return nil, err
		}
		if h.acquire() {
			handle = h
			break
		}
		// Retired between Get and acquire; reload and try again.
	}
	defer handle.release()

	output, err := handle.Predictor.Predict(tensor)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPredictionFailed, crop, err)
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("%w: %s produced an empty output", ErrPredictionFailed, crop)
	}

	maxIdx := 0
	maxVal := output[0]
	probabilities := make(map[string]float32)
	for i, val := range output {
		if i < len(handle.Classes) {
			probabilities[handle.Classes[i]] = val
		}
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}

	class := fmt.Sprintf("Class_%d", maxIdx)
	if maxIdx < len(handle.Classes) {
		class = handle.Classes[maxIdx]
	}

	return &Prediction{
		Class:         class,
		Confidence:    maxVal,
		Probabilities: probabilities,
	}, nil
}

// Unload evicts one crop's model, closing its predictor. Clears the active
// marker if it pointed at the crop. Reports whether anything was unloaded.
func (r *Registry) Unload(crop string) bool {
	crop = strings.ToLower(crop)

	r.mu.Lock()
	h, ok := r.loaded[crop]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.loaded, crop)
	if r.active == crop {
		r.active = ""
	}
	for e := r.lru.Front(); e != nil; e = e.Next() {
		if e.Value.(string) == crop {
			r.lru.Remove(e)
			break
		}
	}
	r.mu.Unlock()

	h.retire()
	log.Printf("unloaded model for %s", crop)
	return true
}

// UnloadAll evicts every loaded model.
func (r *Registry) UnloadAll() {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.loaded))
	for _, h := range r.loaded {
		handles = append(handles, h)
	}
	r.loaded = make(map[string]*Handle)
	r.lru.Init()
	r.active = ""
	r.mu.Unlock()

	for _, h := range handles {
		h.retire()
	}
	log.Printf("unloaded all models")
}

// Status returns a read-only snapshot of every crop in the catalog.
func (r *Registry) Status() map[string]CropStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[string]CropStatus, len(r.catalog))
	for crop, entry := range r.catalog {
		_, loaded := r.loaded[crop]
		status[crop] = CropStatus{
			Available:  true,
			Loaded:     loaded,
			Active:     crop == r.active,
			Path:       entry.Path,
			ClassCount: len(r.configs[crop].Classes),
		}
	}
	return status
}

// AvailableModels lists crops present in the catalog, loaded or not.
func (r *Registry) AvailableModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	crops := make([]string, 0, len(r.catalog))
	for crop := range r.catalog {
		crops = append(crops, crop)
	}
	return crops
}

// LoadedModels lists crops whose models are currently in memory.
func (r *Registry) LoadedModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	crops := make([]string, 0, len(r.loaded))
	for crop := range r.loaded {
		crops = append(crops, crop)
	}
	return crops
}

// ActiveModel returns the most recently activated crop, or "".
func (r *Registry) ActiveModel() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// HasModel reports whether a crop is in the catalog.
func (r *Registry) HasModel(crop string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.catalog[strings.ToLower(crop)]
	return ok
}

// Classes returns the configured class list for a crop, nil if none.
func (r *Registry) Classes(crop string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.configs[strings.ToLower(crop)].Classes
}
