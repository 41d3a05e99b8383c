package main

import (
	"io"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Tutortoise/xray-analysis-service/config"
	"github.com/Tutortoise/xray-analysis-service/detections"
	"github.com/Tutortoise/xray-analysis-service/engine"
	"github.com/Tutortoise/xray-analysis-service/models"
	"github.com/Tutortoise/xray-analysis-service/pipeline"
	"github.com/Tutortoise/xray-analysis-service/segmentations"
)

type AppState struct {
	Registry *pipeline.Registry
	Config   *config.Config
	Logger   *logrus.Logger
	CPU      engine.CPUInfo
}

func newLogger(cfg *config.Config) (*logrus.Logger, func()) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("Unknown log level %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.LogFile == "" {
		return logger, func() {}
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.Warnf("Failed to open log file %s: %v", cfg.LogFile, err)
		return logger, func() {}
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, f))
	return logger, func() { f.Close() }
}

// loadModels builds one engine per model file. A model that fails to load is
// logged and left out of the registry.
func loadModels(cfg *config.Config, logger *logrus.Logger) *pipeline.Registry {
	detectAdapter := detections.NewAdapter(detections.Options{
		ConfidenceThreshold: cfg.DetectConfThreshold,
		IoUThreshold:        cfg.DetectIoUThreshold,
	})
	segmentAdapter := segmentations.NewAdapter()

	candidates := []struct {
		modelType models.ModelType
		path      string
		adapter   pipeline.Adapter
	}{
		{models.ModelDetect, cfg.DetectModelPath, detectAdapter},
		{models.ModelSegment, cfg.SegmentModelPath, segmentAdapter},
	}

	var loaded []*pipeline.Model
	for _, c := range candidates {
		entry := logger.WithFields(logrus.Fields{"model_type": c.modelType, "path": c.path})

		eng, err := engine.Load(engine.Spec{
			ModelPath:   c.path,
			InputShape:  c.adapter.InputShape(),
			OutputShape: c.adapter.OutputShape(),
			Threads:     cfg.Threads,
		}, cfg.SessionPoolSize)
		if err != nil {
			entry.WithError(err).Error("Failed to load model")
			continue
		}

		spec := eng.Spec()
		entry.WithFields(logrus.Fields{
			"input":  spec.InputName,
			"output": spec.OutputName,
			"pool":   cfg.SessionPoolSize,
		}).Infof("Loaded %s", c.adapter.Name())
		loaded = append(loaded, &pipeline.Model{Type: c.modelType, Adapter: c.adapter, Engine: eng})
	}

	return pipeline.NewRegistry(loaded...)
}

func newRouter(state *AppState) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", state.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/analyze", state.handleAnalyze).Methods(http.MethodPost)
	state.addMonitoringRoutes(r)
	r.Use(state.requestIDMiddleware, state.loggingMiddleware, state.recoveryMiddleware)

	return corsMiddleware(r)
}

func main() {
	cfg := config.Load()
	logger, closeLog := newLogger(cfg)
	defer closeLog()

	cpuInfo := engine.DetectCPU()
	logger.WithFields(logrus.Fields{
		"arch":     cpuInfo.Arch,
		"cores":    cpuInfo.Cores,
		"features": cpuInfo.Features,
	}).Info("CPU capabilities")

	var registry *pipeline.Registry
	if err := engine.InitRuntime(cfg.OnnxLibPath); err != nil {
		logger.WithError(err).Error("Failed to initialize ONNX runtime, no models available")
		registry = pipeline.NewRegistry()
	} else {
		defer engine.DestroyRuntime()
		registry = loadModels(cfg, logger)
	}
	defer registry.Close()

	state := &AppState{
		Registry: registry,
		Config:   cfg,
		Logger:   logger,
		CPU:      cpuInfo,
	}

	srv := &http.Server{
		Handler:      newRouter(state),
		Addr:         cfg.Addr(),
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
	}

	logger.Infof("Starting server on %s (models: %s)", srv.Addr, availableModels(registry))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("Server stopped")
	}
}
