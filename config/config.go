package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Tutortoise/xray-analysis-service/engine"
)

type Config struct {
	Host string
	Port int

	DetectModelPath  string
	SegmentModelPath string
	OnnxLibPath      string
	SessionPoolSize  int
	Threads          int

	DetectConfThreshold float32
	DetectIoUThreshold  float32 // 0 disables overlap suppression

	MaxUploadBytes int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	LogLevel string
	LogFile  string
	Debug    bool
}

// Load reads an optional .env file and then the environment. Values already
// set in the environment win over the file.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Host:                getEnv("HOST", "127.0.0.1"),
		Port:                getEnvAsInt("PORT", 8000),
		DetectModelPath:     getEnv("DETECT_MODEL_PATH", "best.onnx"),
		SegmentModelPath:    getEnv("SEGMENT_MODEL_PATH", "unet_model.onnx"),
		OnnxLibPath:         getEnv("ONNXRUNTIME_LIB_PATH", engine.DefaultLibraryPath()),
		SessionPoolSize:     getEnvAsInt("SESSION_POOL_SIZE", engine.DefaultPoolSize),
		Threads:             getEnvAsInt("ORT_THREADS", runtime.NumCPU()),
		DetectConfThreshold: getEnvAsFloat("DETECT_CONF_THRESHOLD", 0.25),
		DetectIoUThreshold:  getEnvAsFloat("DETECT_IOU_THRESHOLD", 0),
		MaxUploadBytes:      getEnvAsInt64("MAX_UPLOAD_BYTES", 10<<20),
		ReadTimeout:         getEnvAsDuration("READ_TIMEOUT", 60*time.Second),
		WriteTimeout:        getEnvAsDuration("WRITE_TIMEOUT", 60*time.Second),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFile:             getEnv("LOG_FILE", ""),
		Debug:               getEnvAsBool("DEBUG", false),
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg
}

func (c *Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 32); err == nil && f >= 0 {
			return float32(f)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
