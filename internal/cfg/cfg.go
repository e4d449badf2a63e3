package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"roulette-dozen/internal/common"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	FeedURL       string
	FeedTimeout   time.Duration
	FeedUserAgent string

	Window         int
	MinTrain       int
	ProbThreshold  float64
	Target         string
	MaxIter        int
	MaxDepth       int
	LearningRate   float64
	MinSamplesLeaf int

	LoopInterval  time.Duration
	NotifyTimeout time.Duration
	SeedRepair    bool

	StorageBackend string
	DataPath       string
	HistoryFile    string
	ModelFile      string
	RedisAddr      string
	RedisPassword  string
	RedisKey       string

	WebhookURL string
	HTTPPort   int
	RateLimit  float64
	RateBurst  int
	LogLevel   string
}

// ConfigFile is the YAML layout. Missing keys take the `default` tags.
type ConfigFile struct {
	Feed struct {
		URL       string `yaml:"url" default:"https://mute-grass-cc9b.samu-rcj.workers.dev/"`
		Timeout   string `yaml:"timeout" default:"10s"`
		UserAgent string `yaml:"userAgent" default:"Mozilla/5.0"`
	} `yaml:"feed"`

	ML struct {
		Window         int     `yaml:"window" default:"20"`
		MinTrain       int     `yaml:"minTrain" default:"25"`
		ProbThreshold  float64 `yaml:"probThreshold" default:"0.4"`
		Target         string  `yaml:"target" default:"next"`
		MaxIter        int     `yaml:"maxIter" default:"150"`
		MaxDepth       int     `yaml:"maxDepth" default:"5"`
		LearningRate   float64 `yaml:"learningRate" default:"0.1"`
		MinSamplesLeaf int     `yaml:"minSamplesLeaf" default:"20"`
	} `yaml:"ml"`

	Loop struct {
		Interval      string `yaml:"interval" default:"60s"`
		NotifyTimeout string `yaml:"notifyTimeout" default:"5s"`
		SeedRepair    bool   `yaml:"seedRepair" default:"true"`
	} `yaml:"loop"`

	Storage struct {
		Backend       string `yaml:"backend" default:"bolt"`
		DataPath      string `yaml:"dataPath" default:"data"`
		HistoryFile   string `yaml:"historyFile" default:"historico_coluna_duzia.json"`
		ModelFile     string `yaml:"modelFile" default:"modelo_duzia.json"`
		RedisAddr     string `yaml:"redisAddr" default:"localhost:6379"`
		RedisPassword string `yaml:"redisPassword"`
		RedisKey      string `yaml:"redisKey" default:"resultados_duzia"`
	} `yaml:"storage"`

	Notify struct {
		WebhookURL string `yaml:"webhookURL"`
	} `yaml:"notify"`

	Server struct {
		Port      int     `yaml:"port" default:"8000"`
		RateLimit float64 `yaml:"rateLimit" default:"5"`
		RateBurst int     `yaml:"rateBurst" default:"10"`
	} `yaml:"server"`

	System struct {
		LogLevel string `yaml:"logLevel" default:"info"`
	} `yaml:"system"`
}

// LoadEnvFiles loads .env style files into the environment without
// overriding variables that are already set. Missing files are ignored.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// Load builds Settings from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables, and validates them.
func Load() (Settings, error) {
	var file ConfigFile
	if err := defaults.Set(&file); err != nil {
		return Settings{}, fmt.Errorf("apply defaults: %w", err)
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return Settings{}, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	settings, err := fromFile(file)
	if err != nil {
		return Settings{}, err
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func fromFile(file ConfigFile) (Settings, error) {
	feedTimeout, err := parseDuration("feed.timeout", file.Feed.Timeout, common.DefaultFeedTimeout)
	if err != nil {
		return Settings{}, err
	}
	interval, err := parseDuration("loop.interval", file.Loop.Interval, common.DefaultLoopInterval)
	if err != nil {
		return Settings{}, err
	}
	notifyTimeout, err := parseDuration("loop.notifyTimeout", file.Loop.NotifyTimeout, common.DefaultNotifyTimeout)
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		FeedURL:       getEnvOrDefault(common.EnvFeedURL, file.Feed.URL),
		FeedTimeout:   getDurationOrDefault(common.EnvFeedTimeout, feedTimeout),
		FeedUserAgent: getEnvOrDefault(common.EnvFeedUserAgent, file.Feed.UserAgent),

		Window:         getIntOrDefault(common.EnvWindowSize, file.ML.Window),
		MinTrain:       getIntOrDefault(common.EnvMinTrainSize, file.ML.MinTrain),
		ProbThreshold:  getFloatOrDefault(common.EnvProbThreshold, file.ML.ProbThreshold),
		Target:         strings.ToLower(getEnvOrDefault(common.EnvTrainTarget, file.ML.Target)),
		MaxIter:        getIntOrDefault(common.EnvMLMaxIter, file.ML.MaxIter),
		MaxDepth:       getIntOrDefault(common.EnvMLMaxDepth, file.ML.MaxDepth),
		LearningRate:   getFloatOrDefault(common.EnvMLLearningRate, file.ML.LearningRate),
		MinSamplesLeaf: getIntOrDefault(common.EnvMLMinLeaf, file.ML.MinSamplesLeaf),

		LoopInterval:  getDurationOrDefault(common.EnvLoopInterval, interval),
		NotifyTimeout: getDurationOrDefault(common.EnvNotifyTimeout, notifyTimeout),
		SeedRepair:    getBoolOrDefault(common.EnvSeedRepair, file.Loop.SeedRepair),

		StorageBackend: strings.ToLower(getEnvOrDefault(common.EnvStorageBackend, file.Storage.Backend)),
		DataPath:       getEnvOrDefault(common.EnvDataPath, file.Storage.DataPath),
		HistoryFile:    getEnvOrDefault(common.EnvHistoryFile, file.Storage.HistoryFile),
		ModelFile:      getEnvOrDefault(common.EnvModelFile, file.Storage.ModelFile),
		RedisAddr:      getEnvOrDefault(common.EnvRedisAddr, file.Storage.RedisAddr),
		RedisPassword:  getEnvOrDefault(common.EnvRedisPassword, file.Storage.RedisPassword),
		RedisKey:       getEnvOrDefault(common.EnvRedisKey, file.Storage.RedisKey),

		WebhookURL: getEnvOrDefault(common.EnvWebhookURL, file.Notify.WebhookURL),
		HTTPPort:   getIntOrDefault(common.EnvHTTPPort, file.Server.Port),
		RateLimit:  getFloatOrDefault(common.EnvRateLimit, file.Server.RateLimit),
		RateBurst:  getIntOrDefault(common.EnvRateBurst, file.Server.RateBurst),
		LogLevel:   strings.ToLower(getEnvOrDefault(common.EnvLogLevel, file.System.LogLevel)),
	}, nil
}

func parseDuration(field, v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, v, err)
	}
	return d, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// validateSettings performs range checks on every tunable.
func validateSettings(s *Settings) error {
	if s.FeedURL == "" {
		return fmt.Errorf("feed URL cannot be empty")
	}
	if s.FeedTimeout < time.Second || s.FeedTimeout > time.Minute {
		return fmt.Errorf("feed timeout must be between 1s and 1m, got %v", s.FeedTimeout)
	}

	if s.Window < common.MinWindowSize || s.Window > common.MaxWindowSize {
		return fmt.Errorf("window size must be between %d and %d, got %d", common.MinWindowSize, common.MaxWindowSize, s.Window)
	}
	if s.MinTrain < 1 {
		return fmt.Errorf("min train size must be positive, got %d", s.MinTrain)
	}
	if s.ProbThreshold < common.MinProbThreshold || s.ProbThreshold > common.MaxProbThreshold {
		return fmt.Errorf("probability threshold must be between 0 and 1, got %f", s.ProbThreshold)
	}
	if s.Target != "next" && s.Target != "current" {
		return fmt.Errorf("training target must be next or current, got %q", s.Target)
	}
	if s.MaxIter < 1 || s.MaxIter > 10000 {
		return fmt.Errorf("max iterations must be between 1 and 10000, got %d", s.MaxIter)
	}
	if s.MaxDepth < 1 || s.MaxDepth > 16 {
		return fmt.Errorf("max depth must be between 1 and 16, got %d", s.MaxDepth)
	}
	if s.LearningRate <= 0 || s.LearningRate > 1 {
		return fmt.Errorf("learning rate must be in (0,1], got %f", s.LearningRate)
	}
	if s.MinSamplesLeaf < 1 {
		return fmt.Errorf("min samples per leaf must be positive, got %d", s.MinSamplesLeaf)
	}

	if s.LoopInterval < common.MinLoopInterval || s.LoopInterval > common.MaxLoopInterval {
		return fmt.Errorf("loop interval must be between %v and %v, got %v", common.MinLoopInterval, common.MaxLoopInterval, s.LoopInterval)
	}
	if s.NotifyTimeout < 100*time.Millisecond || s.NotifyTimeout > time.Minute {
		return fmt.Errorf("notify timeout must be between 100ms and 1m, got %v", s.NotifyTimeout)
	}

	switch s.StorageBackend {
	case common.BackendBolt, common.BackendFile:
		if s.DataPath == "" {
			return fmt.Errorf("data path cannot be empty for %s storage", s.StorageBackend)
		}
	case common.BackendRedis:
		if s.RedisAddr == "" || s.RedisKey == "" {
			return fmt.Errorf("redis storage needs an address and a key")
		}
	default:
		return fmt.Errorf("storage backend must be bolt, file or redis, got %q", s.StorageBackend)
	}

	if s.HTTPPort < common.MinHTTPPort || s.HTTPPort > common.MaxHTTPPort {
		return fmt.Errorf("HTTP port must be between %d and %d, got %d", common.MinHTTPPort, common.MaxHTTPPort, s.HTTPPort)
	}
	if s.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive, got %f", s.RateLimit)
	}
	if s.RateBurst < 1 {
		return fmt.Errorf("rate burst must be at least 1, got %d", s.RateBurst)
	}

	switch s.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of trace, debug, info, warn, error, got %q", s.LogLevel)
	}
	return nil
}
