package common

import "time"

// Environment variable keys
const (
	EnvConfigFile     = "CONFIG_FILE"
	EnvFeedURL        = "FEED_URL"
	EnvFeedTimeout    = "FEED_TIMEOUT"
	EnvFeedUserAgent  = "FEED_USER_AGENT"
	EnvWindowSize     = "WINDOW_SIZE"
	EnvMinTrainSize   = "MIN_TRAIN_SIZE"
	EnvProbThreshold  = "PROB_THRESHOLD"
	EnvTrainTarget    = "TRAIN_TARGET"
	EnvMLMaxIter      = "ML_MAX_ITER"
	EnvMLMaxDepth     = "ML_MAX_DEPTH"
	EnvMLLearningRate = "ML_LEARNING_RATE"
	EnvMLMinLeaf      = "ML_MIN_SAMPLES_LEAF"
	EnvLoopInterval   = "LOOP_INTERVAL"
	EnvNotifyTimeout  = "NOTIFY_TIMEOUT"
	EnvStorageBackend = "STORAGE_BACKEND"
	EnvDataPath       = "DATA_PATH"
	EnvHistoryFile    = "HISTORY_FILE"
	EnvModelFile      = "MODEL_FILE"
	EnvRedisAddr      = "REDIS_ADDR"
	EnvRedisPassword  = "REDIS_PASSWORD"
	EnvRedisKey       = "REDIS_KEY"
	EnvWebhookURL     = "WEBHOOK_URL"
	EnvHTTPPort       = "HTTP_PORT"
	EnvRateLimit      = "RATE_LIMIT"
	EnvRateBurst      = "RATE_BURST"
	EnvLogLevel       = "LOG_LEVEL"
	EnvSeedRepair     = "SEED_REPAIR"
)

// Configuration defaults
const (
	DefaultFeedURL        = "https://mute-grass-cc9b.samu-rcj.workers.dev/"
	DefaultFeedTimeout    = 10 * time.Second
	DefaultFeedUserAgent  = "Mozilla/5.0"
	DefaultWindowSize     = 20
	DefaultMinTrainSize   = 25
	DefaultProbThreshold  = 0.40
	DefaultTrainTarget    = "next"
	DefaultMLMaxIter      = 150
	DefaultMLMaxDepth     = 5
	DefaultMLLearningRate = 0.1
	DefaultMLMinLeaf      = 20
	DefaultLoopInterval   = 60 * time.Second
	DefaultNotifyTimeout  = 5 * time.Second
	DefaultStorageBackend = "bolt"
	DefaultDataPath       = "data"
	DefaultHistoryFile    = "historico_coluna_duzia.json"
	DefaultModelFile      = "modelo_duzia.json"
	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKey       = "resultados_duzia"
	DefaultHTTPPort       = 8000
	DefaultRateLimit      = 5.0
	DefaultRateBurst      = 10
	DefaultLogLevel       = "info"
)

// Storage backends
const (
	BackendBolt  = "bolt"
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Validation constants
const (
	MinWindowSize    = 3
	MaxWindowSize    = 1000
	MinProbThreshold = 0.0
	MaxProbThreshold = 1.0
	MinLoopInterval  = time.Second
	MaxLoopInterval  = time.Hour
	MinHTTPPort      = 1024
	MaxHTTPPort      = 65535
)

// Seed repair: the feed was once bootstrapped with 1..SeedRunLength.
const (
	SeedRunLength   = 45
	SeedRepairFloor = 20
)
