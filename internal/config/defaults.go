package config

// Storage backends understood by kvstore.Open.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Bounds enforced by Validate.
const (
	MinRetentionDays      = 1
	MaxRetentionDays      = 365
	MaxDedupWindowSeconds = 24 * 60 * 60
)

const (
	defaultConfigPath             = "~/.config/moodsync/config.toml"
	defaultStorageBackend         = BackendSQLite
	defaultStoragePath            = "~/.local/share/moodsync/idempotency.db"
	defaultFileStoragePath        = "~/.local/share/moodsync/idempotency.json"
	defaultStorageNamespace       = "idem."
	defaultRedisAddr              = "127.0.0.1:6379"
	defaultRetentionDays          = 7
	defaultDedupWindowSeconds     = 600
	defaultIDPrefix               = "mood"
	defaultJanitorIntervalSeconds = 3600
	defaultJanitorLockPath        = "~/.local/share/moodsync/janitor.lock"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogDir                 = "~/.local/share/moodsync/logs"
	defaultLogRetentionDays       = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Storage: Storage{
			Backend:   defaultStorageBackend,
			Path:      defaultStoragePath,
			Namespace: defaultStorageNamespace,
			RedisAddr: defaultRedisAddr,
		},
		Idempotency: Idempotency{
			RetentionDays:      defaultRetentionDays,
			DedupWindowSeconds: defaultDedupWindowSeconds,
			IDPrefix:           defaultIDPrefix,
		},
		Janitor: Janitor{
			IntervalSeconds: defaultJanitorIntervalSeconds,
			LockPath:        defaultJanitorLockPath,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			Dir:           defaultLogDir,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
