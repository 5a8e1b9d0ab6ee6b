package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config stores the application configuration. Values come from environment
// variables (optionally via a .env file) with sensible defaults.
type Config struct {
	// External resolver tools.
	YtDlpPath  string
	FFmpegPath string

	// PCM format produced by the resolver and required by the relay.
	SampleRate int
	Channels   int

	// Audio cache.
	CacheDir      string
	CacheCapacity int

	// Shared queue event log backend: "github", "redis" or "file".
	// Empty selects the file backend, which doubles as single-machine
	// local mode.
	StoreBackend string
	QueueRepo    string // owner/repo for the github backend
	QueueFile    string // path of the log file inside the repo
	GitHubAPI    string
	GitHubToken  string
	RedisAddr    string
	RedisKey     string
	LogFilePath  string // file backend

	// Room relay (outbound publish + webhook notifier).
	RelayURL    string
	RelayAPIKey string
	RelaySecret string
	Room        string
	Identity    string
	NotifyURL   string // webhook relay websocket; empty degrades to polling
	HookAddr    string // local HTTP webhook receiver; empty disables it

	// Playback.
	Volume        int
	LocalPlayback bool

	// Logging.
	LogLevel string
	LogPath  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables and defaults.")
	}

	cacheBase, err := os.UserCacheDir()
	if err != nil {
		cacheBase = "."
	}

	identity := getEnv("DECKFM_IDENTITY", "")
	if identity == "" {
		identity = "dj-" + uuid.NewString()[:8]
	}

	return &Config{
		YtDlpPath:  getEnv("YTDLP_PATH", "yt-dlp"),
		FFmpegPath: getEnv("FFMPEG_PATH", "ffmpeg"),

		SampleRate: getEnvInt("DECKFM_SAMPLE_RATE", 48000),
		Channels:   getEnvInt("DECKFM_CHANNELS", 2),

		CacheDir:      getEnv("DECKFM_CACHE_DIR", filepath.Join(cacheBase, "deckfm", "audio")),
		CacheCapacity: getEnvInt("DECKFM_CACHE_CAPACITY", 10),

		StoreBackend: getEnv("DECKFM_QUEUE_BACKEND", ""),
		QueueRepo:    getEnv("DECKFM_QUEUE_REPO", ""),
		QueueFile:    getEnv("DECKFM_QUEUE_FILE", "events.ndjson"),
		GitHubAPI:    getEnv("DECKFM_GITHUB_API", "https://api.github.com"),
		GitHubToken:  os.Getenv("DECKFM_GITHUB_TOKEN"),
		RedisAddr:    getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisKey:     getEnv("DECKFM_QUEUE_KEY", "deckfm:queue:events"),
		LogFilePath:  getEnv("DECKFM_QUEUE_PATH", filepath.Join(cacheBase, "deckfm", "events.ndjson")),

		RelayURL:    getEnv("DECKFM_RELAY_URL", ""),
		RelayAPIKey: getEnv("DECKFM_RELAY_KEY", ""),
		RelaySecret: os.Getenv("DECKFM_RELAY_SECRET"),
		Room:        getEnv("DECKFM_ROOM", "deckfm"),
		Identity:    identity,
		NotifyURL:   getEnv("DECKFM_NOTIFY_URL", ""),
		HookAddr:    getEnv("DECKFM_HOOK_ADDR", ""),

		Volume:        getEnvInt("DECKFM_VOLUME", 50),
		LocalPlayback: getEnvBool("DECKFM_LOCAL_PLAYBACK", true),

		LogLevel: getEnv("DECKFM_LOG_LEVEL", "info"),
		LogPath:  getEnv("DECKFM_LOG_PATH", ""),
	}
}
