// Package config loads runtime settings from the environment (and an optional .env file).
package config

import (
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

type Config struct {
	ListenAddr string
	SocketPath string
	DBPath     string
	MediaDir   string

	YtDlpPath   string
	CookiesPath string

	// MaxConcurrentExtractions caps yt-dlp processes across all owners. 0 = unbounded.
	MaxConcurrentExtractions int
	BatchDelay               time.Duration
	BatchMaxItems            int

	FetchTimeout time.Duration
	// ResolveTimeout bounds a whole link resolution (yt-dlp probe, Spotify expansion).
	ResolveTimeout time.Duration
	UserAgent      string

	SpotifyClientID     string
	SpotifyClientSecret string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	SearchCacheTTL time.Duration

	LogLevel string
	LogFile  string
}

// SpotifyEnabled reports whether both Spotify credentials are present.
func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("WARN: ignoring invalid integer %s=%q", key, value)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("WARN: ignoring invalid duration %s=%q", key, value)
	}
	return fallback
}

func defaultYtDlpPath() string {
	binary := "yt-dlp"
	if runtime.GOOS == "windows" {
		binary = "yt-dlp.exe"
	}
	return filepath.Join("yt-dlp", binary)
}

// Load reads .env (if any) and the process environment. Existing env vars win over .env.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARN: could not load .env: %v", err)
	}

	return &Config{
		ListenAddr: getEnv("RIZUMU_ADDR", ":8080"),
		SocketPath: getEnv("RIZUMU_SOCKET", filepath.Join(os.TempDir(), "rizumu-fetch.sock")),
		DBPath:     getEnv("RIZUMU_DB", "rizumu.db"),
		MediaDir:   getEnv("MEDIA_DIR", "media"),

		YtDlpPath:   getEnv("YTDLP_PATH", defaultYtDlpPath()),
		CookiesPath: getEnv("YTDLP_COOKIES", filepath.Join("yt-dlp", "cookies.txt")),

		MaxConcurrentExtractions: getEnvInt("MAX_CONCURRENT_EXTRACTIONS", 4),
		BatchDelay:               getEnvDuration("BATCH_DELAY", 2*time.Second),
		BatchMaxItems:            getEnvInt("BATCH_MAX_ITEMS", 25),

		FetchTimeout:   getEnvDuration("FETCH_TIMEOUT", 5*time.Second),
		ResolveTimeout: getEnvDuration("RESOLVE_TIMEOUT", 60*time.Second),
		UserAgent:      getEnv("USER_AGENT", defaultUserAgent),

		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		SearchCacheTTL: getEnvDuration("SEARCH_CACHE_TTL", 30*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),
	}
}
