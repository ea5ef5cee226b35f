package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
// Everything has a default so a bare checkout runs against ./downloads.
type Config struct {
	FFmpegPath  string
	FFprobePath string
	YtDlpPath   string
	WatchIngest bool // Pick up audio files dropped into TrackDir by other tools

	TrackDir    string // Directory holding the audio files and their .meta sidecars
	TrackExt    string // e.g. ".mp3"
	BackupDir   string // One pristine copy per edited track
	WaveformDir string // Rendered waveform previews
	TempDir     string // Intermediate files for merges

	PlaylistFile string
	ArchiveIndex string
	ActivityLog  string
	ActivityDB   string // SQLite file for the activity log; takes precedence over ActivityLog
	PublicPrefix string // Relative URL prefix used in M3U exports

	MaxFileAge      time.Duration
	AudioBitrate    string // e.g., "192k"
	AudioSampleRate int

	ServerAddr string
	APISecret  string // HS256 secret; empty disables API auth

	TitleParserURL   string
	TitleParserKey   string
	TitleParserModel string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisLocks    bool          // Use Redis for per-track locks instead of in-process mutexes
	RedisCache    bool          // Cache peak measurements in Redis
	ReportTTL     time.Duration // Lifetime of cached measurements, 0 = no expiry

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string
	ArchiveObject  string // Object key of the archive index; empty reads ArchiveIndex from disk

	DBHost     string // Empty keeps the activity log in a JSON file
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	LogLevel      string
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool
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

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("8h") or a plain number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	ffmpegPath := getEnv("FFMPEG_PATH", "ffmpeg")
	trackDir := getEnv("TRACK_DIR", "downloads")
	ext := getEnv("TRACK_EXT", ".mp3")
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	return &Config{
		FFmpegPath:  ffmpegPath,
		FFprobePath: getEnv("FFPROBE_PATH", strings.Replace(ffmpegPath, "ffmpeg", "ffprobe", 1)),
		YtDlpPath:   getEnv("YTDLP_PATH", "yt-dlp"),
		WatchIngest: getEnvBool("WATCH_INGEST", false),

		TrackDir:    trackDir,
		TrackExt:    ext,
		BackupDir:   getEnv("BACKUP_DIR", filepath.Join(trackDir, "backups")),
		WaveformDir: getEnv("WAVEFORM_DIR", filepath.Join(trackDir, "waveforms")),
		TempDir:     getEnv("TEMP_DIR", os.TempDir()),

		PlaylistFile: getEnv("PLAYLIST_FILE", "playlists.json"),
		ArchiveIndex: getEnv("ARCHIVE_INDEX", "archive_index.json"),
		ActivityLog:  getEnv("ACTIVITY_LOG", "rip_log.json"),
		ActivityDB:   getEnv("ACTIVITY_DB", ""),
		PublicPrefix: getEnv("PUBLIC_PREFIX", "downloads"),

		MaxFileAge:      getEnvDuration("MAX_FILE_AGE", 8*time.Hour),
		AudioBitrate:    getEnv("AUDIO_BITRATE", "192k"),
		AudioSampleRate: getEnvInt("AUDIO_SAMPLE_RATE", 44100),

		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		APISecret:  os.Getenv("API_SECRET"),

		TitleParserURL:   getEnv("TITLE_PARSER_URL", "https://api.openai.com/v1/chat/completions"),
		TitleParserKey:   getEnv("TITLE_PARSER_KEY", os.Getenv("OPENAI_API_KEY")),
		TitleParserModel: getEnv("TITLE_PARSER_MODEL", "gpt-4o-mini"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisLocks:    getEnvBool("REDIS_LOCKS", false),
		RedisCache:    getEnvBool("REDIS_CACHE", false),
		ReportTTL:     getEnvDuration("REPORT_TTL", 7*24*time.Hour),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "music"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", true),
		MinioRegion:    getEnv("MINIO_REGION", ""),
		ArchiveObject:  getEnv("ARCHIVE_OBJECT", ""),

		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "rippers"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE", 50),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE", 28),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}
