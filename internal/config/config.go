package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GENREID_PORT.
const EnvPrefix = "GENREID"

// Config holds all runtime configuration.
type Config struct {
	// Server
	Port        int
	MaxUploadMB int      // request body cap for uploads
	CORSOrigins []string // allowed browser origins
	TempDir     string   // staged uploads and demuxed audio; "" = OS temp dir

	// Trained artifacts: local paths or s3://bucket/key
	ModelPath  string
	SchemaPath string

	// Media tools
	FFmpegPath  string
	FFprobePath string

	// Object storage
	S3Region   string
	S3Endpoint string // set for MinIO, R2 and other S3-compatible stores

	// Offline extraction
	CacheDir string

	// Logging
	LogLevel  string
	LogFormat string // text or json
}

var defaults = map[string]any{
	"port":          5000,
	"max_upload_mb": 300,
	"cors_origins":  "http://localhost:3000,http://localhost:3001",
	"temp_dir":      "",
	"model_path":    "model/genre_classifier.msgpack",
	"schema_path":   "features.csv",
	"ffmpeg_path":   "ffmpeg",
	"ffprobe_path":  "ffprobe",
	"s3_region":     "",
	"s3_endpoint":   "",
	"cache_dir":     ".genreid-cache",
	"log_level":     "info",
	"log_format":    "text",
}

// Load reads configuration from defaults, an optional YAML file and
// GENREID_* environment variables, in increasing precedence. Numeric
// values that do not parse fall back to their defaults.
func Load(file string) (Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	return Config{
		Port:        intValue(v, "port"),
		MaxUploadMB: intValue(v, "max_upload_mb"),
		CORSOrigins: listValue(v, "cors_origins"),
		TempDir:     v.GetString("temp_dir"),
		ModelPath:   v.GetString("model_path"),
		SchemaPath:  v.GetString("schema_path"),
		FFmpegPath:  v.GetString("ffmpeg_path"),
		FFprobePath: v.GetString("ffprobe_path"),
		S3Region:    v.GetString("s3_region"),
		S3Endpoint:  v.GetString("s3_endpoint"),
		CacheDir:    v.GetString("cache_dir"),
		LogLevel:    v.GetString("log_level"),
		LogFormat:   v.GetString("log_format"),
	}, nil
}

// MaxUploadBytes returns the upload cap in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Addr returns the listen address for Port.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func intValue(v *viper.Viper, key string) int {
	if n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key))); err == nil {
		return n
	}
	return defaults[key].(int)
}

// listValue accepts a YAML list or a comma-separated string.
func listValue(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, s := range strings.Split(item, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
