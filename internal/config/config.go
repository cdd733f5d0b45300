package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Render    RenderConfig
	Chrome    ChromeConfig
	FFmpeg    FFmpegConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	S3        S3Config
}

type ServerConfig struct {
	Port     string
	LogLevel string
	// PublicURL is how the headless browser reaches this server's
	// viewer page; defaults to loopback on the configured port.
	PublicURL string
}

type RenderConfig struct {
	Concurrency   int
	OutputDir     string
	TempDir       string
	ModelsDir     string
	ViewSettleMS  int
	FrameSettleMS int
}

type ChromeConfig struct {
	ExecPath          string
	ReadyTimeoutSec   int
	SessionTimeoutSec int
	JPEGQuality       int
}

type FFmpegConfig struct {
	Bin string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	RenderPerHour int
	UploadPerHour int
}

type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicURL       string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.public_url", "PUBLIC_URL")
	_ = viper.BindEnv("render.concurrency", "RENDER_CONCURRENCY")
	_ = viper.BindEnv("render.output_dir", "OUTPUT_DIR")
	_ = viper.BindEnv("render.temp_dir", "TEMP_DIR")
	_ = viper.BindEnv("render.models_dir", "MODELS_DIR")
	_ = viper.BindEnv("render.view_settle_ms", "VIEW_SETTLE_MS")
	_ = viper.BindEnv("render.frame_settle_ms", "FRAME_SETTLE_MS")
	_ = viper.BindEnv("chrome.exec_path", "CHROME_PATH")
	_ = viper.BindEnv("chrome.ready_timeout_sec", "CHROME_READY_TIMEOUT")
	_ = viper.BindEnv("chrome.session_timeout_sec", "CHROME_SESSION_TIMEOUT")
	_ = viper.BindEnv("chrome.jpeg_quality", "CHROME_JPEG_QUALITY")
	_ = viper.BindEnv("ffmpeg.bin", "FFMPEG_BIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("ratelimit.render_per_hour", "RATELIMIT_RENDER_PER_HOUR")
	_ = viper.BindEnv("ratelimit.upload_per_hour", "RATELIMIT_UPLOAD_PER_HOUR")
	_ = viper.BindEnv("s3.endpoint", "S3_ENDPOINT")
	_ = viper.BindEnv("s3.region", "S3_REGION")
	_ = viper.BindEnv("s3.access_key_id", "S3_ACCESS_KEY_ID")
	_ = viper.BindEnv("s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("s3.bucket", "S3_BUCKET")
	_ = viper.BindEnv("s3.public_url", "S3_PUBLIC_URL")

	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("render.concurrency", 2)
	viper.SetDefault("render.output_dir", "data/outputs")
	viper.SetDefault("render.temp_dir", "data/tmp")
	viper.SetDefault("render.models_dir", "data/models")
	viper.SetDefault("render.view_settle_ms", 500)
	viper.SetDefault("render.frame_settle_ms", 50)
	viper.SetDefault("chrome.ready_timeout_sec", 30)
	viper.SetDefault("chrome.session_timeout_sec", 0)
	viper.SetDefault("chrome.jpeg_quality", 90)
	viper.SetDefault("ffmpeg.bin", "ffmpeg")
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("ratelimit.render_per_hour", 30)
	viper.SetDefault("ratelimit.upload_per_hour", 50)

	// Config file is optional; env vars and defaults carry a bare setup.
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			LogLevel:  viper.GetString("server.log_level"),
			PublicURL: viper.GetString("server.public_url"),
		},
		Render: RenderConfig{
			Concurrency:   viper.GetInt("render.concurrency"),
			OutputDir:     viper.GetString("render.output_dir"),
			TempDir:       viper.GetString("render.temp_dir"),
			ModelsDir:     viper.GetString("render.models_dir"),
			ViewSettleMS:  viper.GetInt("render.view_settle_ms"),
			FrameSettleMS: viper.GetInt("render.frame_settle_ms"),
		},
		Chrome: ChromeConfig{
			ExecPath:          viper.GetString("chrome.exec_path"),
			ReadyTimeoutSec:   viper.GetInt("chrome.ready_timeout_sec"),
			SessionTimeoutSec: viper.GetInt("chrome.session_timeout_sec"),
			JPEGQuality:       viper.GetInt("chrome.jpeg_quality"),
		},
		FFmpeg: FFmpegConfig{
			Bin: viper.GetString("ffmpeg.bin"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			RenderPerHour: viper.GetInt("ratelimit.render_per_hour"),
			UploadPerHour: viper.GetInt("ratelimit.upload_per_hour"),
		},
		S3: S3Config{
			Endpoint:        viper.GetString("s3.endpoint"),
			Region:          viper.GetString("s3.region"),
			AccessKeyID:     viper.GetString("s3.access_key_id"),
			SecretAccessKey: viper.GetString("s3.secret_access_key"),
			Bucket:          viper.GetString("s3.bucket"),
			PublicURL:       viper.GetString("s3.public_url"),
		},
	}

	if cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = "http://127.0.0.1:" + cfg.Server.Port
	}

	return cfg, nil
}
