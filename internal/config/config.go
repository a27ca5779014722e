package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	API    APIConfig    `mapstructure:"api"`
	Log    LogConfig    `mapstructure:"log"`
	Notify NotifyConfig `mapstructure:"notify"`
	Upload UploadConfig `mapstructure:"upload"`
	Stub   StubConfig   `mapstructure:"stub"`
}

// APIConfig points the client at the document service.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type NotifyConfig struct {
	DismissAfter time.Duration `mapstructure:"dismiss_after"`
}

type UploadConfig struct {
	MaxFileSizeMB int `mapstructure:"max_file_size_mb"`
}

// StubConfig configures the local stand-in for the document service.
type StubConfig struct {
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes"`
	MaxFileSizeMB     int           `mapstructure:"max_file_size_mb"`
	AllowedExtensions []string      `mapstructure:"allowed_extensions"`
	Storage           StorageConfig `mapstructure:"storage"`
	CORS              CORSConfig    `mapstructure:"cors"`
}

type StorageConfig struct {
	Type    string `mapstructure:"type"`
	DataDir string `mapstructure:"data_dir"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// MaxUploadBytes is the client-side upload limit in bytes; zero disables it.
func (u UploadConfig) MaxUploadBytes() int64 {
	return int64(u.MaxFileSizeMB) * 1024 * 1024
}

var cfg *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:5000")
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", 60*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")

	v.SetDefault("notify.dismiss_after", 5*time.Second)

	v.SetDefault("upload.max_file_size_mb", 5)

	v.SetDefault("stub.port", 5000)
	v.SetDefault("stub.read_timeout", 30*time.Second)
	v.SetDefault("stub.write_timeout", 30*time.Second)
	v.SetDefault("stub.max_header_bytes", 1<<20)
	v.SetDefault("stub.max_file_size_mb", 5)
	v.SetDefault("stub.allowed_extensions", []string{"pdf", "docx", "doc", "txt"})
	v.SetDefault("stub.storage.type", "memory")
	v.SetDefault("stub.storage.data_dir", "./data")
	v.SetDefault("stub.cors.allowed_origins", []string{"*"})
	v.SetDefault("stub.cors.allowed_methods", []string{"GET", "POST", "DELETE", "OPTIONS"})
	v.SetDefault("stub.cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"})
	v.SetDefault("stub.cors.allow_credentials", false)
	v.SetDefault("stub.cors.max_age", 600)
}

// Load reads configuration with precedence defaults < file < environment.
// An empty configPath skips the file. Environment keys use the DOCCHAT_
// prefix with dots replaced by underscores, e.g. DOCCHAT_API_BASE_URL.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DOCCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	loaded := &Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return nil, err
	}

	// The document service historically read its bearer token from here.
	if loaded.API.Token == "" {
		if token := os.Getenv("DOCCHAT_TOKEN"); token != "" {
			loaded.API.Token = token
		}
	}

	cfg = loaded
	return cfg, nil
}

func Get() *Config {
	return cfg
}
