// Package config loads server settings from defaults, an optional YAML file
// and the environment, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Listen string `yaml:"listen"`

	Storage     Storage     `yaml:"storage"`
	Auth        Auth        `yaml:"auth"`
	OpenAI      OpenAI      `yaml:"openai"`
	HuggingFace HuggingFace `yaml:"huggingface"`
	Media       Media       `yaml:"media"`
}

type Storage struct {
	Type           string `yaml:"type"`
	LocalPath      string `yaml:"local_path"`
	DataSourceName string `yaml:"data_source_name"`
	S3Bucket       string `yaml:"s3_bucket"`
}

type Auth struct {
	JWTSecret string      `yaml:"jwt_secret"`
	OIDC      OAuthClient `yaml:"oidc"`
	GitHub    OAuthClient `yaml:"github"`
}

// OAuthClient is one identity provider registration. IssuerURL is only used
// for OIDC.
type OAuthClient struct {
	IssuerURL    string `yaml:"issuer_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

type OpenAI struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type HuggingFace struct {
	APIKey   string `yaml:"api_key"`
	ModelURL string `yaml:"model_url"`
}

type Media struct {
	FontPath     string        `yaml:"font_path"`
	FFmpegPath   string        `yaml:"ffmpeg_path"`
	FFprobePath  string        `yaml:"ffprobe_path"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	FPS          int           `yaml:"fps"`
}

func Default() *Config {
	return &Config{
		Listen: ":3002",
		Storage: Storage{
			Type:           "memory",
			LocalPath:      "./data",
			DataSourceName: "memeforge.db",
		},
		OpenAI: OpenAI{
			BaseURL:   "https://api.openai.com",
			Model:     "gpt-3.5-turbo",
			MaxTokens: 150,
		},
		HuggingFace: HuggingFace{
			ModelURL: "https://api-inference.huggingface.co/models/black-forest-labs/FLUX.1-schnell",
		},
		Media: Media{
			FFmpegPath:   "ffmpeg",
			FFprobePath:  "ffprobe",
			FetchTimeout: 15 * time.Second,
			FPS:          30,
		},
	}
}

// Load reads the YAML file at path (or ./config.yaml when path is empty and
// the file exists) over the defaults, then applies environment variables.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = "./config.yaml"
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, err
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if port, ok := lookup("PORT"); ok && port != "" {
		if !strings.Contains(port, ":") {
			port = ":" + port
		}
		c.Listen = port
	}

	str("STORAGE_TYPE", &c.Storage.Type)
	str("LOCAL_STORAGE_PATH", &c.Storage.LocalPath)
	str("DATA_SOURCE_NAME", &c.Storage.DataSourceName)
	str("S3_BUCKET_NAME", &c.Storage.S3Bucket)

	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("OIDC_ISSUER_URL", &c.Auth.OIDC.IssuerURL)
	str("OIDC_CLIENT_ID", &c.Auth.OIDC.ClientID)
	str("OIDC_CLIENT_SECRET", &c.Auth.OIDC.ClientSecret)
	str("OIDC_REDIRECT_URL", &c.Auth.OIDC.RedirectURL)
	str("GITHUB_CLIENT_ID", &c.Auth.GitHub.ClientID)
	str("GITHUB_CLIENT_SECRET", &c.Auth.GitHub.ClientSecret)
	str("GITHUB_REDIRECT_URL", &c.Auth.GitHub.RedirectURL)

	str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	str("OPENAI_MODEL", &c.OpenAI.Model)
	str("HF_API_KEY", &c.HuggingFace.APIKey)
	str("HF_MODEL_URL", &c.HuggingFace.ModelURL)

	str("FONT_PATH", &c.Media.FontPath)
	str("FFMPEG_PATH", &c.Media.FFmpegPath)
	str("FFPROBE_PATH", &c.Media.FFprobePath)
	if v, ok := lookup("FETCH_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid FETCH_TIMEOUT: %w", err)
		}
		c.Media.FetchTimeout = d
	}
	if v, ok := lookup("VIDEO_FPS"); ok && v != "" {
		fps, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid VIDEO_FPS: %w", err)
		}
		c.Media.FPS = fps
	}
	return nil
}

// OIDCConfigured reports whether OIDC login is set up; it wins over GitHub.
func (a Auth) OIDCConfigured() bool {
	return a.OIDC.IssuerURL != "" && a.OIDC.ClientID != ""
}

func (a Auth) GitHubConfigured() bool {
	return a.GitHub.ClientID != "" && a.GitHub.ClientSecret != ""
}
