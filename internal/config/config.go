package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	StoreFirestore = "firestore"
	StoreMemory    = "memory"

	BackendHuggingFace = "huggingface"
	BackendGPT         = "gpt"
)

type App struct {
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty    bool   `env:"LOG_PRETTY" envDefault:"false"`
	HttpAddr     string `env:"HTTP_ADDR" envDefault:":3000"`
	StoreBackend string `env:"STORE_BACKEND" envDefault:"firestore"`
}

type GilasAI struct {
	ApiKey string `env:"GILAS_API_KEY"`
	ApiUrl string `env:"GILAS_API_URL" envDefault:"https://api.gilas.io/v1/chat/completions"`
	Model  string `env:"GILAS_GPT_MODEL" envDefault:"gpt-3.5-turbo"`
}

type Firebase struct {
	Type                    string        `env:"FIREBASE_TYPE" envDefault:"service_account" json:"type"`
	ProjectId               string        `env:"FIREBASE_PROJECT_ID" json:"project_id"`
	PrivateKeyId            string        `env:"FIREBASE_PRIVATE_KEY_ID" json:"private_key_id"`
	PrivateKey              string        `env:"FIREBASE_PRIVATE_KEY" json:"private_key"`
	ClientEmail             string        `env:"FIREBASE_CLIENT_EMAIL" json:"client_email"`
	ClientId                string        `env:"FIREBASE_CLIENT_ID" json:"client_id"`
	AuthUri                 string        `env:"FIREBASE_AUTH_URI" envDefault:"https://accounts.google.com/o/oauth2/auth" json:"auth_uri"`
	TokenUri                string        `env:"FIREBASE_TOKEN_URI" envDefault:"https://oauth2.googleapis.com/token" json:"token_uri"`
	AuthProviderX509CertUrl string        `env:"FIREBASE_AUTH_PROVIDER_X509_CERT_URL" json:"auth_provider_x509_cert_url"`
	ClientX509CertUrl       string        `env:"FIREBASE_CLIENT_X509_CERT_URL" json:"client_x509_cert_url"`
	WriteTimeoutSecond      time.Duration `env:"FIREBASE_WRITE_TIMEOUT_SECOND" json:"-"`
}

type Apify struct {
	ApiToken string `env:"APIFY_API_TOKEN"`
	BaseUrl  string `env:"APIFY_BASE_URL" envDefault:"https://api.apify.com/v2"`
	Actor    string `env:"APIFY_INSTAGRAM_ACTOR" envDefault:"apify~instagram-comment-scraper"`
}

type HuggingFace struct {
	ApiKey  string        `env:"HUGGING_FACE_API_KEY"`
	ApiUrl  string        `env:"HUGGING_FACE_API_URL" envDefault:"https://api-inference.huggingface.co/models"`
	Model   string        `env:"HUGGING_FACE_MODEL" envDefault:"cardiffnlp/twitter-roberta-base-sentiment-latest"`
	Timeout time.Duration `env:"HUGGING_FACE_TIMEOUT" envDefault:"60s"`
}

type Amazon struct {
	BaseUrl   string        `env:"AMAZON_BASE_URL" envDefault:"https://www.amazon.com"`
	UserAgent string        `env:"AMAZON_USER_AGENT" envDefault:"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"`
	MaxPages  int           `env:"AMAZON_MAX_PAGES" envDefault:"10"`
	// PageDelay spaces the review page requests; 0 disables pacing.
	PageDelay time.Duration `env:"AMAZON_PAGE_DELAY" envDefault:"1s"`
}

type Youtube struct {
	ApiKey string `env:"YOUTUBE_API_KEY"`
}

type Classifier struct {
	Backend          string `env:"CLASSIFIER_BACKEND" envDefault:"huggingface"`
	MaxCommentTokens int    `env:"CLASSIFIER_MAX_COMMENT_TOKENS" envDefault:"256"`
}

type Poller struct {
	Interval     time.Duration `env:"POLL_INTERVAL" envDefault:"60m"`
	ProductDelay time.Duration `env:"POLL_PRODUCT_DELAY" envDefault:"2s"`
	ResultsLimit int           `env:"POLL_RESULTS_LIMIT" envDefault:"100"`
	Platforms    []string      `env:"POLL_PLATFORMS" envSeparator:"," envDefault:"instagram"`
}

type Scrape struct {
	DefaultLimit int `env:"SCRAPE_DEFAULT_LIMIT" envDefault:"100"`
}

type Config struct {
	App
	GilasAI
	Firebase
	Apify
	Amazon
	HuggingFace
	Youtube
	Classifier
	Poller
	Scrape
}

// LoadConfigOrPanic reads an optional .env file and then the process environment.
func LoadConfigOrPanic() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}

	config, err := Load()
	if err != nil {
		panic(err)
	}
	return config
}

func Load() (Config, error) {
	var config *Config = new(Config)
	if err := env.Parse(config); err != nil {
		return Config{}, err
	}

	if err := config.normalize(); err != nil {
		return Config{}, err
	}
	return *config, nil
}

func (c *Config) normalize() error {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case StoreFirestore:
		if c.Firebase.ProjectId == "" || c.Firebase.PrivateKey == "" {
			return fmt.Errorf("firestore store requires FIREBASE_PROJECT_ID and FIREBASE_PRIVATE_KEY")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.Firebase.PrivateKey != "" {
		decodedBytes, err := base64.StdEncoding.DecodeString(c.Firebase.PrivateKey)
		if err != nil {
			return fmt.Errorf("decode FIREBASE_PRIVATE_KEY: %w", err)
		}
		c.Firebase.PrivateKey = string(decodedBytes)
		c.Firebase.PrivateKey = strings.ReplaceAll(c.Firebase.PrivateKey, "\\n", "\n")
	}

	if c.WriteTimeoutSecond == 0 {
		c.WriteTimeoutSecond = time.Second * 30
	}

	c.Classifier.Backend = strings.ToLower(strings.TrimSpace(c.Classifier.Backend))
	switch c.Classifier.Backend {
	case BackendHuggingFace:
	case BackendGPT:
		if c.GilasAI.ApiKey == "" {
			return fmt.Errorf("gpt classifier requires GILAS_API_KEY")
		}
	default:
		return fmt.Errorf("unknown CLASSIFIER_BACKEND %q", c.Classifier.Backend)
	}

	platforms := make([]string, 0, len(c.Poller.Platforms))
	for _, p := range c.Poller.Platforms {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			platforms = append(platforms, p)
		}
	}
	c.Poller.Platforms = platforms

	if c.Poller.ResultsLimit <= 0 {
		c.Poller.ResultsLimit = 100
	}
	if c.Scrape.DefaultLimit <= 0 {
		c.Scrape.DefaultLimit = 100
	}
	return nil
}
