package config

import (
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base of object URLs handed to clients. Defaults to
	// the endpoint.
	PublicURL string
}

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	SigningKey     []byte
	AllowedOrigins []string
	RedisURL       string
	// NatsURL is optional. Without it room events stay on this instance.
	NatsURL string
	S3      S3Config

	MaxUploadSize   int64
	UploadURLExpiry time.Duration
	RateLimit       float64
	RateBurst       int
	Workers         int
}

// Params are the raw configuration values, usually populated from flags.
type Params struct {
	ServerAddr     string
	DatabaseDSN    string
	SigningKey     string
	AllowedOrigins StringSlice
	RedisURL       string
	NatsURL        string
	S3             S3Config

	MaxUploadSize   int64
	UploadURLExpiry time.Duration
	RateLimit       float64
	RateBurst       int
	Workers         int
}

type StringSlice []string

func (s *StringSlice) String() string {
	return strings.Join(*s, ",")
}

func (s *StringSlice) Set(value string) error {
	*s = nil
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*s = append(*s, v)
		}
	}
	return nil
}

// RegisterFlags binds p to fs. Flag defaults are read from the environment.
func (p *Params) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&p.ServerAddr, "addr", Getenv("GOSOCIAL_ADDR", "localhost:8000"), "server address")
	fs.StringVar(&p.DatabaseDSN, "dsn", Getenv("GOSOCIAL_DSN", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	fs.StringVar(&p.SigningKey, "signing-key", Getenv("GOSOCIAL_SIGNING_KEY", ""), "base64 encoded signing key")
	p.AllowedOrigins.Set(Getenv("GOSOCIAL_ALLOWED_ORIGINS", ""))
	fs.Var(&p.AllowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	fs.StringVar(&p.RedisURL, "redis-url", Getenv("GOSOCIAL_REDIS_URL", "redis://localhost:6379/0"), "redis url of the message store")
	fs.StringVar(&p.NatsURL, "nats-url", Getenv("GOSOCIAL_NATS_URL", ""), "nats url for cross-instance room events")

	fs.StringVar(&p.S3.Endpoint, "s3-endpoint", Getenv("GOSOCIAL_S3_ENDPOINT", "localhost:9000"), "object storage endpoint")
	fs.StringVar(&p.S3.AccessKey, "s3-access-key", Getenv("GOSOCIAL_S3_ACCESS_KEY", ""), "object storage access key")
	fs.StringVar(&p.S3.SecretKey, "s3-secret-key", Getenv("GOSOCIAL_S3_SECRET_KEY", ""), "object storage secret key")
	fs.StringVar(&p.S3.Bucket, "s3-bucket", Getenv("GOSOCIAL_S3_BUCKET", "gosocial"), "object storage bucket")
	fs.BoolVar(&p.S3.UseSSL, "s3-ssl", GetenvBool("GOSOCIAL_S3_SSL", false), "use TLS for object storage")
	fs.StringVar(&p.S3.PublicURL, "s3-public-url", Getenv("GOSOCIAL_S3_PUBLIC_URL", ""), "public base url of stored objects")

	fs.Int64Var(&p.MaxUploadSize, "max-upload-size", GetenvInt64("GOSOCIAL_MAX_UPLOAD_SIZE", 25<<20), "maximum upload size in bytes")
	fs.DurationVar(&p.UploadURLExpiry, "upload-url-expiry", GetenvDuration("GOSOCIAL_UPLOAD_URL_EXPIRY", 5*time.Minute), "lifetime of presigned upload urls")
	fs.Float64Var(&p.RateLimit, "rate-limit", GetenvFloat("GOSOCIAL_RATE_LIMIT", 20), "requests per second accepted from one connection")
	fs.IntVar(&p.RateBurst, "rate-burst", int(GetenvInt64("GOSOCIAL_RATE_BURST", 40)), "request burst accepted from one connection")
	fs.IntVar(&p.Workers, "workers", int(GetenvInt64("GOSOCIAL_WORKERS", 64)), "number of request workers")
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, errors.New("empty secret")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(p Params) (*Config, error) {
	if p.ServerAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if p.DatabaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if p.SigningKey == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	if p.RedisURL == "" {
		return nil, fmt.Errorf("redis url cannot be empty")
	}
	if p.S3.Endpoint == "" || p.S3.Bucket == "" {
		return nil, fmt.Errorf("object storage endpoint and bucket cannot be empty")
	}

	signingKey, err := decodeSigningSecret(p.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	s3 := p.S3
	if s3.PublicURL == "" {
		scheme := "http://"
		if s3.UseSSL {
			scheme = "https://"
		}
		s3.PublicURL = scheme + s3.Endpoint
	}

	return &Config{
		ServerAddr:      p.ServerAddr,
		DatabaseDSN:     p.DatabaseDSN,
		SigningKey:      signingKey,
		AllowedOrigins:  []string(p.AllowedOrigins),
		RedisURL:        p.RedisURL,
		NatsURL:         p.NatsURL,
		S3:              s3,
		MaxUploadSize:   p.MaxUploadSize,
		UploadURLExpiry: p.UploadURLExpiry,
		RateLimit:       p.RateLimit,
		RateBurst:       p.RateBurst,
		Workers:         p.Workers,
	}, nil
}

// LoadDotEnv loads variables from the file at path into the environment
// without overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Getenv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func GetenvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(Getenv(key, "")); err == nil {
		return v
	}
	return fallback
}

func GetenvInt64(key string, fallback int64) int64 {
	if v, err := strconv.ParseInt(Getenv(key, ""), 10, 64); err == nil {
		return v
	}
	return fallback
}

func GetenvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(Getenv(key, ""), 64); err == nil {
		return v
	}
	return fallback
}

func GetenvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(Getenv(key, "")); err == nil {
		return v
	}
	return fallback
}
