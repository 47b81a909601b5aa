package internal

import (
	"fmt"
	"strings"
	"time"

	"salon-chat/runtime"
	"salon-chat/storage"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// SessionConfig configures the push-channel sessions of a chat client.
type SessionConfig struct {
	Endpoint       string        `env:"STOMP_ENDPOINT,required=true"`
	Host           string        `env:"STOMP_HOST"`
	ReconnectDelay time.Duration `env:"RECONNECT_DELAY,default=5s"`
	Heartbeat      time.Duration `env:"HEARTBEAT_INTERVAL,default=4s"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT,default=10s"`
	// comma separated key=value pairs sent with the STOMP CONNECT frame
	ConnectHeaders string `env:"STOMP_CONNECT_HEADERS"`
}

// APIConfig configures the HTTP collaborators of the chat API.
type APIConfig struct {
	BaseURL          string        `env:"CHAT_API_BASE_URL,required=true"`
	RoomCheckTimeout time.Duration `env:"ROOM_CHECK_TIMEOUT,default=3s"`
	AuthToken        string        `env:"CHAT_AUTH_TOKEN"`
}

// StorageConfig has no defaults for the object store location and credentials.
type StorageConfig struct {
	Driver         string `env:"STORAGE_DRIVER,default=s3"`
	Endpoint       string `env:"STORAGE_ENDPOINT"`
	Region         string `env:"STORAGE_REGION"`
	AccessKey      string `env:"STORAGE_ACCESS_KEY"`
	SecretKey      string `env:"STORAGE_SECRET_KEY"`
	Bucket         string `env:"STORAGE_BUCKET"`
	UseSSL         bool   `env:"STORAGE_USE_SSL,default=true"`
	PublicBaseURL  string `env:"STORAGE_PUBLIC_BASE_URL"`
	BadgerFilepath string `env:"BADGER_FILEPATH"`
}

// Load reads an optional .env file then fills every given struct from the environment.
func Load(configs ...any) error {
	_ = godotenv.Load()
	for _, config := range configs {
		if _, err := env.UnmarshalFromEnviron(config); err != nil {
			return fmt.Errorf("config error: %w", err)
		}
	}
	return nil
}

func (c SessionConfig) Runtime() (runtime.SessionConfig, error) {
	headers, err := ParseHeaders(c.ConnectHeaders)
	if err != nil {
		return runtime.SessionConfig{}, err
	}
	return runtime.SessionConfig{
		Endpoint:       c.Endpoint,
		Host:           c.Host,
		ReconnectDelay: c.ReconnectDelay,
		Heartbeat:      c.Heartbeat,
		ConnectTimeout: c.ConnectTimeout,
		Headers:        headers,
	}, nil
}

// Headers returns the HTTP headers sent to the chat API.
func (c APIConfig) Headers() map[string]string {
	if c.AuthToken == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.AuthToken}
}

func (c StorageConfig) Storage() storage.Config {
	return storage.Config{
		Driver: storage.Driver(strings.ToLower(c.Driver)),
		S3: storage.S3Config{
			Endpoint:      c.Endpoint,
			Region:        c.Region,
			AccessKey:     c.AccessKey,
			SecretKey:     c.SecretKey,
			Bucket:        c.Bucket,
			UseSSL:        c.UseSSL,
			PublicBaseURL: c.PublicBaseURL,
		},
		BadgerPath:    c.BadgerFilepath,
		PublicBaseURL: c.PublicBaseURL,
	}
}

// ParseHeaders reads "k1=v1,k2=v2". An empty string yields no headers.
func ParseHeaders(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q, expected key=value", pair)
		}
		headers[key] = value
	}
	return headers, nil
}
