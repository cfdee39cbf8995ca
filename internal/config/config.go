package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/graphcache/internal/ir"
	"github.com/roach88/graphcache/internal/transport"
)

// Transport kinds.
const (
	KindHTTP      = "http"
	KindWebSocket = "websocket"
)

// Config is the client configuration.
type Config struct {
	// Endpoint is passed to the transport with every request.
	Endpoint  string    `yaml:"endpoint" validate:"required"`
	Transport Transport `yaml:"transport"`
	Journal   Journal   `yaml:"journal"`
	Log       Log       `yaml:"log"`
	Metrics   Metrics   `yaml:"metrics"`
}

// Transport selects and configures the transport.
type Transport struct {
	Kind    string            `yaml:"kind" validate:"oneof=http websocket"`
	URL     string            `yaml:"url" validate:"required,url"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout" validate:"gte=0"`
	Breaker Breaker           `yaml:"breaker"`
}

// Breaker configures the HTTP transport's circuit breaker.
type Breaker struct {
	MaxRequests      uint32        `yaml:"max_requests" validate:"gte=1"`
	Interval         time.Duration `yaml:"interval" validate:"gte=0"`
	Timeout          time.Duration `yaml:"timeout" validate:"gte=0"`
	FailureThreshold float64       `yaml:"failure_threshold" validate:"gt=0,lte=1"`
	MinRequests      uint32        `yaml:"min_requests"`
}

// Journal configures the dispatch journal. An empty path keeps it in memory.
type Journal struct {
	Path string `yaml:"path"`
}

// Log configures the CLI logger.
type Log struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Metrics configures the runtime metrics.
type Metrics struct {
	Namespace string `yaml:"namespace" validate:"required,metricname"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	b := transport.DefaultBreakerConfig("")
	return Config{
		Endpoint: transport.DefaultEndpoint,
		Transport: Transport{
			Kind:    KindHTTP,
			URL:     "http://localhost:8080",
			Timeout: 30 * time.Second,
			Breaker: Breaker{
				MaxRequests:      b.MaxRequests,
				Interval:         b.Interval,
				Timeout:          b.Timeout,
				FailureThreshold: b.FailureThreshold,
				MinRequests:      b.MinRequests,
			},
		},
		Journal: Journal{Path: ""},
		Log:     Log{Level: "info"},
		Metrics: Metrics{Namespace: "graphcache"},
	}
}

// Load reads, defaults and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result. An empty
// document yields the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once

	metricNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// Report yaml key names rather than Go field names.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("metricname", func(fl validator.FieldLevel) bool {
			return metricNamePattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Validate checks field constraints. Failures are reported as a single
// *ir.ConfigurationError naming the first offending key.
func (c *Config) Validate() error {
	err := validatorInstance().Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	messages := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		messages[i] = formatFieldError(fe)
	}
	return ir.NewConfigurationError(keyPath(fieldErrs[0]), "%s", strings.Join(messages, "; "))
}

// keyPath turns "Config.transport.url" into "transport.url".
func keyPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func formatFieldError(fe validator.FieldError) string {
	key := keyPath(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", key)
	case "url":
		return fmt.Sprintf("%s must be an absolute URL", key)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", key, fe.Param())
	case "gt", "gte":
		return fmt.Sprintf("%s must be %s %s", key, comparison(fe.Tag()), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", key, fe.Param())
	case "metricname":
		return fmt.Sprintf("%s must match %s", key, metricNamePattern)
	default:
		return fmt.Sprintf("%s is invalid", key)
	}
}

func comparison(tag string) string {
	if tag == "gt" {
		return "greater than"
	}
	return "at least"
}

// LogLevel maps Log.Level to a slog level.
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// BreakerConfig converts the breaker section for the HTTP transport.
func (c *Config) BreakerConfig(name string) transport.BreakerConfig {
	b := c.Transport.Breaker
	return transport.BreakerConfig{
		Name:             name,
		MaxRequests:      b.MaxRequests,
		Interval:         b.Interval,
		Timeout:          b.Timeout,
		FailureThreshold: b.FailureThreshold,
		MinRequests:      b.MinRequests,
	}
}
