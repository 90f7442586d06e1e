// Package config loads settings for the controller and the agent from an
// optional YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Agent runtimes.
const (
	RuntimeExec   = "exec"
	RuntimeDocker = "docker"
)

// DefaultConfigName is looked up in the working directory when Load is
// given no path.
const DefaultConfigName = "taskplane"

// Config holds all configuration values for the application.
type Config struct {
	// Store
	StoreBackend string
	DatabaseURL  string
	RedisURL     string

	// Controller
	HTTPPort       int
	APIKey         string
	LivenessWindow time.Duration
	// site -> price -> product link; overrides the built-in catalog when set
	CatalogProducts map[string]map[string]string

	// Result export
	SheetID            string
	ServiceAccountJSON string

	// Lifecycle events
	NATSURL           string
	NATSSubjectPrefix string

	// Observability
	LogLevel     string
	OTELEndpoint    string  // tracing is disabled when empty
	OTELSampleRatio float64 // fraction of new traces kept
	OTELInsecure    bool    // plaintext gRPC to the collector

	// Agent
	ControllerURL          string
	AgentID                string
	AgentName              string
	AgentSites             []string
	AgentConcurrency       int
	AgentPollInterval      time.Duration
	AgentMaxBackoff        time.Duration
	AgentHeartbeatInterval time.Duration
	AgentMetricsPort       int // 0 disables the agent's /metrics listener
	Runtime                string
	RuntimeCommand         []string
	RuntimeImage           string
	RuntimeWorkDir         string
	TaskTimeout            time.Duration
}

// envBindings maps config keys to their environment variables.
var envBindings = map[string]string{
	"store_backend":            "STORE_BACKEND",
	"database_url":             "DATABASE_URL",
	"redis_url":                "REDIS_URL",
	"http_port":                "PORT",
	"api_key":                  "API_KEY",
	"liveness_window":          "LIVENESS_WINDOW",
	"sheet_id":                 "SHEET_ID",
	"service_account_json":     "SERVICE_ACCOUNT_JSON",
	"nats_url":                 "NATS_URL",
	"nats_subject_prefix":      "NATS_SUBJECT_PREFIX",
	"log_level":                "LOG_LEVEL",
	"otel_endpoint":            "OTEL_EXPORTER_OTLP_ENDPOINT",
	"otel_sample_ratio":        "OTEL_TRACES_SAMPLER_ARG",
	"otel_insecure":            "OTEL_EXPORTER_OTLP_INSECURE",
	"controller_url":           "CONTROLLER_URL",
	"agent_id":                 "AGENT_ID",
	"agent_name":               "AGENT_NAME",
	"agent_sites":              "AGENT_SITES",
	"agent_concurrency":        "AGENT_CONCURRENCY",
	"agent_poll_interval":      "AGENT_POLL_INTERVAL",
	"agent_max_backoff":        "AGENT_MAX_BACKOFF",
	"agent_heartbeat_interval": "AGENT_HEARTBEAT_INTERVAL",
	"agent_metrics_port":       "AGENT_METRICS_PORT",
	"runtime":                  "RUNTIME",
	"runtime_command":          "RUNTIME_COMMAND",
	"runtime_image":            "RUNTIME_IMAGE",
	"runtime_workdir":          "RUNTIME_WORKDIR",
	"task_timeout":             "TASK_TIMEOUT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store_backend", BackendMemory)
	v.SetDefault("http_port", 6161)
	v.SetDefault("liveness_window", 30*time.Second)
	v.SetDefault("nats_subject_prefix", "taskplane")
	v.SetDefault("log_level", "info")
	v.SetDefault("otel_sample_ratio", 1.0)
	v.SetDefault("otel_insecure", true)
	v.SetDefault("controller_url", "http://localhost:6161")
	v.SetDefault("agent_concurrency", 1)
	v.SetDefault("agent_poll_interval", 1*time.Second)
	v.SetDefault("agent_max_backoff", 30*time.Second)
	v.SetDefault("agent_heartbeat_interval", 10*time.Second)
	v.SetDefault("agent_metrics_port", 6162)
	v.SetDefault("runtime", RuntimeExec)
	v.SetDefault("task_timeout", 5*time.Minute)
}

// Load reads configuration. Precedence: environment, then the YAML file at
// path (or ./taskplane.yaml if present and path is empty), then defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		StoreBackend:           strings.ToLower(strings.TrimSpace(v.GetString("store_backend"))),
		DatabaseURL:            v.GetString("database_url"),
		RedisURL:               v.GetString("redis_url"),
		HTTPPort:               v.GetInt("http_port"),
		APIKey:                 v.GetString("api_key"),
		LivenessWindow:         v.GetDuration("liveness_window"),
		CatalogProducts:        stringMaps(v.Get("catalog.products")),
		SheetID:                v.GetString("sheet_id"),
		ServiceAccountJSON:     v.GetString("service_account_json"),
		NATSURL:                v.GetString("nats_url"),
		NATSSubjectPrefix:      v.GetString("nats_subject_prefix"),
		LogLevel:               v.GetString("log_level"),
		OTELEndpoint:           v.GetString("otel_endpoint"),
		OTELSampleRatio:        v.GetFloat64("otel_sample_ratio"),
		OTELInsecure:           v.GetBool("otel_insecure"),
		ControllerURL:          v.GetString("controller_url"),
		AgentID:                v.GetString("agent_id"),
		AgentName:              v.GetString("agent_name"),
		AgentSites:             splitList(v.Get("agent_sites")),
		AgentConcurrency:       v.GetInt("agent_concurrency"),
		AgentPollInterval:      v.GetDuration("agent_poll_interval"),
		AgentMaxBackoff:        v.GetDuration("agent_max_backoff"),
		AgentHeartbeatInterval: v.GetDuration("agent_heartbeat_interval"),
		AgentMetricsPort:       v.GetInt("agent_metrics_port"),
		Runtime:                strings.ToLower(strings.TrimSpace(v.GetString("runtime"))),
		RuntimeCommand:         strings.Fields(v.GetString("runtime_command")),
		RuntimeImage:           v.GetString("runtime_image"),
		RuntimeWorkDir:         v.GetString("runtime_workdir"),
		TaskTimeout:            v.GetDuration("task_timeout"),
	}

	if cfg.AgentID == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.AgentID = host
		}
	}
	if cfg.AgentName == "" {
		cfg.AgentName = cfg.AgentID
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("redis_url is required for the redis backend (env: REDIS_URL)")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("database_url is required for the postgres backend (env: DATABASE_URL)")
		}
	default:
		return fmt.Errorf("invalid store_backend %q: must be memory, redis or postgres", c.StoreBackend)
	}

	switch c.Runtime {
	case RuntimeExec, RuntimeDocker:
	default:
		return fmt.Errorf("invalid runtime %q: must be exec or docker", c.Runtime)
	}
	if c.Runtime == RuntimeDocker && c.RuntimeImage == "" {
		return errors.New("runtime_image is required for the docker runtime (env: RUNTIME_IMAGE)")
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port %d", c.HTTPPort)
	}
	if c.LivenessWindow <= 0 {
		return fmt.Errorf("invalid liveness_window %s", c.LivenessWindow)
	}
	if c.OTELSampleRatio < 0 || c.OTELSampleRatio > 1 {
		return fmt.Errorf("invalid otel_sample_ratio %v: must be between 0 and 1", c.OTELSampleRatio)
	}
	if c.SheetID != "" && c.ServiceAccountJSON == "" {
		return errors.New("service_account_json is required when sheet_id is set (env: SERVICE_ACCOUNT_JSON)")
	}
	return nil
}

// splitList accepts either a YAML list or a comma separated string.
func splitList(raw interface{}) []string {
	var parts []string
	switch val := raw.(type) {
	case nil:
		return nil
	case string:
		parts = strings.Split(val, ",")
	case []interface{}:
		for _, p := range val {
			parts = append(parts, fmt.Sprint(p))
		}
	case []string:
		parts = val
	default:
		parts = strings.Split(fmt.Sprint(val), ",")
	}

	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// stringMaps converts a nested YAML mapping into string keys and values.
func stringMaps(raw interface{}) map[string]map[string]string {
	outer, ok := raw.(map[string]interface{})
	if !ok || len(outer) == 0 {
		return nil
	}

	out := make(map[string]map[string]string, len(outer))
	for site, inner := range outer {
		prices := make(map[string]string)
		switch m := inner.(type) {
		case map[string]interface{}:
			for k, link := range m {
				prices[k] = fmt.Sprint(link)
			}
		case map[interface{}]interface{}:
			for k, link := range m {
				prices[fmt.Sprint(k)] = fmt.Sprint(link)
			}
		}
		out[site] = prices
	}
	return out
}
