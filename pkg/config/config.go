// Package config loads Clemm's settings from a YAML file and the
// environment, with a .env file filling in unset variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/run-bigpig/clemm/pkg/agent"
	"github.com/run-bigpig/clemm/pkg/llm/llamacpp"
	"github.com/run-bigpig/clemm/pkg/llm/ollama"
)

// Backend types
const (
	BackendServer = "server" // an already running llama.cpp server
	BackendLaunch = "launch" // start llama.cpp as a child process
	BackendOpenAI = "openai" // any OpenAI-compatible endpoint
	BackendOllama = "ollama"
)

// Memory types
const (
	MemoryBuffer = "buffer"
	MemoryRedis  = "redis"
	MemorySQLite = "sqlite"
)

// Config is the complete application configuration
type Config struct {
	Backend   BackendConfig `yaml:"backend"`
	Crew      CrewConfig    `yaml:"crew"`
	OutputDir string        `yaml:"output_dir"`
	NotesPath string        `yaml:"notes_path"`
	Memory    MemoryConfig  `yaml:"memory"`
	Tracing   TracingConfig `yaml:"tracing"`
	Retry     RetryConfig   `yaml:"retry"`
	Log       LogConfig     `yaml:"log"`
	// MCPServers are remote MCP servers whose tools join the registry
	MCPServers []MCPServerConfig `yaml:"mcp_servers"`
}

// BackendConfig selects and configures the model backend
type BackendConfig struct {
	Type string `yaml:"type"`
	// URL overrides the endpoint of the selected backend
	URL            string        `yaml:"url"`
	ExecutablePath string        `yaml:"executable_path"`
	ModelPath      string        `yaml:"model_path"`
	ContextSize    int           `yaml:"context_size"`
	GPULayers      int           `yaml:"gpu_layers"`
	StartupTimeout time.Duration `yaml:"startup_timeout"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
}

// CrewConfig points at crew definitions. Without either path the default
// crew is used.
type CrewConfig struct {
	File    string `yaml:"file"`
	Dir     string `yaml:"dir"`
	Default string `yaml:"default"`
}

// MemoryConfig selects the transcript store
type MemoryConfig struct {
	Type          string `yaml:"type"`
	MaxSize       int    `yaml:"max_size"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	SQLitePath    string `yaml:"sqlite_path"`
}

// Tracing exporters
const (
	TracingOTel     = "otel"
	TracingLangfuse = "langfuse"
)

// TracingConfig selects the trace exporter. Endpoint and ServiceName
// apply to OpenTelemetry.
type TracingConfig struct {
	Enabled     bool           `yaml:"enabled"`
	Type        string         `yaml:"type"`
	ServiceName string         `yaml:"service_name"`
	Endpoint    string         `yaml:"endpoint"`
	Langfuse    LangfuseConfig `yaml:"langfuse"`
}

// LangfuseConfig holds the Langfuse project keys
type LangfuseConfig struct {
	Host        string `yaml:"host"`
	PublicKey   string `yaml:"public_key"`
	SecretKey   string `yaml:"secret_key"`
	Environment string `yaml:"environment"`
}

// RetryConfig enables transport-level retries for the model backend
type RetryConfig struct {
	Enabled         bool          `yaml:"enabled"`
	MaxAttempts     int32         `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaximumInterval time.Duration `yaml:"maximum_interval"`
}

// MCPServerConfig describes one remote MCP server. Set Command to start
// it as a child process over stdio, or URL to reach it over HTTP.
type MCPServerConfig struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Env     []string `yaml:"env"`
	URL     string   `yaml:"url"`
	Path    string   `yaml:"path"`
	Token   string   `yaml:"token"`
	// Prefix is prepended to every imported tool name
	Prefix string `yaml:"prefix"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Type:           BackendServer,
			ContextSize:    4096,
			GPULayers:      20,
			StartupTimeout: 60 * time.Second,
		},
		OutputDir: "output_files",
		NotesPath: "Captains_Log.txt",
		Memory: MemoryConfig{
			Type:       MemoryBuffer,
			MaxSize:    500,
			SQLitePath: "clemm_transcripts.db",
		},
		Tracing: TracingConfig{
			Type:        TracingOTel,
			ServiceName: "clemm",
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			InitialInterval: 500 * time.Millisecond,
			MaximumInterval: 10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path, if any, then applies the environment.
// envFiles are loaded with godotenv first; variables already set in the
// process win, and missing files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if !agent.IsValidFilePath(path) {
			return nil, fmt.Errorf("invalid config file path: %s", path)
		}
		data, err := os.ReadFile(path) // #nosec G304 - Path is validated with IsValidFilePath() before use
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFiles loads .env files into the process environment without
// overriding variables that are already set. With no arguments it
// loads ".env" from the working directory.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// CleanEnvValue drops an inline "#" comment and surrounding whitespace
func CleanEnvValue(v string) string {
	if i := strings.Index(v, "#"); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

// ApplyEnv overrides settings with environment variables found by lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			if v = CleanEnvValue(v); v != "" {
				*dst = v
			}
		}
	}
	num := func(key string, dst *int) error {
		if v, ok := lookup(key); ok {
			if v = CleanEnvValue(v); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					return fmt.Errorf("invalid %s %q: %w", key, v, err)
				}
				*dst = n
			}
		}
		return nil
	}

	var kind string
	str("CLEMM_BACKEND", &kind)
	if kind != "" {
		c.SwitchBackend(kind, lookup)
	}
	str("RAVEN_GGUF_MODEL_PATH", &c.Backend.ModelPath)
	str("LLAMACPP_SERVER_EXECUTABLE_PATH", &c.Backend.ExecutablePath)
	if err := num("SERVER_CONTEXT_SIZE", &c.Backend.ContextSize); err != nil {
		return err
	}
	if err := num("SERVER_GPU_LAYERS", &c.Backend.GPULayers); err != nil {
		return err
	}
	str("OPENAI_API_KEY", &c.Backend.APIKey)
	str("CLEMM_MODEL", &c.Backend.Model)
	if key := backendURLEnv(c.Backend.Type); key != "" {
		str(key, &c.Backend.URL)
	}

	str("REDIS_ADDR", &c.Memory.RedisAddr)

	var endpoint string
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &endpoint)
	if endpoint != "" {
		c.Tracing.Enabled = true
		c.Tracing.Endpoint = endpoint
	}
	var tracer string
	str("CLEMM_TRACING", &tracer)
	if tracer != "" {
		c.Tracing.Enabled = true
		c.Tracing.Type = tracer
	}
	str("LANGFUSE_HOST", &c.Tracing.Langfuse.Host)
	str("LANGFUSE_PUBLIC_KEY", &c.Tracing.Langfuse.PublicKey)
	str("LANGFUSE_SECRET_KEY", &c.Tracing.Langfuse.SecretKey)

	str("CLEMM_LOG_LEVEL", &c.Log.Level)
	return nil
}

// backendURLEnv names the variable that sets the endpoint of a backend type
func backendURLEnv(kind string) string {
	switch kind {
	case BackendServer, BackendLaunch:
		return "LLAMACPP_SERVER_URL"
	case BackendOpenAI:
		return "OPENAI_BASE_URL"
	case BackendOllama:
		return "OLLAMA_HOST"
	}
	return ""
}

// SwitchBackend changes the backend type after loading. An endpoint set
// for the previous type is dropped and the new type's variable is read.
func (c *Config) SwitchBackend(kind string, lookup func(string) (string, bool)) {
	if kind == c.Backend.Type {
		return
	}
	c.Backend.Type = kind
	c.Backend.URL = ""
	if key := backendURLEnv(kind); key != "" {
		if v, ok := lookup(key); ok {
			c.Backend.URL = CleanEnvValue(v)
		}
	}
}

// Endpoint returns the configured URL, or the default of the backend type
func (b BackendConfig) Endpoint() string {
	if b.URL != "" {
		return b.URL
	}
	switch b.Type {
	case BackendOpenAI:
		return llamacpp.DefaultURL + "/v1"
	case BackendOllama:
		return ollama.DefaultHost
	}
	return llamacpp.DefaultURL
}

// Validate reports settings that cannot work
func (c *Config) Validate() error {
	switch c.Backend.Type {
	case BackendServer, BackendLaunch, BackendOpenAI, BackendOllama:
	default:
		return fmt.Errorf("unknown backend type %q", c.Backend.Type)
	}
	if c.Backend.Type == BackendOllama && c.Backend.Model == "" {
		return errors.New("the ollama backend needs a model name")
	}

	switch c.Memory.Type {
	case "", MemoryBuffer, MemorySQLite:
	case MemoryRedis:
		if c.Memory.RedisAddr == "" {
			return errors.New("redis memory needs redis_addr or REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown memory type %q", c.Memory.Type)
	}

	switch c.Tracing.Type {
	case "", TracingOTel:
	case TracingLangfuse:
		if c.Tracing.Enabled && (c.Tracing.Langfuse.PublicKey == "" || c.Tracing.Langfuse.SecretKey == "") {
			return errors.New("langfuse tracing needs LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY")
		}
	default:
		return fmt.Errorf("unknown tracing type %q", c.Tracing.Type)
	}

	if c.Backend.ContextSize <= 0 {
		return fmt.Errorf("context size must be positive, got %d", c.Backend.ContextSize)
	}
	if c.Crew.File != "" && c.Crew.Dir != "" {
		return errors.New("set crew.file or crew.dir, not both")
	}
	for i, s := range c.MCPServers {
		if (s.Command == "") == (s.URL == "") {
			return fmt.Errorf("mcp server %d (%s): set exactly one of command or url", i, s.Name)
		}
	}
	return nil
}

// ServerConfig returns the llama.cpp launch settings
func (c *Config) ServerConfig() llamacpp.ServerConfig {
	return llamacpp.ServerConfig{
		ExecutablePath: c.Backend.ExecutablePath,
		ModelPath:      c.Backend.ModelPath,
		URL:            c.Backend.Endpoint(),
		ContextSize:    c.Backend.ContextSize,
		GPULayers:      c.Backend.GPULayers,
		StartupTimeout: c.Backend.StartupTimeout,
	}
}

// LoadCrew returns the configured crew definitions, or the default crew
func (c *Config) LoadCrew() (agent.CrewConfigs, error) {
	var (
		configs agent.CrewConfigs
		err     error
	)
	switch {
	case c.Crew.File != "":
		configs, err = agent.LoadCrewConfigsFromFile(c.Crew.File)
	case c.Crew.Dir != "":
		configs, err = agent.LoadCrewConfigsFromDir(c.Crew.Dir)
	default:
		configs = agent.DefaultCrewConfigs()
	}
	if err != nil {
		return nil, err
	}
	if err := configs.Validate(); err != nil {
		return nil, err
	}
	return configs, nil
}
