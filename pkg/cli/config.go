package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".walkie"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// Config holds the named backend contexts of the walkie CLI, kubectl
// style.
type Config struct {
	// CurrentContext is the name of the currently active context
	CurrentContext string `yaml:"current_context,omitempty"`

	// Contexts is a map of context name to context configuration
	Contexts map[string]*Context `yaml:"contexts,omitempty"`

	configPath string
}

// Context is one backend plus the identity and storage used with it.
type Context struct {
	Name string `yaml:"name"`

	// BaseURL is the voice backend root used for session negotiation.
	BaseURL string `yaml:"base_url"`
	// Token is sent as a bearer token (optional).
	Token string `yaml:"token,omitempty"`

	UserID    string `yaml:"user_id,omitempty"`
	TopicID   string `yaml:"topic_id,omitempty"`
	VoiceName string `yaml:"voice_name,omitempty"`

	// AISpeaksFirst asks the backend to open the conversation.
	AISpeaksFirst bool `yaml:"ai_speaks_first,omitempty"`
	// BargeIn lets a recording interrupt the reply being streamed.
	BargeIn bool `yaml:"barge_in,omitempty"`

	// ConnectTimeout is in seconds (optional).
	ConnectTimeout int `yaml:"connect_timeout,omitempty"`

	Storage *StorageConfig `yaml:"storage,omitempty"`
}

// StorageConfig selects where durable audio copies go.
type StorageConfig struct {
	// Kind is "local", "s3" or "memory". Empty means local.
	Kind string `yaml:"kind,omitempty"`
	// Dir is the root of a local store.
	Dir string `yaml:"dir,omitempty"`
	// Bucket, Prefix and Region configure an S3 store. Credentials come
	// from the default AWS chain.
	Bucket string `yaml:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
	Region string `yaml:"region,omitempty"`
	// Endpoint overrides the S3 endpoint for compatible services.
	Endpoint string `yaml:"endpoint,omitempty"`
	// PublicBase is the URL objects are served under.
	PublicBase string `yaml:"public_base,omitempty"`
}

// LoadConfig loads or creates ~/.walkie/config.yaml.
func LoadConfig() (*Config, error) {
	return LoadConfigWithPath("")
}

// LoadConfigWithPath loads configuration from a custom path
func LoadConfigWithPath(customPath string) (*Config, error) {
	configPath := customPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, DefaultBaseDir, DefaultConfigFile)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{
		Contexts:   make(map[string]*Context),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	cfg.configPath = configPath
	return cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// AddContext adds or replaces a context
func (c *Config) AddContext(name string, ctx *Context) error {
	if ctx.BaseURL == "" {
		return fmt.Errorf("context %q: base_url is required", name)
	}
	ctx.Name = name
	c.Contexts[name] = ctx
	if c.CurrentContext == "" {
		c.CurrentContext = name
	}
	return c.Save()
}

// DeleteContext removes a context
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext sets the current context
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// ResolveContext returns the context by name, or the current context if
// name is empty.
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name == "" {
		if c.CurrentContext == "" {
			return nil, fmt.Errorf("no current context set; run 'walkie config add'")
		}
		name = c.CurrentContext
	}
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// ListContexts returns all context names, sorted.
func (c *Config) ListContexts() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Set updates one field of the context by its YAML key, e.g. "token" or
// "storage.bucket".
func (ctx *Context) Set(key, value string) error {
	if name, ok := strings.CutPrefix(key, "storage."); ok {
		if ctx.Storage == nil {
			ctx.Storage = &StorageConfig{}
		}
		return ctx.Storage.set(name, value)
	}
	switch key {
	case "base_url":
		ctx.BaseURL = value
	case "token":
		ctx.Token = value
	case "user_id":
		ctx.UserID = value
	case "topic_id":
		ctx.TopicID = value
	case "voice_name":
		ctx.VoiceName = value
	case "ai_speaks_first":
		return parseBool(key, value, &ctx.AISpeaksFirst)
	case "barge_in":
		return parseBool(key, value, &ctx.BargeIn)
	case "connect_timeout":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%s: invalid seconds %q", key, value)
		}
		ctx.ConnectTimeout = n
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	return nil
}

func (s *StorageConfig) set(key, value string) error {
	switch key {
	case "kind":
		switch value {
		case "local", "s3", "memory":
		default:
			return fmt.Errorf("storage.kind: want local, s3 or memory, got %q", value)
		}
		s.Kind = value
	case "dir":
		s.Dir = value
	case "bucket":
		s.Bucket = value
	case "prefix":
		s.Prefix = value
	case "region":
		s.Region = value
	case "endpoint":
		s.Endpoint = value
	case "public_base":
		s.PublicBase = value
	default:
		return fmt.Errorf("unknown key %q", "storage."+key)
	}
	return nil
}

func parseBool(key, value string, dst *bool) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: invalid bool %q", key, value)
	}
	*dst = b
	return nil
}

// MaskToken masks a token for display
func MaskToken(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
