package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	ConfigFile string   `toml:"-" yaml:"-"`
	Args       []string `toml:"-" yaml:"-"` // positional arguments after the flags

	State     string `toml:"state" yaml:"state"`
	OutputDir string `toml:"output_dir" yaml:"output_dir"`
	LogLevel  string `toml:"log_level" yaml:"log_level"`
	LogFormat string `toml:"log_format" yaml:"log_format"`

	Profile    ProfileConfig     `toml:"profile" yaml:"profile"`
	LLM        LLMConfig         `toml:"llm" yaml:"llm"`
	Render     RenderConfig      `toml:"render" yaml:"render"`
	Pipeline   PipelineConfig    `toml:"pipeline" yaml:"pipeline"`
	Server     ServerConfig      `toml:"server" yaml:"server"`
	Scrape     ScrapeConfig      `toml:"scrape" yaml:"scrape"`
	Sources    []SourceConfig    `toml:"sources" yaml:"sources"`
	Submitters []SubmitterConfig `toml:"submitters" yaml:"submitters"`
}

// ProfileConfig points at the candidate's documents.
type ProfileConfig struct {
	Resume string `toml:"resume" yaml:"resume"`
	CV     string `toml:"cv" yaml:"cv"`
}

// LLMConfig configures the chat completions endpoint.
type LLMConfig struct {
	BaseURL     string        `toml:"base_url" yaml:"base_url"`
	APIKey      string        `toml:"api_key" yaml:"api_key"`
	Model       string        `toml:"model" yaml:"model"`
	Temperature float32       `toml:"temperature" yaml:"temperature"`
	Timeout     time.Duration `toml:"timeout" yaml:"timeout"`
	Rules       []string      `toml:"rules" yaml:"rules"`
}

// RenderConfig configures PDF layout.
type RenderConfig struct {
	Stylesheet string `toml:"stylesheet" yaml:"stylesheet"`
	WorkDir    string `toml:"work_dir" yaml:"work_dir"`
	Command    string `toml:"command" yaml:"command"`
	PdfInfo    string `toml:"pdfinfo" yaml:"pdfinfo"`
}

// PipelineConfig tunes the worker.
type PipelineConfig struct {
	Interval        time.Duration `toml:"interval" yaml:"interval"`
	Workers         int           `toml:"workers" yaml:"workers"`
	MaxIterations   int           `toml:"max_iterations" yaml:"max_iterations"`
	SubmitOversized bool          `toml:"submit_oversized" yaml:"submit_oversized"`
}

// ServerConfig configures the HTTP adapter. Port 0 disables it.
type ServerConfig struct {
	Port   int    `toml:"port" yaml:"port"`
	Secret string `toml:"secret" yaml:"secret"`
}

// ScrapeConfig configures description scraping and listing fetches.
type ScrapeConfig struct {
	DescriptionClass string        `toml:"description_class" yaml:"description_class"`
	UserAgent        string        `toml:"user_agent" yaml:"user_agent"`
	Timeout          time.Duration `toml:"timeout" yaml:"timeout"`
}

// SourceConfig is one job listing source.
type SourceConfig struct {
	Name      string   `toml:"name" yaml:"name"`
	URLs      []string `toml:"urls" yaml:"urls"`
	LinkClass string   `toml:"link_class" yaml:"link_class"`
}

// SubmitterConfig describes an external submission command.
type SubmitterConfig struct {
	Name    string   `toml:"name" yaml:"name"`
	Pattern string   `toml:"pattern" yaml:"pattern"`
	Command string   `toml:"command" yaml:"command"`
	Args    []string `toml:"args" yaml:"args"`
	Dir     string   `toml:"dir" yaml:"dir"`
	Isolate *bool    `toml:"isolate" yaml:"isolate"`
}

func xdgDir(env, fallback string) string {
	dir := os.Getenv(env)
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, fallback)
	}
	return filepath.Join(dir, "autoapply")
}

// DefaultStatePath returns the default job state database using XDG_DATA_HOME.
func DefaultStatePath() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")), "jobs.db")
}

// DefaultOutputDir returns where edited résumés and PDFs are written.
func DefaultOutputDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")), "applications")
}

// DefaultWorkDir returns the scratch directory for renders using XDG_CACHE_HOME.
func DefaultWorkDir() string {
	return filepath.Join(xdgDir("XDG_CACHE_HOME", ".cache"), "render")
}

// DefaultConfigPath returns the config file looked up when -config is not given.
func DefaultConfigPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "config.toml")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}

// Defaults returns the configuration used before any file, flag or env is applied.
func Defaults() *Config {
	return &Config{
		State:     DefaultStatePath(),
		OutputDir: DefaultOutputDir(),
		LogLevel:  "info",
		LogFormat: "text",
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		Render: RenderConfig{
			WorkDir: DefaultWorkDir(),
			Command: "weasyprint",
			PdfInfo: "pdfinfo",
		},
		Pipeline: PipelineConfig{
			Interval:      30 * time.Minute,
			Workers:       2,
			MaxIterations: 10,
		},
		Server: ServerConfig{Port: 8080},
		Scrape: ScrapeConfig{
			DescriptionClass: "job-description__overview",
			UserAgent:        "autoapply/1.0",
			Timeout:          30 * time.Second,
		},
	}
}

// Load builds Config for a command from args and the environment.
// Precedence: defaults < config file < flags given on the command line < env.
func Load(name string, args []string) (*Config, error) {
	cfg := Defaults()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configFile := fs.String("config", "", "Config file (.toml, .yaml or .yml)")
	state := fs.String("state", cfg.State, "State store: path, json://path, sqlite://path or postgres:// DSN")
	port := fs.Int("port", cfg.Server.Port, "HTTP server port (0 disables)")
	outputDir := fs.String("out", cfg.OutputDir, "Output directory for edited résumés and PDFs")
	logLevel := fs.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", cfg.LogFormat, "Log format: text or json")
	interval := fs.Duration("interval", cfg.Pipeline.Interval, "Time between pipeline passes")
	workers := fs.Int("workers", cfg.Pipeline.Workers, "Jobs processed concurrently")
	maxIter := fs.Int("max-iterations", cfg.Pipeline.MaxIterations, "Shrink iterations per résumé")
	oversized := fs.Bool("submit-oversized", cfg.Pipeline.SubmitOversized, "Submit résumés that did not fit on one page")
	resume := fs.String("resume", "", "Base résumé (markdown)")
	cv := fs.String("cv", "", "Reference CV (markdown)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// config file: flag, then env, then the default location if it exists
	path := *configFile
	if path == "" {
		path = os.Getenv("AUTOAPPLY_CONFIG")
	}
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if err := cfg.loadFile(ExpandPath(path), explicit); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "state":
			cfg.State = *state
		case "port":
			cfg.Server.Port = *port
		case "out":
			cfg.OutputDir = *outputDir
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "interval":
			cfg.Pipeline.Interval = *interval
		case "workers":
			cfg.Pipeline.Workers = *workers
		case "max-iterations":
			cfg.Pipeline.MaxIterations = *maxIter
		case "submit-oversized":
			cfg.Pipeline.SubmitOversized = *oversized
		case "resume":
			cfg.Profile.Resume = *resume
		case "cv":
			cfg.Profile.CV = *cv
		}
	})

	cfg.applyEnv()
	cfg.Args = fs.Args()

	// artifact paths are handed to submitters that may run in another directory
	outputAbs, err := filepath.Abs(ExpandPath(cfg.OutputDir))
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	cfg.OutputDir = outputAbs
	cfg.Profile.Resume = ExpandPath(cfg.Profile.Resume)
	cfg.Profile.CV = ExpandPath(cfg.Profile.CV)
	cfg.Render.Stylesheet = ExpandPath(cfg.Render.Stylesheet)
	cfg.Render.WorkDir = ExpandPath(cfg.Render.WorkDir)
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		_, err = toml.Decode(string(data), c)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.ConfigFile = path
	return nil
}

// Env overrides
func (c *Config) applyEnv() {
	if v := os.Getenv("AUTOAPPLY_STATE"); v != "" {
		c.State = v
	}
	if v := os.Getenv("AUTOAPPLY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("AUTOAPPLY_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("AUTOAPPLY_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("AUTOAPPLY_WEBHOOK_SECRET"); v != "" {
		c.Server.Secret = v
	}
	if v := os.Getenv("AUTOAPPLY_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("AUTOAPPLY_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("AUTOAPPLY_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
}

// Validate checks the settings the pipeline commands need.
func (c *Config) Validate() error {
	var errs []error
	if c.Profile.Resume == "" {
		errs = append(errs, errors.New("profile.resume is required"))
	}
	if c.Pipeline.Workers < 1 {
		errs = append(errs, errors.New("pipeline.workers must be at least 1"))
	}
	if c.Pipeline.MaxIterations < 0 {
		errs = append(errs, errors.New("pipeline.max_iterations must not be negative"))
	}
	if c.Pipeline.Interval <= 0 {
		errs = append(errs, errors.New("pipeline.interval must be positive"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	for i, s := range c.Sources {
		if s.Name == "" || len(s.URLs) == 0 || s.LinkClass == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: name, urls and link_class are required", i))
		}
	}
	for i, s := range c.Submitters {
		if s.Name == "" || s.Command == "" {
			errs = append(errs, fmt.Errorf("submitters[%d]: name and command are required", i))
		}
		if _, err := regexp.Compile(s.Pattern); err != nil {
			errs = append(errs, fmt.Errorf("submitters[%d]: invalid pattern %q: %w", i, s.Pattern, err))
		}
	}
	return errors.Join(errs...)
}
