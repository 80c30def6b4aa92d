// Package shipboard provides the Clemm's built-in tools: the captain's log,
// the output file cabinet and the (simulated) weapons.
package shipboard

import (
	"github.com/run-bigpig/clemm/pkg/logging"
	"github.com/run-bigpig/clemm/pkg/tools"
)

const (
	// DefaultOutputDir is where create_file and status_log work
	DefaultOutputDir = "output_files"

	// DefaultNotesPath is the captain's log opened by open_notes
	DefaultNotesPath = "Captains_Log.txt"
)

// Config holds the filesystem locations and collaborators the tools use
type Config struct {
	OutputDir string
	NotesPath string
	Opener    Opener
	Logger    logging.Logger
}

// Option configures the shipboard tools
type Option func(*Config)

// WithOutputDir sets the directory used by create_file and status_log
func WithOutputDir(dir string) Option {
	return func(c *Config) {
		c.OutputDir = dir
	}
}

// WithNotesPath sets the log file opened by open_notes
func WithNotesPath(path string) Option {
	return func(c *Config) {
		c.NotesPath = path
	}
}

// WithOpener replaces the platform file viewer
func WithOpener(opener Opener) Option {
	return func(c *Config) {
		c.Opener = opener
	}
}

// WithLogger sets the logger used by the tools
func WithLogger(logger logging.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

func newConfig(options ...Option) *Config {
	cfg := &Config{
		OutputDir: DefaultOutputDir,
		NotesPath: DefaultNotesPath,
		Opener:    SystemOpener(),
		Logger:    logging.NewNop(),
	}
	for _, option := range options {
		option(cfg)
	}
	return cfg
}

// Specs returns the shipboard tools in their registration order
func Specs(options ...Option) []tools.Spec {
	cfg := newConfig(options...)
	return []tools.Spec{
		openNotesSpec(cfg),
		createFileSpec(cfg),
		fireLaserSpec(),
		launchMissileSpec(),
		statusLogSpec(cfg),
	}
}

// Register adds every shipboard tool to the registry
func Register(registry *tools.Registry, options ...Option) error {
	for _, spec := range Specs(options...) {
		if err := registry.Register(spec); err != nil {
			return err
		}
	}
	return nil
}
