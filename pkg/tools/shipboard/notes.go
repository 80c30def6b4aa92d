package shipboard

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/run-bigpig/clemm/pkg/tools"
)

// Opener shows a file to the user
type Opener interface {
	Open(ctx context.Context, path string) error
}

// OpenerFunc adapts a function to Opener
type OpenerFunc func(ctx context.Context, path string) error

// Open calls f
func (f OpenerFunc) Open(ctx context.Context, path string) error {
	return f(ctx, path)
}

// SystemOpener opens files with the platform's default viewer
func SystemOpener() Opener {
	return OpenerFunc(func(ctx context.Context, path string) error {
		name, args := OpenCommand(runtime.GOOS, path)
		return exec.CommandContext(ctx, name, args...).Run()
	})
}

// OpenCommand returns the viewer command for goos
func OpenCommand(goos, path string) (string, []string) {
	switch goos {
	case "windows":
		return "cmd", []string{"/c", "start", "", path}
	case "darwin":
		return "open", []string{path}
	default:
		return "xdg-open", []string{path}
	}
}

func openNotesSpec(cfg *Config) tools.Spec {
	logName := filepath.Base(cfg.NotesPath)
	return tools.Spec{
		Name:        "open_notes",
		Description: fmt.Sprintf("Opens the %s file for viewing.", logName),
		Func: func(ctx context.Context, _ tools.AgentContext, _ tools.Args) (string, error) {
			if _, err := os.Stat(cfg.NotesPath); errors.Is(err, fs.ErrNotExist) {
				cfg.Logger.Error(ctx, "Log file not found", map[string]interface{}{"path": cfg.NotesPath})
				return fmt.Sprintf("Error: %s file not found.", logName), nil
			}

			if err := cfg.Opener.Open(ctx, cfg.NotesPath); err != nil {
				if errors.Is(err, exec.ErrNotFound) {
					return fmt.Sprintf("Error: %s file not found.", logName), nil
				}
				cfg.Logger.Error(ctx, "Unexpected error opening log file", map[string]interface{}{
					"path":  cfg.NotesPath,
					"error": err.Error(),
				})
				return fmt.Sprintf("Error opening %s: %v", logName, err), nil
			}

			return fmt.Sprintf("Successfully opened %s.", logName), nil
		},
	}
}
