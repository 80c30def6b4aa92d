package shipboard

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/run-bigpig/clemm/pkg/tools"
)

const (
	defaultFilename = "new_file.txt"
	defaultContent  = "This is a new file created by Clemm."
)

// resolve joins filename onto the output directory, refusing names that escape it
func resolve(dir, filename string) (string, error) {
	if !filepath.IsLocal(filename) {
		return "", fmt.Errorf("%q is outside the output directory", filename)
	}
	return filepath.Join(dir, filename), nil
}

func createFileSpec(cfg *Config) tools.Spec {
	return tools.Spec{
		Name:        "create_file",
		Description: "Creates a new text file. You can specify the filename and content.",
		Parameters:  []string{"filename", "content"},
		Func: func(ctx context.Context, _ tools.AgentContext, args tools.Args) (string, error) {
			path, err := resolve(cfg.OutputDir, args.Get("filename", defaultFilename))
			if err != nil {
				return fmt.Sprintf("Error creating file: %v", err), nil
			}

			if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
				cfg.Logger.Error(ctx, "Error creating output directory", map[string]interface{}{"error": err.Error()})
				return fmt.Sprintf("Error creating file: %v", err), nil
			}
			if err := os.WriteFile(path, []byte(args.Get("content", defaultContent)), 0o644); err != nil {
				cfg.Logger.Error(ctx, "Error creating file", map[string]interface{}{"path": path, "error": err.Error()})
				return fmt.Sprintf("Error creating file: %v", err), nil
			}

			return fmt.Sprintf("Successfully created file: %s", path), nil
		},
	}
}

func statusLogSpec(cfg *Config) tools.Spec {
	return tools.Spec{
		Name:        "status_log",
		Description: "Reads the content of a text file from the output directory.",
		Parameters:  []string{"filename"},
		Func: func(_ context.Context, _ tools.AgentContext, args tools.Args) (string, error) {
			filename, ok := args["filename"]
			if !ok {
				return "", errors.New("missing required argument 'filename'")
			}

			path, err := resolve(cfg.OutputDir, filename)
			if err != nil {
				return fmt.Sprintf("Error reading file: %v", err), nil
			}

			content, err := os.ReadFile(path)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				return fmt.Sprintf("Error: File not found at %s", path), nil
			case err != nil:
				return fmt.Sprintf("Error reading file: %v", err), nil
			}

			return fmt.Sprintf("Successfully read file: %s\nContent:\n%s", path, content), nil
		},
	}
}
