package agent

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/run-bigpig/clemm/pkg/interfaces"
	"github.com/run-bigpig/clemm/pkg/llm"
	"github.com/run-bigpig/clemm/pkg/prompts"
)

// CrewConfig defines one crew member, usually loaded from YAML.
//
// The system prompt comes from the first of Persona (a built-in prompt),
// SystemPrompt, or Role/Goal/Backstory that is set. Prompts may reference
// {{.ToolDescriptions}} and any key in Variables.
type CrewConfig struct {
	Key          string            `yaml:"key"`
	Name         string            `yaml:"name,omitempty"`
	Persona      string            `yaml:"persona,omitempty"`
	SystemPrompt string            `yaml:"system_prompt,omitempty"`
	Role         string            `yaml:"role,omitempty"`
	Goal         string            `yaml:"goal,omitempty"`
	Backstory    string            `yaml:"backstory,omitempty"`
	Variables    map[string]string `yaml:"variables,omitempty"`

	MaxTokens         int      `yaml:"max_tokens,omitempty"`
	Temperature       *float64 `yaml:"temperature,omitempty"`
	TopK              int      `yaml:"top_k,omitempty"`
	TopP              float64  `yaml:"top_p,omitempty"`
	RepetitionPenalty float64  `yaml:"repetition_penalty,omitempty"`
}

// CrewConfigs is an ordered crew definition. The first entry is the
// default crew member.
type CrewConfigs []CrewConfig

// GenerateParams returns the sampling parameters, falling back to the
// crew defaults for anything unset. A zero temperature is kept when it
// was set explicitly.
func (c CrewConfig) GenerateParams() interfaces.GenerateParams {
	params := *llm.DefaultGenerateParams()
	if c.MaxTokens > 0 {
		params.MaxTokens = c.MaxTokens
	}
	if c.Temperature != nil {
		params.Temperature = *c.Temperature
	}
	if c.TopK > 0 {
		params.TopK = c.TopK
	}
	if c.TopP > 0 {
		params.TopP = c.TopP
	}
	if c.RepetitionPenalty > 0 {
		params.RepeatPenalty = c.RepetitionPenalty
	}
	return params
}

// SystemPromptFor renders the system prompt with the given tool descriptions
func (c CrewConfig) SystemPromptFor(toolDescriptions []string) (string, error) {
	data := map[string]interface{}{
		prompts.ToolDescriptionsKey: strings.Join(toolDescriptions, "\n"),
	}
	for k, v := range c.Variables {
		data[k] = v
	}

	switch {
	case c.Persona != "":
		tmpl, ok := prompts.Persona(c.Persona)
		if !ok {
			return "", fmt.Errorf("unknown persona %q (available: %s)", c.Persona, strings.Join(prompts.PersonaNames(), ", "))
		}
		return tmpl.Render(data)
	case c.SystemPrompt != "":
		return prompts.RenderString(c.Key, c.SystemPrompt, data)
	case c.Role != "" || c.Goal != "" || c.Backstory != "":
		return FormatSystemPromptFromConfig(c, c.Variables), nil
	default:
		return "", fmt.Errorf("no persona, system_prompt or role given")
	}
}

// Validate reports missing keys and duplicates
func (c CrewConfigs) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("no crew members defined")
	}
	seen := make(map[string]struct{}, len(c))
	for i, cfg := range c {
		if cfg.Key == "" {
			return fmt.Errorf("crew entry %d has no key", i)
		}
		if _, dup := seen[cfg.Key]; dup {
			return fmt.Errorf("crew %s is defined twice", cfg.Key)
		}
		seen[cfg.Key] = struct{}{}
	}
	return nil
}

// merge adds or replaces entries by key, keeping the original position
func (c CrewConfigs) merge(other CrewConfigs) CrewConfigs {
	index := make(map[string]int, len(c))
	for i, cfg := range c {
		index[cfg.Key] = i
	}
	for _, cfg := range other {
		if i, ok := index[cfg.Key]; ok {
			c[i] = cfg
			continue
		}
		index[cfg.Key] = len(c)
		c = append(c, cfg)
	}
	return c
}

// DefaultCrewConfigs returns the ship's standard crew
func DefaultCrewConfigs() CrewConfigs {
	return CrewConfigs{
		{Key: "captain_raven", Name: "Raven", Persona: "raven", MaxTokens: 1024, Temperature: float64Ptr(0.8)},
		{Key: "code_expert", Name: "Code Expert", Persona: "code_expert", MaxTokens: 512, Temperature: float64Ptr(0.1)},
		{Key: DefaultDelegate, Name: DefaultDelegate, Persona: "tool_crew", MaxTokens: 150, Temperature: float64Ptr(0.0)},
		{Key: "creative_writer", Name: "Creative Writer", Persona: "creative_writer", MaxTokens: 1024, Temperature: float64Ptr(0.9)},
	}
}

func float64Ptr(v float64) *float64 {
	return &v
}

// LoadCrewConfigsFromFile loads crew definitions from a YAML file
func LoadCrewConfigsFromFile(filePath string) (CrewConfigs, error) {
	if !isValidFilePath(filePath) {
		return nil, fmt.Errorf("invalid file path")
	}

	data, err := os.ReadFile(filePath) // #nosec G304 - Path is validated with isValidFilePath() before use
	if err != nil {
		return nil, fmt.Errorf("failed to read crew config file: %w", err)
	}

	var configs CrewConfigs
	if err := yaml.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal crew configs: %w", err)
	}

	return configs, nil
}

// isValidFilePath checks if a file path is valid and safe
func isValidFilePath(filePath string) bool {
	if filePath == "" {
		return false
	}

	cleanPath := filepath.Clean(filePath)

	// Check for path traversal attempts
	if strings.Contains(cleanPath, "..") {
		return false
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return false
	}

	if strings.HasPrefix(absPath, "/proc") ||
		strings.HasPrefix(absPath, "/sys") ||
		strings.HasPrefix(absPath, "/dev") {
		return false
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return false
	}

	// Ensure it's a regular file, not a directory or symlink
	return fileInfo.Mode().IsRegular()
}

// IsValidFilePath reports whether filePath names a regular file outside
// the kernel pseudo filesystems, reached without "..".
func IsValidFilePath(filePath string) bool {
	return isValidFilePath(filePath)
}

// LoadCrewConfigsFromDir loads every YAML file in a directory, in name
// order. A later file replaces crew members with the same key.
func LoadCrewConfigsFromDir(dirPath string) (CrewConfigs, error) {
	dirInfo, err := os.Stat(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}

	if !dirInfo.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dirPath)
	}

	files, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read crew config directory: %w", err)
	}

	var configs CrewConfigs
	for _, file := range files {
		if file.IsDir() || (!strings.HasSuffix(file.Name(), ".yaml") && !strings.HasSuffix(file.Name(), ".yml")) {
			continue
		}

		filePath := filepath.Join(dirPath, file.Name())

		// Skip invalid files but don't fail completely
		if !isValidFilePath(filePath) {
			continue
		}

		fileConfigs, err := LoadCrewConfigsFromFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load crew configs from %s: %w", filePath, err)
		}

		configs = configs.merge(fileConfigs)
	}

	return configs, nil
}

// FormatSystemPromptFromConfig formats a system prompt from a role, goal
// and backstory, replacing {name} placeholders with variables.
func FormatSystemPromptFromConfig(config CrewConfig, variables map[string]string) string {
	role := config.Role
	goal := config.Goal
	backstory := config.Backstory

	for key, value := range variables {
		placeholder := fmt.Sprintf("{%s}", key)
		role = strings.ReplaceAll(role, placeholder, value)
		goal = strings.ReplaceAll(goal, placeholder, value)
		backstory = strings.ReplaceAll(backstory, placeholder, value)
	}

	return fmt.Sprintf("# Role\n%s\n\n# Goal\n%s\n\n# Backstory\n%s", role, goal, backstory)
}

// SaveCrewConfigs writes crew definitions as YAML
func SaveCrewConfigs(configs CrewConfigs, w io.Writer) error {
	data, err := yaml.Marshal(configs)
	if err != nil {
		return fmt.Errorf("failed to marshal crew configs: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write crew configs: %w", err)
	}

	return nil
}
