// Package llm holds what every model backend shares: sampling defaults and
// the ChatML prompt layout used by raw-completion servers.
package llm

import "github.com/run-bigpig/clemm/pkg/interfaces"

// Crew sampling defaults
const (
	DefaultMaxTokens         = 512
	DefaultTemperature       = 0.8
	DefaultTopK              = 50
	DefaultTopP              = 0.95
	DefaultRepetitionPenalty = 1.15
)

// DefaultGenerateParams returns default generation parameters
func DefaultGenerateParams() *interfaces.GenerateParams {
	return &interfaces.GenerateParams{
		MaxTokens:     DefaultMaxTokens,
		Temperature:   DefaultTemperature,
		TopK:          DefaultTopK,
		TopP:          DefaultTopP,
		RepeatPenalty: DefaultRepetitionPenalty,
	}
}

// StopSequences returns params' stop sequences followed by the ChatML
// end-of-turn marker when it is not already present.
func StopSequences(params *interfaces.GenerateParams) []string {
	stops := []string{}
	if params != nil {
		stops = append(stops, params.StopSequences...)
	}
	for _, s := range stops {
		if s == EndOfTurn {
			return stops
		}
	}
	return append(stops, EndOfTurn)
}
