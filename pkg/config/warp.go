package config

import (
	"errors"
	"os"
	"strings"
)

// WarpKeyEnv names the variable holding the warp drive key
const WarpKeyEnv = "WARP_DRIVE_KEY"

// ErrWarpKeyInvalid is returned when the warp drive key is missing or too short
var ErrWarpKeyInvalid = errors.New("invalid or missing warp drive key")

// CheckWarpKey verifies the warp drive key before the core systems start.
// The key must be longer than 8 characters.
func CheckWarpKey() error {
	if len(strings.TrimSpace(os.Getenv(WarpKeyEnv))) > 8 {
		return nil
	}
	return ErrWarpKeyInvalid
}
