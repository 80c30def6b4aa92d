package shipboard

import (
	"context"
	"fmt"

	"github.com/run-bigpig/clemm/pkg/tools"
)

// Weapon defaults used when the command leaves an argument out
const (
	DefaultTarget      = "unknown target"
	DefaultPowerLevel  = "5"
	DefaultWarheadType = "standard"
)

// FireLaser narrates a laser shot. Nothing is actually fired.
func FireLaser(target, powerLevel string) string {
	return fmt.Sprintf("Laser fired at %s with power level %s. Direct hit confirmed.", target, powerLevel)
}

// LaunchMissile narrates a missile launch. Nothing is actually launched.
func LaunchMissile(target, warheadType string) string {
	return fmt.Sprintf("Missile with %s warhead launched at %s. Impact in 3... 2... 1... Target neutralized.", warheadType, target)
}

func fireLaserSpec() tools.Spec {
	return tools.Spec{
		Name:        "fire_laser",
		Description: "Fires the laser weapon.",
		Parameters:  []string{"target", "power_level"},
		Func: func(_ context.Context, _ tools.AgentContext, args tools.Args) (string, error) {
			return FireLaser(args.Get("target", DefaultTarget), args.Get("power_level", DefaultPowerLevel)), nil
		},
	}
}

func launchMissileSpec() tools.Spec {
	return tools.Spec{
		Name:        "launch_missile",
		Description: "Launches a missile.",
		Parameters:  []string{"target", "warhead_type"},
		Func: func(_ context.Context, _ tools.AgentContext, args tools.Args) (string, error) {
			return LaunchMissile(args.Get("target", DefaultTarget), args.Get("warhead_type", DefaultWarheadType)), nil
		},
	}
}
