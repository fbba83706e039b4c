package commands

import (
	"fmt"

	"github.com/benvon/frog-planner/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// effectiveConfig is what `plannerctl config` prints. Connection URLs are
// left out because they carry credentials.
type effectiveConfig struct {
	Planner          config.Planner `yaml:"planner" json:"planner"`
	RollbackSchedule string         `yaml:"rollback_schedule" json:"rollback_schedule"`
	ScheduleLockTTL  string         `yaml:"schedule_lock_ttl" json:"schedule_lock_ttl"`
	RateLimit        string         `yaml:"rate_limit" json:"rate_limit"`
	AsyncScheduling  bool           `yaml:"async_scheduling" json:"async_scheduling"`
}

func newConfigCmd(deps Deps, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate and print the effective configuration",
		Long:  "Loads configuration the same way the server does, environment over PLANNER_CONFIG_FILE over defaults, and prints it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if _, err := cfg.Planner.ToSettings(); err != nil {
				return fmt.Errorf("invalid planner settings: %w", err)
			}
			eff := effectiveConfig{
				Planner:          cfg.Planner,
				RollbackSchedule: cfg.RollbackSchedule,
				ScheduleLockTTL:  cfg.ScheduleLockTTL.String(),
				RateLimit:        cfg.RateLimit,
				AsyncScheduling:  cfg.RabbitMQURL != "",
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), eff)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(eff); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return enc.Close()
		},
	}
}
