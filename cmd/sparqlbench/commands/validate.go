package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the run configuration and the mix without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			cfg, err := readRunConfig(cmd, "")
			if err != nil {
				return err
			}
			s, err := newRunSetup(cfg, log)
			if err != nil {
				return err
			}

			if err := s.runner.Validate(context.Background(), cfg.Mode, s.opts, s.mix); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			fmt.Printf("Configuration is valid: mix %s with %d operations\n", s.mix.Name(), s.mix.Size())
			for id := range s.mix.Size() {
				op := s.mix.Op(id)
				fmt.Printf("  %d  %-8s %s\n", id, op.Type(), op.Name())
			}
			return nil
		},
	}
	addRunFlags(cmd.Flags())
	return cmd
}
