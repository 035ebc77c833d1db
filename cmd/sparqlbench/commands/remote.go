package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sparqlbench/api/benchapi"
	brun "sparqlbench/pkg/client"
)

func remoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Control remote benchmark workers started with serve",
	}
	cmd.PersistentFlags().StringSlice("worker", nil, "Base URL of a worker (repeatable)")

	cmd.AddCommand(remoteHealth())
	cmd.AddCommand(remotePrepare())
	cmd.AddCommand(remoteRun())
	cmd.AddCommand(remoteCleanup())
	cmd.AddCommand(remoteStop())
	cmd.AddCommand(remoteResults())
	cmd.AddCommand(remoteMetrics())
	return cmd
}

func remoteHealth() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the workers being ready",
		RunE: remoteCommand(func(c *brun.Client, ctx context.Context, _ *cobra.Command) error {
			idle, err := c.Healthcheck(ctx)
			if err != nil {
				return err
			}

			if idle {
				fmt.Println("Workers are healthy and ready")
			} else {
				fmt.Println("Workers are healthy, but busy")
			}
			return nil
		}),
	}
}

func remotePrepare() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Validate the run configuration on all workers",
		RunE: remoteCommand(func(c *brun.Client, ctx context.Context, cmd *cobra.Command) error {
			cfg, err := readRunConfig(cmd, "")
			if err != nil {
				return err
			}
			if err := inlineQueryFiles(&cfg); err != nil {
				return err
			}
			if err := c.Prepare(ctx, cfg); err != nil {
				return err
			}
			fmt.Println("Started prepare task")

			if wait {
				fmt.Println("Waiting for prepare task to finish")
				return c.WaitIdle(ctx)
			}
			return nil
		}),
	}
	addRunFlags(cmd.Flags())
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the task to finish")
	return cmd
}

func remoteRun() *cobra.Command {
	var wait bool
	var mode string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a run on all workers",
		RunE: remoteCommand(func(c *brun.Client, ctx context.Context, cmd *cobra.Command) error {
			cfg, err := readRunConfig(cmd, "")
			if err != nil {
				return err
			}
			if mode != "" {
				cfg.Mode = benchapi.Mode(mode)
			}
			if err := inlineQueryFiles(&cfg); err != nil {
				return err
			}
			if err := c.Run(ctx, cfg); err != nil {
				return err
			}

			fmt.Println("Run started")
			if wait {
				return remoteReportResults(c, ctx, true, false)
			}
			return nil
		}),
	}
	addRunFlags(cmd.Flags())
	cmd.Flags().StringVar(&mode, "mode", "", "Run mode: benchmark, soak or stress")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the run to finish")
	return cmd
}

func remoteCleanup() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Reset the worker metrics",
		RunE: remoteCommand(func(c *brun.Client, ctx context.Context, _ *cobra.Command) error {
			if err := c.Cleanup(ctx); err != nil {
				return err
			}
			fmt.Println("Started cleanup task")
			return nil
		}),
	}
}

func remoteStop() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the active task on all workers",
		RunE: remoteCommand(func(c *brun.Client, ctx context.Context, _ *cobra.Command) error {
			return c.Stop(ctx)
		}),
	}
}

func remoteResults() *cobra.Command {
	var wait bool
	var allowErr bool

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Get the run results",
		RunE: remoteCommand(func(c *brun.Client, ctx context.Context, _ *cobra.Command) error {
			return remoteReportResults(c, ctx, wait, allowErr)
		}),
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the run to finish")
	cmd.Flags().BoolVar(&allowErr, "allow-error", false, "Allow failed runs in the results")
	return cmd
}

func remoteMetrics() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Get the current worker metrics",
		RunE: remoteCommand(func(c *brun.Client, ctx context.Context, _ *cobra.Command) error {
			result, err := c.Metrics(ctx)
			if err != nil {
				return fmt.Errorf("get metrics: %w", err)
			}

			for i, workerMetrics := range result {
				fmt.Printf("Worker %d\n", i)
				reportMetricFamilies(os.Stdout, workerMetrics)
			}
			return nil
		}),
	}
}

func remoteReportResults(c *brun.Client, ctx context.Context, wait bool, allowErr bool) error {
	result, err := c.Results(ctx, wait, allowErr)
	if err != nil {
		return err
	}

	tmp, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", tmp)
	return nil
}

type runE func(*cobra.Command, []string) error

func remoteCommand(fn func(*brun.Client, context.Context, *cobra.Command) error) runE {
	return func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlag("worker", cmd.Flags().Lookup("worker")); err != nil {
			return err
		}

		c, err := brun.New(nil, viper.GetStringSlice("worker")...)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return fn(c, ctx, cmd)
	}
}
