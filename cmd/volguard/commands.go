package main

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/volguard/pkg/app"
	"github.com/lk2023060901/volguard/pkg/erasure"
	"github.com/lk2023060901/volguard/pkg/volumeset"
	"github.com/spf13/cobra"
)

const targetUsage = "<payload-or-volume>"

func newStampCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stamp " + targetUsage,
		Short: "Append a checksum trailer to every volume of the set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd, g, args[0])
			if err != nil {
				return err
			}
			return env.app.Run(cmd.Context(), func(ctx context.Context) error {
				a, err := env.analyzer(env.cfg)
				if err != nil {
					return err
				}
				rep, err := runPass(ctx, a, volumeset.PassStamp)
				if err != nil {
					return err
				}
				renderReport(env.out, rep)
				return exitFor(rep)
			})
		},
	}
	addSetFlags(cmd.Flags())
	return cmd
}

func newAnalyzeCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze " + targetUsage,
		Short: "Verify every volume and print the reconstruction plan",
		Long: `analyze verifies the checksum trailer of every volume. Missing or corrupt
data volumes are substituted by verified parity volumes in ascending order.
Exit status is 2 when the set cannot be reconstructed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd, g, args[0])
			if err != nil {
				return err
			}
			return env.app.Run(cmd.Context(), func(ctx context.Context) error {
				a, err := env.analyzer(env.cfg)
				if err != nil {
					return err
				}
				rep, err := runPass(ctx, a, volumeset.PassAnalyze)
				if err != nil {
					return err
				}
				renderReport(env.out, rep)
				return exitFor(rep)
			})
		},
	}
	addSetFlags(cmd.Flags())
	cmd.Flags().Bool("fast", false, "only check that volumes exist, skip checksum verification")
	return cmd
}

func newRepairCommand(g *globalFlags) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "repair " + targetUsage,
		Short: "Analyze the set, rebuild damaged volumes and verify the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd, g, args[0])
			if err != nil {
				return err
			}
			cfg := env.cfg
			cfg.FastMode = false

			return env.app.Run(cmd.Context(), func(ctx context.Context) error {
				return repair(ctx, env, cfg, concurrency)
			})
		},
	}
	addSetFlags(cmd.Flags())
	cmd.Flags().IntVar(&concurrency, "concurrency", erasure.DefaultConcurrency, "volumes read and written in parallel")
	return cmd
}

// repair 分析、重建、再次分析
func repair(ctx context.Context, env *environment, cfg volumeset.Config, concurrency int) error {
	a, err := env.analyzer(cfg)
	if err != nil {
		return err
	}

	rep, err := runPass(ctx, a, volumeset.PassAnalyze)
	if err != nil {
		return err
	}
	renderReport(env.out, rep)
	if rep.Status != volumeset.StatusSucceeded {
		return exitFor(rep)
	}
	if rep.Stats.MissingData+rep.Stats.MissingParity == 0 {
		fmt.Fprintln(env.out, "Nothing to repair.")
		return nil
	}

	rebuilder := erasure.NewRebuilder(
		erasure.WithConcurrency(concurrency),
		erasure.WithLogger(env.log),
	)
	res, err := rebuilder.Rebuild(ctx, rep)
	if res != nil && len(res.Rebuilt) > 0 {
		fmt.Fprintf(env.out, "Rebuilt volumes: %v\n", res.Rebuilt)
	}
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}

	check, err := runPass(ctx, a, volumeset.PassAnalyze)
	if err != nil {
		return err
	}
	renderReport(env.out, check)
	if err := exitFor(check); err != nil {
		return err
	}
	if check.Stats.MissingData+check.Stats.MissingParity > 0 {
		return &exitError{code: exitFailure, err: errors.Newf("%d volumes still damaged after repair",
			check.Stats.MissingData+check.Stats.MissingParity)}
	}
	return nil
}

// runPass 启动扫描并等待结束；ctx 取消时通过 Cancel 中止扫描
func runPass(ctx context.Context, a *volumeset.Analyzer, kind volumeset.PassKind) (*volumeset.Report, error) {
	var (
		done <-chan *volumeset.Report
		err  error
	)
	if kind == volumeset.PassStamp {
		done, err = a.StartStamp(ctx)
	} else {
		done, err = a.StartAnalyze(ctx)
	}
	if err != nil {
		return nil, err
	}

	select {
	case rep := <-done:
		return rep, nil
	case <-ctx.Done():
		a.Cancel()
		return <-done, nil
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), app.GetInfo().String())
		},
	}
}
