package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/engine"
	"github.com/xkilldash9x/pagepilot/internal/observability"
)

// errActionsFailed makes the process exit non-zero after an unsuccessful
// outcome was printed.
var errActionsFailed = errors.New("action batch failed")

func newRunCmd(a *app) *cobra.Command {
	var (
		flags       extractFlags
		actionsFile string
	)

	runCmd := &cobra.Command{
		Use:   "run --actions actions.json [file.html|url]",
		Short: "Index a page, then execute a batch of actions against it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger().Named("cli")

			defer a.closeDrivers(logger)

			batch, err := readActions(cmd.InOrStdin(), actionsFile)
			if err != nil {
				return err
			}

			driver, err := a.drivers.Open(ctx, args[0])
			if err != nil {
				return err
			}
			eng := engine.New(driver, a.cfg.Engine(), logger)
			defer func() { _ = eng.Close(cmd.Context()) }()

			// Index targets refer to this pass.
			if _, err := eng.ExtractPageElements(ctx, flags.request()); err != nil {
				return fmt.Errorf("index %s: %w", args[0], err)
			}

			out := eng.ExecuteActions(ctx, batch)
			if err := schemas.Encode(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if !out.Success {
				logger.Warn("Action batch failed.",
					zap.String("action_id", out.ActionID),
					zap.String("kind", out.Kind),
					zap.Int("position", out.Position),
				)
				return errActionsFailed
			}
			return nil
		},
	}
	flags.register(runCmd)
	runCmd.Flags().StringVarP(&actionsFile, "actions", "a", "", "JSON file with the action batch (- reads stdin)")
	_ = runCmd.MarkFlagRequired("actions")
	return runCmd
}

func readActions(stdin io.Reader, path string) ([]schemas.ActionDescriptor, error) {
	if path == "-" {
		return schemas.DecodeActions(stdin)
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open actions file: %w", err)
	}
	defer f.Close()
	return schemas.DecodeActions(f)
}
