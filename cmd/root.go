// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/config"
	"github.com/xkilldash9x/pagepilot/internal/observability"
)

// app is the state shared by the subcommands of one root command.
type app struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
	drivers *driverFactory
}

// NewRootCommand builds a fresh command tree. Each call returns independent
// flag state.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:           "pagepilot",
		Short:         "PagePilot indexes web pages and runs action batches against them.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.initializeConfig(cmd); err != nil {
				return err
			}
			observability.InitializeLogger(a.cfg.Logger())
			observability.GetLogger().Debug("Starting PagePilot", zap.String("version", Version))
			a.drivers = newDriverFactory(a.cfg.Browser(), observability.GetLogger())
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./pagepilot.yaml)")
	rootCmd.PersistentFlags().Bool("headless", true, "run Chrome without a window for http(s) targets")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newIndexCmd(a), newRunCmd(a), newVersionCmd())
	return rootCmd
}

// initializeConfig reads the config file, PAGEPILOT_* variables and flag
// overrides, in increasing order of precedence.
func (a *app) initializeConfig(cmd *cobra.Command) error {
	config.SetDefaults(a.v)
	if err := config.ReadFile(a.v, a.cfgFile); err != nil {
		return err
	}
	config.BindEnv(a.v)

	if f := cmd.Root().PersistentFlags().Lookup("headless"); f != nil {
		if err := a.v.BindPFlag("browser.headless", f); err != nil {
			return err
		}
	}

	cfg, err := config.NewConfigFromViper(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// Execute runs the command line against ctx.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, errActionsFailed) {
		// The outcome has already been printed.
		return err
	}
	if errors.Is(err, context.Canceled) {
		observability.GetLogger().Warn("Command aborted.")
	} else {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	observability.Sync()
	return err
}
