package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/engine"
	"github.com/xkilldash9x/pagepilot/internal/observability"
)

// extractFlags are shared by index and run.
type extractFlags struct {
	filter       []string
	mode         string
	depth        int
	highlight    bool
	viewportOnly bool
}

func (f *extractFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.filter, "filter", nil, "element categories to index (BUTTON,INPUT_FIELDS,DROPDOWN,LINK,CHECKBOX,TEXT,EDITABLE,CANVAS,IMAGE,OTHER)")
	cmd.Flags().StringVar(&f.mode, "mode", "important", "extraction mode: important or interactive")
	cmd.Flags().IntVar(&f.depth, "depth", 0, "maximum iframe nesting depth (0 uses engine.max_depth)")
	cmd.Flags().BoolVar(&f.highlight, "highlight", false, "draw debug overlays over indexed elements")
	cmd.Flags().BoolVar(&f.viewportOnly, "viewport-only", false, "only index elements inside the viewport")
}

func (f *extractFlags) request() schemas.ExtractRequest {
	filter := make([]string, 0, len(f.filter))
	for _, c := range f.filter {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			filter = append(filter, c)
		}
	}
	return schemas.ExtractRequest{
		ElementsTypeFilter: filter,
		MaxDepth:           f.depth,
		DebugHighlight:     f.highlight,
		Mode:               f.mode,
		ViewportOnly:       f.viewportOnly,
	}
}

// maxConcurrentTargets bounds how many pages index at once.
const maxConcurrentTargets = 4

func newIndexCmd(a *app) *cobra.Command {
	var flags extractFlags

	indexCmd := &cobra.Command{
		Use:   "index [file.html|url...]",
		Short: "Index the interactive and important elements of one or more pages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger().Named("cli")
			req := flags.request()
			defer a.closeDrivers(logger)

			results := make([]schemas.ExtractResult, len(args))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(maxConcurrentTargets)
			for i, target := range args {
				g.Go(func() error {
					res, err := a.index(gctx, target, req, logger)
					if err != nil {
						return fmt.Errorf("index %s: %w", target, err)
					}
					results[i] = res
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			logger.Info("Indexing complete.", zap.Int("targets", len(args)))
			if len(results) == 1 {
				return schemas.Encode(cmd.OutOrStdout(), results[0])
			}
			return schemas.Encode(cmd.OutOrStdout(), results)
		},
	}
	flags.register(indexCmd)
	return indexCmd
}

func (a *app) closeDrivers(logger *zap.Logger) {
	if err := a.drivers.Close(); err != nil {
		logger.Debug("Failed to shut the browser down cleanly.", zap.Error(err))
	}
}

// index runs one extraction pass over target.
func (a *app) index(ctx context.Context, target string, req schemas.ExtractRequest, logger *zap.Logger) (schemas.ExtractResult, error) {
	driver, err := a.drivers.Open(ctx, target)
	if err != nil {
		return schemas.ExtractResult{}, err
	}
	eng := engine.New(driver, a.cfg.Engine(), logger)
	defer func() {
		if err := eng.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Debug("Failed to clear overlays.", zap.Error(err))
		}
	}()
	return eng.ExtractPageElements(ctx, req)
}
