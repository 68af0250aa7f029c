package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/solatis/waveplanner/internal/allocation"
	"github.com/solatis/waveplanner/internal/compare"
	"github.com/solatis/waveplanner/internal/core/config"
	"github.com/solatis/waveplanner/internal/rules"
	"github.com/solatis/waveplanner/internal/snapshot"
	"github.com/solatis/waveplanner/internal/types"
)

var planCmd = &cobra.Command{
	Use:   "plan <scenario>",
	Short: "Compare strategies over a scenario file offline",
	Long: `plan loads stock points, orders and strategies from a YAML or JSON
scenario file, runs every strategy against the orders and prints the
comparison table as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configFile, cmd.Flags())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		parallelism := cfg.CompareParallelism
		if cmd.Flags().Changed("parallelism") {
			parallelism, _ = cmd.Flags().GetInt("parallelism")
		}
		pretty, _ := cmd.Flags().GetBool("pretty")
		return runPlan(cmd.Context(), cmd.OutOrStdout(), args[0], planOptions{
			weights:     cfg.Weights,
			parallelism: parallelism,
			pretty:      pretty,
		})
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().Int("parallelism", compare.DefaultParallelism, "maximum strategies evaluated at once, overrides planner.compare_parallelism")
	planCmd.Flags().Bool("pretty", false, "indent JSON output")
}

// planOptions carries the service settings an offline run shares with serve.
type planOptions struct {
	weights     types.Weights
	parallelism int
	pretty      bool
}

func runPlan(ctx context.Context, out io.Writer, path string, opts planOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	scenario, err := snapshot.LoadScenario(path)
	if err != nil {
		return err
	}
	if len(scenario.Strategies) == 0 {
		return fmt.Errorf("scenario %s defines no strategies", path)
	}

	var engineOpts []allocation.Option
	if opts.weights != (types.Weights{}) {
		engineOpts = append(engineOpts, allocation.WithDefaultWeights(opts.weights))
	}
	allocEngine, err := allocation.NewEngine(scenario.StockPoints, engineOpts...)
	if err != nil {
		return err
	}

	entries := make([]compare.Entry, len(scenario.Strategies))
	for i, e := range scenario.Strategies {
		if e.Config.Mode == "" {
			e.Config = types.DefaultWaveConfig()
		}
		if e.ID == "" {
			e.ID = types.StrategyID(fmt.Sprintf("scenario-%d", i+1))
		}
		entries[i] = e
	}

	comparator := compare.New(rules.NewEngine(nil), allocEngine, compare.WithParallelism(opts.parallelism))
	table, err := comparator.Compare(ctx, entries, scenario.Orders)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	if opts.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(table)
}
