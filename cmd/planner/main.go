package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/arnavshah/study-planner-api/pkg/export"
	"github.com/arnavshah/study-planner-api/pkg/logging"
	"github.com/arnavshah/study-planner-api/pkg/models"
	"github.com/arnavshah/study-planner-api/pkg/scheduler"
)

type options struct {
	file     string
	format   string
	maxDaily int
	cycle    string
	verbose  bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "planner",
		Short: "Allocate study plans offline from a scenario file",
		Long: `planner runs the allocation engine on a YAML or JSON scenario without a
server or database. A scenario has the same shape as the body of
POST /api/plans/preview.

Examples:
  planner allocate -f scenario.yaml
  planner allocate -f scenario.json --format csv --max-daily 300
  planner validate -f scenario.yaml`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.file, "file", "f", "", "Scenario file, YAML or JSON (required)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log allocator decisions to stderr")
	root.MarkPersistentFlagRequired("file")

	allocate := &cobra.Command{
		Use:   "allocate",
		Short: "Place the scenario's content units and print the plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAllocate(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}
	allocate.Flags().StringVar(&opts.format, "format", "json", "Output format: json or csv")
	allocate.Flags().IntVar(&opts.maxDaily, "max-daily", 360, "Recommended daily minutes for overload warnings, 0 disables")
	allocate.Flags().StringVar(&opts.cycle, "cycle", scheduler.CycleType1730, "Cycle type used when the scenario sets none")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check link and exclusive relationships only",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), opts)
		},
	}

	root.AddCommand(allocate, validate)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func runAllocate(out, errOut io.Writer, opts *options) error {
	req, err := loadScenario(opts.file)
	if err != nil {
		return err
	}
	if req.Options.CycleType == "" && req.Options.StudyDays == 0 && req.Options.ReviewDays == 0 {
		req.Options.CycleType = opts.cycle
	}
	if req.RecommendedDailyMinutes <= 0 {
		req.RecommendedDailyMinutes = opts.maxDaily
	}

	logger := zerolog.Nop()
	if opts.verbose {
		logger = logging.SetupWithWriter("development", zerolog.ConsoleWriter{Out: errOut})
	}

	report, err := scheduler.NewAllocator(scheduler.WithLogger(logger)).Run(*req)
	if err != nil {
		return fmt.Errorf("allocate %s: %w", opts.file, err)
	}
	timeline := scheduler.Preview(report, scheduler.PreviewOptions{RecommendedDailyMinutes: req.RecommendedDailyMinutes})

	switch strings.ToLower(opts.format) {
	case "csv":
		if err := export.WritePlans(out, report.Entries); err != nil {
			return err
		}
		for _, w := range timeline.Warnings {
			fmt.Fprintf(errOut, "warning: %s\n", w.Message)
		}
		for _, f := range report.Failures {
			fmt.Fprintf(errOut, "unplaced: %s\n", f.Message)
		}
		return nil
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(models.PlanResponse{
			Plans:          report.Entries,
			FailureReasons: report.Failures,
			Warnings:       timeline.Warnings,
			Unplaced:       report.Unplaced,
			Timeline:       timeline,
		})
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}
}

func runValidate(out io.Writer, opts *options) error {
	req, err := loadScenario(opts.file)
	if err != nil {
		return err
	}
	result := scheduler.ValidateRelationships(req.Units)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.Valid {
		return fmt.Errorf("%s: %d relationship error(s)", opts.file, len(result.Errors))
	}
	return nil
}
