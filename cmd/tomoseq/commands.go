package main

import (
	"context"
	"fmt"
	"io"

	"tomoseq/adapters/excel"
	"tomoseq/app"
	"tomoseq/domain/peaks"
	"tomoseq/internal/config"
	"tomoseq/internal/container"
	"tomoseq/internal/migration"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tomoseq",
		Short:         "Find genes with spatially localized expression peaks in tomo-seq data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newPeaksCmd(),
		newServeCmd(),
		newMigrateCmd(),
	)
	return rootCmd
}

type peaksOptions struct {
	out        string
	sheet      string
	transposed bool
	store      bool
	seed       int64
	method     string
	adjust     string
	sortBy     string
}

func newPeaksCmd() *cobra.Command {
	var opts peaksOptions
	var cfg *config.Config
	params := peaks.DefaultParams()

	cmd := &cobra.Command{
		Use:   "peaks <matrix>",
		Short: "Run peak-gene detection on a count matrix",
		Long: `Run peak-gene detection on a gene x section count matrix.

The matrix is read from .xlsx, .csv or .tsv: a header row of section labels
in spatial order, then one row per gene (name first, counts after). Flags
default to the TOMO_* environment variables.

Example: tomoseq peaks counts.tsv --min-length 4 --permutations 10000 --seed 42 --out peaks.xlsx`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return err
			}
			// environment first, then explicitly set flags
			return applyFlags(cmd, cfg.Analysis, &params, opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPeaks(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, args[0], params, opts)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&params.Threshold, "threshold", params.Threshold, "Z-score a section must exceed to join a run")
	f.IntVar(&params.MinLength, "min-length", params.MinLength, "Minimum number of consecutive sections in a run")
	f.IntVar(&params.Permutations, "permutations", params.Permutations, "Number of permutations per gene")
	f.StringVar(&opts.method, "method", string(params.NormalizeMethod), "Normalization: median|cpm")
	f.Int64Var(&opts.seed, "seed", 0, "Base RNG seed (drawn from the OS when unset)")
	f.StringVar(&opts.adjust, "adjust", string(params.AdjustMethod), "Multiple-testing correction: BH|BY|bonferroni|none")
	f.IntVar(&params.Workers, "workers", params.Workers, "Genes tested concurrently")
	f.IntVar(&params.PermutationWorkers, "permutation-workers", params.PermutationWorkers, "Permutation blocks run concurrently")
	f.IntVar(&params.BlockSize, "block-size", params.BlockSize, "Permutations per RNG stream")
	f.Float64Var(&params.MinCount, "min-count", params.MinCount, "Count a section must exceed to express a gene")
	f.IntVar(&params.MinSections, "min-sections", params.MinSections, "Sections a gene must be expressed in")
	f.StringVar(&opts.sortBy, "sort", string(params.SortBy), "Row order: input|start|center|p_value")
	f.Float64Var(&params.MaxAdjustedP, "max-padj", params.MaxAdjustedP, "Drop rows with a larger adjusted p-value")
	f.BoolVar(&params.KeepNull, "keep-null", false, "Include null distribution summaries (json output)")
	f.StringVar(&opts.out, "out", "", "Output file (.tsv, .csv, .xlsx, .json); stdout tsv when empty")
	f.StringVar(&opts.sheet, "sheet", "", "Sheet to read from an .xlsx matrix")
	f.BoolVar(&opts.transposed, "transposed", false, "Matrix has sections as rows and genes as columns")
	f.BoolVar(&opts.store, "store", false, "Store the run in the database (requires DATABASE_URL)")

	return cmd
}

// applyFlags merges env defaults into params for every flag the user did
// not set.
func applyFlags(cmd *cobra.Command, env peaks.Params, params *peaks.Params, opts peaksOptions) error {
	f := cmd.Flags()
	if !f.Changed("threshold") {
		params.Threshold = env.Threshold
	}
	if !f.Changed("min-length") {
		params.MinLength = env.MinLength
	}
	if !f.Changed("permutations") {
		params.Permutations = env.Permutations
	}
	if !f.Changed("workers") {
		params.Workers = env.Workers
	}
	if !f.Changed("permutation-workers") {
		params.PermutationWorkers = env.PermutationWorkers
	}
	if !f.Changed("min-count") {
		params.MinCount = env.MinCount
	}
	if !f.Changed("min-sections") {
		params.MinSections = env.MinSections
	}

	params.NormalizeMethod = env.NormalizeMethod
	if f.Changed("method") {
		params.NormalizeMethod = peaks.NormalizeMethod(opts.method)
	}
	params.AdjustMethod = env.AdjustMethod
	if f.Changed("adjust") {
		params.AdjustMethod = peaks.AdjustMethod(opts.adjust)
	}
	params.SortBy = peaks.SortKey(opts.sortBy)

	params.Seed = env.Seed
	if f.Changed("seed") {
		*params = params.WithSeed(opts.seed)
	}
	return params.Validate()
}

func runPeaks(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, path string, params peaks.Params, opts peaksOptions) error {
	c, err := container.New(cfg)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	if opts.store {
		if !cfg.Database.Enabled() {
			return fmt.Errorf("--store requires DATABASE_URL")
		}
		if err := c.InitDatabase(ctx); err != nil {
			return err
		}
	}

	matrix, err := excel.NewMatrixReader(path, excel.ReaderConfig{
		Sheet:      opts.sheet,
		Transposed: opts.transposed,
	}).ReadMatrix()
	if err != nil {
		return err
	}

	result, err := c.PeakService.FindPeakGenes(ctx, app.PeakRequest{Matrix: matrix, Params: params})
	if err != nil {
		return err
	}

	if opts.out == "" {
		if err := excel.NewTableWriter(excel.FileTypeTSV).Write(stdout, result.Table, result.Skipped); err != nil {
			return err
		}
	} else if err := excel.WriteFile(opts.out, result.Table, result.Skipped); err != nil {
		return err
	}

	fmt.Fprintf(stderr, "run %s: %d peak genes, %d skipped, seed %d\n",
		result.RunID, result.Table.Len(), len(result.Skipped), result.Manifest.Seed)
	for _, s := range result.Skipped {
		fmt.Fprintf(stderr, "  skipped %s (%s): %s\n", s.Gene, s.Stage, s.Reason)
	}
	return nil
}

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen port (default $PORT or 8080)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	gin.SetMode(cfg.Server.GinMode)

	c, err := container.New(cfg)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	if err := c.InitDatabase(ctx); err != nil {
		return err
	}
	return c.APIServer().Start(":" + cfg.Server.Port)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := container.Connect(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			runner := migration.NewRunner()
			if err := runner.Run(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema %s is up to date\n", runner.Version())
			return nil
		},
	}
}
