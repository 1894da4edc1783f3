package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go-image-worsen/internal/config"
	"go-image-worsen/internal/container"
	apperrors "go-image-worsen/internal/errors"
	"go-image-worsen/internal/logger"
	"go-image-worsen/internal/stats"
	"go-image-worsen/internal/transform"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Exit codes
const (
	exitFailure = 1
	exitUsage   = 2
)

type options struct {
	operations  []string
	seed        uint64
	workers     int
	keepGoing   bool
	marker      string
	jpegQuality int
	logLevel    string
}

func main() {
	logger.UseConsole(os.Stderr)

	if err := newRootCommand().Execute(); err != nil {
		logger.WithError(err).Error("worsen failed")
		os.Exit(exitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "worsen -o OPERATION [-o OPERATION ...] FILE...",
		Short: "It's better than bad, it's good!",
		Long: "worsen applies a sequence of pixel operations to each input image and\n" +
			"writes the result next to it, e.g. cat.png becomes cat.worse.png.\n" +
			"A first input named serve is treated as a file whenever -o is given.\n\n" +
			"Operations: " + strings.Join(lo.Map(transform.Known(), func(op transform.Operation, _ int) string {
			return string(op)
		}), ", "),
		Version:       config.Version,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MinimumNArgs(1)(cmd, args); err != nil {
				return apperrors.NewValidationError("no input images given", err)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.logLevel != "" {
				logger.SetLevel(logger.ParseLevel(opts.logLevel))
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorsen(cmd, opts, args)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error (default from LOG_LEVEL)")
	flags.StringArrayVarP(&opts.operations, "operations", "o", nil, "operation to apply, repeat for more (applied in order)")
	flags.Uint64Var(&opts.seed, "seed", 0, "random seed, 0 seeds from the clock (default from WORSEN_SEED)")
	flags.IntVar(&opts.workers, "workers", 0, "row strips processed concurrently, 0 uses every CPU (default from WORSEN_WORKERS)")
	flags.BoolVar(&opts.keepGoing, "keep-going", false, "skip images that fail instead of stopping")
	flags.StringVar(&opts.marker, "marker", "", "text inserted before the output extension (default from WORSEN_MARKER)")
	flags.IntVar(&opts.jpegQuality, "jpeg-quality", 0, "JPEG output quality 1-100 (default from JPEG_QUALITY)")
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return apperrors.NewValidationError("invalid flags", err)
	})

	cmd.AddCommand(newServeCommand(opts))
	return cmd
}

func runWorsen(cmd *cobra.Command, opts *options, files []string) error {
	if len(opts.operations) == 0 {
		return apperrors.NewValidationError("at least one -o/--operations is required", nil)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return apperrors.NewConfigurationError("failed to load config", err)
	}
	applyFlags(cmd, opts, cfg)

	c, err := container.NewContainer(cfg)
	if err != nil {
		return apperrors.NewConfigurationError("failed to initialize", err)
	}
	defer c.Close()

	logger.WithFields(logrus.Fields{
		"workers": cfg.Workers,
		"policy":  cfg.FailurePolicy,
	}).Infof("Making things worse: operations=%v, files=%v", opts.operations, files)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	_, err = c.Service().ProcessBatch(ctx, files, opts.operations, func(location string, s stats.ImageStatistics) {
		printReport(out, location, s)
	})
	return err
}

// applyFlags lets explicitly set flags override the environment
func applyFlags(cmd *cobra.Command, opts *options, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = opts.seed
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flags.Changed("marker") {
		cfg.OutputMarker = opts.marker
	}
	if flags.Changed("jpeg-quality") {
		cfg.JPEGQuality = opts.jpegQuality
	}
	if opts.keepGoing {
		cfg.FailurePolicy = config.FailurePolicySkip
	}
}

func printReport(w io.Writer, location string, s stats.ImageStatistics) {
	fmt.Fprintf(w, "%s\n%s\n", location, s)
}

// exitCode maps configuration and usage problems to 2 and everything else to 1
func exitCode(err error) int {
	if apperrors.IsType(err, apperrors.ErrorTypeConfiguration) || apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		return exitUsage
	}
	return exitFailure
}
