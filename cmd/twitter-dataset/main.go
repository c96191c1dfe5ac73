package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	twitter "github.com/id-daniel-mccoy/dataset-gen"
)

type options struct {
	configPath string
	account    string
	outputDir  string
	driver     string
	records    string

	cfg    twitter.Config
	logger *zap.Logger
}

func main() {
	if err := run(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := &options{}
	root := newRootCmd(opts)
	defer func() {
		if opts.logger != nil {
			_ = opts.logger.Sync()
		}
	}()
	return root.ExecuteContext(ctx)
}

func printError(err error) {
	var cfgErr *twitter.ConfigurationError
	if errors.As(err, &cfgErr) {
		fmt.Fprintln(os.Stderr, "Missing required environment variables:")
		for _, name := range cfgErr.Missing {
			fmt.Fprintf(os.Stderr, "   - %s\n", name)
		}
		fmt.Fprintf(os.Stderr, "\nCreate a .env file with your credentials:\n%s=your_username\n%s=your_password\n",
			twitter.EnvUsername, twitter.EnvPassword)
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

func newRootCmd(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "twitter-dataset",
		Short:         "Collect an account's posts and build a fine-tuning dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "configs/config.yml", "path to the YAML config file")
	flags.StringVar(&opts.account, "account", "", "target account (overrides config and environment)")
	flags.StringVar(&opts.outputDir, "output-dir", "", "directory for the generated files")

	root.AddCommand(newPipelineCmd(opts), newLinksCmd(opts), newTransformCmd(opts))
	return root
}

func (o *options) load() error {
	cfg, err := twitter.LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	flags := twitter.Config{
		Account: o.account,
		Output:  twitter.OutputConfig{Dir: o.outputDir},
		Links:   twitter.LinksConfig{Driver: o.driver},
	}
	if err := cfg.Override(flags); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = logger.With(zap.String("run_id", uuid.NewString()))
	return nil
}

func newLogger(cfg twitter.LogConfig) (*zap.Logger, error) {
	if cfg.Development {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: log.level: %v", twitter.ErrConfiguration, err)
	}
	zc.Level = level
	return zc.Build()
}

func newPipelineCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline",
		Short: "Log in, collect the account's posts and write all dataset files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg

			client := twitter.NewClient(cfg, opts.logger)
			if err := client.SetProxy(cfg.Session.Proxy); err != nil {
				return err
			}

			res, err := twitter.NewPipeline(cfg, client, opts.logger).Run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			twitter.WriteSummary(out, cfg.Account, res.Records)
			fmt.Fprintf(out, "Saved posts to %s\n", res.RecordsPath)
			fmt.Fprintf(out, "Saved URLs to %s\n", res.URLsPath)
			fmt.Fprintf(out, "Saved fine-tuning data to %s\n", res.FineTuningPath)
			return nil
		},
	}
}

func newLinksCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Scroll the profile page in a browser and save post links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg

			driver, err := twitter.NewRenderDriver(cfg)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
				return fmt.Errorf("%w: create %s: %v", twitter.ErrPersistence, cfg.Output.Dir, err)
			}
			collector := twitter.NewDomScrollCollector(cfg, driver, opts.logger)
			links, err := collector.CollectAndPersist(cmd.Context(), cfg.LinksPath())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d links to %s\n", len(links), cfg.LinksPath())
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.driver, "driver", "", "browser driver: rod or chromedp")
	return cmd
}

func newTransformCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Rebuild the fine-tuning file from a saved records file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg

			path := opts.records
			if path == "" {
				path = cfg.RecordsPath()
			}
			records, err := twitter.ReadRecords(path)
			if err != nil {
				return err
			}
			entries, err := twitter.TransformAndPersist(cfg.FineTuningPath(), records)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d entries to %s\n", len(entries), cfg.FineTuningPath())
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.records, "records", "", "records file to read (default from config)")
	return cmd
}
