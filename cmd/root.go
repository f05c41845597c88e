// Package cmd defines the brightdata command line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/brightdata-go/internal/config"
	"github.com/JakeFAU/brightdata-go/internal/logging"
	"github.com/JakeFAU/brightdata-go/internal/server"
	"github.com/JakeFAU/brightdata-go/pkg/brightdata"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// annotationNoApp marks commands that run without building the application.
const annotationNoApp = "no-app"

// annotationVerbose marks commands that log at the configured level instead
// of warnings only.
const annotationVerbose = "verbose"

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what commands need from the application. Tests swap in their own.
type App interface {
	Client() *brightdata.Client
	Logger() *zap.Logger
	Run(ctx context.Context) error
	Close(ctx context.Context)
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfgPath string, verbose bool) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	var logger *zap.Logger
	if verbose {
		logger, err = logging.New(cfg.Logging.Development)
	} else {
		logger, err = logging.Quiet()
	}
	if err != nil {
		return nil, err
	}
	return server.Build(ctx, cfg, logger, Version)
}

type rootOptions struct {
	cfgFile string
	output  string

	// app is set once PersistentPreRunE builds it.
	app App
}

// closeApp releases the application if one was built. It runs after every
// command, including failing ones, which skip cobra's post-run hooks.
func (o *rootOptions) closeApp(ctx context.Context) {
	if o.app == nil {
		return
	}
	o.app.Close(context.WithoutCancel(ctx))
	o.app = nil
}

func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "brightdata",
		Short:         "Scrape, search and crawl through the Bright Data API",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `brightdata runs unlocker scrapes, platform dataset collections, search
engine queries and crawls against the Bright Data API, and manages the
account's zones.

The API token is read from the config file or from BRIGHTDATA_API_TOKEN.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(opts.output); err != nil {
				return err
			}
			if cmd.Annotations[annotationNoApp] != "" {
				return nil
			}
			appInstance, err := newApp(cmd.Context(), opts.cfgFile, cmd.Annotations[annotationVerbose] != "")
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			opts.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "output format: text, json, markdown or yaml")

	cmd.AddCommand(
		newScrapeCmd(opts),
		newSearchCmd(opts),
		newCrawlCmd(opts),
		newZonesCmd(opts),
		newJobsCmd(opts),
		newAccountCmd(opts),
		newPingCmd(opts),
		newServeCmd(),
		newVersionCmd(),
	)
	return cmd, opts
}

// executeRoot runs root and then closes whatever application it built.
func executeRoot(ctx context.Context, root *cobra.Command, opts *rootOptions) error {
	defer opts.closeApp(ctx)
	return root.ExecuteContext(ctx)
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoApp: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), Version)
			return err
		},
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute(ctx context.Context) {
	root, opts := newRootCmd()
	if err := executeRoot(ctx, root, opts); err != nil {
		fmt.Fprintln(os.Stderr, renderError(err.Error()))
		os.Exit(1)
	}
}
