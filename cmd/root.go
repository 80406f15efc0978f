package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/bigl34/zapctl/internal/browser"
	"github.com/bigl34/zapctl/internal/config"
	"github.com/bigl34/zapctl/internal/observability"
	"github.com/bigl34/zapctl/internal/store"
	"github.com/bigl34/zapctl/internal/zapier"
)

var (
	cfgFile     string
	interactive bool

	appConfig *config.Config

	// stdout is the single JSON output stream. Logs go to stderr so piping
	// the output into jq stays clean.
	stdout io.Writer = os.Stdout
)

var rootCmd = &cobra.Command{
	Use:   "zapctl",
	Short: "Inspect and control Zapier workflows from the command line.",
	Long: `zapctl drives your Zapier account the way the web client does: it keeps an
authenticated browser session, talks to the same internal API the web app
uses, and falls back to operating the page itself when that API shifts
underneath it. Every command prints a single JSON document to stdout.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(); err != nil {
			return err
		}

		v := viper.GetViper()
		if cmd.Flags().Changed("interactive") {
			v.Set("browser.interactive", interactive)
		}

		cfg, err := config.NewConfigFromViper(v)
		if err != nil {
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "zapctl"})
			return err
		}
		appConfig = cfg

		observability.InitializeLogger(cfg.Logger)
		// One id per invocation ties together every log line this run
		// emits into the shared JSON log file.
		observability.GetLogger().Debug("Starting zapctl",
			zap.String("version", Version),
			zap.String("invocation_id", uuid.NewString()))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		observability.Sync()
	},
}

// Execute runs the CLI. Failures become a JSON error document on stdout so
// scripted callers always get parseable output.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command failed", zap.Error(err))
		}
		_ = emitJSON(map[string]string{"error": err.Error()})
		observability.Sync()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&interactive, "interactive", "i", false, "run the browser with a visible window, for solving login challenges")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

func initializeConfig() error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("ZAPCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func logger() *zap.Logger {
	return observability.GetLogger()
}

// newSession builds the store-backed browser controller. The caller owns
// shutdown; Close disconnects without killing the shared browser process.
func newSession() (*browser.Controller, error) {
	logger := observability.GetLogger()
	st, err := store.New(appConfig.Paths.SessionDir, logger)
	if err != nil {
		return nil, err
	}
	return browser.NewController(appConfig, st, logger), nil
}

// newExecutor wires the full dual-path stack behind one operation surface.
func newExecutor() (*zapier.Executor, *browser.Controller, error) {
	ctrl, err := newSession()
	if err != nil {
		return nil, nil, err
	}
	logger := observability.GetLogger()
	api := zapier.NewAPIClient(ctrl, appConfig, logger)
	return zapier.NewExecutor(ctrl, api, appConfig, logger), ctrl, nil
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func emitJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(stdout, string(out))
	return err
}

// confirmAction gates state-changing operations. --yes skips the prompt;
// otherwise the user has to type an affirmative answer on stdin.
func confirmAction(cmd *cobra.Command, assumeYes bool, description string) error {
	if assumeYes {
		return nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "About to %s. Type \"yes\" to continue: ", description)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return errors.New("aborted: no confirmation given; re-run with --yes to skip the prompt")
	}
	switch strings.TrimSpace(strings.ToLower(line)) {
	case "y", "yes":
		return nil
	default:
		return errors.New("aborted by user; re-run with --yes to skip the prompt")
	}
}
