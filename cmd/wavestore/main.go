// Command wavestore builds puddle stores from VCD traces and queries them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/spf13/cobra"

	"github.com/forestrie/go-wavestore/config"
	"github.com/forestrie/go-wavestore/display"
	"github.com/forestrie/go-wavestore/wavestore"
)

var (
	configPath string
	dataDir    string
	logLevel   string

	scope    string
	radixArg string
	maxChars int
	fromTime uint64
	toTime   uint64

	cfg        *config.Config
	logStarted bool
)

var rootCmd = &cobra.Command{
	Use:           "wavestore",
	Short:         "Build and query waveform stores of VCD traces",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			cfg, err = config.Load(configPath)
		} else {
			cfg = config.FromEnv()
			err = cfg.Validate()
		}
		if err != nil {
			return err
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		logger.New(cfg.LogLevel)
		logStarted = true
		return nil
	},
}

var buildCmd = &cobra.Command{
	Use:   "build <trace>",
	Short: "Ingest a trace, or check the store already built from it",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <trace> <path>",
	Short: "Show the signal a hierarchical path names",
	Args:  cobra.ExactArgs(2),
	RunE:  runResolve,
}

var signalsCmd = &cobra.Command{
	Use:   "signals <trace>",
	Short: "List every signal with its path",
	Args:  cobra.ExactArgs(1),
	RunE:  runSignals,
}

var dumpCmd = &cobra.Command{
	Use:   "dump <trace> <path>",
	Short: "Print the value changes of a signal",
	Args:  cobra.ExactArgs(2),
	RunE:  runDump,
}

var partitionsCmd = &cobra.Command{
	Use:   "partitions <trace>",
	Short: "List the start time of every stored window",
	Args:  cobra.ExactArgs(1),
	RunE:  runPartitions,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "Directory holding the store files")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, NOOP)")

	resolveCmd.Flags().StringVar(&scope, "scope", "", "Module relative paths resolve against")
	dumpCmd.Flags().StringVar(&scope, "scope", "", "Module relative paths resolve against")
	dumpCmd.Flags().StringVarP(&radixArg, "radix", "r", "hex", "hex, binary, octal, decimal or signed")
	dumpCmd.Flags().IntVar(&maxChars, "max", 0, "Truncate values to this many characters, 0 for no limit")
	dumpCmd.Flags().Uint64Var(&fromTime, "from", 0, "First time to print")
	dumpCmd.Flags().Uint64Var(&toTime, "to", ^uint64(0), "Last time to print")

	rootCmd.AddCommand(buildCmd, resolveCmd, signalsCmd, dumpCmd, partitionsCmd)
}

func openTrace(ctx context.Context, tracePath string) (*wavestore.Handle, error) {
	return wavestore.OpenOrBuild(ctx, logger.Sugar.WithServiceName("wavestore"), tracePath,
		wavestore.WithConfig(cfg))
}

func runBuild(cmd *cobra.Command, args []string) error {
	h, err := openTrace(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer h.Close()

	m := h.Meta()
	out := cmd.OutOrStdout()
	state := "built"
	if h.Recovered() {
		state = "recovered"
	}
	fmt.Fprintf(out, "%s %s\n", state, wavestore.DBPath(cfg.DataDir, m.DBName))
	fmt.Fprintf(out, "run:        %s\n", m.RunID)
	fmt.Fprintf(out, "time:       %d-%d\n", m.TimeRange.Start, m.TimeRange.End)
	fmt.Fprintf(out, "signals:    %d\n", m.Signals)
	fmt.Fprintf(out, "changes:    %d\n", m.Changes)
	fmt.Fprintf(out, "partitions: %d\n", len(h.Partitions()))
	return nil
}

// applyScope sets the module relative paths resolve against.
func applyScope(h *wavestore.Handle) error {
	if scope == "" {
		return nil
	}
	return h.SetCurrent(scope)
}

func runResolve(cmd *cobra.Command, args []string) error {
	h, err := openTrace(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer h.Close()

	if err := applyScope(h); err != nil {
		return err
	}
	item, err := h.Resolve(args[1])
	if err != nil {
		return err
	}
	path, err := h.Index().PathOf(item.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s id=%d width=%d\n", path, item.ID, item.Width)
	return nil
}

func runSignals(cmd *cobra.Command, args []string) error {
	h, err := openTrace(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer h.Close()

	for _, item := range h.Index().Signals() {
		path, err := h.Index().PathOf(item.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%6d %4d %s\n", item.ID, item.Width, path)
	}
	return nil
}

func runDump(cmd *cobra.Command, args []string) error {
	radix, err := display.ParseRadix(radixArg)
	if err != nil {
		return err
	}
	h, err := openTrace(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer h.Close()

	if err := applyScope(h); err != nil {
		return err
	}
	item, err := h.Resolve(args[1])
	if err != nil {
		return err
	}
	d, err := h.LoadSignal(cmd.Context(), item)
	if err != nil {
		return err
	}
	for _, c := range d.Window(fromTime, toTime) {
		s, err := display.RenderValue(c.Value, radix, maxChars)
		if err != nil {
			return fmt.Errorf("time %d: %w", c.Time, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", c.Time, s)
	}
	return nil
}

func runPartitions(cmd *cobra.Command, args []string) error {
	h, err := openTrace(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer h.Close()

	for _, start := range h.Partitions() {
		fmt.Fprintln(cmd.OutOrStdout(), start)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if logStarted {
		logger.OnExit()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
