package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/lazylink/pkg/config"
	"github.com/ormasoftchile/lazylink/pkg/console"
	"github.com/ormasoftchile/lazylink/pkg/locator"
	"github.com/ormasoftchile/lazylink/pkg/repl"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// A missing .env is fine; LAZYLINK_* variables may come from the shell.
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "lazylink",
	Short:         "Scripting harness for browser macro playback",
	Long:          "lazylink plays macro files and Lua scripts through a playback engine, with named page elements, run variables and error policies.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var (
	flagConfig   string
	flagMap      string
	flagEngine   string
	flagScenario string
	flagNoTrace  bool
)

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, err
	}
	if flagEngine != "" {
		cfg.Engine.Kind = flagEngine
	}
	if flagScenario != "" {
		cfg.Engine.Scenario = flagScenario
		if flagEngine == "" {
			cfg.Engine.Kind = config.EngineScenario
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// --- play ---

var playCmd = &cobra.Command{
	Use:   "play [script]",
	Short: "Play a macro file (.iim) or Lua script (.lua)",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := console.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	s, err := openSession(cfg, flagMap, !flagNoTrace, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("%s %s (run %s)\n", console.GlyphPlay, args[0], s.engine.State.RunID)
	s.engine.Play(ctx, args[0])
	return s.summarize(os.Stdout)
}

// --- repl ---

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Type macro lines and play them interactively",
	Args:  cobra.NoArgs,
	RunE:  runRepl,
}

func runRepl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := console.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	s, err := openSession(cfg, flagMap, !flagNoTrace, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signalContext()
	defer cancel()
	return repl.New(s.engine, s.elements).Run(ctx)
}

// --- elements ---

var elementsCmd = &cobra.Command{
	Use:   "elements [map.yaml]",
	Short: "Validate a locator map and list its elements",
	Args:  cobra.ExactArgs(1),
	RunE:  runElements,
}

func runElements(cmd *cobra.Command, args []string) error {
	root, err := locator.LoadFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, console.Failed("%s", err))
		return fmt.Errorf("locator map validation failed")
	}
	m := locator.Extend(root, nil, nil)
	m.Walk(func(el *locator.Element) {
		fmt.Printf("  %-32s %s\n", el.Path(), console.Dim("%s", el.Macro()))
	})
	fmt.Println(console.Passed("%s: %d elements", args[0], m.Len()))
	return nil
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export the config JSON Schema to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.GenerateJSONSchema()
		if err != nil {
			return fmt.Errorf("generate schema: %w", err)
		}
		fmt.Println(string(data))
		return nil
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lazylink %s (build: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (default: ./lazylink.yaml if present)")
	for _, c := range []*cobra.Command{playCmd, replCmd} {
		c.Flags().StringVar(&flagMap, "map", "", "Locator map YAML exposed as elements")
		c.Flags().StringVar(&flagEngine, "engine", "", "Playback engine: browser, command, or scenario")
		c.Flags().StringVar(&flagScenario, "scenario", "", "Scenario YAML for the scenario engine")
		c.Flags().BoolVar(&flagNoTrace, "no-trace", false, "Do not write trace.jsonl and run.yaml")
	}

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(elementsCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(traceCmd)
}
