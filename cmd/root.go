package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/market-sim/sim"
	"github.com/inference-sim/market-sim/sim/api"
	"github.com/inference-sim/market-sim/sim/ledger"
	"github.com/inference-sim/market-sim/sim/trace"
)

var (
	// CLI flags for the run
	configPath    string  // YAML config file; flags below override it
	seed          int64   // Master seed for every RNG subsystem
	tickCount     int64   // Ticks to run; 0 = until interrupted
	selectionProb float64 // Chance a company trades in a tick
	eventInterval int64   // Ticks between event rule evaluations
	partialFill   bool    // Clamp purchase quantity to supplier stock
	logLevel      string  // Log verbosity level
	logFormat     string  // text or json
	logRecords    bool    // Log every transaction and event mutation
	traceLevel    string  // In-memory trace level
	dbPath        string  // SQLite ledger path; empty disables the ledger
	serveAddr     string  // HTTP snapshot API address; empty disables it
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "market-sim",
	Short: "Tick-driven simulator of a toy market economy",
}

// runCmd executes the simulation using the config file and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the market simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		cfg, err := buildConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Unknown trace level %q (none, transactions, all)", traceLevel)
		}

		tr := trace.NewSimulationTrace(trace.TraceLevel(traceLevel))
		recorders := sim.MultiRecorder{tr}
		if logRecords {
			recorders = append(recorders, trace.NewLogRecorder(nil))
		}

		var led *ledger.Recorder
		if dbPath != "" {
			db, err := ledger.Open(dbPath)
			if err != nil {
				logrus.Fatalf("Could not open ledger %s: %v", dbPath, err)
			}
			defer db.Close()
			if err := saveRunMeta(db, cfg); err != nil {
				logrus.Fatalf("Could not write run metadata: %v", err)
			}
			led = ledger.NewRecorder(db, ledger.DefaultBufferSize)
			recorders = append(recorders, led)
		}

		s, err := sim.NewSimulator(cfg, recorders)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Starting simulation: seed=%d ticks=%d products=%d suppliers=%d companies=%d",
			cfg.Run.Seed, cfg.Run.TickCount, cfg.Generation.Products, cfg.Generation.Suppliers, cfg.Generation.Companies)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		serveCtx, stopServe := context.WithCancel(ctx)
		serveDone := make(chan struct{})
		if serveAddr != "" {
			srv := &api.Server{Sim: s, Addr: serveAddr}
			go func() {
				defer close(serveDone)
				if err := srv.ListenAndServe(serveCtx); err != nil {
					logrus.Errorf("HTTP API error: %v", err)
				}
			}()
		} else {
			close(serveDone)
		}

		if err := s.Run(ctx); err != nil {
			logrus.Errorf("Simulation error: %v", err)
		}
		stopServe()
		<-serveDone

		if led != nil {
			led.Close()
			written, dropped, failed := led.Stats()
			logrus.Infof("Ledger: %d records written, %d dropped, %d failed", written, dropped, failed)
		}

		var ts *trace.TraceSummary
		if tr.Level != trace.TraceLevelNone {
			ts = trace.Summarize(tr)
		}
		printSummary(os.Stdout, s.RunSummary(), ts)
		logrus.Info("Simulation complete.")
	},
}

// setupLogging applies --log and --log-format to the standard logger.
func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
	switch logFormat {
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.Fatalf("Invalid log format: %s (text, json)", logFormat)
	}
}

// buildConfig loads --config over the defaults, then applies the flags the
// user set explicitly. Unset flags never override file values.
func buildConfig(cmd *cobra.Command) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if configPath != "" {
		loaded, err := sim.LoadConfig(configPath)
		if err != nil {
			return cfg, fmt.Errorf("loading %s: %w", configPath, err)
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Run.Seed = seed
	}
	if flags.Changed("ticks") {
		cfg.Run.TickCount = tickCount
	}
	if flags.Changed("selection-probability") {
		cfg.Run.SelectionProbability = selectionProb
	}
	if flags.Changed("event-interval") {
		cfg.Run.EventInterval = eventInterval
	}
	if flags.Changed("partial-fill") {
		cfg.Run.PartialFill = partialFill
	}
	return cfg, nil
}

func saveRunMeta(db *ledger.DB, cfg sim.Config) error {
	data, err := cfg.YAML()
	if err != nil {
		return err
	}
	if err := db.SaveMeta("config", string(data)); err != nil {
		return err
	}
	return db.SaveMeta("seed", strconv.FormatInt(cfg.Run.Seed, 10))
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerRunFlags attaches the run flags; split out so tests get a fresh command.
func registerRunFlags(c *cobra.Command) {
	def := sim.DefaultConfig()
	c.Flags().StringVar(&configPath, "config", "", "YAML config file (see `market-sim defaults`)")
	c.Flags().Int64Var(&seed, "seed", def.Run.Seed, "Master seed for all randomness")
	c.Flags().Int64Var(&tickCount, "ticks", def.Run.TickCount, "Ticks to run (0 = until interrupted)")
	c.Flags().Float64Var(&selectionProb, "selection-probability", def.Run.SelectionProbability, "Chance a company trades in a tick")
	c.Flags().Int64Var(&eventInterval, "event-interval", def.Run.EventInterval, "Ticks between event rule evaluations")
	c.Flags().BoolVar(&partialFill, "partial-fill", def.Run.PartialFill, "Clamp purchase quantity to supplier stock")

	c.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	c.Flags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	c.Flags().BoolVar(&logRecords, "log-records", false, "Log every transaction and event mutation at info level")
	c.Flags().StringVar(&traceLevel, "trace-level", string(trace.TraceLevelTransactions), "In-memory trace level (none, transactions, all)")

	c.Flags().StringVar(&dbPath, "db", "", "SQLite ledger file; empty disables persistence")
	c.Flags().StringVar(&serveAddr, "serve", "", "Serve the HTTP snapshot API on this address while running (e.g. :8080)")
}

// init sets up CLI flags and subcommands
func init() {
	registerRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(defaultsCmd)
}
