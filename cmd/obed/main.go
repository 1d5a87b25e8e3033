package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/config"
	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/llm"
	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/menu"
	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/snapshot"
	"github.com/pitrvalent-netizen/kam-ideme-na-obed/pkg/extractor"
)

// Exit codes for granular error handling
const (
	ExitSuccess      = 0
	ExitInvalidInput = 3
	ExitConfigError  = 4
	ExitFileIOError  = 5
)

const (
	sourceScrape = "scrape"
	sourceLLM    = "llm"
)

var (
	cfgFile     string
	dataFile    string
	outputFile  string
	source      string
	debugDir    string
	timeout     int
	concurrency int
	dateFlag    string
	verbose     bool
	quiet       bool
)

const version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "obed",
	Short: "Build today's lunch menu snapshot",
	Long: `obed collects the daily lunch menus of Ndegust and U Medveďa and writes
them, together with the previous tips, to the JSON file read by the website.
A venue whose menu cannot be read keeps yesterday's menu.`,
	Version:       version,
	Args:          cobra.NoArgs,
	RunE:          run,
	SilenceErrors: true,
	SilenceUsage:  true,
}

var extractCmd = &cobra.Command{
	Use:   "extract <venue>",
	Short: "Print the menu lines extracted for one venue",
	Long: `extract fetches a single venue and prints its menu lines to stdout and the
extraction trace to stderr. Useful when tuning selectors.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: menu.Venues,
	RunE:      runExtract,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		if !quiet {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		os.Exit(ExitInvalidInput)
	}
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/obed/config.toml)")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", 0, "request timeout in seconds (default from config)")
	rootCmd.PersistentFlags().StringVar(&debugDir, "debug-dir", "", "write per-venue extraction traces to this directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors")

	rootCmd.Flags().StringVar(&dataFile, "data", "", "previous snapshot (default: output.data_file)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "where to write the snapshot (default: same as --data)")
	rootCmd.Flags().StringVar(&source, "source", sourceScrape, "where menus come from (scrape|llm)")
	rootCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "max venues fetched at once (default from config)")
	rootCmd.Flags().StringVar(&dateFlag, "date", "", "snapshot date as YYYY-MM-DD (default: today, UTC)")

	rootCmd.AddCommand(extractCmd)
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	now, err := clock(dateFlag)
	if err != nil {
		return exitError(ExitInvalidInput, "invalid --date %q: expected YYYY-MM-DD", dateFlag)
	}

	dataPath := firstNonEmpty(dataFile, cfg.Output.DataFile)
	outPath := firstNonEmpty(outputFile, dataPath)
	traceDir := firstNonEmpty(debugDir, cfg.Output.DebugDir)

	previous, err := snapshot.Load(dataPath)
	if err != nil {
		log.Warn().Err(err).Str("path", dataPath).Msg("previous snapshot unusable, starting from placeholder")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	asm := &snapshot.Assembler{
		Concurrency: cfg.Parallel.MaxConcurrency,
		Now:         now,
		OnTrace:     traceWriter(traceDir),
	}

	var snap menu.Snapshot
	switch strings.ToLower(strings.TrimSpace(source)) {
	case sourceScrape:
		asm.Source = extractor.New(cfg)
		snap = asm.Assemble(ctx, cfg.Sources(), previous)
	case sourceLLM:
		snap = generate(ctx, cfg, asm, previous)
	default:
		return exitError(ExitInvalidInput, "unknown --source %q (want %s or %s)", source, sourceScrape, sourceLLM)
	}

	if err := snapshot.Save(outPath, snap); err != nil {
		return exitError(ExitFileIOError, "failed to write snapshot: %v", err)
	}

	log.Info().Str("path", outPath).Str("date", snap.Date).
		Int(menu.VenueNdegust, len(snap.Ndegust.Menu)).
		Int(menu.VenueUMedveda, len(snap.UMedveda.Menu)).
		Int("tips", len(snap.Tips)).
		Msg("snapshot written")
	return nil
}

// generate asks the model for a snapshot. Any failure keeps the previous
// snapshot with today's date.
func generate(ctx context.Context, cfg *config.Config, asm *snapshot.Assembler, previous menu.Snapshot) menu.Snapshot {
	if cfg.LLM.APIKey == "" && cfg.LLM.BaseURL == "" {
		log.Warn().Msg("no OPENAI_API_KEY or llm.api_key set, keeping previous snapshot")
		return asm.Fallback(previous)
	}

	gen := llm.NewGenerator(llm.NewOpenAIProvider(cfg.LLM.APIKey, cfg.LLM.BaseURL))
	gen.Model = cfg.LLM.Model
	gen.Temperature = float32(cfg.LLM.Temperature)
	gen.MaxAttempts = cfg.LLM.MaxAttempts
	if backoff := cfg.Backoff(); backoff > 0 {
		gen.Backoff = backoff
	}

	date := asm.Today()
	raw, err := gen.Generate(ctx, date)
	if err != nil {
		log.Error().Err(err).Msg("menu generation failed, keeping previous snapshot")
		return asm.Fallback(previous)
	}

	fresh, err := snapshot.ParseSnapshot(raw)
	if err != nil {
		log.Error().Err(err).Msg("model returned invalid JSON, keeping previous snapshot")
		return asm.Fallback(previous)
	}
	return asm.Merge(fresh, cfg.Sources(), previous)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	venue := strings.ToLower(strings.TrimSpace(args[0]))
	src, ok := cfg.Sources()[venue]
	if !ok {
		return exitError(ExitInvalidInput, "unknown venue %q (known: %s)", args[0], strings.Join(menu.Venues, ", "))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	result := extractor.New(cfg).Extract(ctx, src)
	traceWriter(firstNonEmpty(debugDir, cfg.Output.DebugDir))(venue, result.Trace)

	out := cmd.OutOrStdout()
	for _, item := range result.Items {
		fmt.Fprintln(out, item)
	}
	if !quiet {
		fmt.Fprintln(cmd.ErrOrStderr(), result.Trace)
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		msg := fmt.Sprintf("failed to load config: %v", err)
		if hint := errors.FlattenHints(err); hint != "" {
			msg += "\nhint: " + hint
		}
		return nil, exitError(ExitConfigError, "%s", msg)
	}

	if timeout > 0 {
		cfg.Network.Timeout = timeout
	}
	if concurrency > 0 {
		cfg.Parallel.MaxConcurrency = concurrency
	}
	setLogLevel(cfg.Logging.Level)
	return cfg, nil
}

func setLogLevel(configured string) {
	level, err := zerolog.ParseLevel(strings.ToLower(configured))
	if err != nil || configured == "" {
		level = zerolog.InfoLevel
	}
	switch {
	case quiet:
		level = zerolog.ErrorLevel
	case verbose:
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
}

// clock returns the snapshot clock: the wall clock, or noon UTC of the
// requested day.
func clock(date string) (func() time.Time, error) {
	if date == "" {
		return time.Now, nil
	}
	day, err := time.Parse(snapshot.DateLayout, date)
	if err != nil {
		return nil, err
	}
	fixed := day.Add(12 * time.Hour)
	return func() time.Time { return fixed }, nil
}

func traceWriter(dir string) snapshot.TraceFunc {
	return func(venue, trace string) {
		log.Debug().Str("venue", venue).Msg(trace)
		if dir == "" {
			return
		}
		if err := snapshot.WriteTrace(dir, venue, trace); err != nil {
			log.Warn().Err(err).Str("venue", venue).Msg("failed to write trace")
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string {
	return e.msg
}

func exitError(code int, format string, args ...interface{}) *exitErr {
	msg := fmt.Sprintf(format, args...)
	if msg != "" && !quiet {
		fmt.Fprintf(os.Stderr, "%s\n", msg)
	}
	return &exitErr{code: code, msg: msg}
}
