package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/pdf2md/internal/config"
	"github.com/Lllllllleong/pdf2md/internal/gcp"
	"github.com/Lllllllleong/pdf2md/internal/models"
	"github.com/Lllllllleong/pdf2md/internal/output"
	"github.com/Lllllllleong/pdf2md/internal/pdfsource"
	"github.com/Lllllllleong/pdf2md/internal/pipeline"
	"github.com/Lllllllleong/pdf2md/internal/progress"
	"github.com/Lllllllleong/pdf2md/internal/services"
)

var (
	pdfPath       string
	outputName    string
	batchSize     int
	vision        bool
	promptsPath   string
	resultsDir    string
	provider      string
	rpm           int
	maxConcurrent int
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:           "pdf2md",
	Short:         "Summarize a PDF into a Markdown document with an LLM",
	Long:          "Split a PDF into page batches, run every batch through an extraction and a summarization prompt concurrently, and write the ordered results as one Markdown document.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&pdfPath, "pdf", "", "Path to the PDF file (required)")
	rootCmd.Flags().StringVar(&outputName, "output", "", "Output file name, written inside the results directory (required)")
	rootCmd.Flags().IntVar(&batchSize, "batch-size", config.DefaultBatchSize, "Number of pages per batch")
	rootCmd.Flags().BoolVar(&vision, "vision", false, "Send rendered page images instead of extracted text")
	rootCmd.Flags().StringVar(&promptsPath, "prompts", "prompts.json", "Prompt configuration file (JSON or YAML)")
	rootCmd.Flags().StringVar(&resultsDir, "results-dir", "results", "Directory or gs://bucket/prefix for results")
	rootCmd.Flags().StringVar(&provider, "provider", "", "Model provider: openai or vertex (default from LLM_PROVIDER)")
	rootCmd.Flags().IntVar(&rpm, "rpm", 0, "Maximum provider requests per minute (0 = unlimited)")
	rootCmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "Maximum batches in flight (0 = unlimited)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log progress details to stderr")
	_ = rootCmd.MarkFlagRequired("pdf")
	_ = rootCmd.MarkFlagRequired("output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	if verbose {
		level.Set(slog.LevelInfo)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg := loadConfig(cmd)

	if _, err := os.Stat(pdfPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", pdfsource.ErrSourceNotFound, pdfPath)
		}
		return err
	}
	prompts, err := config.LoadPrompts(promptsPath)
	if err != nil {
		return err
	}
	llmProvider, err := services.NewProvider(ctx, cfg)
	if err != nil {
		return err
	}
	if closer, ok := llmProvider.(io.Closer); ok {
		defer closer.Close()
	}

	dest, cleanup, err := newDestination(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	kind := models.PageKindText
	if vision {
		kind = models.PageKindImage
	}

	summarizer := services.NewSummarizer(
		llmProvider,
		services.NewInvoker(cfg),
		pdfsource.NewExtractor(),
		services.SummarizerConfigFrom(cfg),
		services.WithObserver(newTerminalObserver(os.Stdout, level)),
	)
	res, err := summarizer.Process(ctx, services.Job{
		SourcePath:  pdfPath,
		Kind:        kind,
		Prompts:     prompts,
		BatchSize:   cfg.BatchSize,
		Destination: dest,
	})
	if err != nil {
		printFailedBatches(err)
		return err
	}

	color.New(color.FgGreen).Printf("Success: Results written to %s\n", res.Destination)
	return nil
}

// loadConfig reads the environment and applies the flags that were set explicitly.
func loadConfig(cmd *cobra.Command) config.Config {
	cfg := config.Load()
	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.Provider = provider
		cfg.ExtractionModel = config.GetEnv("EXTRACTION_MODEL", "")
		cfg.SummarizerModel = config.GetEnv("SUMMARIZER_MODEL", "")
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize = batchSize
	}
	if flags.Changed("rpm") {
		cfg.RequestsPerMinute = rpm
	}
	if flags.Changed("max-concurrent") {
		cfg.MaxConcurrent = maxConcurrent
	}
	cfg.ApplyDefaults()
	return cfg
}

func newDestination(ctx context.Context) (output.Destination, func(), error) {
	if !strings.HasPrefix(resultsDir, "gs://") {
		dest, err := output.NewFileDestination(resultsDir, outputName)
		return dest, func() {}, err
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	dest, err := gcp.NewGCSDestination(client, resultsDir, outputName)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return dest, func() { client.Close() }, nil
}

func printFailedBatches(err error) {
	failed := pipeline.FailedBatches(err)
	if len(failed) == 0 {
		return
	}
	red := color.New(color.FgRed)
	red.Fprintf(os.Stderr, "%d batch(es) failed:\n", len(failed))
	for _, be := range failed {
		red.Fprintf(os.Stderr, "  Batch %d (%s): %v\n", be.Index, be.Stage, be.Err)
	}
}

// quietLevel is above every level the program logs at.
const quietLevel = slog.LevelError + 4

// terminalObserver prints the extraction notice and redraws batch statuses.
// Unless verbose output was requested, logging is silenced while the status
// block is on screen so log lines cannot break it apart.
type terminalObserver struct {
	out   io.Writer
	level *slog.LevelVar
}

func newTerminalObserver(out io.Writer, level *slog.LevelVar) *terminalObserver {
	o := &terminalObserver{out: out}
	if !verbose {
		o.level = level
	}
	return o
}

func (o *terminalObserver) Extracted(pageCount int) {
	fmt.Fprintf(o.out, "Extracted %d pages from the PDF file.\n", pageCount)
}

func (o *terminalObserver) Scheduled(statuses []*pipeline.Status) func() {
	if o.level == nil {
		return progress.New(o.out).Start(statuses, time.Second)
	}
	prev := o.level.Level()
	o.level.Set(quietLevel)
	stop := progress.New(o.out).Start(statuses, time.Second)
	return func() {
		stop()
		o.level.Set(prev)
	}
}
