package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/speechmetrics/intelliscore/internal/analysis"
	"github.com/speechmetrics/intelliscore/internal/archive"
	"github.com/speechmetrics/intelliscore/pkg/intelliscore"
	"github.com/speechmetrics/intelliscore/pkg/logger"
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	log := logger.GetLogger()

	printBanner()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	log.Debugf("executing command: %s", command)

	switch command {
	case "score":
		handleScore()
	case "summarize":
		handleSummarize()
	case "correlate":
		handleCorrelate()
	case "variance":
		handleVariance()
	case "plot":
		handlePlot()
	case "runs":
		handleRuns()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
  _       _       _ _ _
 (_)_ __ | |_ ___| | (_)___  ___ ___  _ __ ___
 | | '_ \| __/ _ \ | | / __|/ __/ _ \| '__/ _ \
 | | | | | ||  __/ | | \__ \ (_| (_) | | |  __/
 |_|_| |_|\__\___|_|_|_|___/\___\___/|_|  \___|

     Speech Intelligibility Scoring Pipeline
`
	fmt.Println(banner)
}

func handleScore() {
	log := logger.GetLogger()

	cmd := flag.NewFlagSet("score", flag.ExitOnError)
	root := cmd.String("root", "", "Corpus root directory: root/<t60>/<rir>/*.wav (required)")
	out := cmd.String("out", "scores", "Output directory for score tables")
	metric := cmd.String("metric", "stipa", "Metric to compute: stipa, estoi or siib")
	clean := cmd.String("clean", "", "Clean-speech directory (required for estoi and siib)")
	ext := cmd.String("ext", ".wav", "Audio file extension filter")
	strict := cmd.Bool("strict-rate", false, "Fail on sample-rate mismatch instead of resampling")
	archivePath := cmd.String("archive", getEnvOrDefault("INTELLISCORE_ARCHIVE", archive.DefaultDBFile),
		"Run-archive sqlite path; empty disables archiving")
	cmd.Parse(os.Args[2:])

	if *root == "" {
		fmt.Println("Error: --root is required")
		cmd.Usage()
		os.Exit(1)
	}

	svc, err := intelliscore.NewService(
		intelliscore.WithCorpusRoot(*root),
		intelliscore.WithOutputDir(*out),
		intelliscore.WithMetric(*metric),
		intelliscore.WithCleanDir(*clean),
		intelliscore.WithExtension(*ext),
		intelliscore.WithStrictRate(*strict),
		intelliscore.WithArchivePath(*archivePath),
	)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		log.Errorf("service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, runErr := svc.ScoreCorpus(ctx)
	if summary != nil {
		fmt.Printf("\nScoring complete: %s ok, %s failed across %d table(s)\n",
			humanize.Comma(int64(summary.Ok)), humanize.Comma(int64(summary.Failed)), len(summary.Tables))
		for _, t := range summary.Tables {
			fmt.Printf("  t60=%-8s %6d ok %6d failed  (%s)\n", t.T60, t.Ok, t.Failed, t.Path)
		}
	}
	if runErr != nil {
		fmt.Printf("\nRun finished with errors: %v\n", runErr)
		log.Errorf("scoring run failed: %v", runErr)
		os.Exit(1)
	}
}

func handleSummarize() {
	log := logger.GetLogger()

	cmd := flag.NewFlagSet("summarize", flag.ExitOnError)
	scores := cmd.String("scores", "scores", "Directory holding per-T60 score tables")
	out := cmd.String("out", "", "Output directory for mean-score tables (required)")
	cmd.Parse(os.Args[2:])

	if *out == "" {
		fmt.Println("Error: --out is required")
		cmd.Usage()
		os.Exit(1)
	}

	if err := analysis.Summarize(*scores, *out); err != nil {
		fmt.Printf("Summarize failed: %v\n", err)
		log.Errorf("summarize failed: %v", err)
		os.Exit(1)
	}
	fmt.Printf("Mean-score tables written to %s\n", *out)
}

func t60RangeFromFlags(minFlag, maxFlag float64) *analysis.T60Range {
	if minFlag == 0 && maxFlag == 0 {
		return nil
	}
	return &analysis.T60Range{Min: minFlag, Max: maxFlag}
}

func handleCorrelate() {
	log := logger.GetLogger()

	cmd := flag.NewFlagSet("correlate", flag.ExitOnError)
	folderA := cmd.String("a", "", "First mean-scores folder (required)")
	folderB := cmd.String("b", "", "Second mean-scores folder (required)")
	t60Min := cmd.Float64("t60-min", 0, "Lower T60 bound (inclusive)")
	t60Max := cmd.Float64("t60-max", 0, "Upper T60 bound (inclusive)")
	cmd.Parse(os.Args[2:])

	if *folderA == "" || *folderB == "" {
		fmt.Println("Error: --a and --b are required")
		cmd.Usage()
		os.Exit(1)
	}

	report, err := analysis.Correlate(*folderA, *folderB, t60RangeFromFlags(*t60Min, *t60Max))
	if err != nil {
		fmt.Printf("Correlation failed: %v\n", err)
		log.Errorf("correlate failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("Paired conditions:       %d\n", report.Pairs)
	fmt.Printf("Pearson correlation:     %.3f\n", report.Pearson)
	fmt.Printf("Kendall's Tau:           %.3f\n", report.Kendall)
	fmt.Printf("Kendall's Tau p-value:   %.3e\n", report.KendallP)
	fmt.Printf("RMSE:                    %.3f\n", report.RMSE)
}

func handleVariance() {
	log := logger.GetLogger()

	cmd := flag.NewFlagSet("variance", flag.ExitOnError)
	folderA := cmd.String("a", "", "First mean-scores folder (required)")
	folderB := cmd.String("b", "", "Second mean-scores folder (required)")
	out := cmd.String("out", "levene_results.csv", "Results CSV path")
	cmd.Parse(os.Args[2:])

	if *folderA == "" || *folderB == "" {
		fmt.Println("Error: --a and --b are required")
		cmd.Usage()
		os.Exit(1)
	}

	results, err := analysis.LeveneBetween(*folderA, *folderB)
	if err != nil {
		fmt.Printf("Levene test failed: %v\n", err)
		log.Errorf("variance failed: %v", err)
		os.Exit(1)
	}

	fmt.Println("\nLevene's Test Results:")
	fmt.Printf("%-10s%-15s%-15s\n", "T60", "Levene_Stat", "P_Value")
	fmt.Println(strings.Repeat("-", 40))
	for _, r := range results {
		fmt.Printf("%-10g%-15.5f%-15.5f\n", r.T60, r.Stat, r.PValue)
	}

	if err := analysis.WriteLeveneCSV(results, *out); err != nil {
		fmt.Printf("Failed to write results: %v\n", err)
		log.Errorf("variance failed: %v", err)
		os.Exit(1)
	}
	fmt.Printf("\nResults saved to %s\n", *out)
}

// seriesFlag collects repeated --series folder=label values.
type seriesFlag []analysis.PlotSeries

func (s *seriesFlag) String() string { return fmt.Sprintf("%d series", len(*s)) }

func (s *seriesFlag) Set(value string) error {
	folder, label, found := strings.Cut(value, "=")
	if !found || folder == "" {
		return fmt.Errorf("expected folder=label, got %q", value)
	}
	if label == "" {
		label = folder
	}
	*s = append(*s, analysis.PlotSeries{Folder: folder, Label: label})
	return nil
}

func handlePlot() {
	log := logger.GetLogger()

	cmd := flag.NewFlagSet("plot", flag.ExitOnError)
	mode := cmd.String("mode", "scatter", "Plot type: scatter or meanstd")
	folderX := cmd.String("x", "", "X-axis mean-scores folder (scatter)")
	folderY := cmd.String("y", "", "Y-axis mean-scores folder (scatter)")
	labelX := cmd.String("x-label", "metric A", "X-axis label")
	labelY := cmd.String("y-label", "metric B", "Y-axis label")
	t60Min := cmd.Float64("t60-min", 0, "Lower T60 bound (inclusive)")
	t60Max := cmd.Float64("t60-max", 0, "Upper T60 bound (inclusive)")
	out := cmd.String("out", "plot.png", "Output image path")
	var series seriesFlag
	cmd.Var(&series, "series", "Mean-scores folder=label (repeatable, meanstd)")
	cmd.Parse(os.Args[2:])

	var err error
	switch *mode {
	case "scatter":
		if *folderX == "" || *folderY == "" {
			fmt.Println("Error: --x and --y are required for scatter plots")
			cmd.Usage()
			os.Exit(1)
		}
		err = analysis.ScatterPlot(*folderX, *folderY, *labelX, *labelY, *out,
			t60RangeFromFlags(*t60Min, *t60Max))
	case "meanstd":
		if len(series) == 0 {
			fmt.Println("Error: at least one --series is required for meanstd plots")
			cmd.Usage()
			os.Exit(1)
		}
		err = analysis.MeanStdPlot(series, *out)
	default:
		fmt.Printf("Unknown plot mode: %s\n", *mode)
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Plot failed: %v\n", err)
		log.Errorf("plot failed: %v", err)
		os.Exit(1)
	}
	fmt.Printf("Plot saved to %s\n", *out)
}

func handleRuns() {
	log := logger.GetLogger()

	cmd := flag.NewFlagSet("runs", flag.ExitOnError)
	archivePath := cmd.String("archive", getEnvOrDefault("INTELLISCORE_ARCHIVE", archive.DefaultDBFile),
		"Run-archive sqlite path")
	cmd.Parse(os.Args[2:])

	arch, err := archive.Open(*archivePath)
	if err != nil {
		fmt.Printf("Failed to open archive: %v\n", err)
		log.Errorf("runs failed: %v", err)
		os.Exit(1)
	}
	defer arch.Close()

	runs, err := arch.ListRuns()
	if err != nil {
		fmt.Printf("Failed to list runs: %v\n", err)
		log.Errorf("runs failed: %v", err)
		os.Exit(1)
	}

	if len(runs) == 0 {
		fmt.Println("No archived runs")
		return
	}

	fmt.Printf("Found %d archived run(s):\n\n", len(runs))
	for i, run := range runs {
		fmt.Printf("%d. %s  metric=%s\n", i+1, run.ID, run.Metric)
		fmt.Printf("   corpus: %s -> %s\n", run.CorpusRoot, run.OutputDir)
		fmt.Printf("   %s, took %s: %s ok, %s failed\n",
			humanize.Time(run.StartedAt),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Second),
			humanize.Comma(int64(run.OkCount)), humanize.Comma(int64(run.FailedCount)))
		fmt.Println()
	}
}

func printUsage() {
	fmt.Println("intelliscore - batch speech-intelligibility scoring")
	fmt.Println("\nUsage:")
	fmt.Println("  intelliscore score --root <corpus> [--metric stipa|estoi|siib] [--clean <dir>] [--out <dir>]")
	fmt.Println("  intelliscore summarize --scores <dir> --out <dir>")
	fmt.Println("  intelliscore correlate --a <mean-dir> --b <mean-dir> [--t60-min x --t60-max y]")
	fmt.Println("  intelliscore variance --a <mean-dir> --b <mean-dir> [--out levene_results.csv]")
	fmt.Println("  intelliscore plot --mode scatter --x <mean-dir> --y <mean-dir> [--out plot.png]")
	fmt.Println("  intelliscore plot --mode meanstd --series <dir>=<label> [--series ...] [--out plot.png]")
	fmt.Println("  intelliscore runs [--archive intelliscore.sqlite3]")
	fmt.Println("\nExamples:")
	fmt.Println("  # Score a reverberant corpus with the reference-free STIPA metric")
	fmt.Println("  intelliscore score --root corpus_stipa --metric stipa --out stipa_scores")
	fmt.Println()
	fmt.Println("  # Score with ESTOI against clean recordings, then summarize per RIR")
	fmt.Println("  intelliscore score --root corpus_english --metric estoi --clean clean_english --out estoi_scores")
	fmt.Println("  intelliscore summarize --scores estoi_scores --out estoi_scores_mean")
	fmt.Println()
	fmt.Println("  # Compare two metrics over their shared conditions")
	fmt.Println("  intelliscore correlate --a siib_scores_mean --b stipa_scores_mean --t60-min 1 --t60-max 8")
}
