// cmd/leadharvest/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/harvex/leadharvest/internal/config"
	"github.com/harvex/leadharvest/internal/export"
	"github.com/harvex/leadharvest/pkg/api"
	"github.com/harvex/leadharvest/pkg/types"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runJob(os.Args[2:])

	case "adapters":
		listAdapters(os.Args[2:])

	case "validate":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: config file required")
			fmt.Fprintln(os.Stderr, "Usage: leadharvest validate <config.yaml>")
			os.Exit(1)
		}
		validateConfig(os.Args[2])

	case "version", "--version", "-v":
		printVersion()

	case "help", "--help", "-h":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// runJob submits one job, follows its progress until a terminal state and
// optionally exports the results.
func runJob(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configFile := fs.String("config", "", "path to configuration file")
	adapterName := fs.String("adapter", "default", "adapter to apply")
	taskName := fs.String("task", "general", "task type: general, job or lead")
	query := fs.String("query", "", "search query used when no URLs are given")
	maxResults := fs.Int("max", 0, "maximum search results to scrape")
	outPath := fs.String("out", "", "export file (.xlsx or .json)")
	fs.Parse(args)

	urls := fs.Args()
	if len(urls) == 0 && *query == "" {
		fmt.Fprintln(os.Stderr, "Error: at least one URL or -query is required")
		fs.Usage()
		os.Exit(1)
	}

	taskType, err := types.ParseTaskType(*taskName)
	if err != nil {
		fatal(err)
	}

	ctx := context.Background()
	engine := mustEngine(ctx, *configFile)
	defer engine.Close()

	job, err := engine.SubmitJob(ctx, api.JobRequest{
		TaskType:    taskType,
		AdapterName: *adapterName,
		URLs:        urls,
		Query:       *query,
		MaxResults:  *maxResults,
	})
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Job %s submitted (%d URLs)\n", job.ID, job.TotalURLs)

	final := waitForJob(ctx, engine, job.ID)
	fmt.Printf("Job %s: %d/%d URLs, %d results, %d failed\n",
		final.Status, final.CompletedURLs, final.TotalURLs, final.ResultsCount, final.FailedURLs)
	if final.Status == types.StatusFailed {
		fmt.Fprintf(os.Stderr, "Error: %s\n", final.ErrorMessage)
		os.Exit(1)
	}

	if *outPath != "" {
		results, err := engine.GetResults(ctx, final.ID)
		if err != nil {
			fatal(err)
		}
		if err := exportResults(*outPath, results); err != nil {
			fatal(err)
		}
		fmt.Printf("Results saved to %s\n", *outPath)
	}
}

// waitForJob polls the job record until it reaches a terminal state,
// printing progress as it changes.
func waitForJob(ctx context.Context, engine *api.Engine, id string) *types.Job {
	lastPercent := -1
	for {
		job, err := engine.GetJob(ctx, id)
		if err != nil {
			fatal(err)
		}
		if job.ProgressPercent != lastPercent && job.Status == types.StatusRunning {
			fmt.Printf("  %3d%% (%d/%d)\n", job.ProgressPercent, job.CompletedURLs, job.TotalURLs)
			lastPercent = job.ProgressPercent
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func exportResults(path string, results []types.Result) error {
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".xlsx"):
		return export.WriteExcel(path, results, export.ExcelOptions{
			AutoFilter:   true,
			FreezeHeader: true,
		})
	case strings.HasSuffix(strings.ToLower(path), ".json"):
		return export.WriteJSON(path, results)
	default:
		return fmt.Errorf("unsupported export format: %s (use .xlsx or .json)", path)
	}
}

func listAdapters(args []string) {
	fs := flag.NewFlagSet("adapters", flag.ExitOnError)
	configFile := fs.String("config", "", "path to configuration file")
	fs.Parse(args)

	ctx := context.Background()
	engine := mustEngine(ctx, *configFile)
	defer engine.Close()

	summaries, err := engine.ListAdapters()
	if err != nil {
		fatal(err)
	}
	for _, s := range summaries {
		if s.Description != "" {
			fmt.Printf("%-24s %s - %s\n", s.Name, s.DisplayName, s.Description)
		} else {
			fmt.Printf("%-24s %s\n", s.Name, s.DisplayName)
		}
	}
}

func validateConfig(path string) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}
	fmt.Printf("Configuration file '%s' is valid\n", path)
}

// mustEngine builds an engine from the given config file, or defaults when
// the path is empty.
func mustEngine(ctx context.Context, configFile string) *api.Engine {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.LoadFromFile(configFile)
		if err != nil {
			fatal(err)
		}
		cfg = loaded
	}
	engine, err := api.New(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	return engine
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Println("LeadHarvest - Adapter-Driven Web Extraction Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  leadharvest run [options] <url>...       Scrape the given URLs")
	fmt.Println("  leadharvest run -query <q> [options]     Search, then scrape the hits")
	fmt.Println("  leadharvest adapters [-config <file>]    List registered adapters")
	fmt.Println("  leadharvest validate <config.yaml>       Validate a configuration file")
	fmt.Println("  leadharvest version                      Show version information")
	fmt.Println("  leadharvest help                         Show this help message")
	fmt.Println()
	fmt.Println("Run options:")
	fmt.Println("  -adapter <name>   Adapter to apply (default \"default\")")
	fmt.Println("  -task <type>      Task type: general, job or lead")
	fmt.Println("  -out <file>       Export results to .xlsx or .json")
	fmt.Println("  -max <n>          Cap search results for -query jobs")
}

func printVersion() {
	fmt.Printf("LeadHarvest %s\n", version)
	fmt.Printf("Build time: %s\n", buildTime)
	fmt.Printf("Git commit: %s\n", gitCommit)
}
