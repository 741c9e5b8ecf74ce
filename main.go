package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/insightdelivered/broker-activity-import/internal/api"
	"github.com/insightdelivered/broker-activity-import/internal/extractor"
	"github.com/insightdelivered/broker-activity-import/internal/models"
	"github.com/insightdelivered/broker-activity-import/internal/parser"
	"github.com/insightdelivered/broker-activity-import/internal/writer"
)

const version = "1.0.0"

func main() {
	formatFlag := flag.String("format", "json", "Output format: json or csv")
	outputFlag := flag.String("output", "", "Output file path (defaults to stdout)")
	headerFlag := flag.Bool("header", true, "Include column header row in CSV output")
	serveFlag := flag.Bool("serve", false, "Run the HTTP API instead of converting files")
	addrFlag := flag.String("addr", ":8080", "Listen address for --serve")
	logLevelFlag := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	versionFlag := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Broker Statement Activity Importer

Converts brokerage statement PDFs (comdirect, Fondsdepot Bank) into
normalized activity records (buys, sells, dividends).

Usage:
  broker-activity-import [flags] <statement.pdf> [statement2.pdf ...]
  broker-activity-import --serve

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Parse a statement and print the activities as JSON
  broker-activity-import abrechnung.pdf

  # Write all activities of several statements into one CSV
  broker-activity-import --format=csv --output=activities.csv jan.pdf feb.pdf

  # Run the HTTP API
  broker-activity-import --serve --addr=:8080
`)
	}

	flag.Parse()
	initLogger(*logLevelFlag)

	if *versionFlag {
		fmt.Printf("broker-activity-import v%s\n", version)
		os.Exit(0)
	}

	if *serveFlag {
		app := api.NewApp()
		slog.Info("starting HTTP API", "addr", *addrFlag)
		if err := app.Listen(*addrFlag); err != nil {
			fatalf("server failed: %v\n", err)
		}
		return
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	var activities []*models.Activity
	for _, inputPath := range flag.Args() {
		result, err := processFile(inputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", inputPath, err)
			os.Exit(1)
		}
		if !result.Successful {
			fmt.Fprintf(os.Stderr, "Could not parse %s: %s (status %d)\n",
				inputPath, statusText(result.Status), result.Status)
			os.Exit(1)
		}
		activities = append(activities, result.Activities...)
	}

	if err := writeOutput(activities, *formatFlag, *outputFlag, *headerFlag); err != nil {
		fatalf("output failed: %v\n", err)
	}
}

// processFile materializes one statement file and dispatches it.
func processFile(inputPath string) (*models.ParsedDocument, error) {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("input file not found: %s", inputPath)
	}

	parsed, err := extractor.MaterializeFile(inputPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("materialized document", "file", inputPath, "pages", len(parsed.Pages), "extension", parsed.Extension)

	result := parser.ParseActivitiesFromPages(parsed.Pages, parsed.Extension)
	return &models.ParsedDocument{
		File:       filepath.Base(inputPath),
		Activities: result.Activities,
		Status:     result.Status,
		Successful: result.Activities != nil && result.Status == models.StatusSuccess,
	}, nil
}

func writeOutput(activities []*models.Activity, format, outputPath string, includeHeader bool) error {
	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file %q: %w", outputPath, err)
		}
		defer f.Close()
		out = f
	}

	switch strings.ToLower(format) {
	case "csv":
		w := &writer.CSVWriter{IncludeHeader: includeHeader}
		return w.Write(out, activities)
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(activities)
	default:
		return fmt.Errorf("unknown output format %q, expected json or csv", format)
	}
}

func statusText(status models.ParserStatus) string {
	switch status {
	case models.StatusSuccess:
		return "success"
	case models.StatusUnknownImplementation:
		return "no handler recognized the document"
	case models.StatusAmbiguousImplementation:
		return "more than one handler recognized the document"
	case models.StatusFatalError:
		return "unrecoverable extraction fault"
	case models.StatusUnsupportedFiletype:
		return "unsupported file extension"
	case models.StatusNoActivities:
		return "document yielded no activities"
	case models.StatusInvalidActivities:
		return "one or more records failed validation"
	case models.StatusIgnoredDocument:
		return "recognized but intentionally unsupported document kind"
	default:
		return "unknown status"
	}
}

func initLogger(levelStr string) {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
