// Package main is the vecta CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/vecta/internal/chunk"
	"github.com/hyperjump/vecta/internal/cli"
	"github.com/hyperjump/vecta/internal/config"
	"github.com/hyperjump/vecta/internal/embedding"
	"github.com/hyperjump/vecta/internal/extract"
	"github.com/hyperjump/vecta/internal/models"
	"github.com/hyperjump/vecta/internal/progress"
	"github.com/hyperjump/vecta/internal/server"
	"github.com/hyperjump/vecta/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/vecta/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development), and when neither exists it
// returns the built-in defaults with an empty resolved path.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "embed":
		runEmbed()
	case "chunk":
		runChunk()
	case "models":
		runModels()
	case "version", "--version", "-v":
		fmt.Printf("vecta version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds the logger shared by every command.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, bool) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return cfg, logger, debugMode
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (model loads, batches, requests)")
	preload := fs.Bool("preload", false, "load the default model before accepting requests")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, _ := setup(*configPath, *debug)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if *preload {
		go func() {
			if _, err := components.Manager.Warm(ctx, ""); err != nil {
				logger.Warn("preload failed", zap.Error(err))
			}
		}()
	}

	srv := server.NewServer(components.Manager, components.Recorder, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func printEmbedUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: vecta embed [flags] [text...]\n\n")
	fmt.Fprintf(fs.Output(), "Text is all remaining arguments joined by spaces, the contents of --file, or stdin.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Strategies: whole (default), sentence, paragraph, manual (one unit per line).

Examples:
  vecta embed "The quick brown fox."
  vecta embed --strategy sentence --output ndjson "One. Two! Three?"
  vecta embed --file notes.docx --strategy paragraph --category Notes
  cat lines.txt | vecta embed --strategy manual --server http://localhost:8080
`)
}

func runEmbed() {
	args := reorderArgs(os.Args[2:])
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	serverURL := fs.String("server", "", "server URL (empty = embed in-process)")
	model := fs.String("model", "", "model name (default from config)")
	strategy := fs.String("strategy", "", "chunking strategy: whole, sentence, paragraph, or manual (default from config)")
	category := fs.String("category", "", "document category (default: Text Input)")
	subcategory := fs.String("subcategory", "", "document subcategory (default: Generated)")
	file := fs.String("file", "", "read text from a file (txt, md, pdf, docx, xlsx, odt, rtf)")
	pooling := fs.String("pooling", "", "pooling: mean or cls (default from config)")
	noNormalize := fs.Bool("no-normalize", false, "skip L2 normalization")
	batch := fs.Int("batch-size", 0, "texts per inference batch (default from config)")
	preload := fs.Bool("preload", false, "load the model before reading input")
	quiet := fs.Bool("quiet", false, "hide progress bars")
	outputFormat := fs.String("output", "text", "output format: text, json, or ndjson")
	fs.Usage = func() { printEmbedUsage(fs) }
	_ = fs.Parse(args)

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, logger, _ := setup(*configPath, *debug)
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	req := models.GenerateRequest{
		Model:       *model,
		Strategy:    *strategy,
		Category:    *category,
		Subcategory: *subcategory,
		Pooling:     *pooling,
		BatchSize:   *batch,
	}
	if *noNormalize {
		f := false
		req.Normalize = &f
	}

	var generate func(context.Context, models.GenerateRequest) (*models.GenerateResponse, error)
	var warm func(context.Context, string) error
	if *serverURL != "" {
		client := cli.NewClient(*serverURL, nil)
		generate = client.Generate
		warm = client.LoadModel
	} else {
		var sinks []embedding.ProgressSink
		if !*quiet {
			bars := progress.NewBarSink(os.Stderr)
			defer bars.Close()
			sinks = append(sinks, bars)
		}
		components, err := initializeComponents(ctx, cfg, logger, sinks...)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		generate = func(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error) {
			return components.Manager.Generate(ctx, req), nil
		}
		warm = func(ctx context.Context, model string) error {
			_, err := components.Manager.Warm(ctx, model)
			return err
		}
	}

	if *preload {
		if err := warm(ctx, *model); err != nil {
			fmt.Fprintf(os.Stderr, "Model loading error: %v\n", err)
			os.Exit(1)
		}
	}

	text, err := readInput(fs.Args(), *file, os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read input: %v\n", err)
		os.Exit(1)
	}
	req.Text = text

	resp, err := generate(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteGenerate(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if resp.Failed() {
		os.Exit(1)
	}
}

func runChunk() {
	args := reorderArgs(os.Args[2:])
	fs := flag.NewFlagSet("chunk", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	strategy := fs.String("strategy", "", "chunking strategy: whole, sentence, paragraph, or manual")
	file := fs.String("file", "", "read text from a file")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	text, err := readInput(fs.Args(), *file, os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read input: %v\n", err)
		os.Exit(1)
	}
	policy := chunk.NewPolicy(cfg.Chunking.DefaultStrategy)
	units, _ := policy.Split(text, *strategy)
	if err := cli.WriteUnits(os.Stdout, units, policy.Resolve(*strategy), format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runModels() {
	fs := flag.NewFlagSet("models", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = show in-process status)")
	load := fs.String("load", "", "load this model first")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx := context.Background()

	if *serverURL != "" {
		client := cli.NewClient(*serverURL, nil)
		if *load != "" {
			if err := client.LoadModel(ctx, *load); err != nil {
				fmt.Fprintf(os.Stderr, "Model loading error: %v\n", err)
				os.Exit(1)
			}
		}
		def, list, err := client.Models(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Listing models failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteModels(os.Stdout, def, list, format)
		return
	}

	cfg, logger, _ := setup(*configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()
	if *load != "" {
		if _, err := components.Manager.Warm(ctx, *load); err != nil {
			fmt.Fprintf(os.Stderr, "Model loading error: %v\n", err)
		}
	}
	_ = cli.WriteModels(os.Stdout, components.Manager.DefaultModel(), components.Manager.Models(), format)
}

// readInput returns the text to embed: the file's extracted text when file is set,
// else the positional args joined by spaces, else everything on stdin.
func readInput(args []string, file string, stdin io.Reader) (string, error) {
	if file != "" {
		return extract.NewExtractor().Extract(file)
	}
	if text := strings.Join(args, " "); strings.TrimSpace(text) != "" {
		return text, nil
	}
	if stdin == nil {
		return "", nil
	}
	if f, ok := stdin.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "", nil
		}
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// reorderArgs moves flags (and their values) that appear after the text to the front
// so flag.Parse sees them; the flag package stops at the first non-flag argument.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printUsage() {
	fmt.Println(`vecta - Local text embedding service

Usage:
  vecta server [flags]          Start the HTTP server
  vecta embed [flags] [text]    Embed text (args, --file, or stdin)
  vecta chunk [flags] [text]    Preview how text splits into units
  vecta models [flags]          Show model status
  vecta version                 Show version
  vecta help                    Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/vecta/config.yaml, then ./config.yaml)
  --debug            Enable debug logging
  --preload          Load the default model at startup

Embed Flags:
  --server string       Server URL; empty embeds in-process
  --model string        Model name (default from config)
  --strategy string     whole, sentence, paragraph, or manual
  --category string     Document category (default: Text Input)
  --subcategory string  Document subcategory (default: Generated)
  --file string         Read text from a document file
  --pooling string      mean or cls
  --no-normalize        Skip L2 normalization
  --batch-size int      Texts per inference batch
  --preload             Load the model before reading input
  --quiet               Hide progress bars
  --output string       text, json, or ndjson

Models Flags:
  --server string    Server URL; empty shows in-process status
  --load string      Load a model first
  --output string    text or json

Examples:
  vecta server --preload
  vecta embed --strategy sentence "One. Two! Three?"
  vecta embed --file report.pdf --strategy paragraph --output ndjson > report.ndjson
  vecta chunk --strategy manual --file lines.txt
  vecta models --server http://localhost:8080 --load Xenova/all-MiniLM-L6-v2`)
}
