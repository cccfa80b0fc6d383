// Package main is the honyaku CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kotobalab/honyaku/internal/config"
	"github.com/kotobalab/honyaku/internal/embedding"
	"github.com/kotobalab/honyaku/internal/extract"
	"github.com/kotobalab/honyaku/internal/kb"
	"github.com/kotobalab/honyaku/internal/llm"
	"github.com/kotobalab/honyaku/internal/progress"
	"github.com/kotobalab/honyaku/internal/server"
	"github.com/kotobalab/honyaku/internal/translate"
	"github.com/kotobalab/honyaku/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/honyaku/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence (for development); if neither
// exists, built-in defaults apply.
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
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
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
	case "translate":
		runTranslate()
	case "version", "--version", "-v":
		fmt.Printf("honyaku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Registry    *kb.Registry
	Controller  *kb.Controller
	Service     *kb.Service
	Pipeline    *translate.Pipeline
	Broadcaster *progress.Broadcaster
	Extractor   *extract.Extractor
	Embedder    embedding.Embedder
	Model       llm.LanguageModel
	logger      *zap.Logger
}

func (c *Components) Close() {
	if c.Controller != nil {
		if err := c.Controller.Close(); err != nil && c.logger != nil {
			c.logger.Warn("closing active store failed", zap.Error(err))
		}
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	var embedder embedding.Embedder
	var model llm.LanguageModel
	if cfg.Model.APIKey != "" {
		openaiEmbedder, err := embedding.NewOpenAIEmbedder(
			cfg.Model.APIKey,
			cfg.Model.BaseURL,
			cfg.Embedding.Model,
			cfg.Embedding.Dimensions,
			cfg.Embedding.BatchSize,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		embedder = openaiEmbedder

		openaiModel, err := llm.NewOpenAIModel(cfg.Model.APIKey, cfg.Model.BaseURL, cfg.Model.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize language model: %w", err)
		}
		model = openaiModel
	} else {
		logger.Warn("no API key configured: using deterministic hash embeddings, translation and query disabled")
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
		model = llm.Unconfigured{}
	}

	registry := kb.NewRegistry(cfg.Storage.RootPath)
	controller := kb.NewController(registry, embedder, logger)
	service := kb.NewService(controller, model, logger, cfg.Query.TopK, cfg.Query.SimilarityThreshold)
	extractor := extract.NewExtractor()
	pipeline := translate.NewPipeline(model, extractor, logger,
		cfg.Translation.ChunkSize,
		cfg.Storage.TranslationsDir,
		translate.Options{
			SourceLang: cfg.Translation.SourceLang,
			TargetLang: cfg.Translation.TargetLang,
			Country:    cfg.Translation.Country,
		})

	return &Components{
		Registry:    registry,
		Controller:  controller,
		Service:     service,
		Pipeline:    pipeline,
		Broadcaster: progress.NewBroadcaster(64),
		Extractor:   extractor,
		Embedder:    embedder,
		Model:       model,
		logger:      logger,
	}, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	defer janitorCancel()
	if cfg.Storage.SweepIntervalSecs > 0 {
		janitor := kb.NewJanitor(components.Registry, components.Controller,
			time.Duration(cfg.Storage.SweepIntervalSecs)*time.Second, logger)
		go janitor.Run(janitorCtx)
	}

	srv := server.NewServer(
		components.Registry,
		components.Controller,
		components.Service,
		components.Pipeline,
		components.Broadcaster,
		components.Extractor,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	janitorCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runTranslate() {
	fs := flag.NewFlagSet("translate", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	sourceLang := fs.String("source", "", "source language (default from config)")
	targetLang := fs.String("target", "", "target language (default from config)")
	country := fs.String("country", "", "target country for colloquial style (default from config)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: honyaku translate [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	opts := translate.Options{
		SourceLang: *sourceLang,
		TargetLang: *targetLang,
		Country:    *country,
	}
	_, outPath, err := components.Pipeline.TranslateFile(context.Background(), path, opts,
		func(completed int) {
			fmt.Printf("Translated chunk %d\n", completed)
		})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Translation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Translation written to %s\n", outPath)
}

func printUsage() {
	fmt.Println(`honyaku - document translation with switchable knowledge bases

Usage:
  honyaku server [flags]            Start the HTTP server
  honyaku translate [flags] <file>  Translate a document
  honyaku version                   Show version
  honyaku help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/honyaku/config.yaml)
  --debug            Enable debug logging

Translate Flags:
  --config string    Config file path
  --source string    Source language (default from config)
  --target string    Target language (default from config)
  --country string   Target country for colloquial style (default from config)

Examples:
  honyaku server
  honyaku translate document.pdf
  honyaku translate --target French --country France notes.txt`)
}
