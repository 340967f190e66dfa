package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"github.com/docsetai/askdocs/internal/models"
	"github.com/docsetai/askdocs/internal/types"
	"github.com/docsetai/askdocs/pkg/attribute"
	"github.com/docsetai/askdocs/pkg/chat"
	cfgPkg "github.com/docsetai/askdocs/pkg/config"
	"github.com/docsetai/askdocs/pkg/extractor"
	"github.com/docsetai/askdocs/pkg/index"
	"github.com/docsetai/askdocs/pkg/ingest"
	"github.com/docsetai/askdocs/pkg/llm"
	"github.com/docsetai/askdocs/pkg/memory"
	"github.com/docsetai/askdocs/pkg/processor"
	"github.com/docsetai/askdocs/pkg/service"
	"github.com/docsetai/askdocs/server"
)

type flags struct {
	configPath string
	serve      bool
	addr       string
	corpusDir  string
	rebuild    bool
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to config file")
	flag.BoolVar(&f.serve, "serve", false, "Run the HTTP server instead of the interactive chat")
	flag.StringVar(&f.addr, "addr", ":8080", "HTTP listen address")
	flag.StringVar(&f.corpusDir, "corpus", "", "Corpus directory (overrides config)")
	flag.BoolVar(&f.rebuild, "rebuild", false, "Force a full reindex on startup")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	config, err := cfgPkg.LoadConfig(f.configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if f.corpusDir != "" {
		config.Corpus.Dir = f.corpusDir
	}
	if issues := config.Validate(); len(issues) > 0 {
		for _, issue := range issues {
			color.Red("config: %v", issue)
		}
		os.Exit(1)
	}

	if err := run(config, f); err != nil {
		log.Fatal(err)
	}
}

func run(config *cfgPkg.Config, f flags) error {
	ctx := context.Background()

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   config.LLM.EmbedModel,
		BaseURL: config.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:       config.LLM.Model,
		MaxTokens:   config.LLM.MaxTokens,
		BaseURL:     config.LLM.BaseURL,
		Temperature: config.LLM.Temperature,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat engine: %v", err)
	}

	chunker := processor.NewWithConfig(processor.ChunkerConfig{
		ChunkSize:    config.Processor.ChunkSize,
		ChunkOverlap: config.Processor.ChunkOverlap,
	})

	// drawn only once ingestion actually touches a file
	ingestBar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString("📄 Reading documents...")),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
	)
	ingestor := ingest.NewWithConfig(ingest.IngestorConfig{
		Dir: config.Corpus.Dir,
		OnProgress: func(path string) {
			ingestBar.Describe(color.CyanString("📄 Reading %s...", path))
			ingestBar.Add(1)
		},
	}, extractor.NewPDF(), chunker)

	store, cleanup, err := newSnapshotStore(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to initialize index storage: %v", err)
	}
	defer cleanup()

	manager := index.NewManager(index.ManagerConfig{
		TopK:      config.Index.TopK,
		BatchSize: config.Index.BatchSize,
		EmbedRate: config.Index.EmbedRateLimit,
	}, ingestor, embedder, store)

	indexSpinner := getSpinner("🔧 Preparing index...")
	var report *index.BuildReport
	if f.rebuild {
		report, err = manager.Rebuild(ctx)
	} else {
		err = manager.LoadOrInit(ctx)
	}
	indexSpinner.Finish()
	fmt.Print("\r")
	if report != nil {
		for _, fail := range report.Failures {
			color.Yellow("⚠ Skipped unreadable %s: %v", filepath.Base(fail.Path), fail.Err)
		}
	}
	if err != nil {
		if errors.Is(err, models.ErrIndexUnavailable) {
			color.Yellow("No documents indexed yet. Upload a PDF to %s to get started.", config.Corpus.Dir)
		} else {
			return fmt.Errorf("failed to prepare index: %v", err)
		}
	} else {
		color.Green("✓ Index ready (%d sources)", len(manager.Sources()))
	}

	engine := chat.NewWithConfig(chat.Config{TopK: config.Index.TopK},
		embedder, chatEngine, manager, memory.NewLog(), attribute.New(config.Attribution.Threshold))

	svc := service.NewWithConfig(service.ServiceConfig{Dir: config.Corpus.Dir}, manager, engine, ingestor)

	if f.serve {
		if config.Corpus.Watch {
			go func() {
				if err := svc.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("corpus watcher stopped: %v", err)
				}
			}()
		}
		return server.NewWithConfig(server.Config{Addr: f.addr}, svc).Start()
	}

	return chatLoop(ctx, svc)
}

func newSnapshotStore(ctx context.Context, config *cfgPkg.Config) (types.SnapshotStore, func(), error) {
	switch config.Index.Backend {
	case "pgvector":
		store, err := index.NewPGStore(ctx, index.PGStoreConfig{
			ConnString: config.Index.DatabaseURL,
			TableName:  config.Index.TableName,
			VectorDim:  config.Index.VectorDim,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return index.NewSQLiteStore(config.Index.Dir), func() {}, nil
	}
}

func chatLoop(ctx context.Context, svc *service.Service) error {
	color.Cyan("\nChat with your documents (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.EqualFold(question, "exit") {
			break
		}

		spinner := getSpinner("🤖 Thinking...")
		result, err := svc.Ask(ctx, question)
		spinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}

		assistantPrompt("Assistant: %s\n", result.Text)
		if len(result.CitedSources) > 0 {
			color.Blue("Sources: %s\n", strings.Join(result.CitedSources, ", "))
		}
	}

	return scanner.Err()
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
