// Package main is the skfed CLI entry point.
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
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/skfed/internal/assistant"
	"github.com/hyperjump/skfed/internal/cli"
	"github.com/hyperjump/skfed/internal/completion"
	"github.com/hyperjump/skfed/internal/config"
	"github.com/hyperjump/skfed/internal/indexer"
	"github.com/hyperjump/skfed/internal/keyword"
	"github.com/hyperjump/skfed/internal/server"
	"github.com/hyperjump/skfed/internal/storage"
	"github.com/hyperjump/skfed/internal/watcher"
	"github.com/hyperjump/skfed/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/skfed/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory takes precedence if it exists. Returns the path actually loaded.
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
	case "ask":
		runAsk()
	case "import":
		runImport()
	case "reindex":
		runReindex()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("skfed version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
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
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("search_backend", cfg.Assistant.SearchBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	logger.Info("completion service configured",
		zap.String("base_url", cfg.Completion.BaseURL),
		zap.String("model", components.Completion.Model()))
	if err := components.Completion.CheckConfig(); err != nil {
		logger.Warn("chat requests will fail until the completion API key is set",
			zap.String("api_key_env", cfg.Completion.APIKeyEnv))
	}
	// The store may have been written by other clients since the last run.
	if stats, err := components.Indexer.Sync(ctx); err != nil {
		logger.Warn("initial keyword sync failed", zap.Error(err))
	} else {
		logger.Info("keyword index synced",
			zap.Int("events", stats.Events),
			zap.Int("announcements", stats.Announcements),
			zap.Int("removed", stats.Removed))
	}

	if len(cfg.Watch.Directories) > 0 {
		w := newImportWatcher(ctx, cfg, components.Indexer, logger)
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
		go w.SyncExisting()
	}

	srv := server.NewServer(components.Assistant, components.Storage, components.KeywordIndex, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

// newImportWatcher re-imports workbooks dropped into the configured watch directories.
func newImportWatcher(ctx context.Context, cfg *config.Config, idx *indexer.Indexer, logger *zap.Logger) *watcher.Watcher {
	exts := cfg.Watch.Extensions
	return watcher.NewWatcher(
		cfg.Watch.Directories,
		exts,
		func(path string) {
			res, err := idx.ImportFile(ctx, path, exts)
			if err != nil {
				logger.Warn("watch import failed", zap.String("path", path), zap.Error(err))
				return
			}
			logger.Info("watch import finished",
				zap.String("path", path),
				zap.Int("events", res.Events),
				zap.Int("announcements", res.Announcements),
				zap.Int("registrations", res.Registrations),
				zap.Int("skipped", len(res.Skipped)))
		},
		watcher.WithLogger(logger),
	)
}

// argsReorder moves flags (and the values of non-boolean flags) in front of the
// positional arguments so that flag.Parse sees them; the flag package stops at the
// first non-flag argument. Positionals keep their relative order.
func argsReorder(fs *flag.FlagSet, args []string) []string {
	flags := make([]string, 0, len(args))
	var positionals []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			positionals = append(positionals, args[i+1:]...)
			break
		}
		if len(a) < 2 || a[0] != '-' {
			positionals = append(positionals, a)
			continue
		}
		flags = append(flags, a)
		name := strings.TrimLeft(a, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if f := fs.Lookup(name); f != nil && !isBoolFlag(f) && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	return append(flags, positionals...)
}

func isBoolFlag(f *flag.Flag) bool {
	bf, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && bf.IsBoolFlag()
}

// joinMessage joins positional args so a question works with or without shell quoting.
func joinMessage(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: skfed ask [flags] <message>\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  skfed ask what events are coming up
  skfed ask --server "" --show-context "how many joined the basketball cup?"
  skfed ask --output json latest announcements
`)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (in-process mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = run the assistant in-process)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	showContext := fs.Bool("show-context", false, "print the data context sent to the model (in-process mode)")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(argsReorder(fs, os.Args[2:]))

	message := joinMessage(fs.Args())
	if message == "" {
		printAskUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serverURL != "" {
		// Use the HTTP API when a server is running; it holds the Bleve lock.
		reply, err := cli.PostChat(ctx, nil, *serverURL, message)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteAnswer(os.Stdout, &assistant.Answer{Response: reply}, format, false); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewCLILogger(cfg.Debug || *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ans, err := components.Assistant.Answer(ctx, message)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed (%d): %s\n", assistant.StatusForError(err), assistant.MessageForError(err))
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, ans, format, *showContext); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(argsReorder(fs, os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: skfed import [flags] <file.xlsx|directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		n, err := components.Indexer.ImportDirectory(ctx, path, cfg.Watch.Extensions)
		if err != nil {
			fmt.Printf("Import of directory failed after %d file(s): %v\n", n, err)
			os.Exit(1)
		}
		fmt.Printf("Imported %d file(s) from %s\n", n, path)
		return
	}
	// Single file: no extension filter beyond what the importer supports.
	res, err := components.Indexer.ImportFile(ctx, path, nil)
	if res != nil {
		cli.WriteImportResult(os.Stdout, path, res)
	}
	if err != nil {
		fmt.Printf("Import failed: %v\n", err)
		os.Exit(1)
	}
}

func runReindex() {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	stats, err := components.Indexer.Sync(ctx)
	if err != nil {
		fmt.Printf("Reindex failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Indexed %d event(s) and %d announcement(s); removed %d stale entr(ies)\n",
		stats.Events, stats.Announcements, stats.Removed)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct storage mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	var status *cli.StatusReport
	if *serverURL != "" {
		status, err = cli.FetchStatus(ctx, nil, *serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewCLILogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		status, err = localStatus(ctx, cfg, components)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	}

	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// localStatus builds the same report the server's status endpoint returns.
func localStatus(ctx context.Context, cfg *config.Config, c *Components) (*cli.StatusReport, error) {
	events, err := c.Storage.CountEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	announcements, err := c.Storage.CountAnnouncements(ctx)
	if err != nil {
		return nil, fmt.Errorf("count announcements: %w", err)
	}
	registrations, err := c.Storage.CountRegistrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	status := &cli.StatusReport{
		Events:        events,
		Announcements: announcements,
		Registrations: registrations,
		Config: &cli.StatusConfig{
			StorageDriver:   cfg.Storage.Driver,
			CompletionModel: cfg.Completion.Model,
			SearchBackend:   cfg.Assistant.SearchBackend,
			BleveIndexPath:  cfg.Storage.BleveIndexPath,
		},
	}
	if c.KeywordIndex != nil {
		if n, err := c.KeywordIndex.DocCount(); err == nil {
			status.KeywordIndexDocs = &n
		}
	}
	dbPath := ""
	if cfg.Storage.Driver == config.DriverSQLite {
		dbPath = cfg.Storage.DatabasePath
		status.Config.DatabasePath = dbPath
	}
	if usage, err := storage.MeasureDiskUsage(dbPath, cfg.Storage.BleveIndexPath); err == nil {
		total := usage.Total()
		status.DiskUsageBytes = &total
		status.DiskUsage = &usage
	}
	return status, nil
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	KeywordIndex *keyword.BleveIndex
	Completion   *completion.Client
	Assistant    *assistant.Service
	Indexer      *indexer.Indexer
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

// newSearcher returns the search backend for the assistant. A nil result means
// substring search through the store.
func newSearcher(cfg *config.AssistantConfig, kw *keyword.BleveIndex, store storage.Storage, logger *zap.Logger) (assistant.Searcher, error) {
	switch backend := cfg.SearchBackend; backend {
	case config.SearchBackendSQL, "":
		return nil, nil
	case config.SearchBackendBleve:
		if kw == nil {
			return nil, errors.New("bleve search backend requires a keyword index")
		}
		return keyword.NewSearcher(kw, store,
			keyword.WithSearchOptions(&keyword.SearchOptions{
				TitleBoost:   2.0,
				FuzzyEnabled: cfg.SearchFuzzy,
				Fuzziness:    1,
			}),
			keyword.WithCorrector(keyword.NewCorrector(kw)),
			keyword.WithLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("unknown search backend: %s (supported: sql, bleve)", backend)
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.Open(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Storage: store}

	if cfg.Storage.BleveIndexPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.BleveIndexPath), 0755); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}
	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.KeywordIndex = keywordIndex

	searcher, err := newSearcher(&cfg.Assistant, keywordIndex, store, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Completion = completion.New(&cfg.Completion, completion.WithLogger(logger))
	gatherer := assistant.NewGatherer(store, searcher, assistant.LimitsFromConfig(&cfg.Assistant), logger)
	c.Assistant = assistant.NewService(c.Completion, gatherer, assistant.WithLogger(logger))
	c.Indexer = indexer.NewIndexer(store, keywordIndex, indexer.WithLogger(logger))
	return c, nil
}

func printUsage() {
	fmt.Println(`skfed - youth-council federation assistant

Usage:
  skfed server [flags]                  Start the HTTP server
  skfed ask [flags] <message>           Ask the assistant a question
  skfed import [flags] <file|directory> Import events, announcements and registrations from .xlsx
  skfed reindex [flags]                 Rebuild the keyword index from the store
  skfed status [flags]                  Show store/index status
  skfed version                         Show version
  skfed help                            Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/skfed/config.yaml)
  --debug            Enable debug logging

Ask Flags:
  --config string    Config file path (in-process mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to run in-process.
  --output string    Output format: text or json (default: text)
  --show-context     Print the data context sent to the model (in-process mode)

Import / Reindex Flags:
  --config string    Config file path

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --output string    Output format: text or json (default: text)

Examples:
  skfed server
  skfed ask "what events are coming up?"
  skfed ask --server "" --show-context how many joined the basketball cup
  skfed import ./federation.xlsx
  skfed reindex
  skfed status --output json`)
}
