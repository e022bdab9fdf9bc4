package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jl-grey-man/smbintel"
	"github.com/jl-grey-man/smbintel/allabolag"
	"github.com/jl-grey-man/smbintel/crawl"
	"github.com/jl-grey-man/smbintel/fs"
	"github.com/jl-grey-man/smbintel/gemini"
	"github.com/jl-grey-man/smbintel/gocache"
	"github.com/jl-grey-man/smbintel/goquery"
	smbhttp "github.com/jl-grey-man/smbintel/http"
	"github.com/jl-grey-man/smbintel/keyword"
	"github.com/jl-grey-man/smbintel/readability"
	smbslog "github.com/jl-grey-man/smbintel/slog"
	"github.com/jl-grey-man/smbintel/sqlite"
	"github.com/jl-grey-man/smbintel/trafilatura"
	"github.com/jl-grey-man/smbintel/verify"
	"github.com/joho/godotenv"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	m := NewMain()
	m.Stdin = os.Stdin

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Request spacing per domain for page fetches, liveness probes and
// registry lookups.
const (
	fetchInterval    = 2 * time.Second
	probeInterval    = 500 * time.Millisecond
	registryInterval = time.Second
)

const robotsTimeout = 10 * time.Second

// Bloom filter sizing for the ledger's negative lookups.
const (
	filterCapacity = 100_000
	filterFPRate   = 0.01
)

// Main represents the program.
type Main struct {
	// Database path and keyword directory. Set before calling Run().
	DBPath     string
	KeywordDir string

	// Stdin supplies URLs to ingest when none are given as arguments.
	Stdin io.Reader

	// SQLite database used by SQLite service implementations.
	DB *sqlite.DB
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	dir := defaultDataDir()
	return &Main{
		DBPath:     filepath.Join(dir, "smbintel.db"),
		KeywordDir: filepath.Join(dir, "keywords"),
		Stdin:      strings.NewReader(""),
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdin:  m.Stdin,
		Stdout: stdout,
		Stderr: stderr,
		Now:    time.Now,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("smbintel"),
		kong.Description("Collects and verifies business signals from Swedish web pages."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'smbintel --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	cmd := strings.Fields(kongCtx.Command())[0]

	if cli.DB != "" {
		m.DBPath = cli.DB
	}
	if cli.Keywords != "" {
		m.KeywordDir = cli.Keywords
	}

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	deps.Logger = logger

	if dir := filepath.Dir(m.DBPath); dir != "." {
		_ = os.MkdirAll(dir, 0755)
	}
	m.DB = sqlite.NewDB(m.DBPath)
	if err := m.DB.Open(); err != nil {
		fmt.Fprintf(stderr, "Hint: Set SMBINTEL_DB to use a different database path\n")
		return fmt.Errorf("failed to open database at %q: %w", m.DBPath, err)
	}
	defer m.Close()

	ledger := sqlite.NewLedgerService(m.DB)
	if err := ledger.WarmFilter(ctx, filterCapacity, filterFPRate); err != nil {
		return fmt.Errorf("failed to load ledger fingerprints: %w", err)
	}
	history := sqlite.NewUsageHistory(m.DB)
	store := fs.NewKeywordStore(m.KeywordDir)
	store.Logger = logger

	deps.Ledger = smbslog.NewLoggingLedger(ledger, logger)
	deps.Claims = sqlite.NewClaimService(m.DB)
	deps.Results = sqlite.NewVerificationService(m.DB)
	deps.Keywords = &keyword.Manager{
		Store:   store,
		History: history,
		Logger:  logger,
	}

	if cmd == "interpret" || (cmd == "evolve" && cli.Evolve.Suggest) {
		client, err := gemini.NewClient(ctx, cli.GeminiKey)
		if err != nil {
			fmt.Fprintln(stderr, "Hint: set GEMINI_API_KEY. Get an API key at https://aistudio.google.com/apikey")
			return fmt.Errorf("failed to connect to Gemini API: %w", err)
		}
		interp := gemini.NewInterpreter(client)
		advisor := gemini.NewAdvisor(client)
		if cli.Model != "" {
			interp.Model = cli.Model
			advisor.Model = cli.Model
		}
		deps.Interpreter = smbslog.NewLoggingInterpreter(interp, logger)
		deps.Advisor = advisor
	}

	switch cmd {
	case "ingest":
		fetcher := smbslog.NewLoggingFetcher(smbhttp.NewFetcher(), logger)
		defer fetcher.Close()

		extractor, err := newExtractor(cli.Ingest.Extractor)
		if err != nil {
			return err
		}

		deps.Crawler = &crawl.Crawler{
			Ledger:      deps.Ledger,
			Fetcher:     fetcher,
			Extractor:   extractor,
			RateLimiter: crawl.NewDomainLimiter(fetchInterval),
			Robots:      crawl.NewRobotsChecker(smbhttp.DefaultUserAgent, robotsTimeout),
			Concurrency: cli.Ingest.Concurrency,
			Logger:      logger,
		}

	case "verify":
		prober := smbhttp.NewProber(0)
		prober.Limiter = crawl.NewDomainLimiter(probeInterval)

		registry := allabolag.NewClient(0)
		registry.Limiter = crawl.NewDomainLimiter(registryInterval)

		deps.Verifier = &verify.Verifier{
			Ledger:   deps.Ledger,
			Claims:   deps.Claims,
			Results:  deps.Results,
			Prober:   smbslog.NewLoggingProber(prober, logger),
			Cache:    gocache.NewEnrichmentCache(sqlite.NewEnrichmentCache(m.DB, sqlite.DefaultCacheTTL), gocache.DefaultTTL),
			Registry: smbslog.NewLoggingRegistry(registry, logger),
			History:  history,
			Config:   verify.DefaultConfig(),
			Logger:   logger,
		}
	}

	return kongCtx.Run(deps)
}

// newExtractor returns the page text extractor with the given name.
func newExtractor(name string) (smbintel.Extractor, error) {
	switch name {
	case "goquery", "":
		return goquery.NewExtractor(), nil
	case "trafilatura":
		return trafilatura.NewExtractor(), nil
	case "readability":
		return readability.NewExtractor(), nil
	}
	return nil, smbintel.Errorf(smbintel.EINVALID, "unknown extractor %q", name)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".smbintel")
}
