package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/jl-grey-man/smbintel"
	"github.com/jl-grey-man/smbintel/crawl"
	"github.com/jl-grey-man/smbintel/keyword"
	"github.com/jl-grey-man/smbintel/verify"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	Ledger      smbintel.Ledger
	Claims      smbintel.ClaimService
	Results     smbintel.VerificationService
	Keywords    *keyword.Manager
	Crawler     *crawl.Crawler
	Interpreter smbintel.Interpreter
	Advisor     smbintel.KeywordAdvisor
	Verifier    *verify.Verifier

	// Now returns the current time.
	Now func() time.Time
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	DB        string `name:"db" env:"SMBINTEL_DB" help:"Database path (default ~/.smbintel/smbintel.db)"`
	Keywords  string `name:"keywords" env:"SMBINTEL_KEYWORDS" help:"Keyword configuration directory (default ~/.smbintel/keywords)"`
	GeminiKey string `name:"gemini-key" env:"GEMINI_API_KEY" help:"Gemini API key"`
	Model     string `help:"Gemini model override"`
	Verbose   bool   `short:"v" help:"Enable debug logging"`

	Seed      SeedCmd      `cmd:"" help:"Create the first keyword configuration"`
	Queries   QueriesCmd   `cmd:"" help:"Build the next cycle's search queries"`
	Ingest    IngestCmd    `cmd:"" help:"Fetch result pages into the ledger"`
	Interpret InterpretCmd `cmd:"" help:"Extract candidate claims from pending pages"`
	Verify    VerifyCmd    `cmd:"" help:"Verify unverified and retryable claims"`
	Accepted  AcceptedCmd  `cmd:"" help:"List verified and weak claims"`
	Evolve    EvolveCmd    `cmd:"" help:"Apply keyword proposals"`
	Pass      PassCmd      `cmd:"" help:"Retire underperforming and stale exploration keywords"`
	Rollback  RollbackCmd  `cmd:"" help:"Restore the previous keyword configuration"`
}

// SeedCmd is the "seed" subcommand.
type SeedCmd struct {
	File string `arg:"" type:"existingfile" help:"YAML file with exploit and explore term lists"`
}

// QueriesCmd is the "queries" subcommand.
type QueriesCmd struct {
	Cycle string `help:"Cycle ID (generated when empty)"`
	JSON  bool   `help:"Print queries as JSON lines"`
}

// IngestCmd is the "ingest" subcommand.
type IngestCmd struct {
	URLs        []string `arg:"" optional:"" name:"url" help:"Result URLs (read from stdin when omitted)"`
	Term        string   `required:"" help:"Search term that produced the URLs"`
	Pool        string   `required:"" enum:"exploit,explore" help:"Pool of the search term"`
	Cycle       string   `required:"" help:"Cycle ID of the search"`
	Extractor   string   `default:"goquery" enum:"goquery,trafilatura,readability" help:"Page text extractor"`
	Concurrency int      `short:"c" default:"4" help:"Concurrent fetch limit"`
}

// InterpretCmd is the "interpret" subcommand.
type InterpretCmd struct{}

// VerifyCmd is the "verify" subcommand.
type VerifyCmd struct {
	TimeoutPolicy string `default:"retryable" enum:"retryable,terminal" help:"How a liveness timeout affects the verdict"`
}

// AcceptedCmd is the "accepted" subcommand.
type AcceptedCmd struct {
	Person       string        `help:"Only claims about this person"`
	Company      string        `help:"Only claims about this company"`
	Since        time.Duration `help:"Only claims verified within this duration"`
	NoDuplicates bool          `help:"Omit claims flagged as duplicates"`
	JSON         bool          `help:"Print claims as JSON lines"`
}

// EvolveCmd is the "evolve" subcommand.
type EvolveCmd struct {
	Proposals string        `type:"existingfile" help:"YAML file with add and retire proposals"`
	Suggest   bool          `help:"Ask Gemini for proposals based on recent accepted claims"`
	Since     time.Duration `default:"720h" help:"Window of accepted claims reviewed by --suggest"`
}

// PassCmd is the "pass" subcommand.
type PassCmd struct{}

// RollbackCmd is the "rollback" subcommand.
type RollbackCmd struct{}
