package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/hpungsan/stockpile/internal/config"
	"github.com/hpungsan/stockpile/internal/db"
	"github.com/hpungsan/stockpile/internal/inventory"
	"github.com/hpungsan/stockpile/internal/logging"
	"github.com/hpungsan/stockpile/internal/mcp"
	"github.com/hpungsan/stockpile/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"add": true, "update": true, "delete": true,
	"list": true, "categories": true, "sort": true,
	"export": true, "import": true, "report": true,
	"serve": true, "help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return cliCommands[arg] || isHelpOrVersion(args)
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if f is a terminal (not piped).
func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
       _             _          _ _
   ___| |_ ___   ___| | ___ __ (_) | ___
  / __| __/ _ \ / __| |/ / '_ \| | |/ _ \
  \__ \ || (_) | (__|   <| |_) | | |  __/
  |___/\__\___/ \___|_|\_\ .__/|_|_|\___|
                         |_|
  Local inventory list manager

  Usage: stockpile <command> [options]
         stockpile --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal(os.Stdin) {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(os.Args) {
		if err := newCLIApp(nil).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if !isCLIMode(os.Args) && len(os.Args) >= 2 && isTerminal(os.Stdin) {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'stockpile --help' for usage.\n")
		os.Exit(1)
	}

	os.Exit(run())
}

// run opens storage and dispatches to CLI or MCP mode. It returns the exit code
// so deferred cleanup runs before the process exits.
func run() int {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		return 1
	}
	baseDir := filepath.Join(homeDir, config.DirName)

	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		return 1
	}

	log := logging.New(cfg.LogLevel, isTerminal(os.Stderr))

	database, err := db.Init(baseDir)
	if err != nil {
		log.Error().Err(err).Str("dir", baseDir).Msg("failed to initialize database")
		return 1
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	store, err := inventory.Open(db.NewKV(database), inventory.WithLogger(log))
	if err != nil {
		log.Error().Err(err).Msg("failed to load inventory")
		return 1
	}

	deps := &appDeps{
		store:  store,
		policy: ops.NewPathPolicy(baseDir, cfg),
		cfg:    cfg,
		log:    log,
	}

	if isCLIMode(os.Args) {
		if err := newCLIApp(deps).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	// MCP server mode (default)
	warnUnknownDisabled(log, cfg)
	if err := mcp.Run(store, deps.policy, cfg, Version); err != nil {
		log.Error().Err(err).Msg("mcp server stopped")
		return 1
	}
	return 0
}

// warnUnknownDisabled logs disabled_tools and disabled_types entries that match nothing.
func warnUnknownDisabled(log zerolog.Logger, cfg *config.Config) {
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Warn().Strs("tools", unknown).Msg("unknown tools in disabled_tools")
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		log.Warn().Strs("types", unknown).Msg("unknown types in disabled_types")
	}
}
