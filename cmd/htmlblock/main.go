// Package main provides the htmlblock command: it manages the site rules
// that decide which elements are removed from which pages, and applies
// them to static HTML files or to a live browser page.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/entrhq/htmlblock/pkg/logging"
)

const version = "0.1.0" // Version of htmlblock

// Config holds the application configuration
type Config struct {
	DataDir     string
	ShowVersion bool
	Verbose     bool
}

func main() {
	config := parseFlags()

	if config.ShowVersion {
		fmt.Printf("htmlblock v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nShutting down gracefully...")
		cancel()
	}()

	logger := newLogger(config)
	defer logger.Close()

	app, err := newApp(config, os.Stdout, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := app.run(ctx, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses command line flags and environment variables
func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.DataDir, "data-dir", defaultDataDir(), "Directory holding rules, statistics and logs (or set HTMLBLOCK_DATA_DIR env var)")
	flag.BoolVar(&config.ShowVersion, "version", false, "Show version and exit")
	flag.BoolVar(&config.Verbose, "v", false, "Write logs to stderr instead of the session log file")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "htmlblock - remove unwanted elements from configured websites\n\n")
		fmt.Fprintf(os.Stderr, "Usage: htmlblock [options] <command> [arguments]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands:\n")
		fmt.Fprintf(os.Stderr, "  init                              Seed the default configuration\n")
		fmt.Fprintf(os.Stderr, "  status                            Show ON/OFF and the total blocked count\n")
		fmt.Fprintf(os.Stderr, "  enable | disable                  Toggle blocking globally\n")
		fmt.Fprintf(os.Stderr, "  sites list                        List site rules\n")
		fmt.Fprintf(os.Stderr, "  sites add -pattern P -selector S  Add a site rule\n")
		fmt.Fprintf(os.Stderr, "  sites update <id> [flags]         Edit a site rule\n")
		fmt.Fprintf(os.Stderr, "  sites toggle <id> on|off          Enable or disable a site rule\n")
		fmt.Fprintf(os.Stderr, "  sites delete <id>                 Delete a site rule\n")
		fmt.Fprintf(os.Stderr, "  stats [reset]                     Show or reset removal statistics\n")
		fmt.Fprintf(os.Stderr, "  import [-replace] <file.yaml>     Import site rules\n")
		fmt.Fprintf(os.Stderr, "  export [file.yaml]                Export site rules (stdout by default)\n")
		fmt.Fprintf(os.Stderr, "  clean -url U -in F [-out F]       Apply the matching rule to an HTML file\n")
		fmt.Fprintf(os.Stderr, "  watch -url U [-headless=false]    Keep a live browser page clean\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  HTMLBLOCK_DATA_DIR   Data directory (default ~/.htmlblock)\n")
	}

	flag.Parse()
	return config
}

func defaultDataDir() string {
	if dir := os.Getenv("HTMLBLOCK_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".htmlblock"
	}
	return filepath.Join(home, ".htmlblock")
}

func newLogger(config *Config) *logging.Logger {
	if config.Verbose {
		return logging.NewWriterLogger("htmlblock", os.Stderr)
	}

	logging.SetLogDirectory(filepath.Join(config.DataDir, "logs"))
	// On failure the returned logger falls back to stderr
	logger, _ := logging.NewLogger("htmlblock")
	return logger
}
