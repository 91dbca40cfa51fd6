// ESP32 IoT Copilot: guided ESP32 project design with deterministic pin
// assignment.
//
// The same workflow is served two ways: as an MCP server for AI coding
// tools, and as a REST + websocket API for the web UI.
//
// Usage:
//
//	esp32-copilot serve            # MCP server (stdio transport)
//	esp32-copilot http             # REST API and websocket events
//	esp32-copilot wiring <id>...   # print a wiring diagram
//	esp32-copilot update           # update to the latest version
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/esp32-copilot/internal/api"
	"github.com/HendryAvila/esp32-copilot/internal/config"
	"github.com/HendryAvila/esp32-copilot/internal/hardware"
	copilot "github.com/HendryAvila/esp32-copilot/internal/server"
	"github.com/HendryAvila/esp32-copilot/internal/updater"
	"github.com/HendryAvila/esp32-copilot/internal/wiring"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe()
	case "http":
		err = runHTTP()
	case "wiring":
		err = runWiring(os.Args[2:])
	case "update":
		err = runUpdate()
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Fprintf(os.Stderr, "esp32-copilot v%s\n", copilot.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	s, cleanup, err := copilot.New(cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go checkForUpdates(ctx)

	err = server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runHTTP() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	hub := api.NewHub(cfg.AllowsOrigin)
	svc, cleanup, err := copilot.NewService(cfg, hub)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.New(svc, cfg, hub, copilot.Version).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go checkForUpdates(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("esp32-copilot v%s listening on %s (data in %s)", copilot.Version, cfg.HTTPAddr, cfg.DataDir)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("shutting down")
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// runWiring resolves pins for the given component ids without touching
// any project. The diagram goes to stdout so it can be piped; warnings
// go to stderr.
func runWiring(args []string) error {
	fs := flag.NewFlagSet("wiring", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print the full resolution as JSON")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: esp32-copilot wiring [-json] <component-id>...\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	catalog, err := copilot.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return err
	}

	result, w, err := wiring.New(catalog, hardware.ESP32DevKit()).Wire(fs.Args())
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Result wiring.Result `json:"result"`
			Wiring wiring.Wiring `json:"wiring"`
		}{result, w})
	}

	fmt.Fprintln(os.Stdout, w.Diagram)
	for _, warn := range w.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warn)
	}
	return nil
}

// checkForUpdates prints a notice to stderr when a newer release exists.
// It runs in the background and stays silent on network failures.
func checkForUpdates(ctx context.Context) {
	res := updater.Check(ctx, copilot.Version)
	if res.UpdateAvailable {
		fmt.Fprintf(os.Stderr,
			"\n  Update available: v%s -> v%s\n"+
				"     Run: esp32-copilot update\n"+
				"     Release: %s\n\n",
			res.Current, res.Latest, res.ReleaseURL,
		)
	}
}

func runUpdate() error {
	fmt.Fprintf(os.Stderr, "Checking for updates...\n")
	installed, err := updater.Update(context.Background(), copilot.Version)
	if errors.Is(err, updater.ErrUpToDate) {
		fmt.Fprintf(os.Stderr, "Already at the latest version (v%s)\n", copilot.Version)
		return nil
	}
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Updated to v%s. Restart esp32-copilot to use it.\n", installed)
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `esp32-copilot v%s - guided ESP32 IoT project design

Usage:
  esp32-copilot serve                 Start the MCP server (stdio transport)
  esp32-copilot http                  Start the REST API and websocket events
  esp32-copilot wiring [-json] <id>...
                                      Resolve pins for catalog components
  esp32-copilot update                Update to the latest version
  esp32-copilot version               Print the version

Configuration:
  %s points at an optional YAML config file
  (data_dir, http_addr, cors_origins, llm_timeout, default_provider,
  default_model, catalog_file, target_hardware).

  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "esp32-copilot": {
        "command": "esp32-copilot",
        "args": ["serve"]
      }
    }
  }
`, copilot.Version, config.EnvPath)
}
