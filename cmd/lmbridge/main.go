package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ChamsBouzaiene/lmbridge/internal/backend"
	"github.com/ChamsBouzaiene/lmbridge/internal/config"
	"github.com/ChamsBouzaiene/lmbridge/internal/engine"
	"github.com/ChamsBouzaiene/lmbridge/internal/server"
	"github.com/ChamsBouzaiene/lmbridge/internal/store"
)

const version = "0.1.0"

func main() {
	// Load .env if present; env vars override the config file either way.
	_ = godotenv.Load()

	// stdout carries the protocol, so everything we say goes to stderr.
	log.SetOutput(os.Stderr)

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("lmbridge", flag.ExitOnError)
	baseURL := fs.String("base-url", "", "Serving API base URL (default: config file, then http://localhost:1234)")
	apiKey := fs.String("api-key", "", "API key for the serving API (local servers accept any placeholder)")
	maxTokens := fs.Int("max-tokens", 0, "Default completion cap (default: config file, then 2048)")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Println("lmbridge " + version)
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *apiKey != "" {
		cfg.APIKey = *apiKey
	}
	if *maxTokens > 0 {
		cfg.MaxTokens = *maxTokens
	}

	client := backend.NewLMStudioClient(cfg.BaseURL, cfg.APIKey)

	var opts []engine.Option
	if cfg.MaxTokens > 0 {
		opts = append(opts, engine.WithMaxTokens(cfg.MaxTokens))
	}
	eng := engine.New(store.New(), client, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("lmbridge %s serving MCP over stdio (backend %s)", version, client.BaseURL())
	return server.New(eng, client, version).Run(ctx)
}

func loadConfig() (*config.Config, error) {
	mgr, err := config.NewManager()
	if err != nil {
		return nil, err
	}
	cfg, err := mgr.Load()
	if err != nil {
		return nil, err
	}
	config.ApplyEnv(cfg)
	return cfg, nil
}
