// Package main runs the zhihu-mcp server: an MCP tool server that
// publishes ideas and articles to Zhihu through an already-running,
// logged-in browser reachable over its DevTools endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zhihuops/zhihu-mcp/pkg/config"
	"github.com/zhihuops/zhihu-mcp/pkg/logging"
	"github.com/zhihuops/zhihu-mcp/pkg/publisher"
	"github.com/zhihuops/zhihu-mcp/pkg/server"
)

type cliFlags struct {
	transport   string
	port        int
	cdpEndpoint string
	configFile  string
	showVersion bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.transport, "transport", "sse", "MCP transport: sse or stdio")
	flag.IntVar(&f.port, "port", 8001, "listen port for the sse transport")
	flag.StringVar(&f.cdpEndpoint, "cdp", "", "DevTools endpoint of the running browser (overrides config)")
	flag.StringVar(&f.configFile, "config", "", "config file path (default ~/.zhihu-mcp/config.yaml)")
	flag.BoolVar(&f.showVersion, "version", false, "print version and exit")
	flag.Parse()
	return f
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		fmt.Printf("zhihu-mcp v%s\n", server.Version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nshutting down...")
		cancel()
	}()

	if err := run(ctx, flags); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, flags cliFlags) error {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return err
	}
	if flags.cdpEndpoint != "" {
		cfg.CDPEndpoint = flags.cdpEndpoint
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.NewLogger("zhihu-mcp")
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer log.Close()
	log.Infof("starting zhihu-mcp v%s (strategy %s, endpoint %s)", server.Version, cfg.Strategy, cfg.CDPEndpoint)

	engine, err := publisher.New(publisher.DialerFor(cfg), cfg, log)
	if err != nil {
		return err
	}

	srv := server.New(engine, log)

	switch flags.transport {
	case "stdio":
		return srv.ServeStdio()
	case "sse":
		return srv.ServeSSE(ctx, fmt.Sprintf(":%d", flags.port))
	default:
		return fmt.Errorf("unknown transport %q (must be sse or stdio)", flags.transport)
	}
}
