// Command liveplot-renderer is the plot window process started by a
// liveplot session. It reads plot commands on stdin and writes events to
// stdout; logs go to stderr. It exits when stdin closes or the window does.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/liveplot/internal/config"
	"github.com/banshee-data/liveplot/internal/renderer"
	"github.com/banshee-data/liveplot/internal/renderer/window"
	"github.com/banshee-data/liveplot/internal/version"
)

func main() {
	cfg := config.DefaultRenderer()
	fs := cfg.FlagSet(os.Args[0], os.Stderr)
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if *showVersion {
		fmt.Println("liveplot-renderer", version.String())
		return
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("liveplot-renderer %s session=%s", version.String(), cfg.SessionID)
	err := renderer.Serve(ctx, cfg, os.Stdin, os.Stdout, window.Run)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("renderer failed: %v", err)
	}
}
