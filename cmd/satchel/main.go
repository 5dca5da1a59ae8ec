// Command satchel inspects and maintains a satchel state directory: print
// store diagnostics, force a resync against the remote service, clear local
// state, or stream the change feed.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/satchelbase/satchel/internal/engine"
	"github.com/satchelbase/satchel/internal/logging"
	"github.com/satchelbase/satchel/pkg/model"
	"github.com/satchelbase/satchel/pkg/satchel"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding satchel.yml")
	inspect := flag.Bool("inspect", false, "Print store diagnostics (default)")
	resync := flag.Bool("resync", false, "Exchange local state with the remote service")
	reset := flag.Bool("reset", false, "Clear all local state")
	watch := flag.Bool("watch", false, "Stream change events until interrupted")
	flag.Parse()

	cfg, err := satchel.LoadConfig(*dir)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if err := logging.Initialize(cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Shutdown()
	cfg.Logger = slog.Default()

	openCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := satchel.Open(openCtx, *cfg)
	if err != nil {
		log.Fatalf("Failed to open satchel: %v", err)
	}

	var runErr error
	switch {
	case *resync:
		runErr = runResync(client)
	case *reset:
		runErr = runReset(client)
	case *watch:
		runErr = runWatch(client)
	case *inspect:
		runErr = runInspect(client, cfg)
	default:
		runErr = runInspect(client, cfg)
	}

	if err := client.Close(); err != nil {
		log.Printf("Error closing satchel: %v", err)
	}
	if runErr != nil {
		logging.Shutdown()
		log.Fatalf("Error: %v", runErr)
	}
}

func runInspect(client *satchel.Client, cfg *satchel.Config) error {
	report := struct {
		Actor  model.Key            `json:"actor"`
		Stores []engine.Diagnostics `json:"stores"`
		Remote string               `json:"remote"`
	}{
		Actor:  cfg.Actor,
		Stores: client.Diagnostics(),
	}

	switch {
	case cfg.Remote.BaseURL == "":
		report.Remote = "unconfigured"
	default:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.CheckAvailability(ctx); err != nil {
			report.Remote = "unreachable: " + err.Error()
		} else {
			report.Remote = "ok"
		}
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runResync(client *satchel.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.Resync(ctx); err != nil {
		if errors.Is(err, model.ErrUnavailable) {
			return fmt.Errorf("resync needs a configured remote service")
		}
		return err
	}
	log.Println("Resync complete.")
	return nil
}

func runReset(client *satchel.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.ResetAll(ctx); err != nil {
		return err
	}
	log.Println("Local state cleared.")
	return nil
}

func runWatch(client *satchel.Client) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	events, err := client.Watch(ctx)
	if err != nil {
		return err
	}

	log.Println("Watching the change feed. Ctrl-C to stop.")
	enc := json.NewEncoder(os.Stdout)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}
