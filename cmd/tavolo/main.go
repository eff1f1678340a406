package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/harunnryd/tavolo/pkg/tavolo"
	"github.com/harunnryd/tavolo/pkg/transports"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	dialTo := flag.String("dial_to", "", "destination number for an outbound test call")
	dialFrom := flag.String("dial_from", "", "caller ID for an outbound test call")
	dialURL := flag.String("dial_url", "", "override voice URL for an outbound test call")
	flag.Parse()

	cfg, err := tavolo.LoadConfig(*configPath)
	if err != nil {
		slog.Error("config_load_failed", "path", *configPath, "error", err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := tavolo.NewEngine(ctx, tavolo.EngineOptions{Config: cfg})
	if err != nil {
		slog.Error("engine_init_failed", "error", err.Error())
		os.Exit(1)
	}

	if err := app.Start(ctx); err != nil {
		slog.Error("engine_start_failed", "error", err.Error())
		os.Exit(1)
	}

	if *dialTo != "" && *dialFrom != "" {
		if dialer, ok := app.Transport().(transports.OutboundDialer); ok {
			callSID, err := dialer.Dial(ctx, *dialTo, *dialFrom, *dialURL)
			if err != nil {
				slog.Error("outbound_dial_failed", "error", err.Error())
			} else {
				slog.Info("outbound_dial_started", "call_sid", callSID)
			}
		} else {
			slog.Warn("transport_no_outbound_dialer")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	_ = app.Stop()
}
