package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"Shurahub/internal/chatbot"
	"Shurahub/internal/config"
	"Shurahub/internal/tui"
)

func main() {
	cfg := config.Default()

	flag.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "Shurahub server origin (http or https)")
	flag.StringVar(&cfg.SessionCookie, "cookie", cfg.SessionCookie, "Value of the user-session cookie for a signed-in account")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite file for preferences and the local archive")
	flag.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for logs, traces and metrics")
	flag.StringVar(&cfg.Theme, "theme", cfg.Theme, "Theme used until one is saved (dark|light)")
	flag.StringVar(&cfg.UIMode, "ui", cfg.UIMode, "Front end (line|tui)")
	flag.BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "Render markdown without colors")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	flag.DurationVar(&cfg.FlushWindow, "flush-window", cfg.FlushWindow, "Debounce window for streamed text")
	flag.DurationVar(&cfg.ReconnectDelay, "reconnect-delay", cfg.ReconnectDelay, "Delay between websocket reconnect attempts")

	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}

	bot, err := chatbot.NewChatBot(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize chatbot: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.UIMode == config.UIModeTUI {
		err = tui.Run(ctx, bot)
	} else {
		err = bot.Run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
