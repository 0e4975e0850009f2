package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MeterWatch/internal/config"
	"MeterWatch/internal/monitor"
	"MeterWatch/internal/notifier"
	"MeterWatch/internal/portal"
	"MeterWatch/internal/recorder"
	"MeterWatch/internal/state"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] MeterWatch starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}

	// Init Telegram notifier before validation so a setup failure can
	// still be reported to the chat when the bot itself is configured.
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)

	if err := cfg.Validate(); err != nil {
		if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
			if sendErr := tn.Send(notifier.FormatSetupFailure(err)); sendErr != nil {
				log.Printf("[WARN] report setup failure: %v", sendErr)
			}
		}
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init portal client
	client := portal.NewClient(
		cfg.Portal.URL,
		time.Duration(cfg.Portal.TimeoutSeconds)*time.Second,
		cfg.Portal.MaxAttempts,
		time.Duration(cfg.Portal.RetryDelaySeconds)*time.Second,
		cfg.Proxy,
	)
	log.Printf("[INFO] portal: %s (%s)", cfg.Portal.URL, client.Name())

	// Init state manager
	sm := state.NewManager(
		cfg.Monitor.StateFile,
		cfg.Monitor.LowBalanceThreshold,
		time.Duration(cfg.Monitor.LowIntervalHours)*time.Hour,
		time.Duration(cfg.Monitor.NormalIntervalHours)*time.Hour,
	)

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mon := monitor.New(ctx, client, sm, tn, rec, monitor.Options{
		CustomerNumbers: cfg.CustomerList(),
		Threshold:       cfg.Monitor.LowBalanceThreshold,
		ThrottleEnabled: cfg.Monitor.ThrottleEnabled,
	})

	// One-shot mode for external schedulers
	if os.Getenv("RUN_ONCE") == "true" {
		mon.RunOnce()
		return
	}

	if err := mon.Register(cfg.Monitor.Cron); err != nil {
		log.Fatalf("[FATAL] register cron task: %v", err)
	}
	mon.Start()
	defer mon.Stop()

	// Start Telegram polling
	go tn.StartPolling(ctx, mon.HandleCommand)
	log.Println("[INFO] Telegram polling started")

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing balance check now")
		go mon.RunOnce()
	}

	log.Println("[INFO] MeterWatch is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] MeterWatch stopped")
}
