// Command attic-server runs the Attic HTTP API with the ingestion engine,
// reminder scheduler, transcript inbox watcher, and optional backup loop.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atticlabs/attic/internal/backends"
	"github.com/atticlabs/attic/internal/backup"
	"github.com/atticlabs/attic/internal/config"
	"github.com/atticlabs/attic/internal/engine"
	"github.com/atticlabs/attic/internal/notify"
	"github.com/atticlabs/attic/internal/scheduler"
	"github.com/atticlabs/attic/internal/server"
	"github.com/atticlabs/attic/web/handlers"
)

// dbGetter matches stores that expose their database handle, used to read
// persisted settings at boot.
type dbGetter interface {
	GetDB() *sql.DB
}

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := backends.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Persisted settings override the environment once the store is open.
	if db, ok := store.(dbGetter); ok {
		if fromDB, err := config.LoadConfigFromDB(db.GetDB()); err == nil {
			cfg = fromDB
		} else {
			log.Printf("Warning: failed to load settings from database: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// No in-process extractor: extraction arrives through the push API.
	engineCfg := engine.DefaultConfig()
	eng, err := engine.NewEngine(store, nil, engineCfg)
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}
	if err := eng.Start(ctx); err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}

	addr, wsHub, err := server.Start(ctx, cfg, store, eng)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("Attic API running at http://%s", addr)

	var sched *scheduler.Scheduler
	if cfg.Features.EnableScheduler {
		schedCfg := scheduler.DefaultConfig()
		schedCfg.DefaultWebhookURL = cfg.Scheduler.WebhookURL
		if d, err := time.ParseDuration(cfg.Scheduler.PollInterval); err == nil {
			schedCfg.PollInterval = d
		}
		sched, err = scheduler.NewScheduler(store, schedCfg)
		if err != nil {
			log.Fatalf("Failed to initialize scheduler: %v", err)
		}
		sched.SetOnReminderDue(func(ownerID, reminderID string) {
			wsHub.BroadcastEvent(handlers.EventReminderDue, ownerID, reminderID)
		})
		if err := sched.Start(ctx); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	}

	var watcher *notify.InboxWatcher
	if cfg.Features.EnableInbox {
		watcher = notify.NewInboxWatcher(cfg.Storage.DataPath, eng)
		if err := watcher.Start(); err != nil {
			log.Printf("Warning: inbox watcher failed to start: %v", err)
			watcher = nil
		}
	}

	if cfg.Backup.BackupEnabled && cfg.Storage.StorageEngine != "postgres" {
		interval := 24 * time.Hour
		if d, err := time.ParseDuration(cfg.Backup.BackupInterval); err == nil {
			interval = d
		}
		backupSvc, err := backup.NewService(backup.Config{
			DBPath:    backends.SQLitePath(cfg),
			BackupDir: cfg.Backup.BackupPath,
			Interval:  interval,
			Verify:    cfg.Backup.BackupVerify,
			Retention: backup.RetentionPolicy{
				Hourly:  cfg.Backup.BackupRetentionHourly,
				Daily:   cfg.Backup.BackupRetentionDaily,
				Weekly:  cfg.Backup.BackupRetentionWeekly,
				Monthly: cfg.Backup.BackupRetentionMonthly,
			},
		})
		if err != nil {
			log.Printf("Warning: backup service unavailable: %v", err)
		} else {
			go func() {
				if err := backupSvc.Start(ctx); err != nil && err != context.Canceled {
					log.Printf("Backup service exited: %v", err)
				}
			}()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")

	if watcher != nil {
		watcher.Stop()
	}
	if sched != nil {
		sched.Stop()
	}
	if err := eng.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down engine: %v", err)
	}

	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}
