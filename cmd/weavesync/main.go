// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/weavesync/weavesync/internal/adapter"
	"github.com/weavesync/weavesync/internal/config"
	"github.com/weavesync/weavesync/internal/crypto"
	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/internal/scheduler"
	"github.com/weavesync/weavesync/internal/session"
	"github.com/weavesync/weavesync/internal/store"
	"github.com/weavesync/weavesync/internal/telemetry"
	"github.com/weavesync/weavesync/internal/workers"
	"github.com/weavesync/weavesync/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("weavesync")
	cfg, err := config.GetStructuredConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	if cfg.Log.File != "" {
		log = logger.NewFileLogger("weavesync", cfg.Log.File)
	}
	logger.SetLevel(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.OpenSQLite(ctx, cfg.Storage.DatabasePath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open record database")
	}
	defer func() { _ = db.Close() }()

	records := store.NewSQLiteRecordStore(db)

	state, err := session.LoadState(cfg.Storage.StatePath)
	if err != nil {
		log.Fatal().Err(err).Msg("load sync state")
	}

	syncKey, err := crypto.DecodeRecoveryKey(cfg.Account.RecoveryKey)
	if err != nil {
		log.Fatal().Err(err).Msg("decode recovery key")
	}

	deviceGUID := cfg.Account.DeviceGUID
	if deviceGUID == "" {
		deviceGUID = uuid.NewString()
		log.Info().Str("guid", deviceGUID).Msg("generated device guid")
	}

	tokens := adapter.NewTokenClient(adapter.TokenClientConfig{
		BaseURL: cfg.Token.ServerURL,
		Timeout: cfg.Token.RequestTimeout,
	}, log)
	storage := adapter.NewStorageClient(adapter.StorageClientConfig{
		Timeout: cfg.Storage.RequestTimeout,
	}, log)

	sessionCfg := session.Config{
		Assertion:   cfg.Account.Assertion,
		SyncKey:     syncKey,
		AccountID:   cfg.Account.Email,
		Collections: cfg.Storage.Collections,
		DeviceGUID:  deviceGUID,
		Client: models.ClientRecord{
			Name:      cfg.Account.DeviceName,
			Type:      "desktop",
			Version:   buildVersion,
			Protocols: []string{"1.5"},
		},
	}

	backends := session.BackendProvider(func(string) store.RecordStore { return records })

	builder := telemetry.NewBuilder()

	factory := func(d session.Delegate) scheduler.Runner {
		return session.NewSession(sessionCfg, storage, tokens, state, backends, d, log.GetChildLogger())
	}
	sched := scheduler.New(cfg.Workers.SyncInterval, factory, builder, log)

	pool := []workers.Worker{sched}

	if cfg.Telemetry.BaseURL != "" {
		states := telemetry.NewStateStore(cfg.Telemetry.StatePath)
		subState, err := states.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("load telemetry state")
		}

		policy := telemetry.NewPolicy(telemetry.DefaultPolicyConfig(), subState)
		uploader := telemetry.NewUploader(telemetry.UploaderConfig{
			BaseURL:   cfg.Telemetry.BaseURL,
			Namespace: cfg.Telemetry.Namespace,
		}, log)
		pool = append(pool, telemetry.NewSubmitter(policy, states, uploader, builder, cfg.Telemetry.SubmitInterval, log))
	} else {
		log.Info().Msg("telemetry submission disabled")
	}

	// first run right away instead of waiting out a full interval
	sched.RequestSync()

	workers.NewWorkers(pool...).Run(ctx)

	log.Info().Msg("shut down cleanly")
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
