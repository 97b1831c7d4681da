// Package app wires settings, logging, policy, store and metrics for the
// command-line tools.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/david/bidsense/internal/config"
	"github.com/david/bidsense/internal/db"
	"github.com/david/bidsense/internal/ingest"
	"github.com/david/bidsense/internal/logging"
	"github.com/david/bidsense/internal/metrics"
	"github.com/david/bidsense/internal/policy"
)

// Env is everything a tool needs for one invocation.
type Env struct {
	Settings *config.Settings
	Log      *zap.Logger
	Policy   *policy.Policy
	Store    db.Store
	Metrics  *metrics.Recorder
}

// Setup loads settings from configFile (or the default locations), builds
// the logger, loads the policy and opens the store.
func Setup(ctx context.Context, configFile string) (*Env, error) {
	settings, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	env, err := SetupWith(settings)
	if err != nil {
		return nil, err
	}

	store, err := db.Open(ctx, settings.Store.Driver, settings.Store.DSN(), env.Log)
	if err != nil {
		_ = env.Log.Sync()
		return nil, err
	}
	env.Store = store
	return env, nil
}

// SetupWith builds the logger, policy and metrics for settings without
// opening a store.
func SetupWith(settings *config.Settings) (*Env, error) {
	log, err := logging.New(settings.Log.Level, settings.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	pol, err := policy.Load(settings.Policy.Path)
	if err != nil {
		return nil, err
	}
	log.Info("policy loaded", zap.String("path", settings.Policy.Path), zap.String("digest", pol.Digest()))

	return &Env{
		Settings: settings,
		Log:      log,
		Policy:   pol,
		Metrics:  metrics.NewRecorder(),
	}, nil
}

// Pipeline returns a pipeline over the environment's store and policy.
func (e *Env) Pipeline() *ingest.Pipeline {
	return ingest.NewPipeline(e.Store, e.Policy, e.Log, e.Metrics)
}

// Close writes the metrics textfile when configured and releases the store.
func (e *Env) Close() error {
	var errs []error
	if err := e.Metrics.WriteTextfile(e.Settings.Metrics.Textfile); err != nil {
		errs = append(errs, err)
	}
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	_ = e.Log.Sync()
	return errors.Join(errs...)
}
