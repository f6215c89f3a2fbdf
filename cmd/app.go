package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/review-cli/internal/accuracy"
	"github.com/sells-group/review-cli/internal/calibration"
	"github.com/sells-group/review-cli/internal/matchlock"
	"github.com/sells-group/review-cli/internal/store"
)

// appEnv holds the store and services shared by every command.
type appEnv struct {
	Store       store.Store
	Calibration *calibration.Manager
	Accuracy    *accuracy.Service
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initApp validates the config for mode, opens and migrates the store, and
// builds the services. Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	// Calibration and scoring of one match must never interleave.
	locks := matchlock.New()
	mgr := calibration.NewManager(cfg.Calibration, st, st, locks)
	return &appEnv{
		Store:       st,
		Calibration: mgr,
		Accuracy:    accuracy.NewService(cfg, st, mgr, locks),
	}, nil
}
