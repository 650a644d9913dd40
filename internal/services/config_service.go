package services

import (
	"context"
	"errors"
	"log/slog"

	"budgetbook/internal/core"
	"budgetbook/internal/store"
)

// ConfigService owns the singleton cutoff configuration.
type ConfigService struct {
	store store.Store
}

func NewConfigService(s store.Store) *ConfigService {
	return &ConfigService{store: s}
}

// Get returns the cutoff configuration, creating it with no cutoff date on first read.
func (s *ConfigService) Get(ctx context.Context) (core.CutoffConfig, error) {
	cfg, err := loadCutoff(ctx, s.store)
	return cfg, wrapStoreErr("get", store.TableConfig, err)
}

// Save stores the cutoff date; a zero date clears it.
func (s *ConfigService) Save(ctx context.Context, cutoff core.Date) (core.CutoffConfig, error) {
	if !cutoff.IsZero() {
		if err := cutoff.Validate(); err != nil {
			return core.CutoffConfig{}, &core.ValidationError{Field: "cutoff_date", Err: err}
		}
	}

	var saved core.CutoffConfig
	err := store.Atomic(ctx, s.store, func(tx store.Store) error {
		rec, err := tx.Update(ctx, store.TableConfig, core.CutoffConfigID, store.Record{store.ColCutoffDate: dateValue(cutoff)})
		if errors.Is(err, store.ErrNotFound) {
			rec, err = tx.Insert(ctx, store.TableConfig, store.Record{
				store.ColID:         core.CutoffConfigID,
				store.ColCutoffDate: dateValue(cutoff),
			})
		}
		if err != nil {
			return err
		}
		saved = cutoffFromRecord(rec)
		return nil
	})
	if err != nil {
		return core.CutoffConfig{}, wrapStoreErr("save", store.TableConfig, err)
	}

	slog.InfoContext(ctx, "Cutoff date saved", "cutoff_date", saved.CutoffDate.String())
	return saved, nil
}

// loadCutoff reads the configuration row, inserting an empty one when absent.
func loadCutoff(ctx context.Context, st store.Store) (core.CutoffConfig, error) {
	rec, err := getByID(ctx, st, store.TableConfig, core.CutoffConfigID)
	if err == nil {
		return cutoffFromRecord(rec), nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return core.CutoffConfig{}, err
	}

	rec, err = st.Insert(ctx, store.TableConfig, store.Record{
		store.ColID:         core.CutoffConfigID,
		store.ColCutoffDate: nil,
	})
	if err != nil {
		return core.CutoffConfig{}, err
	}
	return cutoffFromRecord(rec), nil
}
