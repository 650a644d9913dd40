package store_test

import (
	"context"
	"errors"
	"testing"

	"budgetbook/internal/store"
	"budgetbook/internal/store/memory"
	"budgetbook/internal/store/storetest"
)

func TestAtomicRollsBackJournaledWrites(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	keep, _ := mem.Insert(ctx, store.TableCategories, store.Record{store.ColDescription: "Keep"})
	gone, _ := mem.Insert(ctx, store.TableCategories, store.Record{store.ColDescription: "Gone"})

	fail := errors.New("boom")
	err := store.Atomic(ctx, mem, func(tx store.Store) error {
		if _, err := tx.Insert(ctx, store.TableCategories, store.Record{store.ColDescription: "New"}); err != nil {
			return err
		}
		if _, err := tx.Update(ctx, store.TableCategories, keep.Int64(store.ColID), store.Record{store.ColDescription: "Changed"}); err != nil {
			return err
		}
		if err := tx.Delete(ctx, store.TableCategories, gone.Int64(store.ColID)); err != nil {
			return err
		}
		return fail
	})
	if !errors.Is(err, fail) {
		t.Fatalf("got %v, want wrapped boom", err)
	}

	rows, _ := mem.Query(ctx, store.TableCategories, nil, []store.Order{store.Asc(store.ColID)})
	if len(rows) != 2 {
		t.Fatalf("got %d rows after rollback, want 2", len(rows))
	}
	if rows[0].Text(store.ColDescription) != "Keep" || rows[1].Text(store.ColDescription) != "Gone" {
		t.Errorf("rows not restored: %v", rows)
	}
	if rows[1].Int64(store.ColID) != gone.Int64(store.ColID) {
		t.Errorf("restored row got id %d, want %d", rows[1].Int64(store.ColID), gone.Int64(store.ColID))
	}
}

func TestAtomicReportsPartialWrite(t *testing.T) {
	ctx := context.Background()
	faulty := storetest.NewFaulty(memory.New())

	err := store.Atomic(ctx, faulty, func(tx store.Store) error {
		if _, err := tx.Insert(ctx, store.TableCategories, store.Record{store.ColDescription: "A"}); err != nil {
			return err
		}
		faulty.SetFailDeletes(true)
		return errors.New("second step failed")
	})

	var pw *store.PartialWriteError
	if !errors.As(err, &pw) {
		t.Fatalf("got %v, want *PartialWriteError", err)
	}
	if !errors.Is(pw.UndoErr, storetest.ErrInjected) {
		t.Errorf("undo error = %v, want injected failure", pw.UndoErr)
	}
}

func TestAtomicSuccessKeepsWrites(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	err := store.Atomic(ctx, mem, func(tx store.Store) error {
		_, err := tx.Insert(ctx, store.TableCategories, store.Record{store.ColDescription: "A"})
		return err
	})
	if err != nil {
		t.Fatalf("atomic: %v", err)
	}
	rows, _ := mem.Query(ctx, store.TableCategories, nil, nil)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
}

func TestHubSubscribeAndUnsubscribe(t *testing.T) {
	hub := store.NewHub()
	var got []int64
	unsub := hub.Subscribe(store.TableExpenses, func(ev store.ChangeEvent) { got = append(got, ev.ID) })
	hub.Subscribe(store.TableInstallments, func(store.ChangeEvent) { t.Error("wrong table notified") })

	hub.Publish(store.ChangeEvent{Table: store.TableExpenses, Kind: store.ChangeInsert, ID: 7})
	unsub()
	unsub()
	hub.Publish(store.ChangeEvent{Table: store.TableExpenses, Kind: store.ChangeInsert, ID: 8})

	if len(got) != 1 || got[0] != 7 {
		t.Errorf("got %v, want [7]", got)
	}
	if n := hub.Subscribers(store.TableExpenses); n != 0 {
		t.Errorf("subscribers = %d, want 0", n)
	}
}

func TestNormalizeRecord(t *testing.T) {
	tests := []struct {
		name    string
		table   store.Table
		rec     store.Record
		wantErr bool
	}{
		{"int widened", store.TableInstallments, store.Record{store.ColNumber: 3}, false},
		{"nullable nil", store.TableConfig, store.Record{store.ColCutoffDate: nil}, false},
		{"non-nullable nil", store.TableExpenses, store.Record{store.ColPurchaseDate: nil}, true},
		{"wrong type", store.TableExpenses, store.Record{store.ColPaid: "yes"}, true},
		{"unknown column", store.TableExpenses, store.Record{"x": 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.NormalizeRecord(tt.table, tt.rec)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
