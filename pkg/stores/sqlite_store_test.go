package stores

import (
	"context"
	"errors"
	"testing"
	"time"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

func TestNewSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Fatal("expected health check to fail before Init")
	}

	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestStoreMigrationsIdempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}

	var count int
	if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activations").Scan(&count); err != nil {
		t.Fatalf("activations table not accessible: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty table, got %d rows", count)
	}
}

func TestRecordAndGetActivation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	activation := &Activation{
		ID:            "act-001",
		Component:     "statestore",
		ComponentType: "state.redis",
		AppID:         "checkout",
		Namespace:     "prod",
		Status:        ActivationFailed,
		Error:         strPtr("pod name not set"),
		ErrorCode:     strPtr("POD_NAME_NOT_SET"),
		PropertyCount: 3,
		Duration:      42 * time.Millisecond,
		CreatedAt:     created,
	}

	if err := store.RecordActivation(ctx, activation); err != nil {
		t.Fatalf("failed to record activation: %v", err)
	}

	got, err := store.GetActivation(ctx, "act-001")
	if err != nil {
		t.Fatalf("failed to get activation: %v", err)
	}

	if got.Component != "statestore" || got.ComponentType != "state.redis" {
		t.Errorf("unexpected component: %s (%s)", got.Component, got.ComponentType)
	}
	if got.AppID != "checkout" || got.Namespace != "prod" {
		t.Errorf("unexpected identity: %s/%s", got.AppID, got.Namespace)
	}
	if got.Status != ActivationFailed {
		t.Errorf("expected status %s, got %s", ActivationFailed, got.Status)
	}
	if got.Error == nil || *got.Error != "pod name not set" {
		t.Errorf("unexpected error: %v", got.Error)
	}
	if got.ErrorCode == nil || *got.ErrorCode != "POD_NAME_NOT_SET" {
		t.Errorf("unexpected error code: %v", got.ErrorCode)
	}
	if got.PropertyCount != 3 {
		t.Errorf("expected 3 properties, got %d", got.PropertyCount)
	}
	if got.Duration != 42*time.Millisecond {
		t.Errorf("expected 42ms, got %v", got.Duration)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("expected created_at %v, got %v", created, got.CreatedAt)
	}
}

func TestRecordActivationDefaults(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.RecordActivation(ctx, &Activation{Status: ActivationSucceeded}); err == nil {
		t.Fatal("expected error for missing id")
	}

	activation := &Activation{
		ID:            "act-002",
		Component:     "pubsub",
		ComponentType: "pubsub.kafka",
		AppID:         "checkout",
		Status:        ActivationSucceeded,
	}
	if err := store.RecordActivation(ctx, activation); err != nil {
		t.Fatalf("failed to record activation: %v", err)
	}
	if activation.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	got, err := store.GetActivation(ctx, "act-002")
	if err != nil {
		t.Fatalf("failed to get activation: %v", err)
	}
	if got.Error != nil || got.ErrorCode != nil {
		t.Errorf("expected nil error fields, got %v / %v", got.Error, got.ErrorCode)
	}
}

func TestRecordActivationRejectsUnknownStatus(t *testing.T) {
	store := setupTestStore(t)

	err := store.RecordActivation(context.Background(), &Activation{
		ID:     "act-bad",
		Status: ActivationStatus("exploded"),
	})
	if err == nil {
		t.Fatal("expected check constraint violation")
	}
}

func TestGetActivationNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetActivation(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListActivations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixtures := []*Activation{
		{ID: "a1", Component: "statestore", ComponentType: "state.redis", AppID: "checkout", Status: ActivationSucceeded, CreatedAt: base},
		{ID: "a2", Component: "pubsub", ComponentType: "pubsub.kafka", AppID: "checkout", Status: ActivationDenied, CreatedAt: base.Add(time.Minute)},
		{ID: "a3", Component: "statestore", ComponentType: "state.redis", AppID: "orders", Status: ActivationFailed, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "a4", Component: "filter", ComponentType: "middleware.http.wasm", AppID: "orders", Status: ActivationSkipped, CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, a := range fixtures {
		if err := store.RecordActivation(ctx, a); err != nil {
			t.Fatalf("failed to record %s: %v", a.ID, err)
		}
	}

	tests := []struct {
		name   string
		filter ActivationFilter
		want   []string
	}{
		{name: "all newest first", filter: ActivationFilter{}, want: []string{"a4", "a3", "a2", "a1"}},
		{name: "by component", filter: ActivationFilter{Component: "statestore"}, want: []string{"a3", "a1"}},
		{name: "by app", filter: ActivationFilter{AppID: "checkout"}, want: []string{"a2", "a1"}},
		{name: "by status", filter: ActivationFilter{Status: ActivationDenied}, want: []string{"a2"}},
		{name: "combined", filter: ActivationFilter{Component: "statestore", AppID: "orders"}, want: []string{"a3"}},
		{name: "limit", filter: ActivationFilter{Limit: 2}, want: []string{"a4", "a3"}},
		{name: "offset", filter: ActivationFilter{Limit: 2, Offset: 2}, want: []string{"a2", "a1"}},
		{name: "no match", filter: ActivationFilter{AppID: "nobody"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListActivations(ctx, tt.filter)
			if err != nil {
				t.Fatalf("failed to list activations: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d activations, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestDeleteActivationsBefore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	old := &Activation{ID: "old", Component: "c", ComponentType: "t", AppID: "app", Status: ActivationSucceeded, CreatedAt: now.Add(-48 * time.Hour)}
	recent := &Activation{ID: "recent", Component: "c", ComponentType: "t", AppID: "app", Status: ActivationSucceeded, CreatedAt: now}
	for _, a := range []*Activation{old, recent} {
		if err := store.RecordActivation(ctx, a); err != nil {
			t.Fatalf("failed to record %s: %v", a.ID, err)
		}
	}

	deleted, err := store.DeleteActivationsBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}

	if _, err := store.GetActivation(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected old activation to be gone, got %v", err)
	}
	if _, err := store.GetActivation(ctx, "recent"); err != nil {
		t.Errorf("expected recent activation to remain: %v", err)
	}
}
