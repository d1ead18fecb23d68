package wasmhost

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

// emptyModule is the smallest valid WASM binary: magic number and version.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestHostInstantiate(t *testing.T) {
	ctx := context.Background()

	for _, strict := range []bool{true, false} {
		host, err := NewHost(ctx, Config{StrictSandbox: strict, AllowEnv: []string{"HOME"}}, testLogger())
		if err != nil {
			t.Fatalf("NewHost() error = %v", err)
		}

		if _, err := host.Instantiate(ctx, "filter", emptyModule); err != nil {
			t.Fatalf("Instantiate() error = %v", err)
		}
		if _, ok := host.Module("filter"); !ok {
			t.Error("Module() did not return the instantiated module")
		}
		if _, err := host.Instantiate(ctx, "filter", emptyModule); err == nil {
			t.Error("expected error instantiating a duplicate name")
		}

		if err := host.Close(ctx); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if err := host.Close(ctx); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
		if _, err := host.Instantiate(ctx, "other", emptyModule); err == nil {
			t.Error("expected error instantiating on a closed host")
		}
	}
}

func TestHostEnforcesStrictSandbox(t *testing.T) {
	ctx := context.Background()

	host, err := NewHost(ctx, Config{StrictSandbox: true, AllowEnv: []string{"HOME"}, AllowFS: "/"}, testLogger())
	if err != nil {
		t.Fatalf("NewHost() error = %v", err)
	}
	defer host.Close(ctx)

	cfg := host.Config()
	if len(cfg.AllowEnv) != 0 || cfg.AllowFS != "" {
		t.Errorf("strict host kept passthrough: %+v", cfg)
	}
	if cfg.MemoryLimitPages != DefaultMemoryLimitPages {
		t.Errorf("MemoryLimitPages = %d", cfg.MemoryLimitPages)
	}
}

func TestHostInvalidModule(t *testing.T) {
	ctx := context.Background()

	host, err := NewHost(ctx, Config{}, testLogger())
	if err != nil {
		t.Fatalf("NewHost() error = %v", err)
	}
	defer host.Close(ctx)

	if _, err := host.Instantiate(ctx, "broken", []byte("not wasm")); err == nil {
		t.Error("expected error for invalid module")
	}
}
