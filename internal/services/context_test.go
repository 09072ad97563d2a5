package services_test

import (
	"context"
	"testing"

	"crittersync/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithEntityID(ctx, 42)
	ctx = services.WithCommand(ctx, "categories diff")
	ctx = services.WithRunID(ctx, "run-123")

	if id, ok := services.EntityIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected entity id: %v %v", id, ok)
	}
	if cmd, ok := services.CommandFromContext(ctx); !ok || cmd != "categories diff" {
		t.Fatalf("unexpected command: %v %v", cmd, ok)
	}
	if rid, ok := services.RunIDFromContext(ctx); !ok || rid != "run-123" {
		t.Fatalf("unexpected run id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithCommand(ctx, "")
	ctx = services.WithRunID(ctx, "")
	if _, ok := services.CommandFromContext(ctx); ok {
		t.Fatal("expected no command value")
	}
	if _, ok := services.RunIDFromContext(ctx); ok {
		t.Fatal("expected no run id value")
	}
}
