package services_test

import (
	"context"
	"testing"

	"zbridge/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithScene(ctx, "sceneA")
	ctx = services.WithSection(ctx, "containers")
	ctx = services.WithRequestID(ctx, "req-123")

	if scene, ok := services.SceneFromContext(ctx); !ok || scene != "sceneA" {
		t.Fatalf("unexpected scene: %v %v", scene, ok)
	}
	if section, ok := services.SectionFromContext(ctx); !ok || section != "containers" {
		t.Fatalf("unexpected section: %v %v", section, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestSceneBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithScene(ctx, "")
	if _, ok := services.SceneFromContext(ctx); ok {
		t.Fatal("expected no scene value")
	}
}
