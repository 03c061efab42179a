package tts_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nvail/echodrill/internal/tts"
	"github.com/nvail/echodrill/internal/tts/mock"
)

func TestCache_HitsBackendOncePerKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backend := &mock.Synthesizer{}
	cache := tts.NewCache(backend, 8)

	first, err := cache.Synthesize(ctx, "hello", tts.RoleCoach)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	second, err := cache.Synthesize(ctx, "hello", tts.RoleCoach)
	if err != nil {
		t.Fatalf("Synthesize (cached): %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("cached audio differs")
	}
	if got := len(backend.Calls()); got != 1 {
		t.Errorf("backend called %d times, want 1", got)
	}
}

func TestCache_KeyIncludesRole(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backend := &mock.Synthesizer{}
	cache := tts.NewCache(backend, 8)

	if _, err := cache.Synthesize(ctx, "hello", tts.RoleCoach); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if _, err := cache.Synthesize(ctx, "hello", tts.RoleUser); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got := len(backend.Calls()); got != 2 {
		t.Errorf("backend called %d times, want 2 (one per role)", got)
	}
}

func TestCache_ErrorsNotCached(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backend := &mock.Synthesizer{Err: errors.New("quota exceeded")}
	cache := tts.NewCache(backend, 8)

	if _, err := cache.Synthesize(ctx, "hello", tts.RoleUser); err == nil {
		t.Fatal("expected error")
	}
	if cache.Len() != 0 {
		t.Errorf("error cached, Len = %d", cache.Len())
	}

	backend.SetErr(nil)
	if _, err := cache.Synthesize(ctx, "hello", tts.RoleUser); err != nil {
		t.Fatalf("Synthesize after recovery: %v", err)
	}
	if cache.Len() != 1 {
		t.Errorf("Len = %d, want 1", cache.Len())
	}
}

func TestCache_EvictsOldestAtCapacity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backend := &mock.Synthesizer{}
	cache := tts.NewCache(backend, 2)

	for i := 0; i < 3; i++ {
		if _, err := cache.Synthesize(ctx, fmt.Sprintf("line %d", i), tts.RoleUser); err != nil {
			t.Fatalf("Synthesize: %v", err)
		}
	}
	if cache.Len() != 2 {
		t.Fatalf("Len = %d, want 2", cache.Len())
	}

	// The oldest entry is gone, so asking for it hits the backend again.
	if _, err := cache.Synthesize(ctx, "line 0", tts.RoleUser); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got := len(backend.Calls()); got != 4 {
		t.Errorf("backend called %d times, want 4", got)
	}
}

func TestCache_Clear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backend := &mock.Synthesizer{}
	cache := tts.NewCache(backend, 8)

	if _, err := cache.Synthesize(ctx, "hello", tts.RoleUser); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len after Clear = %d", cache.Len())
	}
	if _, err := cache.Synthesize(ctx, "hello", tts.RoleUser); err != nil {
		t.Fatalf("Synthesize after Clear: %v", err)
	}
	if got := len(backend.Calls()); got != 2 {
		t.Errorf("backend called %d times, want 2", got)
	}
}
