package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/fieldwave/promoter-backoffice/internal/config"
)

// configDisabled returns a Redis config with no backend, forcing the
// in-memory limiter.
func configDisabled() config.RedisConfig {
	return config.RedisConfig{}
}

func TestMemoryLimiter_EnforcesWindowLimit(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(context.Background(), "login:a", 3, now)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("expected attempt %d to be allowed", i+1)
		}
	}

	result, err := limiter.Allow(context.Background(), "login:a", 3, now)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if result.Allowed {
		t.Fatalf("expected fourth attempt in the window to be rejected")
	}
	if result.Remaining != 0 {
		t.Fatalf("expected remaining=0, got %d", result.Remaining)
	}
}

func TestMemoryLimiter_ResetsOnNewWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 2; i++ {
		if result, _ := limiter.Allow(context.Background(), "login:b", 2, now); !result.Allowed {
			t.Fatalf("expected attempt %d to be allowed", i+1)
		}
	}
	if result, _ := limiter.Allow(context.Background(), "login:b", 2, now); result.Allowed {
		t.Fatalf("expected limit to be hit")
	}

	later := now.Add(windowSeconds * time.Second)
	if result, _ := limiter.Allow(context.Background(), "login:b", 2, later); !result.Allowed {
		t.Fatalf("expected next window to allow again")
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Unix(1_700_000_000, 0)

	if result, _ := limiter.Allow(context.Background(), "login:a", 1, now); !result.Allowed {
		t.Fatalf("expected first key to be allowed")
	}
	if result, _ := limiter.Allow(context.Background(), "login:a", 1, now); result.Allowed {
		t.Fatalf("expected first key to be exhausted")
	}
	if result, _ := limiter.Allow(context.Background(), "login:other", 1, now); !result.Allowed {
		t.Fatalf("expected other key to be unaffected")
	}
}

func TestMemoryLimiter_ResetClearsCounter(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 2; i++ {
		if result, _ := limiter.Allow(context.Background(), "login:r", 2, now); !result.Allowed {
			t.Fatalf("expected attempt %d to be allowed", i+1)
		}
	}
	if result, _ := limiter.Allow(context.Background(), "login:r", 2, now); result.Allowed {
		t.Fatalf("expected limit to be hit")
	}

	if err := limiter.Reset(context.Background(), "login:r", now); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if result, _ := limiter.Allow(context.Background(), "login:r", 2, now); !result.Allowed {
		t.Fatalf("expected attempt after reset to be allowed")
	}
}

func TestManager_ResetClearsMemoryTier(t *testing.T) {
	manager := NewManager(configDisabled(), func() time.Time { return time.Unix(1_700_000_000, 0) }, nil)

	if result, _ := manager.Allow(context.Background(), "login:m", 1); !result.Allowed {
		t.Fatalf("expected first attempt to be allowed")
	}
	if result, _ := manager.Allow(context.Background(), "login:m", 1); result.Allowed {
		t.Fatalf("expected limit to be hit")
	}

	manager.Reset(context.Background(), "login:m")
	if result, _ := manager.Allow(context.Background(), "login:m", 1); !result.Allowed {
		t.Fatalf("expected attempt after reset to be allowed")
	}
}

func TestManager_FallsBackToMemoryWhenRedisDisabled(t *testing.T) {
	manager := NewManager(configDisabled(), func() time.Time { return time.Unix(1_700_000_000, 0) }, nil)

	for i := 0; i < 2; i++ {
		result, err := manager.Allow(context.Background(), "login:c", 2)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("expected attempt %d to be allowed", i+1)
		}
	}
	result, err := manager.Allow(context.Background(), "login:c", 2)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if result.Allowed {
		t.Fatalf("expected third attempt to be rejected")
	}
}

func TestManager_ZeroLimitAllowsEverything(t *testing.T) {
	manager := NewManager(configDisabled(), nil, nil)
	result, err := manager.Allow(context.Background(), "login:d", 0)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected zero limit to disable throttling")
	}
}
