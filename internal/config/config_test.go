package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
    t.Setenv("JWT_SECRET", "s3cret")

    cfg, err := Load()
    require.NoError(t, err)
    assert.Equal(t, "8080", cfg.Port)
    assert.Equal(t, DriverMemory, cfg.StoreDriver)
    assert.Equal(t, DriverMemory, cfg.LockBackend)
    assert.Equal(t, 5*time.Minute, cfg.SeatLockTTL)
    assert.Equal(t, 15*time.Minute, cfg.PaymentTimeout)
    assert.Equal(t, 5, cfg.ReserveMaxRetries)
    assert.Equal(t, []string{"declined-card"}, cfg.PaymentDeclineMethods)
    assert.Equal(t, time.Minute, cfg.ReconcileEvery)
    assert.Equal(t, 5*time.Minute, cfg.OrphanGrace)
    assert.True(t, cfg.SeedDemoShow)
}

func TestLoad_Overrides(t *testing.T) {
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("STORE_DRIVER", "MySQL")
    t.Setenv("LOCK_BACKEND", "redis")
    t.Setenv("SEAT_LOCK_TTL", "90s")
    t.Setenv("PAYMENT_DECLINE_METHODS", "amex, ,bank ")
    t.Setenv("SEED_DEMO_SHOW", "off")
    t.Setenv("BROADCAST_BUFFER", "not-a-number")
    t.Setenv("ORPHAN_BOOKING_GRACE", "10m")

    cfg, err := Load()
    require.NoError(t, err)
    assert.Equal(t, DriverMySQL, cfg.StoreDriver)
    assert.Equal(t, DriverRedis, cfg.LockBackend)
    assert.Equal(t, 90*time.Second, cfg.SeatLockTTL)
    assert.Equal(t, []string{"amex", "bank"}, cfg.PaymentDeclineMethods)
    assert.False(t, cfg.SeedDemoShow)
    assert.Equal(t, 64, cfg.BroadcastBuffer)
    assert.Equal(t, 10*time.Minute, cfg.OrphanGrace)
}

func TestLoad_Invalid(t *testing.T) {
    t.Setenv("JWT_SECRET", "")
    t.Setenv("STORE_DRIVER", "postgres")

    _, err := Load()
    require.Error(t, err)
    assert.Contains(t, err.Error(), "JWT_SECRET")
    assert.Contains(t, err.Error(), "STORE_DRIVER")
}

func TestLoadRateLimitConfig(t *testing.T) {
    t.Setenv("RATE_LIMIT_CAPACITY", "0")
    t.Setenv("RATE_LIMIT_REFILL_PER_SEC", "3")

    cfg := LoadRateLimitConfig()
    assert.Equal(t, 1, cfg.Capacity)
    assert.Equal(t, 3, cfg.RefillTokens)
    assert.Equal(t, time.Second, cfg.RefillInterval)
    assert.GreaterOrEqual(t, cfg.TTL, 5*time.Second)
}
