package config // package config loads application configuration from the environment

import (
    "errors"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
)

// Store and lock backends selectable at startup.
const (
    DriverMemory = "memory"
    DriverMySQL  = "mysql"
    DriverRedis  = "redis"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable; zero values are replaced by defaults in Load.
type Config struct {
    Port      string // HTTP port to listen on
    JWTSecret string // secret used to verify (and, in tests, sign) access tokens

    StoreDriver string // "memory" or "mysql"
    DBUser      string
    DBPass      string
    DBHost      string
    DBPort      string
    DBName      string
    DBMaxOpen   int
    DBMaxIdle   int

    LockBackend        string        // "memory" or "redis"
    SeatLockTTL        time.Duration // lifetime of an advisory seat lock
    SeatLockSweepEvery time.Duration // how often expired locks are swept

    BroadcastBuffer   int // per-subscriber event buffer
    ReserveMaxRetries int // version-conflict retries per reservation

    PaymentGatewayURL     string        // empty selects the in-process simulator
    PaymentTimeout        time.Duration // unpaid bookings older than this expire
    PaymentDeclineMethods []string      // methods the simulator declines
    BookingExpiryEvery    time.Duration

    ReconcileEvery time.Duration // how often stranded booked seats are looked for
    OrphanGrace    time.Duration // age before a seat bound to a missing booking is freed

    RabbitMQURL        string // empty disables the broker; notifications are logged
    NotificationLogDir string // where the consumer appends delivered notifications

    LogLevel  string
    LogFormat string

    SeedDemoShow bool
}

// Load reads an optional .env file and then the environment. Only
// JWT_SECRET is required; everything else has a usable default.
func Load() (Config, error) {
    // A missing .env file is normal outside local development.
    _ = godotenv.Load()

    cfg := Config{
        Port:      getenv("PORT", "8080"),
        JWTSecret: os.Getenv("JWT_SECRET"),

        StoreDriver: strings.ToLower(getenv("STORE_DRIVER", DriverMemory)),
        DBUser:      getenv("DB_USER", "root"),
        DBPass:      os.Getenv("DB_PASS"),
        DBHost:      getenv("DB_HOST", "127.0.0.1"),
        DBPort:      getenv("DB_PORT", "3306"),
        DBName:      getenv("DB_NAME", "seat_booking"),
        DBMaxOpen:   envInt("DB_MAX_OPEN", 25),
        DBMaxIdle:   envInt("DB_MAX_IDLE", 25),

        LockBackend:        strings.ToLower(getenv("LOCK_BACKEND", DriverMemory)),
        SeatLockTTL:        envDur("SEAT_LOCK_TTL", 5*time.Minute),
        SeatLockSweepEvery: envDur("SEAT_LOCK_SWEEP_INTERVAL", time.Minute),

        BroadcastBuffer:   envInt("BROADCAST_BUFFER", 64),
        ReserveMaxRetries: envInt("RESERVE_MAX_RETRIES", 5),

        PaymentGatewayURL:     os.Getenv("PAYMENT_GATEWAY_URL"),
        PaymentTimeout:        envDur("PAYMENT_TIMEOUT", 15*time.Minute),
        PaymentDeclineMethods: splitList(getenv("PAYMENT_DECLINE_METHODS", "declined-card")),
        BookingExpiryEvery:    envDur("BOOKING_EXPIRY_INTERVAL", time.Minute),

        ReconcileEvery: envDur("RECONCILE_INTERVAL", time.Minute),
        OrphanGrace:    envDur("ORPHAN_BOOKING_GRACE", 5*time.Minute),

        RabbitMQURL:        os.Getenv("RABBITMQ_URL"),
        NotificationLogDir: getenv("NOTIFICATION_LOG_DIR", "logs"),

        LogLevel:  getenv("LOG_LEVEL", "info"),
        LogFormat: getenv("LOG_FORMAT", "json"),

        SeedDemoShow: envBool("SEED_DEMO_SHOW", true),
    }
    return cfg, cfg.validate()
}

func (c Config) validate() error {
    var errs []error
    if c.JWTSecret == "" {
        errs = append(errs, errors.New("JWT_SECRET is required"))
    }
    if c.StoreDriver != DriverMemory && c.StoreDriver != DriverMySQL {
        errs = append(errs, errors.New("STORE_DRIVER must be memory or mysql"))
    }
    if c.LockBackend != DriverMemory && c.LockBackend != DriverRedis {
        errs = append(errs, errors.New("LOCK_BACKEND must be memory or redis"))
    }
    if c.SeatLockTTL <= 0 {
        errs = append(errs, errors.New("SEAT_LOCK_TTL must be positive"))
    }
    return errors.Join(errs...)
}

func getenv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    switch strings.ToLower(v) {
    case "1", "true", "yes", "on":
        return true
    case "0", "false", "no", "off":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if dur, err := time.ParseDuration(v); err == nil {
        return dur
    }
    return d
}

func splitList(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}
