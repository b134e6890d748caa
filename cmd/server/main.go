package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/seat-booking/internal/broadcast"
	"github.com/iliyamo/seat-booking/internal/config"
	"github.com/iliyamo/seat-booking/internal/database"
	"github.com/iliyamo/seat-booking/internal/handler"
	"github.com/iliyamo/seat-booking/internal/locktable"
	"github.com/iliyamo/seat-booking/internal/logging"
	"github.com/iliyamo/seat-booking/internal/middleware"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/payment"
	"github.com/iliyamo/seat-booking/internal/queue"
	"github.com/iliyamo/seat-booking/internal/repository"
	"github.com/iliyamo/seat-booking/internal/router"
	"github.com/iliyamo/seat-booking/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	logger := logrus.WithField("service", "seat-booking")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.ToContext(ctx, logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
	logger.Info("server stopped")
}

// showCreator is implemented by both stores; only the demo seed uses it.
type showCreator interface {
	CreateShow(ctx context.Context, show *model.Show) error
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Entry) error {
	health := &handler.Health{Checks: map[string]handler.Check{}}

	var (
		shows    repository.ShowStore
		bookings repository.BookingStore
		inbox    repository.NotificationStore
		seeder   showCreator
	)
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		db, err := database.Open(ctx, database.Options{
			User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
			MaxOpen: cfg.DBMaxOpen, MaxIdle: cfg.DBMaxIdle,
		})
		if err != nil {
			return fmt.Errorf("open mysql: %w", err)
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		showRepo := repository.NewShowRepo(db)
		shows, bookings, seeder = showRepo, repository.NewBookingRepo(db), showRepo
		inbox = repository.NewNotificationRepo(db)
		health.Checks["mysql"] = db.PingContext
	default:
		mem := repository.NewMemoryStore()
		shows, bookings, inbox, seeder = mem, mem, mem, mem
		logger.Warn("using the in-memory store; bookings are lost on restart")
	}

	rateCfg := config.LoadRateLimitConfig()
	var rdb *redis.Client
	if cfg.LockBackend == config.DriverRedis || rateCfg.Enabled {
		rdb = config.NewRedisClient(ctx)
		if rdb == nil {
			logger.Warn("redis unreachable; rate limiting disabled")
		} else {
			defer rdb.Close()
			health.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
	}

	hub := broadcast.NewHub(logger, cfg.BroadcastBuffer)
	defer hub.Close()

	lockOpts := []locktable.Option{locktable.WithTTL(cfg.SeatLockTTL)}
	var locks locktable.Table
	if cfg.LockBackend == config.DriverRedis && rdb != nil {
		locks = locktable.NewRedisTable(rdb, hub, "", lockOpts...)
	} else {
		if cfg.LockBackend == config.DriverRedis {
			logger.Warn("redis unreachable; seat locks fall back to process memory")
		}
		locks = locktable.NewMemoryTable(hub, lockOpts...)
	}

	var gateway payment.Gateway
	if cfg.PaymentGatewayURL != "" {
		gateway = payment.NewHTTPGateway(cfg.PaymentGatewayURL, 10*time.Second)
	} else {
		gateway = payment.NewSimulator(cfg.PaymentDeclineMethods...)
		logger.Info("using the payment simulator")
	}

	var (
		notifier service.Notifier = queue.LogNotifier{Logger: logger.WithField("component", "notifications"), Inbox: inbox}
		consumer *queue.Consumer
	)
	if cfg.RabbitMQURL != "" {
		pub := queue.NewPublisher(cfg.RabbitMQURL, logger)
		defer pub.Close()
		notifier = pub
		consumer = queue.NewConsumer(cfg.RabbitMQURL, cfg.NotificationLogDir, inbox, logger)
	}

	selection := service.NewSeatSelection(shows, locks, hub)
	coordinator := service.NewCoordinator(shows, bookings, locks, hub, cfg.ReserveMaxRetries)
	settler := service.NewSettler(bookings, shows, hub, gateway, notifier)
	canceller := service.NewCanceller(bookings, shows, hub, notifier)
	expirer := service.NewExpirer(bookings, shows, hub, notifier, cfg.PaymentTimeout)
	queries := service.NewBookingQueries(bookings)
	reconciler := service.NewReconciler(shows, bookings, hub, cfg.OrphanGrace)

	if cfg.SeedDemoShow {
		if err := seedDemoShow(ctx, seeder); err != nil {
			return fmt.Errorf("seed demo show: %w", err)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))
	router.RegisterRoutes(e, health)
	router.RegisterAPI(e,
		handler.NewSeatHandler(selection, hub),
		handler.NewBookingHandler(coordinator, settler, canceller, queries),
		handler.NewNotificationHandler(inbox),
		cfg.JWTSecret,
		middleware.NewTokenBucket(rateCfg, rdb),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("port", cfg.Port).Info("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// end the event streams first; Shutdown waits for open handlers
		_ = hub.Close()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		return e.Shutdown(sctx)
	})
	g.Go(func() error { return locktable.RunSweeper(gctx, locks, cfg.SeatLockSweepEvery) })
	g.Go(func() error { return expirer.Run(gctx, cfg.BookingExpiryEvery) })
	g.Go(func() error { return reconciler.Run(gctx, cfg.ReconcileEvery) })
	if consumer != nil {
		g.Go(func() error { return consumer.Run(gctx) })
	}
	return g.Wait()
}

// seedDemoShow creates "demo-show": rows A to E with ten seats each, the
// first two rows premium. An existing show is left alone.
func seedDemoShow(ctx context.Context, store showCreator) error {
	show := &model.Show{ID: "demo-show", SeatCatalog: map[string]model.SeatInfo{}}
	for r, row := range "ABCDE" {
		info := model.SeatInfo{SeatType: "standard", Price: decimal.RequireFromString("10.00")}
		if r < 2 {
			info = model.SeatInfo{SeatType: "premium", Price: decimal.RequireFromString("15.00")}
		}
		for n := 1; n <= 10; n++ {
			show.SeatCatalog[fmt.Sprintf("%c%d", row, n)] = info
		}
	}
	err := store.CreateShow(ctx, show)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil
	}
	if err == nil {
		logging.FromContext(ctx).WithField("show_id", show.ID).Info("demo show seeded")
	}
	return err
}
