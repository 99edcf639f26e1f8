package app

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-schedule/internal/config"
	"wisefido-schedule/internal/repository"
	"wisefido-schedule/internal/service"
	"wisefido-schedule/internal/store"

	"owl-common/database"
	rediscommon "owl-common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// App 按配置装配好的依赖（wisefido-schedule 与 schedulectl 共用）
type App struct {
	DB            *sql.DB       // DB 未启用时为 nil
	Redis         *redis.Client // Redis 未启用时为 nil
	SeriesService service.SeriesService
	logger        *zap.Logger
}

// New 装配仓储、锁、历史记录与变更通知
// DB 未启用时使用内存仓储；Redis 未启用时使用进程内锁且不发布变更通知
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	var (
		eventsRepo      repository.EventsRepository
		repetitionsRepo repository.RepetitionsRepository
		historiesRepo   repository.EventHistoriesRepository
	)
	if cfg.DBEnabled {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		a.DB = db
		eventsRepo = repository.NewPostgresEventsRepository(db)
		repetitionsRepo = repository.NewPostgresRepetitionsRepository(db)
		historiesRepo = repository.NewPostgresEventHistoriesRepository(db)
		logger.Info("DB enabled for wisefido-schedule")
	} else {
		eventsRepo = repository.NewMemoryEventsRepo()
		repetitionsRepo = repository.NewMemoryRepetitionsRepo()
		historiesRepo = repository.NewMemoryEventHistoriesRepo()
		logger.Warn("DB disabled, using in-memory repositories")
	}

	var publisher service.SeriesEventPublisher = service.NoopSeriesPublisher{}
	if cfg.RedisEnabled {
		client := rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(ctx, client); err != nil {
			a.Close()
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		a.Redis = client
		publisher = store.NewRedisSeriesPublisher(client, cfg.Series.EventStream)
	}

	var locker store.WorkerLocker
	switch cfg.Lock.Backend {
	case config.LockBackendRedis:
		locker = store.NewRedisWorkerLocker(a.Redis, cfg.Lock.TTL, cfg.Lock.Wait, logger)
	default:
		locker = store.NewLocalWorkerLocker()
	}

	var history service.HistorySink
	switch cfg.Audit.Sink {
	case config.AuditSinkHTTP:
		history = service.NewHTTPHistorySink(cfg.Audit.HttpAddress, logger)
	case config.AuditSinkLog:
		history = service.NewLogHistorySink(logger)
	default:
		history = service.NewRepositoryHistorySink(historiesRepo)
	}

	a.SeriesService = service.NewSeriesService(eventsRepo, repetitionsRepo, history, locker, publisher, logger)

	logger.Info("Schedule engine ready",
		zap.Bool("db_enabled", cfg.DBEnabled),
		zap.Bool("redis_enabled", cfg.RedisEnabled),
		zap.String("lock_backend", cfg.Lock.Backend),
		zap.String("audit_sink", cfg.Audit.Sink),
	)
	return a, nil
}

// Close 释放连接
func (a *App) Close() {
	if a.Redis != nil {
		if err := rediscommon.Close(a.Redis); err != nil {
			a.logger.Warn("Failed to close redis", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := database.Close(a.DB); err != nil {
			a.logger.Warn("Failed to close database", zap.Error(err))
		}
	}
}
