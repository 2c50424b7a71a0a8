package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SwapRelay/internal/api"
	"SwapRelay/internal/chain"
	"SwapRelay/internal/config"
	"SwapRelay/internal/devnet"
	"SwapRelay/internal/observability/alerting"
	"SwapRelay/internal/observability/metrics"
	"SwapRelay/internal/record"
	"SwapRelay/internal/storage/mysql"
	"SwapRelay/internal/web3/provider"
	"SwapRelay/pkg/logger"
)

// main 是 swaprelayd 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("swaprelayd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	lg := logger.Named("swaprelayd")

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	repo, err := openSettlementRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	queue, err := openQueue(cfg.Queue)
	if err != nil {
		return err
	}
	defer func() {
		if err := queue.Close(); err != nil {
			lg.Error("关闭结算队列失败", slog.Any("error", err))
		}
	}()

	dispatcher := buildAlerting(cfg.Alerting)

	dn, err := devnet.Build(*cfg, chain.WithLogHandler(record.SettledLogHandler(queue)))
	if err != nil {
		return err
	}
	swaps := chain.NewSwapService(dn.Executor, dn.Relay, chain.WithAlertDispatcher(dispatcher))

	indexer := record.NewIndexer(repo, queue,
		record.WithWorkerCount(cfg.Queue.Workers),
		record.WithAlertDispatcher(dispatcher),
	)
	indexerCtx, indexerCancel := context.WithCancel(ctx)
	defer indexerCancel()
	go func() {
		if err := indexer.Start(indexerCtx); err != nil && !errors.Is(err, context.Canceled) {
			lg.Error("结算索引器异常退出", slog.Any("error", err))
		}
	}()

	if cfg.Metrics.Address != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Metrics.Address); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("指标服务异常退出", slog.Any("error", err))
			}
		}()
	}

	var apiOpts []api.Option
	if cfg.Web3.ChainsFile != "" {
		registry, err := provider.NewRegistry(ctx, cfg.Web3)
		if err != nil {
			return err
		}
		defer registry.Close()
		lg.Info("已加载链配置", slog.Any("chains", registry.Chains()), slog.String("default", registry.DefaultChain()))
		apiOpts = append(apiOpts, api.WithChains(registry))
	}

	server := api.NewServer(cfg.Server.Address, swaps, repo, apiOpts...)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openSettlementRepository(ctx context.Context, cfg *config.Config) (mysql.SettlementRepository, error) {
	store := cfg.Storage.Settlements
	switch store.Driver {
	case "memory", "":
		return mysql.NewMemorySettlementRepository(cfg.Runtime.DataDir)
	case "mysql":
		return mysql.NewSQLSettlementRepository(ctx, mysql.Config{
			DSN:             store.DSN,
			MaxOpenConns:    store.MaxOpenConns,
			MaxIdleConns:    store.MaxIdleConns,
			ConnMaxLifetime: store.ConnMaxLifetime(),
			ConnMaxIdleTime: store.ConnMaxIdleTime(),
		})
	default:
		return nil, fmt.Errorf("未知的存储驱动: %s", store.Driver)
	}
}

func openQueue(cfg config.QueueConfig) (record.Queue, error) {
	switch cfg.Driver {
	case "", "memory":
		return record.NewMemoryQueue(cfg.Size), nil
	case "redis":
		return record.NewRedisQueue(record.RedisQueueConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Queue:     cfg.Redis.Queue,
			BlockWait: time.Duration(cfg.Redis.BlockWaitSeconds) * time.Second,
		})
	case "rabbitmq":
		return record.NewRabbitMQQueue(record.RabbitMQConfig{
			URL:      cfg.RabbitMQ.URL,
			Queue:    cfg.RabbitMQ.Queue,
			Prefetch: cfg.RabbitMQ.Prefetch,
			Durable:  true,
		})
	default:
		return nil, fmt.Errorf("未知的队列驱动: %s", cfg.Driver)
	}
}

func buildAlerting(cfg config.AlertingConfig) alerting.Dispatcher {
	var notifiers []alerting.Notifier
	if cfg.Log {
		notifiers = append(notifiers, &alerting.LogNotifier{})
	}
	if cfg.Webhook.URL != "" {
		timeout := time.Duration(cfg.Webhook.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		notifiers = append(notifiers, &alerting.WebhookNotifier{
			URL:     cfg.Webhook.URL,
			Headers: cfg.Webhook.Headers,
			Client:  &http.Client{Timeout: timeout},
		})
	}
	return alerting.NewFanout(notifiers...)
}
