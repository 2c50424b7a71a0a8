package record

import (
	"context"
	"log/slog"
	"time"

	xerrors "SwapRelay/internal/errors"
	"SwapRelay/internal/ledger"
	"SwapRelay/internal/observability/alerting"
	"SwapRelay/internal/relay"
	"SwapRelay/pkg/logger"
)

// Saver 是 Indexer 写入记录所需的存储能力。
type Saver interface {
	Save(ctx context.Context, rec Record) error
}

// Indexer 负责从队列消费结算记录并写入存储。
type Indexer struct {
	saver       Saver
	consumer    Consumer
	workerCount int
	logger      *slog.Logger
	alerter     alerting.Dispatcher
}

// IndexerOption 定义可选配置。
type IndexerOption func(*Indexer)

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) IndexerOption {
	return func(i *Indexer) {
		if workers > 0 {
			i.workerCount = workers
		}
	}
}

// WithIndexerLogger 指定日志输出。
func WithIndexerLogger(l *slog.Logger) IndexerOption {
	return func(i *Indexer) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) IndexerOption {
	return func(i *Indexer) {
		i.alerter = dispatcher
	}
}

// NewIndexer 构造 Indexer。
func NewIndexer(saver Saver, consumer Consumer, opts ...IndexerOption) *Indexer {
	i := &Indexer{
		saver:       saver,
		consumer:    consumer,
		workerCount: 1,
		logger:      logger.Named("indexer"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i
}

// Start 启动消费循环，直到 ctx 取消或队列关闭。
func (i *Indexer) Start(ctx context.Context) error {
	if i.consumer == nil || i.saver == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "索引器未配置队列或存储")
	}
	return i.consumer.Consume(ctx, i.workerCount, i.handle)
}

func (i *Indexer) handle(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		i.logger.Warn("跳过无效记录", slog.String("record_id", rec.ID), slog.Any("error", err))
		return nil
	}
	if err := i.saver.Save(ctx, rec); err != nil {
		wrapped := xerrors.Wrap(xerrors.CodeStorageFailure, err, "保存结算记录失败",
			xerrors.WithMetadata(xerrors.MetaStage, "index"))
		i.logger.Error("保存结算记录失败", slog.Any("error", err), slog.String("record_id", rec.ID), slog.String("tx_id", rec.TxID))
		i.emitAlert(ctx, rec, wrapped)
		return wrapped
	}
	i.logger.Debug("结算记录已入库", slog.String("record_id", rec.ID), slog.String("tx_id", rec.TxID))
	return nil
}

func (i *Indexer) emitAlert(ctx context.Context, rec Record, cause error) {
	if i.alerter == nil || !xerrors.ShouldAlert(cause) {
		return
	}
	if err := i.alerter.Notify(ctx, alerting.EventFromError(cause, rec.TxID, rec.Caller)); err != nil {
		logger.L().Error("告警通知失败", slog.Any("error", err), slog.String("tx_id", rec.TxID))
	}
}

// SettledLogHandler 把已提交交易中的 Settled 日志转换为记录并投递到队列。
// 返回值可以直接注册为 chain.Executor 的日志处理器。
func SettledLogHandler(producer Producer) func(ctx context.Context, txID string, log ledger.Log) error {
	return func(ctx context.Context, txID string, log ledger.Log) error {
		if log.Name != relay.SettledEvent {
			return nil
		}
		settled, ok := log.Data.(relay.SettlementRecord)
		if !ok {
			return xerrors.New(xerrors.CodeInvalidArgument, "Settled log carries unexpected payload")
		}
		rec := FromSettlement(txID, log.Address, settled, time.Now().UTC())
		if err := producer.Publish(ctx, rec); err != nil {
			return xerrors.Wrap(xerrors.CodeQueueFailure, err, "投递结算记录失败",
				xerrors.WithMetadata("tx_id", txID))
		}
		return nil
	}
}
