// Package chain runs relay calls the way a chain would: one transaction at a
// time, all-or-nothing, with logs published only once the transaction is
// committed.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	xerrors "SwapRelay/internal/errors"
	"SwapRelay/internal/ledger"
	"SwapRelay/pkg/logger"
)

// State is the ledger the executor commits against.
type State interface {
	ledger.Ledger
	Commit()
	DrainLogs() []ledger.Log
}

// LogHandler receives the logs of committed transactions.
type LogHandler func(ctx context.Context, txID string, log ledger.Log) error

// TxFunc is the body of a transaction.
type TxFunc func(ctx context.Context, l ledger.Ledger) error

// Executor serializes transactions against a State.
type Executor struct {
	mu       sync.Mutex
	state    State
	handlers []LogHandler
	logger   *slog.Logger
}

// ExecutorOption customises an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger 指定日志输出。
func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithLogHandler registers a handler for committed logs.
func WithLogHandler(h LogHandler) ExecutorOption {
	return func(e *Executor) {
		if h != nil {
			e.handlers = append(e.handlers, h)
		}
	}
}

// NewExecutor wraps state. Anything already journaled in state is committed.
func NewExecutor(state State, opts ...ExecutorOption) *Executor {
	e := &Executor{state: state, logger: logger.Named("chain")}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	state.Commit()
	return e
}

// Execute runs fn as one transaction and returns its id. If fn fails or
// panics every change it made is undone and no logs are published.
func (e *Executor) Execute(ctx context.Context, fn TxFunc) (string, error) {
	txID := uuid.NewString()
	logs, err := e.run(ctx, fn)
	if err != nil {
		return txID, err
	}
	e.dispatch(ctx, txID, logs)
	return txID, nil
}

func (e *Executor) run(ctx context.Context, fn TxFunc) (logs []ledger.Log, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := e.state.Snapshot()
	defer func() {
		if p := recover(); p != nil {
			err = xerrors.New(xerrors.CodeChainFailure, fmt.Sprintf("transaction panicked: %v", p))
		}
		if err != nil {
			e.state.RevertToSnapshot(snapshot)
			e.state.DrainLogs()
			return
		}
		e.state.Commit()
		logs = e.state.DrainLogs()
	}()
	return nil, fn(ctx, e.state)
}

func (e *Executor) dispatch(ctx context.Context, txID string, logs []ledger.Log) {
	for _, log := range logs {
		for _, handler := range e.handlers {
			if err := handler(ctx, txID, log); err != nil {
				e.logger.Error("日志处理失败",
					slog.String("tx_id", txID),
					slog.String("event", log.Name),
					slog.Any("error", err))
			}
		}
	}
}

// View gives fn serialized read access to the committed state.
func (e *Executor) View(fn func(l ledger.Ledger)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.state)
}
