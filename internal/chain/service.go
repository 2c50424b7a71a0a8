package chain

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	xerrors "SwapRelay/internal/errors"
	"SwapRelay/internal/ledger"
	"SwapRelay/internal/observability/alerting"
	"SwapRelay/internal/observability/metrics"
	"SwapRelay/internal/relay"
	"SwapRelay/internal/web3"
	"SwapRelay/pkg/logger"
)

// Receipt is the outcome of a submitted swap.
type Receipt struct {
	TxID   string
	Result *relay.SettlementResult
}

// SwapService submits relay calls through an Executor.
type SwapService struct {
	exec    *Executor
	relay   *relay.Relay
	alerter alerting.Dispatcher
	logger  *slog.Logger
}

// ServiceOption customises a SwapService.
type ServiceOption func(*SwapService)

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(d alerting.Dispatcher) ServiceOption {
	return func(s *SwapService) {
		s.alerter = d
	}
}

// WithServiceLogger 指定日志输出。
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *SwapService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSwapService binds a relay to the executor that owns its ledger.
func NewSwapService(exec *Executor, r *relay.Relay, opts ...ServiceOption) *SwapService {
	s := &SwapService{exec: exec, relay: r, logger: logger.Named("swap")}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Relay returns the relay the service submits to.
func (s *SwapService) Relay() *relay.Relay { return s.relay }

// Swap runs the relay entry point as one transaction.
func (s *SwapService) Swap(ctx context.Context, call relay.Call) (*Receipt, error) {
	started := time.Now()
	var result *relay.SettlementResult
	txID, err := s.exec.Execute(ctx, func(ctx context.Context, _ ledger.Ledger) error {
		res, err := s.relay.SwapSingleChain(ctx, call)
		result = res
		return err
	})
	elapsed := time.Since(started)

	if err != nil {
		metrics.ObserveSwap(string(xerrors.CodeOf(err)), false, elapsed)
		logger.Audit().Warn("兑换交易失败",
			slog.String("tx_id", txID),
			slog.String("caller", call.Caller.Hex()),
			slog.String("code", string(xerrors.CodeOf(err))),
			slog.String("reason", relay.RevertReason(err)),
			slog.Any("error", err))
		s.emitAlert(ctx, txID, call.Caller, err)
		return nil, err
	}

	metrics.ObserveSwap("settled", result.GrossOutput.Sign() == 0, elapsed)
	s.logger.Info("兑换交易已提交", slog.String("tx_id", txID), slog.Duration("elapsed", elapsed))
	return &Receipt{TxID: txID, Result: result}, nil
}

// Balance returns the committed holding of asset by holder.
func (s *SwapService) Balance(holder, asset common.Address) *big.Int {
	var out *big.Int
	s.exec.View(func(l ledger.Ledger) {
		if s.relay.Settings().IsNative(asset) {
			out = l.NativeBalance(holder)
			return
		}
		out = l.TokenBalance(asset, holder)
	})
	return out
}

// Allowance returns the committed allowance of spender over owner's asset.
func (s *SwapService) Allowance(asset, owner, spender common.Address) *big.Int {
	var out *big.Int
	s.exec.View(func(l ledger.Ledger) {
		out = l.Allowance(asset, owner, spender)
	})
	return out
}

func (s *SwapService) emitAlert(ctx context.Context, txID string, caller common.Address, cause error) {
	if s.alerter == nil || !xerrors.ShouldAlert(cause) {
		return
	}
	if err := s.alerter.Notify(ctx, alerting.EventFromError(cause, txID, caller.Hex())); err != nil {
		logger.L().Error("告警通知失败", slog.Any("error", err), slog.String("tx_id", txID))
	}
}

// Reader exposes committed balances through the web3.Reader interface so a
// preflight can run against the devnet.
func (s *SwapService) Reader() web3.Reader {
	return ledgerReader{s: s}
}

type ledgerReader struct {
	s *SwapService
}

func (r ledgerReader) NativeBalance(_ context.Context, holder common.Address) (*big.Int, error) {
	var out *big.Int
	r.s.exec.View(func(l ledger.Ledger) { out = l.NativeBalance(holder) })
	return out, nil
}

func (r ledgerReader) TokenBalance(_ context.Context, token, holder common.Address) (*big.Int, error) {
	var out *big.Int
	r.s.exec.View(func(l ledger.Ledger) { out = l.TokenBalance(token, holder) })
	return out, nil
}

func (r ledgerReader) Allowance(_ context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return r.s.Allowance(token, owner, spender), nil
}
