// Package relay implements a custodial swap relay: it takes custody of a
// caller's input, forwards a single call to a configured aggregator router,
// measures what came back, deducts a fixed basis-point fee and pays out the
// rest. A call either settles fully or leaves no trace.
package relay

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	xerrors "SwapRelay/internal/errors"
	"SwapRelay/internal/ledger"
	"SwapRelay/internal/route"
	"SwapRelay/pkg/logger"
)

// Relay is one deployed relay instance.
type Relay struct {
	address  common.Address
	settings Settings
	ledger   ledger.Ledger
	router   Router
	decoder  route.Decoder
	logger   *slog.Logger
	guard    guard
}

// Option customises a Relay.
type Option func(*Relay)

// WithDecoder overrides the routing payload decoder.
func WithDecoder(decoder route.Decoder) Option {
	return func(r *Relay) {
		if decoder != nil {
			r.decoder = decoder
		}
	}
}

// WithLogger overrides the relay logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

// New binds a relay at address to its ledger and router.
func New(address common.Address, settings Settings, l ledger.Ledger, router Router, opts ...Option) (*Relay, error) {
	if address == (common.Address{}) {
		return nil, xerrors.New(CodeInvalidConfig, "relay address must not be the zero address")
	}
	if settings.Router() == (common.Address{}) {
		return nil, xerrors.New(CodeInvalidConfig, "settings were not built with NewSettings")
	}
	if l == nil {
		return nil, xerrors.New(CodeInvalidConfig, "ledger is required")
	}
	if router == nil {
		return nil, xerrors.New(CodeInvalidConfig, "router is required")
	}
	if router.Address() != settings.Router() {
		return nil, xerrors.New(CodeInvalidConfig, "router address does not match configured router",
			xerrors.WithMetadata("configured", settings.Router().Hex()),
			xerrors.WithMetadata("bound", router.Address().Hex()))
	}
	r := &Relay{
		address:  address,
		settings: settings,
		ledger:   l,
		router:   router,
		decoder:  route.MustOneInchV5(),
		logger:   logger.Named("relay"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Address returns the relay's own account.
func (r *Relay) Address() common.Address { return r.address }

// Settings returns the immutable relay configuration.
func (r *Relay) Settings() Settings { return r.settings }

// State reports the phase of the call in flight, StateIdle when none is.
func (r *Relay) State() State { return r.guard.current() }

// SwapSingleChain is the relay entry point. The payload is forwarded to the
// router unchanged; assets and amount are read from it. On any error every
// balance, allowance and log touched by the call is rolled back.
func (r *Relay) SwapSingleChain(ctx context.Context, call Call) (result *SettlementResult, err error) {
	if err := r.guard.enter(); err != nil {
		r.logger.Warn("拒绝重入调用", slog.String("caller", call.Caller.Hex()))
		return nil, err
	}
	started := time.Now()
	snapshot := r.ledger.Snapshot()
	defer func() {
		if err != nil {
			r.guard.advance(StateReverted)
			r.ledger.RevertToSnapshot(snapshot)
			r.logger.Warn("兑换调用已回滚",
				slog.String("caller", call.Caller.Hex()),
				slog.String("code", string(xerrors.CodeOf(err))),
				slog.Any("error", err))
		}
		r.guard.release()
	}()

	req, err := r.prepare(call)
	if err != nil {
		return nil, err
	}
	nativeIn := r.settings.IsNative(req.InputAsset)

	// intake
	before := holdings{
		input:  r.balanceOf(req.InputAsset),
		native: r.ledger.NativeBalance(r.address),
	}
	if err := r.receiveValue(call); err != nil {
		return nil, err
	}
	if !nativeIn {
		if err := r.pullInput(call.Caller, req); err != nil {
			return nil, err
		}
	}

	// forward
	r.guard.advance(StateForwarding)
	before.output = r.balanceOf(req.OutputAsset)
	if !nativeIn {
		if err := r.grantRouter(req); err != nil {
			return nil, err
		}
	}
	fwd := r.forward(ctx, req)
	if !nativeIn {
		if err := r.revokeRouter(req); err != nil {
			return nil, err
		}
	}
	if fwd.Outcome == OutcomeFailure {
		return nil, xerrors.New(CodeRouterCallFailed, "router reverted: "+fwd.Reason,
			xerrors.WithMetadata(xerrors.MetaReason, fwd.Reason))
	}

	// settle
	r.guard.advance(StateSettling)
	res, err := r.measure(req, before)
	if err != nil {
		return nil, err
	}
	if err := r.disburse(call.Caller, req, res); err != nil {
		return nil, err
	}

	rec := SettlementRecord{
		Caller:       call.Caller,
		InputAsset:   req.InputAsset,
		OutputAsset:  req.OutputAsset,
		InputAmount:  new(big.Int).Set(req.InputAmount),
		GrossOutput:  res.GrossOutput,
		FeeAmount:    res.FeeAmount,
		NetOutput:    res.NetOutput,
		NativeRefund: res.NativeRefund,
		InputRefund:  res.InputRefund,
		ZeroOutput:   res.GrossOutput.Sign() == 0,
	}
	r.ledger.EmitLog(ledger.Log{Address: r.address, Name: SettledEvent, Data: rec})

	attrs := []any{
		slog.String("caller", call.Caller.Hex()),
		slog.String("input_asset", req.InputAsset.Hex()),
		slog.String("output_asset", req.OutputAsset.Hex()),
		slog.String("input_amount", req.InputAmount.String()),
		slog.String("gross_output", res.GrossOutput.String()),
		slog.String("fee", res.FeeAmount.String()),
		slog.String("net_output", res.NetOutput.String()),
		slog.String("native_refund", res.NativeRefund.String()),
		slog.String("input_refund", res.InputRefund.String()),
		slog.Duration("elapsed", time.Since(started)),
	}
	if rec.ZeroOutput {
		logger.Audit().Warn("兑换结算无产出", attrs...)
	} else {
		logger.Audit().Info("兑换结算完成", attrs...)
	}
	return res, nil
}

// prepare derives the swap request from the call. Nothing is moved yet.
func (r *Relay) prepare(call Call) (SwapRequest, error) {
	if call.Caller == (common.Address{}) {
		return SwapRequest{}, xerrors.New(CodeInvalidRoute, "caller must not be the zero address")
	}
	if call.Caller == r.address {
		return SwapRequest{}, xerrors.New(CodeInvalidRoute, "relay cannot call itself")
	}
	desc, err := r.decoder.Decode(call.Payload)
	if err != nil {
		return SwapRequest{}, xerrors.Wrap(CodeInvalidRoute, err, "decode routing payload")
	}
	if desc.SrcToken == desc.DstToken {
		return SwapRequest{}, xerrors.New(CodeInvalidRoute, "input and output asset are the same",
			xerrors.WithMetadata(xerrors.MetaAsset, desc.SrcToken.Hex()))
	}
	if desc.Amount == nil || desc.Amount.Sign() <= 0 {
		return SwapRequest{}, xerrors.New(CodeInvalidRoute, "input amount must be positive")
	}
	if desc.DstReceiver != (common.Address{}) && desc.DstReceiver != r.address {
		r.logger.Warn("路由输出未指向 relay，结算将看不到产出",
			slog.String("dst_receiver", desc.DstReceiver.Hex()))
	}

	attached := new(big.Int)
	if call.Value != nil {
		if call.Value.Sign() < 0 {
			return SwapRequest{}, xerrors.New(CodeInvalidRoute, "attached value must not be negative")
		}
		attached.Set(call.Value)
	}
	payload := make([]byte, len(call.Payload))
	copy(payload, call.Payload)
	return SwapRequest{
		InputAsset:          desc.SrcToken,
		OutputAsset:         desc.DstToken,
		InputAmount:         new(big.Int).Set(desc.Amount),
		RoutingPayload:      payload,
		NativeValueAttached: attached,
	}, nil
}
