package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

// Outcome tags a ForwardResult.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
)

// ForwardResult is the tagged result of the single router call. ReturnData
// is kept for diagnostics only; proceeds are measured from balances.
type ForwardResult struct {
	Outcome    Outcome
	ReturnData []byte
	Reason     string
}

// forward makes the one external call of a relay invocation. Native value
// rides along only when the input leg is native.
func (r *Relay) forward(ctx context.Context, req SwapRequest) ForwardResult {
	value := new(big.Int)
	if r.settings.IsNative(req.InputAsset) && req.NativeValueAttached != nil {
		value.Set(req.NativeValueAttached)
	}
	if value.Sign() > 0 {
		if err := r.ledger.TransferNative(r.address, r.settings.Router(), value); err != nil {
			return ForwardResult{Outcome: OutcomeFailure, Reason: err.Error()}
		}
	}

	data, err := r.callRouter(ctx, CallFrame{
		From:  r.address,
		Value: value,
		Input: req.RoutingPayload,
	})
	if err != nil {
		return ForwardResult{Outcome: OutcomeFailure, ReturnData: data, Reason: revertReason(err)}
	}
	return ForwardResult{Outcome: OutcomeSuccess, ReturnData: data}
}

func (r *Relay) callRouter(ctx context.Context, frame CallFrame) (data []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			data = nil
			err = fmt.Errorf("router panicked: %v", p)
		}
	}()
	return r.router.Call(ctx, frame)
}

func revertReason(err error) string {
	var revert *RevertError
	if errors.As(err, &revert) {
		return revert.Reason
	}
	return err.Error()
}
