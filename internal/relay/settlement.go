package relay

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	xerrors "SwapRelay/internal/errors"
)

// ComputeFee splits gross output into the relay fee and the caller's share.
// fee = gross * feeBps / 10000 rounded down, net = gross - fee.
func ComputeFee(gross *big.Int, feeBps uint64) (fee, net *big.Int, err error) {
	if feeBps > MaxFeeBps {
		return nil, nil, xerrors.New(CodeInvalidConfig, fmt.Sprintf("fee of %d bps exceeds %d", feeBps, MaxFeeBps))
	}
	g, err := toWord(gross)
	if err != nil {
		return nil, nil, err
	}
	product, overflow := new(uint256.Int).MulOverflow(g, uint256.NewInt(feeBps))
	if overflow {
		return nil, nil, xerrors.New(CodeArithmeticOverflow, "gross output times fee rate overflows 256 bits")
	}
	f := new(uint256.Int).Div(product, uint256.NewInt(MaxFeeBps))
	n, underflow := new(uint256.Int).SubOverflow(g, f)
	if underflow {
		return nil, nil, xerrors.New(CodeArithmeticOverflow, "fee exceeds gross output")
	}
	return f.ToBig(), n.ToBig(), nil
}

// delta returns after - before and fails if the holding shrank.
func delta(after, before *big.Int, what string) (*big.Int, error) {
	a, err := toWord(after)
	if err != nil {
		return nil, err
	}
	b, err := toWord(before)
	if err != nil {
		return nil, err
	}
	d, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, xerrors.New(CodeArithmeticOverflow,
			fmt.Sprintf("%s decreased from %s to %s", what, before, after))
	}
	return d.ToBig(), nil
}

func toWord(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, xerrors.New(CodeArithmeticOverflow, fmt.Sprintf("negative amount %s", v))
	}
	w, overflow := uint256.FromBig(v)
	if overflow {
		return nil, xerrors.New(CodeArithmeticOverflow, fmt.Sprintf("amount %s exceeds 256 bits", v))
	}
	return w, nil
}

// holdings are relay balances taken around intake. input and native are
// read before intake, output right before forwarding.
type holdings struct {
	input  *big.Int
	output *big.Int
	native *big.Int
}

// measure turns post-call balances into a settlement. Every native wei the
// relay gained during the call, apart from native gross output, goes back to
// the caller as nativeRefund.
func (r *Relay) measure(req SwapRequest, before holdings) (*SettlementResult, error) {
	gross, err := delta(r.balanceOf(req.OutputAsset), before.output, "output balance")
	if err != nil {
		return nil, err
	}

	nativeRefund, err := delta(r.ledger.NativeBalance(r.address), before.native, "native balance")
	if err != nil {
		return nil, err
	}
	if r.settings.IsNative(req.OutputAsset) {
		if nativeRefund, err = delta(nativeRefund, gross, "native balance net of output"); err != nil {
			return nil, err
		}
	}

	inputRefund := new(big.Int)
	if !r.settings.IsNative(req.InputAsset) {
		inputRefund, err = delta(r.balanceOf(req.InputAsset), before.input, "input balance")
		if err != nil {
			return nil, err
		}
	}

	fee, net, err := ComputeFee(gross, r.settings.FeeBps())
	if err != nil {
		return nil, err
	}
	return &SettlementResult{
		GrossOutput:  gross,
		FeeAmount:    fee,
		NetOutput:    net,
		NativeRefund: nativeRefund,
		InputRefund:  inputRefund,
	}, nil
}

// disburse pays out a settlement: fee, net output, native refund, input
// refund. Zero amounts are skipped.
func (r *Relay) disburse(caller common.Address, req SwapRequest, res *SettlementResult) error {
	native := r.settings.NativeSentinel()
	steps := []struct {
		stage  string
		asset  common.Address
		to     common.Address
		amount *big.Int
	}{
		{"fee", req.OutputAsset, r.settings.FeeRecipient(), res.FeeAmount},
		{"net", req.OutputAsset, caller, res.NetOutput},
		{"native_refund", native, caller, res.NativeRefund},
		{"input_refund", req.InputAsset, caller, res.InputRefund},
	}
	for _, step := range steps {
		if step.amount == nil || step.amount.Sign() == 0 {
			continue
		}
		if err := r.pay(step.asset, step.to, step.amount); err != nil {
			return xerrors.Wrap(CodeSettlementTransferFailed, err, step.stage+" transfer failed",
				xerrors.WithMetadata(xerrors.MetaStage, step.stage),
				xerrors.WithMetadata(xerrors.MetaAsset, step.asset.Hex()))
		}
	}
	return nil
}

func (r *Relay) pay(asset, to common.Address, amount *big.Int) error {
	if r.settings.IsNative(asset) {
		return r.ledger.TransferNative(r.address, to, amount)
	}
	return r.ledger.Transfer(asset, r.address, to, amount)
}
