package web3

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"SwapRelay/internal/route"
)

// PreflightRequest is a swap a caller is about to submit.
type PreflightRequest struct {
	Relay          common.Address
	Caller         common.Address
	NativeSentinel common.Address
	Value          *big.Int
	Route          route.Description
}

// Report tells a caller whether a swap can get past intake.
type Report struct {
	Caller      common.Address `json:"caller"`
	InputAsset  common.Address `json:"input_asset"`
	NativeInput bool           `json:"native_input"`
	Required    *big.Int       `json:"required"`
	Value       *big.Int       `json:"value"`
	Balance     *big.Int       `json:"balance"`
	// Allowance is what the relay may pull; nil for native input.
	Allowance     *big.Int `json:"allowance,omitempty"`
	NativeBalance *big.Int `json:"native_balance"`
	Problems      []string `json:"problems,omitempty"`
	Notes         []string `json:"notes,omitempty"`
}

// Ready reports whether no problem was found.
func (r Report) Ready() bool { return len(r.Problems) == 0 }

// Preflight checks balance, allowance and attached value against a routing
// description without submitting anything.
func Preflight(ctx context.Context, reader Reader, req PreflightRequest) (Report, error) {
	desc := req.Route
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	amount := desc.Amount
	if amount == nil {
		amount = new(big.Int)
	}
	report := Report{
		Caller:      req.Caller,
		InputAsset:  desc.SrcToken,
		NativeInput: desc.SrcToken == req.NativeSentinel,
		Required:    new(big.Int).Set(amount),
		Value:       new(big.Int).Set(value),
	}
	problem := func(format string, args ...any) {
		report.Problems = append(report.Problems, fmt.Sprintf(format, args...))
	}

	if amount.Sign() <= 0 {
		problem("兑换数量必须大于 0")
	}
	if desc.SrcToken == desc.DstToken {
		problem("输入与输出资产相同")
	}
	if desc.DstReceiver != (common.Address{}) && desc.DstReceiver != req.Relay {
		problem("dstReceiver %s 不是中继地址，产出不会经过中继结算", desc.DstReceiver.Hex())
	}

	native, err := reader.NativeBalance(ctx, req.Caller)
	if err != nil {
		return Report{}, fmt.Errorf("查询原生币余额失败: %w", err)
	}
	report.NativeBalance = native
	if native.Cmp(value) < 0 {
		problem("原生币余额 %s 不足以附带 %s", native, value)
	}

	if report.NativeInput {
		report.Balance = native
		if value.Cmp(amount) < 0 {
			problem("附带的原生币 %s 少于兑换数量 %s", value, amount)
		}
		return report, nil
	}

	balance, err := reader.TokenBalance(ctx, desc.SrcToken, req.Caller)
	if err != nil {
		return Report{}, fmt.Errorf("查询代币余额失败: %w", err)
	}
	report.Balance = balance
	if balance.Cmp(amount) < 0 {
		problem("代币余额 %s 少于兑换数量 %s", balance, amount)
	}

	allowance, err := reader.Allowance(ctx, desc.SrcToken, req.Caller, req.Relay)
	if err != nil {
		return Report{}, fmt.Errorf("查询授权额度失败: %w", err)
	}
	report.Allowance = allowance
	if allowance.Cmp(amount) < 0 {
		problem("授权给中继的额度 %s 少于兑换数量 %s", allowance, amount)
	}
	if value.Sign() > 0 {
		report.Notes = append(report.Notes, fmt.Sprintf("代币输入附带了 %s 原生币，将被全额退回", value))
	}
	return report, nil
}
