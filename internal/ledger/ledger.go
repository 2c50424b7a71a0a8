// Package ledger models the balance and allowance state a relay operates on.
// Every mutation is journaled so that a failing call can be rolled back to a
// snapshot, which is how the all-or-nothing contract of a transaction is
// provided outside of a real chain.
package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	xerrors "SwapRelay/internal/errors"
)

const (
	CodeInsufficientBalance   xerrors.Code = "LEDGER_INSUFFICIENT_BALANCE"
	CodeInsufficientAllowance xerrors.Code = "LEDGER_INSUFFICIENT_ALLOWANCE"
	CodeTransferRejected      xerrors.Code = "LEDGER_TRANSFER_REJECTED"
	CodeInvalidAmount         xerrors.Code = "LEDGER_INVALID_AMOUNT"
)

var (
	ErrInsufficientBalance   = xerrors.New(CodeInsufficientBalance, "insufficient balance")
	ErrInsufficientAllowance = xerrors.New(CodeInsufficientAllowance, "insufficient allowance")
	ErrTransferRejected      = xerrors.New(CodeTransferRejected, "transfer rejected by recipient")
	ErrInvalidAmount         = xerrors.New(CodeInvalidAmount, "amount must be non-negative")
)

func init() {
	xerrors.Register(CodeInsufficientBalance, xerrors.Attributes{Message: "insufficient balance", Severity: xerrors.SeverityInfo, HTTPStatus: 422})
	xerrors.Register(CodeInsufficientAllowance, xerrors.Attributes{Message: "insufficient allowance", Severity: xerrors.SeverityInfo, HTTPStatus: 422})
	xerrors.Register(CodeTransferRejected, xerrors.Attributes{Message: "transfer rejected by recipient", Severity: xerrors.SeverityWarning, HTTPStatus: 422})
	xerrors.Register(CodeInvalidAmount, xerrors.Attributes{Message: "invalid amount", Severity: xerrors.SeverityInfo, HTTPStatus: 400})
}

// Log is a record emitted by a contract-like component during a call. Logs
// are journaled together with balances, so a reverted call emits nothing.
type Log struct {
	Address common.Address
	Name    string
	Data    any
}

// Ledger is the state surface the relay and routers operate on.
type Ledger interface {
	NativeBalance(holder common.Address) *big.Int
	TokenBalance(token, holder common.Address) *big.Int
	Allowance(token, owner, spender common.Address) *big.Int

	TransferNative(from, to common.Address, amount *big.Int) error
	Transfer(token, from, to common.Address, amount *big.Int) error
	TransferFrom(token, spender, from, to common.Address, amount *big.Int) error
	Approve(token, owner, spender common.Address, amount *big.Int) error

	Snapshot() int
	RevertToSnapshot(id int)
	EmitLog(log Log)
}

// Movement describes a value transfer presented to a receive hook.
type Movement struct {
	Native bool
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
}

// ReceiveHook lets a recipient refuse incoming value, the way a contract
// fallback can revert. It runs before any balance changes.
type ReceiveHook func(m Movement) error
