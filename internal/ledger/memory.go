package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	xerrors "SwapRelay/internal/errors"
)

type tokenKey struct {
	token  common.Address
	holder common.Address
}

type allowanceKey struct {
	token   common.Address
	owner   common.Address
	spender common.Address
}

// Memory is an in-process Ledger with an undo journal.
//
// Memory is not safe for concurrent use; chain.Executor serializes access.
type Memory struct {
	native     map[common.Address]*big.Int
	tokens     map[tokenKey]*big.Int
	allowances map[allowanceKey]*big.Int
	hooks      map[common.Address]ReceiveHook
	logs       []Log
	journal    []func()
}

// NewMemory returns an empty ledger.
func NewMemory() *Memory {
	return &Memory{
		native:     make(map[common.Address]*big.Int),
		tokens:     make(map[tokenKey]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
		hooks:      make(map[common.Address]ReceiveHook),
	}
}

// NativeBalance returns a copy of the holder's native balance.
func (m *Memory) NativeBalance(holder common.Address) *big.Int {
	return copyOrZero(m.native[holder])
}

// TokenBalance returns a copy of the holder's balance of token.
func (m *Memory) TokenBalance(token, holder common.Address) *big.Int {
	return copyOrZero(m.tokens[tokenKey{token: token, holder: holder}])
}

// Allowance returns how much spender may move out of owner's token balance.
func (m *Memory) Allowance(token, owner, spender common.Address) *big.Int {
	return copyOrZero(m.allowances[allowanceKey{token: token, owner: owner, spender: spender}])
}

// Fund credits native value out of thin air. Used for genesis and tests.
func (m *Memory) Fund(holder common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	m.setNative(holder, new(big.Int).Add(m.NativeBalance(holder), amount))
	return nil
}

// Mint credits token balance out of thin air. Used for genesis and tests.
func (m *Memory) Mint(token, holder common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	key := tokenKey{token: token, holder: holder}
	m.setToken(key, new(big.Int).Add(m.TokenBalance(token, holder), amount))
	return nil
}

// SetReceiveHook installs (or with nil removes) the hook consulted whenever
// holder is the recipient of a transfer.
func (m *Memory) SetReceiveHook(holder common.Address, hook ReceiveHook) {
	if hook == nil {
		delete(m.hooks, holder)
		return
	}
	m.hooks[holder] = hook
}

// TransferNative moves native value between holders.
func (m *Memory) TransferNative(from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	balance := m.NativeBalance(from)
	if balance.Cmp(amount) < 0 {
		return xerrors.Wrap(CodeInsufficientBalance, ErrInsufficientBalance,
			fmt.Sprintf("native balance of %s is %s, need %s", from.Hex(), balance, amount))
	}
	if err := m.notify(Movement{Native: true, From: from, To: to, Amount: amount}); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	m.setNative(from, balance.Sub(balance, amount))
	m.setNative(to, new(big.Int).Add(m.NativeBalance(to), amount))
	return nil
}

// Transfer moves token balance from the holder itself.
func (m *Memory) Transfer(token, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	balance := m.TokenBalance(token, from)
	if balance.Cmp(amount) < 0 {
		return xerrors.Wrap(CodeInsufficientBalance, ErrInsufficientBalance,
			fmt.Sprintf("token %s balance of %s is %s, need %s", token.Hex(), from.Hex(), balance, amount))
	}
	if err := m.notify(Movement{Token: token, From: from, To: to, Amount: amount}); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	m.setToken(tokenKey{token: token, holder: from}, balance.Sub(balance, amount))
	m.setToken(tokenKey{token: token, holder: to}, new(big.Int).Add(m.TokenBalance(token, to), amount))
	return nil
}

// TransferFrom moves token balance on behalf of from, consuming spender's
// allowance.
func (m *Memory) TransferFrom(token, spender, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	key := allowanceKey{token: token, owner: from, spender: spender}
	allowance := m.Allowance(token, from, spender)
	if allowance.Cmp(amount) < 0 {
		return xerrors.Wrap(CodeInsufficientAllowance, ErrInsufficientAllowance,
			fmt.Sprintf("allowance of %s over %s is %s, need %s", spender.Hex(), from.Hex(), allowance, amount))
	}
	if err := m.Transfer(token, from, to, amount); err != nil {
		return err
	}
	m.setAllowance(key, allowance.Sub(allowance, amount))
	return nil
}

// Approve overwrites the allowance of spender over owner's token balance.
func (m *Memory) Approve(token, owner, spender common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	m.setAllowance(allowanceKey{token: token, owner: owner, spender: spender}, new(big.Int).Set(amount))
	return nil
}

// EmitLog appends a log entry; it disappears again if the surrounding
// snapshot is reverted.
func (m *Memory) EmitLog(log Log) {
	m.logs = append(m.logs, log)
	m.journal = append(m.journal, func() {
		m.logs = m.logs[:len(m.logs)-1]
	})
}

// Snapshot returns an identifier for the current state.
func (m *Memory) Snapshot() int {
	return len(m.journal)
}

// RevertToSnapshot undoes every change made after the snapshot was taken.
func (m *Memory) RevertToSnapshot(id int) {
	if id < 0 {
		id = 0
	}
	for len(m.journal) > id {
		last := len(m.journal) - 1
		m.journal[last]()
		m.journal = m.journal[:last]
	}
}

// Commit forgets the journal. Snapshots taken before Commit are no longer
// revertible.
func (m *Memory) Commit() {
	m.journal = nil
}

// DrainLogs returns and clears the logs emitted since the last drain.
func (m *Memory) DrainLogs() []Log {
	logs := m.logs
	m.logs = nil
	return logs
}

func (m *Memory) notify(mv Movement) error {
	hook, ok := m.hooks[mv.To]
	if !ok {
		return nil
	}
	if err := hook(mv); err != nil {
		return xerrors.Wrap(CodeTransferRejected, err, fmt.Sprintf("%s rejected incoming transfer", mv.To.Hex()))
	}
	return nil
}

func (m *Memory) setNative(holder common.Address, value *big.Int) {
	prev, existed := m.native[holder]
	m.native[holder] = value
	m.journal = append(m.journal, func() {
		if existed {
			m.native[holder] = prev
		} else {
			delete(m.native, holder)
		}
	})
}

func (m *Memory) setToken(key tokenKey, value *big.Int) {
	prev, existed := m.tokens[key]
	m.tokens[key] = value
	m.journal = append(m.journal, func() {
		if existed {
			m.tokens[key] = prev
		} else {
			delete(m.tokens, key)
		}
	})
}

func (m *Memory) setAllowance(key allowanceKey, value *big.Int) {
	prev, existed := m.allowances[key]
	m.allowances[key] = value
	m.journal = append(m.journal, func() {
		if existed {
			m.allowances[key] = prev
		} else {
			delete(m.allowances, key)
		}
	})
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func copyOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

var _ Ledger = (*Memory)(nil)
