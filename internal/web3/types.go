package web3

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Reader is the read-only view of balances and allowances a preflight needs.
type Reader interface {
	NativeBalance(ctx context.Context, holder common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// Client defines the common interface that any chain implementation must
// provide so higher layers can interact with different networks uniformly.
type Client interface {
	Reader
	Name() string
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}
