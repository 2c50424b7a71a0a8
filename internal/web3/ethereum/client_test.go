package ethereum

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

var (
	token   = common.HexToAddress("0x111111111117dC0aa78b770fA6A738034120C302")
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	spender = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

// fakeBackend answers ERC20 calls from in-memory tables.
type fakeBackend struct {
	chainID    *big.Int
	native     map[common.Address]*big.Int
	balances   map[common.Address]*big.Int
	allowances map[[2]common.Address]*big.Int
	calls      int
	fail       error
}

func (f *fakeBackend) CallContract(_ context.Context, msg gethcore.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	if msg.To == nil || *msg.To != token {
		return nil, errors.New("execution reverted")
	}
	method, err := erc20ABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	var amount *big.Int
	switch method.Name {
	case "balanceOf":
		amount = f.balances[args[0].(common.Address)]
	case "allowance":
		amount = f.allowances[[2]common.Address{args[0].(common.Address), args[1].(common.Address)}]
	}
	if amount == nil {
		amount = new(big.Int)
	}
	return method.Outputs.Pack(amount)
}

func (f *fakeBackend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	if v, ok := f.native[account]; ok {
		return v, nil
	}
	return new(big.Int), nil
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func newFake() *fakeBackend {
	return &fakeBackend{
		chainID:    big.NewInt(1),
		native:     map[common.Address]*big.Int{owner: big.NewInt(7)},
		balances:   map[common.Address]*big.Int{owner: big.NewInt(1000)},
		allowances: map[[2]common.Address]*big.Int{{owner, spender}: big.NewInt(250)},
	}
}

func TestClientReadsERC20State(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := NewClientWithBackend("fake", newFake())

	balance, err := client.TokenBalance(ctx, token, owner)
	if err != nil || balance.String() != "1000" {
		t.Fatalf("unexpected balance %v, %v", balance, err)
	}
	allowance, err := client.Allowance(ctx, token, owner, spender)
	if err != nil || allowance.String() != "250" {
		t.Fatalf("unexpected allowance %v, %v", allowance, err)
	}
	if zero, err := client.Allowance(ctx, token, spender, owner); err != nil || zero.Sign() != 0 {
		t.Fatalf("expected zero allowance, got %v, %v", zero, err)
	}
	native, err := client.NativeBalance(ctx, owner)
	if err != nil || native.String() != "7" {
		t.Fatalf("unexpected native balance %v, %v", native, err)
	}
}

func TestClientReportsCallFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := NewClientWithBackend("fake", newFake())
	if _, err := client.TokenBalance(ctx, spender, owner); err == nil || !strings.Contains(err.Error(), "balanceOf") {
		t.Fatalf("expected revert error, got %v", err)
	}

	broken := newFake()
	broken.fail = errors.New("connection refused")
	client = NewClientWithBackend("broken", broken)
	if _, err := client.NativeBalance(ctx, owner); err == nil {
		t.Fatal("expected backend error")
	}
}

func TestClientChainIDIsCachedAndChecked(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := newFake()
	client := NewClientWithBackend("mainnet", fake)
	client.expected = 1
	for i := 0; i < 2; i++ {
		id, err := client.ChainID(ctx)
		if err != nil || id.Int64() != 1 {
			t.Fatalf("unexpected chain id %v, %v", id, err)
		}
	}

	mismatch := NewClientWithBackend("goerli", newFake())
	mismatch.expected = 5
	if _, err := mismatch.ChainID(ctx); err == nil {
		t.Fatal("expected chain id mismatch")
	}
}

func TestClosedClientRejectsCalls(t *testing.T) {
	t.Parallel()

	client := NewClientWithBackend("fake", newFake())
	client.Close()
	if _, err := client.TokenBalance(context.Background(), token, owner); err == nil {
		t.Fatal("expected error after close")
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty rpc url")
	}
}
