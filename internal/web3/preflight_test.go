package web3_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"SwapRelay/internal/route"
	"SwapRelay/internal/web3"
)

var (
	relayAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	caller    = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	native    = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")
	tokenA    = common.HexToAddress("0x000000000000000000000000000000000000000a")
	tokenB    = common.HexToAddress("0x000000000000000000000000000000000000000b")
)

type staticReader struct {
	native    *big.Int
	token     *big.Int
	allowance *big.Int
	err       error
}

func (r staticReader) NativeBalance(context.Context, common.Address) (*big.Int, error) {
	return r.native, r.err
}

func (r staticReader) TokenBalance(context.Context, common.Address, common.Address) (*big.Int, error) {
	return r.token, nil
}

func (r staticReader) Allowance(context.Context, common.Address, common.Address, common.Address) (*big.Int, error) {
	return r.allowance, nil
}

func request(src, dst common.Address, amount, value int64) web3.PreflightRequest {
	return web3.PreflightRequest{
		Relay:          relayAddr,
		Caller:         caller,
		NativeSentinel: native,
		Value:          big.NewInt(value),
		Route:          route.Description{SrcToken: src, DstToken: dst, Amount: big.NewInt(amount)},
	}
}

func TestPreflightTokenReady(t *testing.T) {
	reader := staticReader{native: big.NewInt(1), token: big.NewInt(1000), allowance: big.NewInt(1000)}
	report, err := web3.Preflight(context.Background(), reader, request(tokenA, tokenB, 1000, 0))
	require.NoError(t, err)
	require.True(t, report.Ready(), report.Problems)
	require.False(t, report.NativeInput)
	require.Equal(t, "1000", report.Allowance.String())
}

func TestPreflightTokenShortfalls(t *testing.T) {
	reader := staticReader{native: big.NewInt(0), token: big.NewInt(10), allowance: big.NewInt(5)}
	report, err := web3.Preflight(context.Background(), reader, request(tokenA, tokenB, 1000, 0))
	require.NoError(t, err)
	require.False(t, report.Ready())
	require.Len(t, report.Problems, 2)
}

func TestPreflightTokenWithValueIsOnlyNoted(t *testing.T) {
	reader := staticReader{native: big.NewInt(50), token: big.NewInt(1000), allowance: big.NewInt(1000)}
	report, err := web3.Preflight(context.Background(), reader, request(tokenA, tokenB, 1000, 50))
	require.NoError(t, err)
	require.True(t, report.Ready())
	require.Len(t, report.Notes, 1)
}

func TestPreflightNative(t *testing.T) {
	reader := staticReader{native: big.NewInt(100)}
	report, err := web3.Preflight(context.Background(), reader, request(native, tokenB, 100, 100))
	require.NoError(t, err)
	require.True(t, report.Ready())
	require.Nil(t, report.Allowance)

	report, err = web3.Preflight(context.Background(), reader, request(native, tokenB, 100, 40))
	require.NoError(t, err)
	require.False(t, report.Ready())

	report, err = web3.Preflight(context.Background(), reader, request(native, tokenB, 100, 500))
	require.NoError(t, err)
	require.False(t, report.Ready())
}

func TestPreflightInvalidRoute(t *testing.T) {
	reader := staticReader{native: big.NewInt(0), token: big.NewInt(0), allowance: big.NewInt(0)}
	req := request(tokenA, tokenA, 0, 0)
	req.Route.DstReceiver = tokenB
	report, err := web3.Preflight(context.Background(), reader, req)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(report.Problems), 3)
}

func TestPreflightPropagatesReadErrors(t *testing.T) {
	reader := staticReader{err: errors.New("rpc down")}
	_, err := web3.Preflight(context.Background(), reader, request(tokenA, tokenB, 1, 0))
	require.ErrorContains(t, err, "rpc down")
}

func TestParseChainDefinitions(t *testing.T) {
	defs, err := web3.ParseChainDefinitions([]byte(`
chains:
  ethereum:
    rpc_url: https://eth.example.org
    chain_id: 1
    relay: "0x00000000000000000000000000000000000000aa"
`))
	require.NoError(t, err)
	require.Equal(t, uint64(1), defs.Chains["ethereum"].ChainID)

	_, err = web3.ParseChainDefinitions([]byte("chains:\n  broken:\n    chain_id: 5\n"))
	require.Error(t, err)

	defs, err = web3.LoadChainDefinitions("")
	require.NoError(t, err)
	require.Empty(t, defs.Chains)
}
