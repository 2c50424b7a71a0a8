package devnet_test

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"SwapRelay/internal/chain"
	"SwapRelay/internal/config"
	"SwapRelay/internal/devnet"
	"SwapRelay/internal/ledger"
	"SwapRelay/internal/relay"
	"SwapRelay/internal/route"
)

const (
	relayHex  = "0x00000000000000000000000000000000000000aa"
	routerHex = "0x1111111254EEB25477B68fb85Ed929f73A960582"
	feeHex    = "0x00000000000000000000000000000000000000fe"
	aliceHex  = "0x00000000000000000000000000000000000000a1"
	tokenHex  = "0x000000000000000000000000000000000000000b"
)

func devnetConfig() config.Config {
	return config.Config{
		Relay: config.RelayConfig{
			Address:        relayHex,
			Router:         routerHex,
			FeeRecipient:   feeHex,
			FeeBps:         50,
			NativeSentinel: config.DefaultNativeSentinel,
		},
		Devnet: config.DevnetConfig{
			Genesis: []config.Allocation{
				{Holder: aliceHex, Amount: "1000"},
				{Holder: routerHex, Asset: tokenHex, Amount: "0x100000"},
			},
			Pairs: []config.Pair{
				{From: config.DefaultNativeSentinel, To: tokenHex, Numerator: "4", Denominator: "1"},
			},
		},
	}
}

func TestBuildSeedsGenesisAndSettles(t *testing.T) {
	var (
		mu   sync.Mutex
		logs []ledger.Log
	)
	d, err := devnet.Build(devnetConfig(), chain.WithLogHandler(func(_ context.Context, _ string, log ledger.Log) error {
		mu.Lock()
		defer mu.Unlock()
		logs = append(logs, log)
		return nil
	}))
	require.NoError(t, err)

	alice := common.HexToAddress(aliceHex)
	token := common.HexToAddress(tokenHex)
	native := common.HexToAddress(config.DefaultNativeSentinel)
	require.Equal(t, "1000", d.Ledger.NativeBalance(alice).String())
	require.Equal(t, "1048576", d.Ledger.TokenBalance(token, common.HexToAddress(routerHex)).String())

	payload, err := route.MustOneInchV5().Encode(route.Description{
		SrcToken:        native,
		DstToken:        token,
		Amount:          big.NewInt(1000),
		MinReturnAmount: big.NewInt(4000),
	})
	require.NoError(t, err)

	svc := chain.NewSwapService(d.Executor, d.Relay)
	receipt, err := svc.Swap(context.Background(), relay.Call{Caller: alice, Value: big.NewInt(1000), Payload: payload})
	require.NoError(t, err)
	require.Equal(t, "20", receipt.Result.FeeAmount.String())
	require.Equal(t, "3980", svc.Balance(alice, token).String())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, logs, 1)
	require.Equal(t, relay.SettledEvent, logs[0].Name)
}

func TestBuildRejectsBadSettings(t *testing.T) {
	cfg := devnetConfig()
	cfg.Relay.FeeBps = relay.MaxFeeBps + 1
	_, err := devnet.Build(cfg)
	require.Error(t, err)

	cfg = devnetConfig()
	cfg.Devnet.Pairs[0].To = cfg.Devnet.Pairs[0].From
	_, err = devnet.Build(cfg)
	require.Error(t, err)

	cfg = devnetConfig()
	cfg.Devnet.Genesis[0].Amount = "lots"
	_, err = devnet.Build(cfg)
	require.Error(t, err)
}
