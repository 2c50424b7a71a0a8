// Package devnet assembles an in-process chain for swaprelayd: a ledger
// seeded from the configured genesis, the simulated aggregation router, the
// relay and the executor that serializes calls against them.
package devnet

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"SwapRelay/internal/aggregator"
	"SwapRelay/internal/chain"
	"SwapRelay/internal/config"
	"SwapRelay/internal/ledger"
	"SwapRelay/internal/relay"
	"SwapRelay/pkg/logger"
)

// Devnet is a ready-to-serve local chain with the relay deployed.
type Devnet struct {
	Ledger   *ledger.Memory
	Router   *aggregator.Simulator
	Relay    *relay.Relay
	Executor *chain.Executor
}

// Build seeds the ledger and deploys the router and relay described by cfg.
func Build(cfg config.Config, opts ...chain.ExecutorOption) (*Devnet, error) {
	sentinel := common.HexToAddress(cfg.Relay.NativeSentinel)
	router := common.HexToAddress(cfg.Relay.Router)

	l := ledger.NewMemory()
	for i, alloc := range cfg.Devnet.Genesis {
		amount, err := config.ParseAmount(alloc.Amount)
		if err != nil {
			return nil, fmt.Errorf("genesis[%d]: %w", i, err)
		}
		holder := common.HexToAddress(alloc.Holder)
		if alloc.Asset == "" || common.HexToAddress(alloc.Asset) == sentinel {
			err = l.Fund(holder, amount)
		} else {
			err = l.Mint(common.HexToAddress(alloc.Asset), holder, amount)
		}
		if err != nil {
			return nil, fmt.Errorf("genesis[%d]: %w", i, err)
		}
	}

	sim := aggregator.New(router, l, sentinel)
	for i, pair := range cfg.Devnet.Pairs {
		num, err := config.ParseAmount(pair.Numerator)
		if err != nil {
			return nil, fmt.Errorf("pairs[%d]: %w", i, err)
		}
		den, err := config.ParseAmount(pair.Denominator)
		if err != nil {
			return nil, fmt.Errorf("pairs[%d]: %w", i, err)
		}
		rate := aggregator.Rate{Numerator: num, Denominator: den}
		if err := sim.SetRate(common.HexToAddress(pair.From), common.HexToAddress(pair.To), rate); err != nil {
			return nil, fmt.Errorf("pairs[%d]: %w", i, err)
		}
	}

	settings, err := relay.NewSettings(router, common.HexToAddress(cfg.Relay.FeeRecipient), cfg.Relay.FeeBps, sentinel)
	if err != nil {
		return nil, err
	}
	r, err := relay.New(common.HexToAddress(cfg.Relay.Address), settings, l, sim)
	if err != nil {
		return nil, err
	}

	exec := chain.NewExecutor(l, opts...)
	logger.Named("devnet").Info("本地链已就绪",
		slog.String("relay", r.Address().Hex()),
		slog.String("router", router.Hex()),
		slog.Uint64("fee_bps", settings.FeeBps()),
		slog.Int("genesis", len(cfg.Devnet.Genesis)),
		slog.Int("pairs", len(cfg.Devnet.Pairs)))

	return &Devnet{Ledger: l, Router: sim, Relay: r, Executor: exec}, nil
}
