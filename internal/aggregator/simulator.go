// Package aggregator provides an in-process aggregation router that speaks the
// 1inch V5 swap calldata and trades at fixed rates against its own
// inventory. The devnet daemon binds a relay to it.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"SwapRelay/internal/ledger"
	"SwapRelay/internal/relay"
	"SwapRelay/internal/route"
	"SwapRelay/pkg/logger"
)

// ReasonReturnAmountNotEnough is the revert reason for a swap below its
// minReturnAmount.
const ReasonReturnAmountNotEnough = "Return amount is not enough"

type pairKey struct {
	from common.Address
	to   common.Address
}

// Rate prices one unit of the source asset as Numerator/Denominator units of
// the destination asset.
type Rate struct {
	Numerator   *big.Int
	Denominator *big.Int
}

// Simulator is a relay.Router backed by a ledger.
type Simulator struct {
	address common.Address
	ledger  ledger.Ledger
	native  common.Address
	codec   *route.OneInchV5
	logger  *slog.Logger

	mu    sync.RWMutex
	rates map[pairKey]Rate
}

// New creates a simulator living at address.
func New(address common.Address, l ledger.Ledger, nativeSentinel common.Address) *Simulator {
	return &Simulator{
		address: address,
		ledger:  l,
		native:  nativeSentinel,
		codec:   route.MustOneInchV5(),
		logger:  logger.Named("aggregator"),
		rates:   make(map[pairKey]Rate),
	}
}

// SetRate registers or replaces the price of a pair.
func (s *Simulator) SetRate(from, to common.Address, rate Rate) error {
	if from == to {
		return fmt.Errorf("pair %s has identical sides", from.Hex())
	}
	if rate.Numerator == nil || rate.Denominator == nil || rate.Numerator.Sign() < 0 || rate.Denominator.Sign() <= 0 {
		return fmt.Errorf("invalid rate for %s -> %s", from.Hex(), to.Hex())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[pairKey{from: from, to: to}] = Rate{
		Numerator:   new(big.Int).Set(rate.Numerator),
		Denominator: new(big.Int).Set(rate.Denominator),
	}
	return nil
}

// Quote returns the output amount for amount of from.
func (s *Simulator) Quote(from, to common.Address, amount *big.Int) (*big.Int, error) {
	s.mu.RLock()
	rate, ok := s.rates[pairKey{from: from, to: to}]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no liquidity for %s -> %s", from.Hex(), to.Hex())
	}
	out := new(big.Int).Mul(amount, rate.Numerator)
	return out.Quo(out, rate.Denominator), nil
}

// Address implements relay.Router.
func (s *Simulator) Address() common.Address { return s.address }

// Call implements relay.Router. Failures are reported as *relay.RevertError.
func (s *Simulator) Call(ctx context.Context, frame relay.CallFrame) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	desc, err := s.codec.Decode(frame.Input)
	if err != nil {
		return nil, relay.Revert("invalid calldata")
	}
	value := frame.Value
	if value == nil {
		value = new(big.Int)
	}

	srcNative := desc.SrcToken == s.native
	if srcNative {
		if value.Cmp(desc.Amount) < 0 {
			return nil, relay.Revert("InvalidMsgValue")
		}
	} else {
		if value.Sign() != 0 {
			return nil, relay.Revert("InvalidMsgValue")
		}
		if err := s.ledger.TransferFrom(desc.SrcToken, s.address, frame.From, s.address, desc.Amount); err != nil {
			return nil, &relay.RevertError{Reason: "TransferFrom failed", Data: []byte(err.Error())}
		}
	}

	out, err := s.Quote(desc.SrcToken, desc.DstToken, desc.Amount)
	if err != nil {
		return nil, relay.Revert(err.Error())
	}
	if desc.MinReturnAmount != nil && out.Cmp(desc.MinReturnAmount) < 0 {
		return nil, relay.Revert(ReasonReturnAmountNotEnough)
	}

	receiver := desc.DstReceiver
	if receiver == (common.Address{}) {
		receiver = frame.From
	}
	if desc.DstToken == s.native {
		err = s.ledger.TransferNative(s.address, receiver, out)
	} else {
		err = s.ledger.Transfer(desc.DstToken, s.address, receiver, out)
	}
	if err != nil {
		return nil, &relay.RevertError{Reason: "insufficient liquidity", Data: []byte(err.Error())}
	}

	if srcNative {
		if excess := new(big.Int).Sub(value, desc.Amount); excess.Sign() > 0 {
			if err := s.ledger.TransferNative(s.address, frame.From, excess); err != nil {
				return nil, &relay.RevertError{Reason: "ETH transfer failed", Data: []byte(err.Error())}
			}
		}
	}

	s.logger.Debug("swap executed",
		slog.String("from", frame.From.Hex()),
		slog.String("src", desc.SrcToken.Hex()),
		slog.String("dst", desc.DstToken.Hex()),
		slog.String("amount", desc.Amount.String()),
		slog.String("return", out.String()))
	return s.codec.EncodeResult(out, desc.Amount)
}

var _ relay.Router = (*Simulator)(nil)
