package relay

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SettledEvent is the name of the log a successful call emits.
const SettledEvent = "Settled"

// Call is one invocation of the relay entry point.
type Call struct {
	Caller  common.Address
	Value   *big.Int
	Payload []byte
}

// SwapRequest is what the relay derives from a Call. It lives for one call.
type SwapRequest struct {
	InputAsset          common.Address
	OutputAsset         common.Address
	InputAmount         *big.Int
	RoutingPayload      []byte
	NativeValueAttached *big.Int
}

// SettlementResult is the outcome of a successful call.
type SettlementResult struct {
	GrossOutput  *big.Int
	FeeAmount    *big.Int
	NetOutput    *big.Int
	NativeRefund *big.Int
	InputRefund  *big.Int
}

// SettlementRecord is the Settled log payload.
type SettlementRecord struct {
	Caller       common.Address
	InputAsset   common.Address
	OutputAsset  common.Address
	InputAmount  *big.Int
	GrossOutput  *big.Int
	FeeAmount    *big.Int
	NetOutput    *big.Int
	NativeRefund *big.Int
	InputRefund  *big.Int
	// ZeroOutput is set when the router consumed input but the relay saw no
	// proceeds, which usually means bad routing data.
	ZeroOutput bool
}

// CallFrame is what the router sees of the relay's call: the relay as
// sender, the forwarded native value and the untouched payload.
type CallFrame struct {
	From  common.Address
	Value *big.Int
	Input []byte
}

// Router is the capability to call the configured aggregator. A revert is
// reported as an error, preferably a *RevertError.
type Router interface {
	Address() common.Address
	Call(ctx context.Context, frame CallFrame) ([]byte, error)
}
