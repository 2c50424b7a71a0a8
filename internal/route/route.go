// Package route decodes the opaque routing payload a caller hands to the
// relay. The relay never interprets what the aggregator returns, but it does
// need to know which asset goes in, which comes out and how much is spent.
package route

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	xerrors "SwapRelay/internal/errors"
)

const CodeMalformedPayload xerrors.Code = "ROUTE_MALFORMED_PAYLOAD"

func init() {
	xerrors.Register(CodeMalformedPayload, xerrors.Attributes{
		Message:    "malformed routing payload",
		Severity:   xerrors.SeverityInfo,
		HTTPStatus: 400,
	})
}

// Description is what the relay learns from a routing payload.
type Description struct {
	Executor        common.Address
	SrcToken        common.Address
	DstToken        common.Address
	SrcReceiver     common.Address
	DstReceiver     common.Address
	Amount          *big.Int
	MinReturnAmount *big.Int
	Flags           *big.Int
	Permit          []byte
	Data            []byte
}

// Decoder extracts a Description from a routing payload.
type Decoder interface {
	Decode(payload []byte) (Description, error)
}
