package relay

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	xerrors "SwapRelay/internal/errors"
)

// MaxFeeBps is 100% expressed in basis points.
const MaxFeeBps = 10_000

// Settings is the relay configuration. It is fixed at construction and has
// no mutators; changing it means deploying a new relay.
type Settings struct {
	router         common.Address
	feeRecipient   common.Address
	feeBps         uint64
	nativeSentinel common.Address
}

// NewSettings validates and freezes the relay configuration.
func NewSettings(router, feeRecipient common.Address, feeBps uint64, nativeSentinel common.Address) (Settings, error) {
	if router == (common.Address{}) {
		return Settings{}, xerrors.New(CodeInvalidConfig, "router must not be the zero address")
	}
	if feeRecipient == (common.Address{}) {
		return Settings{}, xerrors.New(CodeInvalidConfig, "fee recipient must not be the zero address")
	}
	if feeBps > MaxFeeBps {
		return Settings{}, xerrors.New(CodeInvalidConfig, fmt.Sprintf("fee of %d bps exceeds %d", feeBps, MaxFeeBps))
	}
	return Settings{
		router:         router,
		feeRecipient:   feeRecipient,
		feeBps:         feeBps,
		nativeSentinel: nativeSentinel,
	}, nil
}

func (s Settings) Router() common.Address         { return s.router }
func (s Settings) FeeRecipient() common.Address   { return s.feeRecipient }
func (s Settings) FeeBps() uint64                 { return s.feeBps }
func (s Settings) NativeSentinel() common.Address { return s.nativeSentinel }

// IsNative reports whether asset denotes the chain's native currency.
func (s Settings) IsNative(asset common.Address) bool {
	return asset == s.nativeSentinel
}
