package relay

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	xerrors "SwapRelay/internal/errors"
)

// receiveValue moves the attached native value into relay custody. This is
// the value leg of the call, so it happens for token inputs too.
func (r *Relay) receiveValue(call Call) error {
	if call.Value == nil || call.Value.Sign() == 0 {
		return nil
	}
	if err := r.ledger.TransferNative(call.Caller, r.address, call.Value); err != nil {
		return xerrors.Wrap(CodeTransferFailed, err, "receive attached native value",
			xerrors.WithMetadata(xerrors.MetaStage, "value"))
	}
	return nil
}

// pullInput takes exactly InputAmount of the input token from the caller.
func (r *Relay) pullInput(caller common.Address, req SwapRequest) error {
	allowance := r.ledger.Allowance(req.InputAsset, caller, r.address)
	if allowance.Cmp(req.InputAmount) < 0 {
		return xerrors.New(CodeInsufficientAllowance,
			fmt.Sprintf("allowance %s of %s is below input amount %s", allowance, req.InputAsset.Hex(), req.InputAmount),
			xerrors.WithMetadata(xerrors.MetaAsset, req.InputAsset.Hex()))
	}
	if err := r.ledger.TransferFrom(req.InputAsset, r.address, caller, r.address, req.InputAmount); err != nil {
		return xerrors.Wrap(CodeTransferFailed, err, "pull input token from caller",
			xerrors.WithMetadata(xerrors.MetaStage, "intake"),
			xerrors.WithMetadata(xerrors.MetaAsset, req.InputAsset.Hex()))
	}
	return nil
}

// grantRouter lets the router spend exactly what this call needs.
func (r *Relay) grantRouter(req SwapRequest) error {
	if err := r.ledger.Approve(req.InputAsset, r.address, r.settings.Router(), req.InputAmount); err != nil {
		return xerrors.Wrap(CodeTransferFailed, err, "approve router",
			xerrors.WithMetadata(xerrors.MetaStage, "approve"))
	}
	return nil
}

// revokeRouter zeroes whatever allowance the router did not consume.
func (r *Relay) revokeRouter(req SwapRequest) error {
	if err := r.ledger.Approve(req.InputAsset, r.address, r.settings.Router(), new(big.Int)); err != nil {
		return xerrors.Wrap(CodeTransferFailed, err, "revoke router allowance",
			xerrors.WithMetadata(xerrors.MetaStage, "revoke"))
	}
	return nil
}

// balanceOf reads the relay's holding of asset, native or token.
func (r *Relay) balanceOf(asset common.Address) *big.Int {
	if r.settings.IsNative(asset) {
		return r.ledger.NativeBalance(r.address)
	}
	return r.ledger.TokenBalance(asset, r.address)
}
