package relay

import (
	"net/http"

	xerrors "SwapRelay/internal/errors"
)

const (
	CodeInvalidConfig            xerrors.Code = "INVALID_CONFIG"
	CodeInvalidRoute             xerrors.Code = "INVALID_ROUTE"
	CodeInsufficientAllowance    xerrors.Code = "INSUFFICIENT_ALLOWANCE"
	CodeTransferFailed           xerrors.Code = "TRANSFER_FAILED"
	CodeRouterCallFailed         xerrors.Code = "ROUTER_CALL_FAILED"
	CodeArithmeticOverflow       xerrors.Code = "ARITHMETIC_OVERFLOW"
	CodeReentrant                xerrors.Code = "REENTRANT"
	CodeSettlementTransferFailed xerrors.Code = "SETTLEMENT_TRANSFER_FAILED"
)

var (
	ErrInvalidConfig            = xerrors.New(CodeInvalidConfig, "invalid relay configuration")
	ErrInvalidRoute             = xerrors.New(CodeInvalidRoute, "invalid routing payload")
	ErrInsufficientAllowance    = xerrors.New(CodeInsufficientAllowance, "insufficient allowance")
	ErrTransferFailed           = xerrors.New(CodeTransferFailed, "custody transfer failed")
	ErrRouterCallFailed         = xerrors.New(CodeRouterCallFailed, "router call failed")
	ErrArithmeticOverflow       = xerrors.New(CodeArithmeticOverflow, "arithmetic overflow")
	ErrReentrant                = xerrors.New(CodeReentrant, "reentrant call")
	ErrSettlementTransferFailed = xerrors.New(CodeSettlementTransferFailed, "settlement transfer failed")
)

func init() {
	xerrors.Register(CodeInvalidConfig, xerrors.Attributes{
		Message:    "invalid relay configuration",
		Severity:   xerrors.SeverityCritical,
		Alert:      true,
		HTTPStatus: http.StatusInternalServerError,
	})
	xerrors.Register(CodeInvalidRoute, xerrors.Attributes{
		Message:    "invalid routing payload",
		Severity:   xerrors.SeverityInfo,
		HTTPStatus: http.StatusBadRequest,
	})
	xerrors.Register(CodeInsufficientAllowance, xerrors.Attributes{
		Message:    "insufficient allowance",
		Severity:   xerrors.SeverityInfo,
		HTTPStatus: http.StatusUnprocessableEntity,
	})
	xerrors.Register(CodeTransferFailed, xerrors.Attributes{
		Message:    "custody transfer failed",
		Severity:   xerrors.SeverityInfo,
		HTTPStatus: http.StatusUnprocessableEntity,
	})
	xerrors.Register(CodeRouterCallFailed, xerrors.Attributes{
		Message:    "router call failed",
		Severity:   xerrors.SeverityWarning,
		HTTPStatus: http.StatusUnprocessableEntity,
	})
	xerrors.Register(CodeArithmeticOverflow, xerrors.Attributes{
		Message:    "arithmetic overflow",
		Severity:   xerrors.SeverityCritical,
		Alert:      true,
		HTTPStatus: http.StatusUnprocessableEntity,
	})
	xerrors.Register(CodeReentrant, xerrors.Attributes{
		Message:    "reentrant call",
		Severity:   xerrors.SeverityWarning,
		Alert:      true,
		HTTPStatus: http.StatusConflict,
	})
	xerrors.Register(CodeSettlementTransferFailed, xerrors.Attributes{
		Message:    "settlement transfer failed",
		Severity:   xerrors.SeverityCritical,
		Alert:      true,
		HTTPStatus: http.StatusUnprocessableEntity,
	})
}

// RevertError is how a router reports a revert. Reason is surfaced to the
// caller of the relay verbatim.
type RevertError struct {
	Reason string
	Data   []byte
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

// Revert builds a RevertError with the given reason.
func Revert(reason string) error {
	return &RevertError{Reason: reason}
}

// RevertReason extracts the router reason from a RouterCallFailed error.
func RevertReason(err error) string {
	if e, ok := xerrors.From(err); ok && e.Code() == CodeRouterCallFailed {
		return e.Meta(xerrors.MetaReason)
	}
	return ""
}
