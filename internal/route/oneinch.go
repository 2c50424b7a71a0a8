package route

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	xerrors "SwapRelay/internal/errors"
)

// SwapSelector is the 4-byte id of AggregationRouterV5.swap.
var SwapSelector = common.FromHex("0x12aa3caf")

const oneInchV5ABI = `[{
  "name": "swap",
  "type": "function",
  "stateMutability": "payable",
  "inputs": [
    {"name": "executor", "type": "address"},
    {"name": "desc", "type": "tuple", "components": [
      {"name": "srcToken", "type": "address"},
      {"name": "dstToken", "type": "address"},
      {"name": "srcReceiver", "type": "address"},
      {"name": "dstReceiver", "type": "address"},
      {"name": "amount", "type": "uint256"},
      {"name": "minReturnAmount", "type": "uint256"},
      {"name": "flags", "type": "uint256"}
    ]},
    {"name": "permit", "type": "bytes"},
    {"name": "data", "type": "bytes"}
  ],
  "outputs": [
    {"name": "returnAmount", "type": "uint256"},
    {"name": "spentAmount", "type": "uint256"}
  ]
}]`

// swapDescription mirrors the desc tuple field by field so that
// abi.ConvertType can copy the unpacked anonymous struct into it.
type swapDescription struct {
	SrcToken        common.Address
	DstToken        common.Address
	SrcReceiver     common.Address
	DstReceiver     common.Address
	Amount          *big.Int
	MinReturnAmount *big.Int
	Flags           *big.Int
}

// OneInchV5 decodes and encodes 1inch AggregationRouterV5 swap calls.
type OneInchV5 struct {
	method abi.Method
	abi    abi.ABI
}

// NewOneInchV5 parses the router ABI.
func NewOneInchV5() (*OneInchV5, error) {
	parsed, err := abi.JSON(strings.NewReader(oneInchV5ABI))
	if err != nil {
		return nil, fmt.Errorf("parse 1inch v5 abi: %w", err)
	}
	return &OneInchV5{abi: parsed, method: parsed.Methods["swap"]}, nil
}

// MustOneInchV5 is NewOneInchV5 for package-level wiring; the ABI is a
// constant so a failure is a programming error.
func MustOneInchV5() *OneInchV5 {
	d, err := NewOneInchV5()
	if err != nil {
		panic(err)
	}
	return d
}

// Decode implements Decoder.
func (d *OneInchV5) Decode(payload []byte) (Description, error) {
	if len(payload) < 4 {
		return Description{}, xerrors.New(CodeMalformedPayload, fmt.Sprintf("payload of %d bytes has no selector", len(payload)))
	}
	if !bytes.Equal(payload[:4], d.method.ID) {
		return Description{}, xerrors.New(CodeMalformedPayload,
			fmt.Sprintf("unsupported selector 0x%x", payload[:4]))
	}
	values, err := d.method.Inputs.Unpack(payload[4:])
	if err != nil {
		return Description{}, xerrors.Wrap(CodeMalformedPayload, err, "unpack swap arguments")
	}
	if len(values) != 4 {
		return Description{}, xerrors.New(CodeMalformedPayload, fmt.Sprintf("expected 4 swap arguments, got %d", len(values)))
	}

	executor, ok := values[0].(common.Address)
	if !ok {
		return Description{}, xerrors.New(CodeMalformedPayload, "executor is not an address")
	}
	desc, err := convertDescription(values[1])
	if err != nil {
		return Description{}, err
	}
	permit, _ := values[2].([]byte)
	data, _ := values[3].([]byte)

	return Description{
		Executor:        executor,
		SrcToken:        desc.SrcToken,
		DstToken:        desc.DstToken,
		SrcReceiver:     desc.SrcReceiver,
		DstReceiver:     desc.DstReceiver,
		Amount:          desc.Amount,
		MinReturnAmount: desc.MinReturnAmount,
		Flags:           desc.Flags,
		Permit:          permit,
		Data:            data,
	}, nil
}

// Encode builds swap calldata for desc.
func (d *OneInchV5) Encode(desc Description) ([]byte, error) {
	payload, err := d.abi.Pack("swap", desc.Executor, swapDescription{
		SrcToken:        desc.SrcToken,
		DstToken:        desc.DstToken,
		SrcReceiver:     desc.SrcReceiver,
		DstReceiver:     desc.DstReceiver,
		Amount:          orZero(desc.Amount),
		MinReturnAmount: orZero(desc.MinReturnAmount),
		Flags:           orZero(desc.Flags),
	}, orEmpty(desc.Permit), orEmpty(desc.Data))
	if err != nil {
		return nil, fmt.Errorf("pack swap call: %w", err)
	}
	return payload, nil
}

// EncodeResult packs the (returnAmount, spentAmount) tuple a router returns.
func (d *OneInchV5) EncodeResult(returnAmount, spentAmount *big.Int) ([]byte, error) {
	out, err := d.method.Outputs.Pack(orZero(returnAmount), orZero(spentAmount))
	if err != nil {
		return nil, fmt.Errorf("pack swap result: %w", err)
	}
	return out, nil
}

// DecodeResult is the inverse of EncodeResult.
func (d *OneInchV5) DecodeResult(data []byte) (returnAmount, spentAmount *big.Int, err error) {
	values, err := d.method.Outputs.Unpack(data)
	if err != nil {
		return nil, nil, fmt.Errorf("unpack swap result: %w", err)
	}
	if len(values) != 2 {
		return nil, nil, fmt.Errorf("expected 2 results, got %d", len(values))
	}
	returnAmount, _ = values[0].(*big.Int)
	spentAmount, _ = values[1].(*big.Int)
	return returnAmount, spentAmount, nil
}

func convertDescription(value any) (desc *swapDescription, err error) {
	defer func() {
		// abi.ConvertType panics when the shapes differ.
		if r := recover(); r != nil {
			desc = nil
			err = xerrors.New(CodeMalformedPayload, fmt.Sprintf("unexpected swap description shape: %v", r))
		}
	}()
	converted, ok := abi.ConvertType(value, new(swapDescription)).(*swapDescription)
	if !ok || converted == nil {
		return nil, xerrors.New(CodeMalformedPayload, "unexpected swap description shape")
	}
	if converted.Amount == nil || converted.MinReturnAmount == nil || converted.Flags == nil {
		return nil, xerrors.New(CodeMalformedPayload, "swap description has empty amounts")
	}
	return converted, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func orEmpty(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

var _ Decoder = (*OneInchV5)(nil)
