// Package record carries settlement records from the chain executor to
// persistent storage. A Record is the flattened, transport-friendly form of a
// relay Settled log.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"SwapRelay/internal/relay"
)

// Record 是一次结算的持久化表示，金额均为十进制字符串。
type Record struct {
	ID           string `json:"id"`
	TxID         string `json:"tx_id"`
	Relay        string `json:"relay"`
	Caller       string `json:"caller"`
	InputAsset   string `json:"input_asset"`
	OutputAsset  string `json:"output_asset"`
	InputAmount  string `json:"input_amount"`
	GrossOutput  string `json:"gross_output"`
	FeeAmount    string `json:"fee_amount"`
	NetOutput    string `json:"net_output"`
	NativeRefund string `json:"native_refund"`
	InputRefund  string `json:"input_refund"`
	ZeroOutput   bool   `json:"zero_output"`
	CreatedAt    int64  `json:"created_at"`
}

// FromSettlement 根据 Settled 日志构造记录。
func FromSettlement(txID string, relayAddr common.Address, rec relay.SettlementRecord, at time.Time) Record {
	return Record{
		ID:           uuid.NewString(),
		TxID:         txID,
		Relay:        relayAddr.Hex(),
		Caller:       rec.Caller.Hex(),
		InputAsset:   rec.InputAsset.Hex(),
		OutputAsset:  rec.OutputAsset.Hex(),
		InputAmount:  decimal(rec.InputAmount),
		GrossOutput:  decimal(rec.GrossOutput),
		FeeAmount:    decimal(rec.FeeAmount),
		NetOutput:    decimal(rec.NetOutput),
		NativeRefund: decimal(rec.NativeRefund),
		InputRefund:  decimal(rec.InputRefund),
		ZeroOutput:   rec.ZeroOutput,
		CreatedAt:    at.Unix(),
	}
}

// Validate 检查记录字段是否完整。
func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("record id is empty")
	}
	if !common.IsHexAddress(r.Caller) {
		return fmt.Errorf("record %s has invalid caller %q", r.ID, r.Caller)
	}
	for name, v := range map[string]string{
		"input_amount":  r.InputAmount,
		"gross_output":  r.GrossOutput,
		"fee_amount":    r.FeeAmount,
		"net_output":    r.NetOutput,
		"native_refund": r.NativeRefund,
		"input_refund":  r.InputRefund,
	} {
		n, ok := new(big.Int).SetString(v, 10)
		if !ok || n.Sign() < 0 {
			return fmt.Errorf("record %s has invalid %s %q", r.ID, name, v)
		}
	}
	return nil
}

// Encode 序列化记录用于队列传输。
func Encode(r Record) ([]byte, error) {
	return json.Marshal(r)
}

// Decode 反序列化队列中的记录。
func Decode(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return r, nil
}

func decimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
