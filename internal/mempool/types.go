package mempool

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Transaction is the subset of an Esplora-style transaction the flow graph
// needs. The full record travels through the cache as raw JSON.
type Transaction struct {
	TxID string   `json:"txid"`
	Vin  []Input  `json:"vin"`
	Vout []Output `json:"vout"`
}

// Input references the output it spends. Prevout is nil for coinbase inputs.
type Input struct {
	Prevout *Output `json:"prevout"`
}

// Output names a destination address and an amount in the chain's smallest unit.
type Output struct {
	ScriptPubKeyAddress string `json:"scriptpubkey_address"`
	Value               int64  `json:"value"`
}

// SourceAddress returns the address funding the input, or "" when unknown.
func (in Input) SourceAddress() string {
	if in.Prevout == nil {
		return ""
	}
	return in.Prevout.ScriptPubKeyAddress
}

// SourceValue returns the spent amount in the smallest unit.
func (in Input) SourceValue() int64 {
	if in.Prevout == nil {
		return 0
	}
	return in.Prevout.Value
}

// DecodeTransaction decodes one raw cached record.
func DecodeTransaction(raw json.RawMessage) (Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return Transaction{}, fmt.Errorf("mempool: decode transaction: %w", err)
	}
	return tx, nil
}

// ToUnits converts an amount in the smallest unit to whole units exactly,
// e.g. ToUnits(150_000_000, 8) = 1.5.
func ToUnits(amount int64, exponent int32) decimal.Decimal {
	return decimal.New(amount, -exponent)
}
