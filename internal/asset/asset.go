// Package asset defines the record types tracked by ledgerline.
package asset

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type classifies an asset or liability record.
type Type string

// Known asset types.
const (
	TypeCash          Type = "cash"
	TypeBankDeposit   Type = "bank_deposit"
	TypeStock         Type = "stock"
	TypeFund          Type = "fund"
	TypeBond          Type = "bond"
	TypeRealEstate    Type = "real_estate"
	TypeVehicle       Type = "vehicle"
	TypeCrypto        Type = "crypto"
	TypePreciousMetal Type = "precious_metal"
	TypeOther         Type = "other"
)

// ParseType maps a string to a known Type, defaulting to TypeOther.
func ParseType(s string) Type {
	switch Type(s) {
	case TypeCash, TypeBankDeposit, TypeStock, TypeFund, TypeBond,
		TypeRealEstate, TypeVehicle, TypeCrypto, TypePreciousMetal:
		return Type(s)
	default:
		return TypeOther
	}
}

// Currency identifies the denomination of an asset value.
type Currency string

// Known currencies.
const (
	CurrencyCNY Currency = "CNY"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyJPY Currency = "JPY"
	CurrencyHKD Currency = "HKD"
)

// DefaultCurrency is used when a record declares none.
const DefaultCurrency = CurrencyCNY

// Asset is one tracked record. Its JSON form is the payload delivered
// to extension hooks, so field names are part of the extension contract.
type Asset struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Type        Type            `json:"asset_type"`
	Value       float64         `json:"value"`
	Currency    Currency        `json:"currency"`
	Description string          `json:"description,omitempty"`
	Tags        []string        `json:"tags"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// New creates an asset with a fresh ID and timestamps.
func New(name string, typ Type, value float64) *Asset {
	now := time.Now().UTC()
	return &Asset{
		ID:        uuid.New(),
		Name:      name,
		Type:      typ,
		Value:     value,
		Currency:  DefaultCurrency,
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithCurrency sets the currency.
func (a *Asset) WithCurrency(c Currency) *Asset {
	a.Currency = c
	return a
}

// WithDescription sets the description.
func (a *Asset) WithDescription(desc string) *Asset {
	a.Description = desc
	return a
}

// WithTags sets the tags.
func (a *Asset) WithTags(tags ...string) *Asset {
	a.Tags = tags
	return a
}

// SetValue updates the value and bumps the updated timestamp.
func (a *Asset) SetValue(value float64) {
	a.Value = value
	a.UpdatedAt = time.Now().UTC()
}

// Payload returns the serialized snapshot delivered to extensions.
func (a *Asset) Payload() ([]byte, error) {
	return json.Marshal(a)
}

// TransactionKind classifies a value change.
type TransactionKind string

// Known transaction kinds.
const (
	TxBuy         TransactionKind = "buy"
	TxSell        TransactionKind = "sell"
	TxValueChange TransactionKind = "value_change"
	TxIncome      TransactionKind = "income"
	TxExpense     TransactionKind = "expense"
	TxTransfer    TransactionKind = "transfer"
)

// Transaction is an audit row recording one change to an asset's value.
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	AssetID      uuid.UUID       `json:"asset_id"`
	Kind         TransactionKind `json:"transaction_type"`
	AmountBefore float64         `json:"amount_before"`
	AmountAfter  float64         `json:"amount_after"`
	Note         string          `json:"note,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// NewTransaction creates a transaction row for an asset value change.
func NewTransaction(assetID uuid.UUID, kind TransactionKind, before, after float64, note string) *Transaction {
	return &Transaction{
		ID:           uuid.New(),
		AssetID:      assetID,
		Kind:         kind,
		AmountBefore: before,
		AmountAfter:  after,
		Note:         note,
		Timestamp:    time.Now().UTC(),
	}
}

// Summary aggregates the tracked portfolio.
type Summary struct {
	TotalValue float64            `json:"total_value"`
	ByType     map[string]float64 `json:"by_type"`
	ByCurrency map[string]float64 `json:"by_currency"`
	AssetCount int                `json:"asset_count"`
}
