package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// DetailKind discriminates the detail payload variants.
type DetailKind string

const (
	DetailKindBank     DetailKind = "bank"
	DetailKindCrypto   DetailKind = "crypto"
	DetailKindCard     DetailKind = "card"
	DetailKindExchange DetailKind = "exchange"
	DetailKindRequest  DetailKind = "request"
	DetailKindNone     DetailKind = "none"
)

// BankDetail carries bank rail specifics.
type BankDetail struct {
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	RoutingNumber string `json:"routing_number,omitempty"`
}

// CryptoDetail carries crypto rail specifics.
type CryptoDetail struct {
	Network string `json:"network"`
	Address string `json:"address"`
	TxHash  string `json:"tx_hash,omitempty"`
}

// CardDetail carries card rail specifics. Only non-sensitive fields are
// ever stored.
type CardDetail struct {
	Brand string `json:"brand"`
	Last4 string `json:"last4"`
}

// ExchangeDetail records the figures computed at exchange settlement.
type ExchangeDetail struct {
	FromCurrency string          `json:"from_currency"`
	ToCurrency   string          `json:"to_currency"`
	Rate         decimal.Decimal `json:"rate"`
	Exchanged    decimal.Decimal `json:"exchanged"`
	Fee          decimal.Decimal `json:"fee"`
	Net          decimal.Decimal `json:"net"`
}

// RequestDetail carries a payment request's message and the fee the
// requester prepaid at creation (refunded on reject/cancel).
type RequestDetail struct {
	Message    string          `json:"message,omitempty"`
	PrepaidFee decimal.Decimal `json:"prepaid_fee"`
}

// Detail is a tagged union of type-specific transaction payloads. Exactly
// the variant matching Kind is set; everything else is nil. The
// RequiresApproval flag is carried on the envelope.
type Detail struct {
	Kind             DetailKind
	RequiresApproval bool

	Bank     *BankDetail
	Crypto   *CryptoDetail
	Card     *CardDetail
	Exchange *ExchangeDetail
	Request  *RequestDetail
}

// NoDetail is the empty payload used by manual/system movements that
// carry no rail specifics.
func NoDetail(requiresApproval bool) Detail {
	return Detail{Kind: DetailKindNone, RequiresApproval: requiresApproval}
}

// Validate checks that the set variant matches the discriminant.
func (d Detail) Validate() error {
	switch d.Kind {
	case DetailKindBank:
		if d.Bank == nil {
			return fmt.Errorf("%w: missing bank variant", ErrInvalidDetail)
		}
	case DetailKindCrypto:
		if d.Crypto == nil {
			return fmt.Errorf("%w: missing crypto variant", ErrInvalidDetail)
		}
	case DetailKindCard:
		if d.Card == nil {
			return fmt.Errorf("%w: missing card variant", ErrInvalidDetail)
		}
	case DetailKindExchange:
		if d.Exchange == nil {
			return fmt.Errorf("%w: missing exchange variant", ErrInvalidDetail)
		}
	case DetailKindRequest:
		if d.Request == nil {
			return fmt.Errorf("%w: missing request variant", ErrInvalidDetail)
		}
	case DetailKindNone:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDetail, d.Kind)
	}
	return nil
}

// detailEnvelope is the persisted JSON shape.
type detailEnvelope struct {
	Kind             DetailKind      `json:"kind"`
	RequiresApproval bool            `json:"requires_approval"`
	Data             json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (d Detail) MarshalJSON() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	env := detailEnvelope{Kind: d.Kind, RequiresApproval: d.RequiresApproval}

	var variant any
	switch d.Kind {
	case DetailKindBank:
		variant = d.Bank
	case DetailKindCrypto:
		variant = d.Crypto
	case DetailKindCard:
		variant = d.Card
	case DetailKindExchange:
		variant = d.Exchange
	case DetailKindRequest:
		variant = d.Request
	}

	if variant != nil {
		data, err := json.Marshal(variant)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s detail: %w", d.Kind, err)
		}
		env.Data = data
	}

	return json.Marshal(env)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Detail) UnmarshalJSON(data []byte) error {
	var env detailEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to unmarshal detail envelope: %w", err)
	}

	out := Detail{Kind: env.Kind, RequiresApproval: env.RequiresApproval}
	if env.Kind == "" {
		out.Kind = DetailKindNone
	}

	var target any
	switch out.Kind {
	case DetailKindBank:
		out.Bank = &BankDetail{}
		target = out.Bank
	case DetailKindCrypto:
		out.Crypto = &CryptoDetail{}
		target = out.Crypto
	case DetailKindCard:
		out.Card = &CardDetail{}
		target = out.Card
	case DetailKindExchange:
		out.Exchange = &ExchangeDetail{}
		target = out.Exchange
	case DetailKindRequest:
		out.Request = &RequestDetail{}
		target = out.Request
	case DetailKindNone:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDetail, env.Kind)
	}

	if target != nil {
		if len(env.Data) == 0 {
			return fmt.Errorf("%w: %s detail has no data", ErrInvalidDetail, out.Kind)
		}
		if err := json.Unmarshal(env.Data, target); err != nil {
			return fmt.Errorf("failed to unmarshal %s detail: %w", out.Kind, err)
		}
	}

	*d = out
	return nil
}
