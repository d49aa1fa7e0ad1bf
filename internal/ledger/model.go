// Package ledger holds the transaction domain: the money-movement intent
// record, its status state machine, the typed detail payload and the
// repository port the settlement engine runs against.
//
// A Transaction is created pending (or completed, for self-settling
// exchanges), is mutated only by the settlement engine during a status
// transition, and is otherwise an immutable audit record.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/akhmetov/payvault/internal/fee"
)

// Type identifies what kind of money movement a transaction records.
type Type string

const (
	TypeDeposit    Type = "deposit"
	TypeWithdrawal Type = "withdrawal"
	TypeSend       Type = "send"
	TypeExchange   Type = "exchange"
	TypeRequest    Type = "request"
)

// AllTypes returns every known transaction type.
func AllTypes() []Type {
	return []Type{TypeDeposit, TypeWithdrawal, TypeSend, TypeExchange, TypeRequest}
}

// IsValid reports whether the type is known.
func (t Type) IsValid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeSend, TypeExchange, TypeRequest:
		return true
	}
	return false
}

// RequiresApproval reports whether the type is gated behind an
// administrator. Exchanges self-settle and never wait for approval.
func (t Type) RequiresApproval() bool {
	return t != TypeExchange
}

// NeedsCounterparty reports whether the type moves money to or from
// another user.
func (t Type) NeedsCounterparty() bool {
	return t == TypeSend || t == TypeRequest
}

// Method identifies the payment rail a transaction uses.
type Method string

const (
	MethodBank   Method = "bank"
	MethodCrypto Method = "crypto"
	MethodCard   Method = "card"
	MethodManual Method = "manual"
	MethodSystem Method = "system"
)

// IsValid reports whether the method is known.
func (m Method) IsValid() bool {
	switch m {
	case MethodBank, MethodCrypto, MethodCard, MethodManual, MethodSystem:
		return true
	}
	return false
}

// methodsByType lists the methods each transaction type accepts.
var methodsByType = map[Type][]Method{
	TypeDeposit:    {MethodBank, MethodCrypto, MethodCard, MethodManual},
	TypeWithdrawal: {MethodBank, MethodCrypto, MethodManual},
	TypeSend:       {MethodManual, MethodSystem},
	TypeExchange:   {MethodSystem},
	TypeRequest:    {MethodManual, MethodSystem},
}

// AllowsMethod reports whether the method is accepted for this type.
func (t Type) AllowsMethod(m Method) bool {
	for _, allowed := range methodsByType[t] {
		if allowed == m {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

// IsValid reports whether the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// CanTransitionTo reports whether the state machine permits moving from s
// to next. Transitions are one-directional: pending fans out to the
// terminal states and nothing leaves a terminal state.
func (s Status) CanTransitionTo(next Status) bool {
	if s != StatusPending {
		return false
	}
	switch next {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// Transaction is a recorded intent to move money.
type Transaction struct {
	ID             uuid.UUID
	Reference      string
	UserID         uuid.UUID
	WalletID       uuid.UUID
	Type           Type
	Method         Method
	Status         Status
	Amount         decimal.Decimal
	Currency       string
	Fee            fee.Breakdown
	CounterpartyID *uuid.UUID
	Detail         Detail
	ApprovedBy     *uuid.UUID
	ApprovedAt     *time.Time
	FailureReason  *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Reserved is the amount held against the source wallet: the amount plus
// the full fee.
func (t *Transaction) Reserved() decimal.Decimal {
	return t.Amount.Add(t.Fee.Total)
}

// MarkCompleted flips the transaction to completed, stamping the approver
// when one acted. Returns ErrInvalidStateTransition unless pending.
func (t *Transaction) MarkCompleted(approverID *uuid.UUID, at time.Time) error {
	if !t.Status.CanTransitionTo(StatusCompleted) {
		return ErrInvalidStateTransition
	}
	t.Status = StatusCompleted
	t.ApprovedBy = approverID
	t.ApprovedAt = &at
	t.UpdatedAt = at
	return nil
}

// MarkRejected flips the transaction to rejected with a reason.
func (t *Transaction) MarkRejected(approverID uuid.UUID, reason string, at time.Time) error {
	if !t.Status.CanTransitionTo(StatusRejected) {
		return ErrInvalidStateTransition
	}
	t.Status = StatusRejected
	t.ApprovedBy = &approverID
	t.FailureReason = &reason
	t.UpdatedAt = at
	return nil
}

// MarkCancelled flips the transaction to cancelled. Self-service: no
// approver is stamped.
func (t *Transaction) MarkCancelled(reason string, at time.Time) error {
	if !t.Status.CanTransitionTo(StatusCancelled) {
		return ErrInvalidStateTransition
	}
	t.Status = StatusCancelled
	t.FailureReason = &reason
	t.UpdatedAt = at
	return nil
}

// MarkFailed flips the transaction to failed with a reason. The engine
// never sets this itself; it exists for operator tooling.
func (t *Transaction) MarkFailed(reason string, at time.Time) error {
	if !t.Status.CanTransitionTo(StatusFailed) {
		return ErrInvalidStateTransition
	}
	t.Status = StatusFailed
	t.FailureReason = &reason
	t.UpdatedAt = at
	return nil
}

// Validate checks structural invariants.
func (t *Transaction) Validate() error {
	if !t.Type.IsValid() {
		return ErrInvalidType
	}
	if !t.Method.IsValid() || !t.Type.AllowsMethod(t.Method) {
		return ErrInvalidMethod
	}
	if !t.Status.IsValid() {
		return ErrInvalidStatus
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Reference == "" {
		return ErrMissingReference
	}
	if t.Type.NeedsCounterparty() && t.CounterpartyID == nil {
		return ErrMissingCounterparty
	}
	return nil
}
