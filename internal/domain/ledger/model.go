package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AccountKindMain = "main"
	AccountKindUser = "user"

	MainAccountName = "Main Account"
)

const (
	TypeCredit = "credit"
	TypeDebit  = "debit"
)

const (
	CategoryRoomPayment     = "room_payment"
	CategoryPaymentReversal = "payment_reversal"
	CategoryDeposit         = "deposit"
	CategoryWithdrawal      = "withdrawal"
	CategoryTransferIn      = "transfer_in"
	CategoryTransferOut     = "transfer_out"
	CategoryExpense         = "expense"
	CategoryRefund          = "refund"
	CategoryOther           = "other"
)

const (
	ReferencePayment  = "payment"
	ReferenceManual   = "manual"
	ReferenceTransfer = "transfer"
)

const (
	MethodCash         = "cash"
	MethodCard         = "card"
	MethodUPI          = "upi"
	MethodBankTransfer = "bank_transfer"
	MethodOnline       = "online"
	MethodOther        = "other"
)

// Booking payment statuses. The booking package stores these values.
const (
	PaymentStatusPending       = "pending"
	PaymentStatusPartiallyPaid = "partially_paid"
	PaymentStatusPaid          = "paid"
	PaymentStatusCancelled     = "cancelled"
	PaymentStatusRefunded      = "refunded"
)

// Account balance is derived: it only ever moves together with a Transaction
// insert in the same database transaction.
type Account struct {
	ID        uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string          `json:"name" gorm:"size:120;not null"`
	Kind      string          `json:"kind" gorm:"size:16;not null;index;check:kind IN ('main','user')"`
	UserID    *int64          `json:"user_id,omitempty" gorm:"uniqueIndex"`
	Balance   decimal.Decimal `json:"balance" gorm:"type:decimal(14,2);not null;default:0"`
	LastSeq   int64           `json:"last_seq" gorm:"not null;default:0"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Transaction is an immutable ledger entry. Seq is strictly increasing per account.
type Transaction struct {
	ID            uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	AccountID     uuid.UUID       `json:"account_id" gorm:"type:uuid;not null;uniqueIndex:idx_account_seq,priority:1"`
	Seq           int64           `json:"seq" gorm:"not null;uniqueIndex:idx_account_seq,priority:2"`
	Type          string          `json:"type" gorm:"size:8;not null;check:type IN ('credit','debit')"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null"`
	Category      string          `json:"category" gorm:"size:32;not null;index"`
	CategoryNote  string          `json:"category_note,omitempty" gorm:"size:255"`
	ReferenceType string          `json:"reference_type" gorm:"size:16;not null"`
	ReferenceID   string          `json:"reference_id" gorm:"size:64;index"`
	PaymentID     *uuid.UUID      `json:"payment_id,omitempty" gorm:"type:uuid;index"`
	ReversalOf    *uuid.UUID      `json:"reversal_of,omitempty" gorm:"type:uuid;uniqueIndex"`
	Notes         string          `json:"notes,omitempty" gorm:"type:text"`
	CreatedBy     string          `json:"created_by,omitempty" gorm:"size:120"`
	Metadata      datatypes.JSON  `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime"`

	Account *Account `json:"-" gorm:"foreignKey:AccountID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (Transaction) TableName() string {
	return "transactions"
}

func (t *Transaction) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Signed is the entry's effect on its account balance.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == TypeDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Payment is never physically deleted; a reversed payment keeps its row.
type Payment struct {
	ID             uuid.UUID           `json:"id" gorm:"type:uuid;primaryKey"`
	BookingID      uint                `json:"booking_id" gorm:"not null;index"`
	AccountID      uuid.UUID           `json:"account_id" gorm:"type:uuid;not null;index"`
	Amount         decimal.Decimal     `json:"amount" gorm:"type:decimal(14,2);not null"`
	Method         string              `json:"method" gorm:"size:16;not null;check:method IN ('cash','card','upi','bank_transfer','online','other')"`
	MethodNote     string              `json:"method_note,omitempty" gorm:"size:255"`
	ReceivedBy     string              `json:"received_by" gorm:"size:120"`
	ReceivedAt     time.Time           `json:"received_at" gorm:"not null"`
	Notes          string              `json:"notes,omitempty" gorm:"type:text"`
	IsModification bool                `json:"is_modification" gorm:"not null"`
	OriginalAmount decimal.NullDecimal `json:"original_amount" gorm:"type:decimal(14,2)"`
	SupersedesID   *uuid.UUID          `json:"supersedes_id,omitempty" gorm:"type:uuid"`
	Reversed       bool                `json:"reversed" gorm:"not null;index"`
	ReversedAt     *time.Time          `json:"reversed_at,omitempty"`
	ReversalReason string              `json:"reversal_reason,omitempty" gorm:"size:255"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func ValidMethod(m string) bool {
	switch m {
	case MethodCash, MethodCard, MethodUPI, MethodBankTransfer, MethodOnline, MethodOther:
		return true
	}
	return false
}

func ValidCategory(c string) bool {
	switch c {
	case CategoryRoomPayment, CategoryPaymentReversal, CategoryDeposit, CategoryWithdrawal,
		CategoryTransferIn, CategoryTransferOut, CategoryExpense, CategoryRefund, CategoryOther:
		return true
	}
	return false
}

// PaymentStatusFor derives a live booking's payment status from what was paid.
// A booking with nothing to pay is paid.
func PaymentStatusFor(paid, total decimal.Decimal) string {
	switch {
	case !total.IsPositive():
		return PaymentStatusPaid
	case !paid.IsPositive():
		return PaymentStatusPending
	case paid.LessThan(total):
		return PaymentStatusPartiallyPaid
	default:
		return PaymentStatusPaid
	}
}
