package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hotelpms/internal/pkg/dberr"
	"hotelpms/internal/pkg/keylock"
	"hotelpms/internal/pkg/money"
)

type Service struct {
	db       *gorm.DB
	bookings BookingStore
	locks    *keylock.Locker
	events   EventPublisher
	now      func() time.Time
	loggerf  func(format string, args ...interface{})
}

func NewService(db *gorm.DB, bookings BookingStore, locks *keylock.Locker, loggerf func(format string, args ...interface{})) *Service {
	if locks == nil {
		locks = keylock.New()
	}
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Service{db: db, bookings: bookings, locks: locks, now: time.Now, loggerf: loggerf}
}

func (s *Service) SetPublisher(p EventPublisher) {
	s.events = p
}

// EntryRequest is a manual deposit or withdrawal.
type EntryRequest struct {
	Amount       decimal.Decimal
	Category     string
	CategoryNote string
	Notes        string
	Actor        string
}

type TransferRequest struct {
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        decimal.Decimal
	Notes         string
	Actor         string
}

// Effect summarizes what an operation did to one account.
type Effect struct {
	Account      *Account        `json:"account"`
	Transactions []Transaction   `json:"transactions"`
	BalanceDelta decimal.Decimal `json:"balance_delta"`
}

type ReconcileResult struct {
	AccountID        uuid.UUID       `json:"account_id"`
	StoredBalance    decimal.Decimal `json:"stored_balance"`
	ComputedBalance  decimal.Decimal `json:"computed_balance"`
	TransactionCount int             `json:"transaction_count"`
	LastSeq          int64           `json:"last_seq"`
	Consistent       bool            `json:"consistent"`
}

func (s *Service) GetOrCreateMainAccount(ctx context.Context) (*Account, error) {
	var acct Account
	err := s.db.WithContext(ctx).Where("kind = ?", AccountKindMain).Order("created_at").First(&acct).Error
	if err == nil {
		return &acct, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	unlock := s.locks.Lock("account:main")
	defer unlock()
	err = s.db.WithContext(ctx).Where("kind = ?", AccountKindMain).Order("created_at").First(&acct).Error
	if err == nil {
		return &acct, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	acct = Account{Name: MainAccountName, Kind: AccountKindMain, Balance: decimal.Zero}
	if err := s.db.WithContext(ctx).Create(&acct).Error; err != nil {
		return nil, fmt.Errorf("create main account: %w", err)
	}
	s.loggerf("level=info msg=\"main account created\" account_id=%s", acct.ID)
	return &acct, nil
}

func (s *Service) GetOrCreateUserAccount(ctx context.Context, userID int64, name string) (*Account, error) {
	var acct Account
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&acct).Error
	if err == nil {
		return &acct, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if name == "" {
		name = "User " + strconv.FormatInt(userID, 10)
	}
	acct = Account{Name: name, Kind: AccountKindUser, UserID: &userID, Balance: decimal.Zero}
	if err := s.db.WithContext(ctx).Create(&acct).Error; err != nil {
		if dberr.IsUniqueViolation(err) {
			var existing Account
			if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&existing).Error; err != nil {
				return nil, err
			}
			return &existing, nil
		}
		return nil, err
	}
	return &acct, nil
}

func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	var acct Account
	if err := s.db.WithContext(ctx).First(&acct, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &acct, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := s.db.WithContext(ctx).Order("kind, name").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListTransactions returns the newest entries first.
func (s *Service) ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]Transaction, int64, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := s.db.WithContext(ctx).Model(&Transaction{}).Where("account_id = ?", accountID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var txns []Transaction
	if err := q.Order("seq desc").Limit(limit).Offset(offset).Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

func (s *Service) Deposit(ctx context.Context, accountID uuid.UUID, req EntryRequest) (*Effect, error) {
	return s.manualEntry(ctx, accountID, TypeCredit, CategoryDeposit, req)
}

// Withdraw rejects amounts above the current balance.
func (s *Service) Withdraw(ctx context.Context, accountID uuid.UUID, req EntryRequest) (*Effect, error) {
	return s.manualEntry(ctx, accountID, TypeDebit, CategoryWithdrawal, req)
}

func (s *Service) manualEntry(ctx context.Context, accountID uuid.UUID, typ, defaultCategory string, req EntryRequest) (*Effect, error) {
	amount := money.Round(req.Amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	category := req.Category
	if category == "" {
		category = defaultCategory
	}
	if !ValidCategory(category) || category == CategoryRoomPayment || category == CategoryPaymentReversal {
		return nil, ErrInvalidCategory
	}

	unlock := s.lockAccounts(accountID)
	defer unlock()

	var effect Effect
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acct, err := lockAccount(tx, accountID)
		if err != nil {
			return err
		}
		if typ == TypeDebit && acct.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}

		entry, err := appendEntry(tx, acct, Transaction{
			Type:          typ,
			Amount:        amount,
			Category:      category,
			CategoryNote:  req.CategoryNote,
			ReferenceType: ReferenceManual,
			Notes:         req.Notes,
			CreatedBy:     req.Actor,
		})
		if err != nil {
			return err
		}
		effect = Effect{Account: acct, Transactions: []Transaction{*entry}, BalanceDelta: entry.Signed()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.loggerf("level=info msg=\"manual ledger entry\" account_id=%s type=%s category=%s amount=%s balance=%s", accountID, typ, category, amount, effect.Account.Balance)
	s.publish(ctx, "ledger.entry", effect.Transactions)
	return &effect, nil
}

// Transfer moves money between two accounts as a debit/credit pair sharing a
// reference id.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) ([]Effect, error) {
	amount := money.Round(req.Amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.FromAccountID == req.ToAccountID {
		return nil, ErrSameAccount
	}

	unlock := s.lockAccounts(req.FromAccountID, req.ToAccountID)
	defer unlock()

	ref := uuid.NewString()
	var effects []Effect
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accounts, err := lockAccountsOrdered(tx, req.FromAccountID, req.ToAccountID)
		if err != nil {
			return err
		}
		from, to := accounts[req.FromAccountID], accounts[req.ToAccountID]
		if from.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}

		out, err := appendEntry(tx, from, Transaction{
			Type: TypeDebit, Amount: amount, Category: CategoryTransferOut,
			ReferenceType: ReferenceTransfer, ReferenceID: ref, Notes: req.Notes, CreatedBy: req.Actor,
		})
		if err != nil {
			return err
		}
		in, err := appendEntry(tx, to, Transaction{
			Type: TypeCredit, Amount: amount, Category: CategoryTransferIn,
			ReferenceType: ReferenceTransfer, ReferenceID: ref, Notes: req.Notes, CreatedBy: req.Actor,
		})
		if err != nil {
			return err
		}
		effects = []Effect{
			{Account: from, Transactions: []Transaction{*out}, BalanceDelta: out.Signed()},
			{Account: to, Transactions: []Transaction{*in}, BalanceDelta: in.Signed()},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.loggerf("level=info msg=\"transfer recorded\" from=%s to=%s amount=%s ref=%s", req.FromAccountID, req.ToAccountID, amount, ref)
	s.publish(ctx, "ledger.transfer", effects)
	return effects, nil
}

// ReverseTransaction compensates a manual entry or both legs of a transfer.
// Payment entries are reversed through DeletePayment.
func (s *Service) ReverseTransaction(ctx context.Context, id uuid.UUID, reason, actor string) ([]Effect, error) {
	var original Transaction
	if err := s.db.WithContext(ctx).First(&original, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	if original.ReferenceType == ReferencePayment || original.ReversalOf != nil {
		return nil, ErrNotReversible
	}

	legs := []Transaction{original}
	if original.ReferenceType == ReferenceTransfer && original.ReferenceID != "" {
		legs = nil
		err := s.db.WithContext(ctx).
			Where("reference_type = ? AND reference_id = ? AND reversal_of IS NULL", ReferenceTransfer, original.ReferenceID).
			Order("created_at, seq").Find(&legs).Error
		if err != nil {
			return nil, err
		}
	}

	accountIDs := make([]uuid.UUID, 0, len(legs))
	for _, l := range legs {
		accountIDs = append(accountIDs, l.AccountID)
	}
	unlock := s.lockAccounts(accountIDs...)
	defer unlock()

	var effects []Effect
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accounts, err := lockAccountsOrdered(tx, accountIDs...)
		if err != nil {
			return err
		}
		for _, leg := range legs {
			var reversed int64
			if err := tx.Model(&Transaction{}).Where("reversal_of = ?", leg.ID).Count(&reversed).Error; err != nil {
				return err
			}
			if reversed > 0 {
				return ErrAlreadyReversed
			}

			acct := accounts[leg.AccountID]
			entry, err := appendEntry(tx, acct, compensationFor(leg, reason, actor))
			if err != nil {
				return err
			}
			effects = append(effects, Effect{Account: acct, Transactions: []Transaction{*entry}, BalanceDelta: entry.Signed()})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.loggerf("level=info msg=\"transaction reversed\" transaction_id=%s legs=%d actor=%q", id, len(legs), actor)
	s.publish(ctx, "ledger.reversal", effects)
	return effects, nil
}

// Reconcile compares the stored balance with the signed sum of entries up to
// the account's last sequence. Both are read under the account row lock so a
// concurrent write cannot land between them.
func (s *Service) Reconcile(ctx context.Context, accountID uuid.UUID) (*ReconcileResult, error) {
	var (
		acct     *Account
		computed = decimal.Zero
		count    int
		maxSeq   int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if acct, err = lockAccount(tx, accountID); err != nil {
			return err
		}
		var txns []Transaction
		if err := tx.Select("type", "amount", "seq").Where("account_id = ?", accountID).Find(&txns).Error; err != nil {
			return err
		}
		for _, t := range txns {
			if t.Seq > maxSeq {
				maxSeq = t.Seq
			}
			if t.Seq <= acct.LastSeq {
				computed = computed.Add(t.Signed())
				count++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &ReconcileResult{
		AccountID:        acct.ID,
		StoredBalance:    acct.Balance,
		ComputedBalance:  computed,
		TransactionCount: count,
		LastSeq:          acct.LastSeq,
		Consistent:       acct.Balance.Equal(computed) && acct.LastSeq == maxSeq,
	}
	if !res.Consistent {
		s.loggerf("level=error msg=\"ledger out of balance\" account_id=%s stored=%s computed=%s last_seq=%d max_seq=%d", acct.ID, acct.Balance, computed, acct.LastSeq, maxSeq)
	}
	return res, nil
}

// ReconcileAll checks every account and returns the inconsistent ones.
func (s *Service) ReconcileAll(ctx context.Context) ([]ReconcileResult, error) {
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	var bad []ReconcileResult
	for _, a := range accounts {
		res, err := s.Reconcile(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if !res.Consistent {
			bad = append(bad, *res)
		}
	}
	return bad, nil
}

func (s *Service) lockAccounts(ids ...uuid.UUID) func() {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, "account:"+id.String())
	}
	return s.locks.LockAll(keys...)
}

func (s *Service) publish(ctx context.Context, key string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, key, payload); err != nil {
		s.loggerf("level=warn msg=\"ledger event publish failed\" key=%s err=%v", key, err)
	}
}

func lockAccount(tx *gorm.DB, id uuid.UUID) (*Account, error) {
	var acct Account
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&acct, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &acct, nil
}

// lockAccountsOrdered locks rows in id order so concurrent transfers cannot deadlock.
func lockAccountsOrdered(tx *gorm.DB, ids ...uuid.UUID) (map[uuid.UUID]*Account, error) {
	var accounts []Account
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id IN ?", ids).Order("id").Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*Account, len(accounts))
	for i := range accounts {
		out[accounts[i].ID] = &accounts[i]
	}
	for _, id := range ids {
		if out[id] == nil {
			return nil, ErrAccountNotFound
		}
	}
	return out, nil
}

// appendEntry inserts the next entry for acct and moves its balance in the
// same transaction. acct must be locked by the caller and is updated in place.
func appendEntry(tx *gorm.DB, acct *Account, entry Transaction) (*Transaction, error) {
	if !entry.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: non-positive amount %s", ErrLedgerIntegrity, entry.Amount)
	}
	entry.AccountID = acct.ID
	entry.Seq = acct.LastSeq + 1

	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("%w: insert transaction: %w", ErrLedgerIntegrity, err)
	}

	balance := acct.Balance.Add(entry.Signed())
	res := tx.Model(&Account{}).
		Where("id = ? AND last_seq = ?", acct.ID, acct.LastSeq).
		Updates(map[string]any{"balance": balance, "last_seq": entry.Seq})
	if res.Error != nil {
		return nil, fmt.Errorf("%w: update balance: %w", ErrLedgerIntegrity, res.Error)
	}
	if res.RowsAffected != 1 {
		return nil, fmt.Errorf("%w: account %s moved concurrently", ErrLedgerIntegrity, acct.ID)
	}

	acct.Balance = balance
	acct.LastSeq = entry.Seq
	return &entry, nil
}

func compensationFor(original Transaction, reason, actor string) Transaction {
	typ := TypeDebit
	if original.Type == TypeDebit {
		typ = TypeCredit
	}
	id := original.ID
	category := original.Category
	if original.ReferenceType == ReferencePayment {
		category = CategoryPaymentReversal
	}
	return Transaction{
		Type:          typ,
		Amount:        original.Amount,
		Category:      category,
		CategoryNote:  "reversal",
		ReferenceType: original.ReferenceType,
		ReferenceID:   original.ReferenceID,
		PaymentID:     original.PaymentID,
		ReversalOf:    &id,
		Notes:         reason,
		CreatedBy:     actor,
	}
}
