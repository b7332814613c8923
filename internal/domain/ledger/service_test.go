package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// stubBooking stands in for the booking table.
type stubBooking struct {
	ID            uint `gorm:"primaryKey"`
	Status        string
	TotalAmount   decimal.Decimal `gorm:"type:decimal(14,2)"`
	AmountPaid    decimal.Decimal `gorm:"type:decimal(14,2)"`
	PaymentStatus string
}

type stubBookingStore struct{}

func (stubBookingStore) LockBooking(ctx context.Context, tx *gorm.DB, id uint) (*BookingState, error) {
	var b stubBooking
	if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &BookingState{ID: b.ID, Status: b.Status, Cancelled: b.Status == "cancelled", TotalAmount: b.TotalAmount, PaymentStatus: b.PaymentStatus}, nil
}

func (stubBookingStore) SetPaymentState(ctx context.Context, tx *gorm.DB, id uint, paid decimal.Decimal, status string) error {
	return tx.WithContext(ctx).Model(&stubBooking{}).Where("id = ?", id).
		Updates(map[string]any{"amount_paid": paid, "payment_status": status}).Error
}

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_test_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&Account{}, &Transaction{}, &Payment{}, &stubBooking{}))
	return NewService(db, stubBookingStore{}, nil, nil), db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createBooking(t *testing.T, db *gorm.DB, total string) uint {
	t.Helper()
	b := stubBooking{Status: "confirmed", TotalAmount: dec(total), AmountPaid: decimal.Zero, PaymentStatus: PaymentStatusPending}
	require.NoError(t, db.Create(&b).Error)
	return b.ID
}

// assertBalanced checks the stored balance against both views of the log:
// every signed entry, and the sum of live payments' credits.
func assertBalanced(t *testing.T, svc *Service, db *gorm.DB, acct *Account) {
	t.Helper()
	res, err := svc.Reconcile(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.True(t, res.Consistent, "stored=%s computed=%s", res.StoredBalance, res.ComputedBalance)

	var txns []Transaction
	require.NoError(t, db.Where("account_id = ?", acct.ID).Find(&txns).Error)
	reversed := map[string]bool{}
	for _, tx := range txns {
		if tx.ReversalOf != nil {
			reversed[tx.ReversalOf.String()] = true
		}
	}
	live := decimal.Zero
	for _, tx := range txns {
		if tx.ReversalOf == nil && !reversed[tx.ID.String()] {
			live = live.Add(tx.Signed())
		}
	}
	assert.True(t, live.Equal(res.StoredBalance), "live=%s stored=%s", live, res.StoredBalance)
}

func TestGetOrCreateMainAccountIsStable(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	a, err := svc.GetOrCreateMainAccount(ctx)
	require.NoError(t, err)
	b, err := svc.GetOrCreateMainAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, AccountKindMain, a.Kind)
	assert.True(t, a.Balance.IsZero())
}

func TestGetOrCreateUserAccount(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	a, err := svc.GetOrCreateUserAccount(ctx, 7, "")
	require.NoError(t, err)
	assert.Equal(t, "User 7", a.Name)
	b, err := svc.GetOrCreateUserAccount(ctx, 7, "ignored")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	accounts, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestDepositWithdrawAndSequence(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()
	acct, err := svc.GetOrCreateMainAccount(ctx)
	require.NoError(t, err)

	effect, err := svc.Deposit(ctx, acct.ID, EntryRequest{Amount: dec("1000"), Notes: "float", Actor: "ops"})
	require.NoError(t, err)
	assert.Equal(t, "1000", effect.Account.Balance.String())
	assert.Equal(t, int64(1), effect.Transactions[0].Seq)

	_, err = svc.Withdraw(ctx, acct.ID, EntryRequest{Amount: dec("1000.01")})
	assert.True(t, errors.Is(err, ErrInsufficientFunds))

	effect, err = svc.Withdraw(ctx, acct.ID, EntryRequest{Amount: dec("250.50"), Category: CategoryExpense, CategoryNote: "linen"})
	require.NoError(t, err)
	assert.Equal(t, "749.5", effect.Account.Balance.String())
	assert.Equal(t, "-250.5", effect.BalanceDelta.String())
	assert.Equal(t, int64(2), effect.Transactions[0].Seq)

	_, err = svc.Deposit(ctx, acct.ID, EntryRequest{Amount: dec("0")})
	assert.True(t, errors.Is(err, ErrInvalidAmount))
	_, err = svc.Deposit(ctx, acct.ID, EntryRequest{Amount: dec("10"), Category: CategoryRoomPayment})
	assert.True(t, errors.Is(err, ErrInvalidCategory))
	_, err = svc.Deposit(ctx, acct.ID, EntryRequest{Amount: dec("10"), Category: "snacks"})
	assert.True(t, errors.Is(err, ErrInvalidCategory))

	txns, total, err := svc.ListTransactions(ctx, acct.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(2), txns[0].Seq, "newest first")

	assertBalanced(t, svc, db, acct)
}

func TestTransferAndReverse(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()
	main, err := svc.GetOrCreateMainAccount(ctx)
	require.NoError(t, err)
	petty, err := svc.GetOrCreateUserAccount(ctx, 3, "Petty cash")
	require.NoError(t, err)

	_, err = svc.Deposit(ctx, main.ID, EntryRequest{Amount: dec("500")})
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, TransferRequest{FromAccountID: main.ID, ToAccountID: main.ID, Amount: dec("1")})
	assert.True(t, errors.Is(err, ErrSameAccount))
	_, err = svc.Transfer(ctx, TransferRequest{FromAccountID: petty.ID, ToAccountID: main.ID, Amount: dec("1")})
	assert.True(t, errors.Is(err, ErrInsufficientFunds))

	effects, err := svc.Transfer(ctx, TransferRequest{FromAccountID: main.ID, ToAccountID: petty.ID, Amount: dec("200")})
	require.NoError(t, err)
	require.Len(t, effects, 2)
	assert.Equal(t, "300", effects[0].Account.Balance.String())
	assert.Equal(t, "200", effects[1].Account.Balance.String())
	out := effects[0].Transactions[0]
	assert.Equal(t, out.ReferenceID, effects[1].Transactions[0].ReferenceID)

	reversals, err := svc.ReverseTransaction(ctx, out.ID, "wrong account", "ops")
	require.NoError(t, err)
	require.Len(t, reversals, 2)

	m, err := svc.GetAccount(ctx, main.ID)
	require.NoError(t, err)
	p, err := svc.GetAccount(ctx, petty.ID)
	require.NoError(t, err)
	assert.Equal(t, "500", m.Balance.String())
	assert.True(t, p.Balance.IsZero())

	_, err = svc.ReverseTransaction(ctx, out.ID, "again", "ops")
	assert.True(t, errors.Is(err, ErrAlreadyReversed))
	_, err = svc.ReverseTransaction(ctx, *reversals[0].Transactions[0].ReversalOf, "", "")
	assert.Error(t, err)
	_, err = svc.ReverseTransaction(ctx, reversals[0].Transactions[0].ID, "", "")
	assert.True(t, errors.Is(err, ErrNotReversible))

	assertBalanced(t, svc, db, main)
	assertBalanced(t, svc, db, petty)
}

func TestReconcileDetectsDrift(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()
	acct, err := svc.GetOrCreateMainAccount(ctx)
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, acct.ID, EntryRequest{Amount: dec("100")})
	require.NoError(t, err)

	require.NoError(t, db.Model(&Account{}).Where("id = ?", acct.ID).Update("balance", dec("90")).Error)

	res, err := svc.Reconcile(ctx, acct.ID)
	require.NoError(t, err)
	assert.False(t, res.Consistent)
	assert.Equal(t, "100", res.ComputedBalance.String())

	bad, err := svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Len(t, bad, 1)
}

func TestReconcileDuringConcurrentDeposits(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()
	acct, err := svc.GetOrCreateMainAccount(ctx)
	require.NoError(t, err)

	const deposits = 40
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < deposits; i++ {
			_, err := svc.Deposit(ctx, acct.ID, EntryRequest{Amount: dec("10"), Actor: "ops"})
			assert.NoError(t, err)
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for checks := 0; ; checks++ {
		res, err := svc.Reconcile(ctx, acct.ID)
		require.NoError(t, err)
		require.True(t, res.Consistent, "check %d: stored=%s computed=%s last_seq=%d", checks, res.StoredBalance, res.ComputedBalance, res.LastSeq)
		select {
		case <-done:
			res, err := svc.Reconcile(ctx, acct.ID)
			require.NoError(t, err)
			assert.True(t, res.Consistent)
			assert.Equal(t, "400", res.StoredBalance.String())
			assert.Equal(t, deposits, res.TransactionCount)
			return
		default:
		}
	}
}

func TestPaymentStatusFor(t *testing.T) {
	total := dec("9558")
	assert.Equal(t, PaymentStatusPending, PaymentStatusFor(decimal.Zero, total))
	assert.Equal(t, PaymentStatusPartiallyPaid, PaymentStatusFor(dec("5000"), total))
	assert.Equal(t, PaymentStatusPaid, PaymentStatusFor(dec("9558"), total))
	assert.Equal(t, PaymentStatusPaid, PaymentStatusFor(dec("10000"), total))
	assert.Equal(t, PaymentStatusPaid, PaymentStatusFor(decimal.Zero, decimal.Zero))
}
