package purchase

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fanledger/internal/events"
	"fanledger/internal/fan"
	"fanledger/internal/grant"
	"fanledger/internal/offer"
	"fanledger/internal/wallet"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) FindByClientTxn(ctx context.Context, fanID int, kind, clientTxnID string) (*Purchase, error) {
	args := m.Called(ctx, fanID, kind, clientTxnID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Purchase), args.Error(1)
}

func (m *mockRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, p *Purchase) (*Purchase, error) {
	args := m.Called(ctx, tx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Purchase), args.Error(1)
}

func (m *mockRepository) ListByFan(ctx context.Context, fanID int, limit, offset int) ([]Purchase, error) {
	args := m.Called(ctx, fanID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Purchase), args.Error(1)
}

func (m *mockRepository) FindPPV(ctx context.Context, ppvMessageID, fanID int) (*PPVPurchase, error) {
	args := m.Called(ctx, ppvMessageID, fanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PPVPurchase), args.Error(1)
}

func (m *mockRepository) CreatePPVTx(ctx context.Context, tx *sqlx.Tx, p *PPVPurchase) (*PPVPurchase, error) {
	args := m.Called(ctx, tx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PPVPurchase), args.Error(1)
}

type mockWalletRepo struct {
	mock.Mock
}

func (m *mockWalletRepo) GetOrCreateWallet(ctx context.Context, fanID int) (*wallet.Wallet, error) {
	args := m.Called(ctx, fanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *mockWalletRepo) Debit(ctx context.Context, fanID int, amountCents int64, idemKey *string, kind string, meta map[string]interface{}) (*wallet.Wallet, *wallet.Transaction, error) {
	args := m.Called(ctx, fanID, amountCents, idemKey, kind, meta)
	return walletTxnReturns(args)
}

func (m *mockWalletRepo) Credit(ctx context.Context, fanID int, amountCents int64, idemKey *string, kind string) (*wallet.Wallet, *wallet.Transaction, error) {
	args := m.Called(ctx, fanID, amountCents, idemKey, kind)
	return walletTxnReturns(args)
}

func (m *mockWalletRepo) DebitTx(ctx context.Context, tx *sqlx.Tx, fanID int, amountCents int64, idemKey *string, kind string, meta map[string]interface{}) (*wallet.Wallet, *wallet.Transaction, error) {
	args := m.Called(ctx, tx, fanID, amountCents, idemKey, kind, meta)
	return walletTxnReturns(args)
}

func (m *mockWalletRepo) GetTransactions(ctx context.Context, fanID int, limit, offset int) ([]wallet.Transaction, error) {
	args := m.Called(ctx, fanID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]wallet.Transaction), args.Error(1)
}

func walletTxnReturns(args mock.Arguments) (*wallet.Wallet, *wallet.Transaction, error) {
	var w *wallet.Wallet
	var txn *wallet.Transaction
	if args.Get(0) != nil {
		w = args.Get(0).(*wallet.Wallet)
	}
	if args.Get(1) != nil {
		txn = args.Get(1).(*wallet.Transaction)
	}
	return w, txn, args.Error(2)
}

type mockGrantRepo struct {
	mock.Mock
}

func (m *mockGrantRepo) Upsert(ctx context.Context, fanID int, t grant.Type, extendIfActive bool) (*grant.AccessGrant, error) {
	args := m.Called(ctx, fanID, t, extendIfActive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*grant.AccessGrant), args.Error(1)
}

func (m *mockGrantRepo) UpsertTx(ctx context.Context, tx *sqlx.Tx, fanID int, t grant.Type, extendIfActive bool) (*grant.AccessGrant, error) {
	args := m.Called(ctx, tx, fanID, t, extendIfActive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*grant.AccessGrant), args.Error(1)
}

func (m *mockGrantRepo) ActiveGrants(ctx context.Context, fanID int, now time.Time) ([]grant.AccessGrant, error) {
	args := m.Called(ctx, fanID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]grant.AccessGrant), args.Error(1)
}

func (m *mockGrantRepo) AllGrants(ctx context.Context, fanID int) ([]grant.AccessGrant, error) {
	args := m.Called(ctx, fanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]grant.AccessGrant), args.Error(1)
}

func (m *mockGrantRepo) HasActiveGrant(ctx context.Context, fanID int, t grant.Type, now time.Time) (bool, error) {
	args := m.Called(ctx, fanID, t, now)
	return args.Bool(0), args.Error(1)
}

type mockFanRepo struct {
	mock.Mock
}

func (m *mockFanRepo) Create(ctx context.Context, creatorID int, name, email, passwordHash, role string) (*fan.Fan, error) {
	args := m.Called(ctx, creatorID, name, email, passwordHash, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fan.Fan), args.Error(1)
}

func (m *mockFanRepo) FindByID(ctx context.Context, id int) (*fan.Fan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fan.Fan), args.Error(1)
}

func (m *mockFanRepo) FindByEmail(ctx context.Context, email string) (*fan.Fan, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fan.Fan), args.Error(1)
}

func (m *mockFanRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockFanRepo) ConfirmAdult(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockFanRepo) RecordPurchaseSignal(ctx context.Context, id int, preview string) error {
	args := m.Called(ctx, id, preview)
	return args.Error(0)
}

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, identifier string, amountCents int64) (*offer.Resolved, error) {
	args := m.Called(ctx, identifier, amountCents)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*offer.Resolved), args.Error(1)
}

// recordingEmitter captures emitted events for assertions.
type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(e events.Event) {
	r.events = append(r.events, e)
}

func (r *recordingEmitter) types() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type serviceFixture struct {
	svc      Service
	sqlMock  sqlmock.Sqlmock
	repo     *mockRepository
	wallets  *mockWalletRepo
	grants   *mockGrantRepo
	fans     *mockFanRepo
	resolver *mockResolver
	emitter  *recordingEmitter
	closeFn  func()
}

func newServiceFixture(t *testing.T) *serviceFixture {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")

	f := &serviceFixture{
		sqlMock:  sqlMock,
		repo:     new(mockRepository),
		wallets:  new(mockWalletRepo),
		grants:   new(mockGrantRepo),
		fans:     new(mockFanRepo),
		resolver: new(mockResolver),
		emitter:  &recordingEmitter{},
		closeFn:  func() { sqlxDB.Close() },
	}
	f.svc = NewService(sqlxDB, f.repo, f.wallets, f.grants, f.fans, f.resolver, f.emitter)
	return f
}

func testFan() *fan.Fan {
	return &fan.Fan{ID: 1, CreatorID: 9, Name: "Sam", Email: "sam@example.com"}
}

func monthlyResolved() *offer.Resolved {
	gt := grant.TypeMonthly
	return &offer.Resolved{
		Title:       "Monthly Pack",
		AmountCents: 2500,
		GrantType:   &gt,
		ProductType: offer.ProductPack,
	}
}

func TestPurchase_FanNotFound(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closeFn()

	f.fans.On("FindByID", mock.Anything, 1).Return(nil, fan.ErrNotFound)

	res, err := f.svc.Purchase(context.Background(), 1, PurchaseRequest{Kind: KindExtra, ClientTxnID: "txn-1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
	f.resolver.AssertNotCalled(t, "Resolve")
}

func TestPurchase_UnresolvedOffer(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closeFn()

	f.fans.On("FindByID", mock.Anything, 1).Return(testFan(), nil)
	f.resolver.On("Resolve", mock.Anything, "mystery", int64(0)).Return(nil, offer.ErrUnresolved)

	res, err := f.svc.Purchase(context.Background(), 1, PurchaseRequest{
		Kind: KindExtra, OfferID: "mystery", ClientTxnID: "txn-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
	f.repo.AssertNotCalled(t, "CreateTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestPurchase_AlreadyHasAccess(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closeFn()

	f.fans.On("FindByID", mock.Anything, 1).Return(testFan(), nil)
	f.resolver.On("Resolve", mock.Anything, "monthly", int64(0)).Return(monthlyResolved(), nil)
	f.grants.On("HasActiveGrant", mock.Anything, 1, grant.TypeMonthly, mock.Anything).Return(true, nil)
	f.wallets.On("GetOrCreateWallet", mock.Anything, 1).Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 5000}, nil)

	res, err := f.svc.Purchase(context.Background(), 1, PurchaseRequest{
		Kind: KindExtra, PackID: "monthly", ClientTxnID: "txn-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyHasAccess, res.Outcome)
	assert.True(t, res.AccessGranted)
	assert.Equal(t, int64(5000), res.Wallet.BalanceCents)

	// No new charge and no new rows.
	f.repo.AssertNotCalled(t, "FindByClientTxn", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "CreateTx", mock.Anything, mock.Anything, mock.Anything)
	require.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestPurchase_GiftSkipsActiveGrantCheck(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closeFn()

	gt := grant.TypeMonthly
	resolved := &offer.Resolved{
		Title:          "Gift: Monthly Pack",
		AmountCents:    2500,
		GrantType:      &gt,
		ProductType:    offer.ProductPack,
		ExtendIfActive: true,
	}

	f.fans.On("FindByID", mock.Anything, 1).Return(testFan(), nil)
	f.resolver.On("Resolve", mock.Anything, "gift-monthly", int64(0)).Return(resolved, nil)
	f.repo.On("FindByClientTxn", mock.Anything, 1, KindGift, "txn-g").Return(nil, nil)
	f.wallets.On("GetOrCreateWallet", mock.Anything, 1).Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 5000}, nil)

	f.sqlMock.ExpectBegin()
	f.wallets.On("DebitTx", mock.Anything, mock.Anything, 1, int64(2500), mock.Anything, wallet.KindPurchase, mock.Anything).
		Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 2500}, &wallet.Transaction{ID: 1}, nil)
	f.repo.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).Return(&Purchase{ID: 7, FanID: 1, Kind: KindGift, Title: resolved.Title}, nil)
	f.grants.On("UpsertTx", mock.Anything, mock.Anything, 1, grant.TypeMonthly, true).
		Return(&grant.AccessGrant{ID: 3, FanID: 1, Type: grant.TypeMonthly, ExpiresAt: time.Now().Add(60 * 24 * time.Hour)}, nil)
	f.sqlMock.ExpectCommit()

	f.fans.On("RecordPurchaseSignal", mock.Anything, 1, mock.Anything).Return(nil)

	res, err := f.svc.Purchase(context.Background(), 1, PurchaseRequest{
		Kind: KindGift, OfferID: "gift-monthly", ClientTxnID: "txn-g",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	f.grants.AssertNotCalled(t, "HasActiveGrant", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	require.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestPurchase_ClientRetryReturnsOriginal(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closeFn()

	original := &Purchase{ID: 7, FanID: 1, Kind: KindExtra, AmountCents: 999, ClientTxnID: "txn-1"}

	f.fans.On("FindByID", mock.Anything, 1).Return(testFan(), nil)
	f.resolver.On("Resolve", mock.Anything, "custom-photo", int64(999)).Return(&offer.Resolved{
		Title: "custom-photo", AmountCents: 999, ProductType: offer.ProductOneOff,
	}, nil)
	f.repo.On("FindByClientTxn", mock.Anything, 1, KindExtra, "txn-1").Return(original, nil)
	f.wallets.On("GetOrCreateWallet", mock.Anything, 1).Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 1}, nil)

	res, err := f.svc.Purchase(context.Background(), 1, PurchaseRequest{
		Kind: KindExtra, OfferID: "custom-photo", AmountCents: 999, ClientTxnID: "txn-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeReused, res.Outcome)
	assert.True(t, res.Reused)
	assert.Equal(t, original, res.Purchase)
	f.repo.AssertNotCalled(t, "CreateTx", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.emitter.events)
}

func TestPurchase_InsufficientBalance_LeavesStateUntouched(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closeFn()

	f.fans.On("FindByID", mock.Anything, 1).Return(testFan(), nil)
	f.resolver.On("Resolve", mock.Anything, "monthly", int64(0)).Return(monthlyResolved(), nil)
	f.grants.On("HasActiveGrant", mock.Anything, 1, grant.TypeMonthly, mock.Anything).Return(false, nil)
	f.repo.On("FindByClientTxn", mock.Anything, 1, KindExtra, "txn-1").Return(nil, nil)
	f.wallets.On("GetOrCreateWallet", mock.Anything, 1).Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 100}, nil)

	res, err := f.svc.Purchase(context.Background(), 1, PurchaseRequest{
		Kind: KindExtra, PackID: "monthly", ClientTxnID: "txn-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInsufficientBalance, res.Outcome)
	assert.Equal(t, int64(2500), res.RequiredCents)
	assert.Equal(t, int64(100), res.Wallet.BalanceCents)

	// No transaction was opened, nothing written, nothing emitted.
	f.repo.AssertNotCalled(t, "CreateTx", mock.Anything, mock.Anything, mock.Anything)
	f.grants.AssertNotCalled(t, "UpsertTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.emitter.events)
	require.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestPurchase_CreatedWithGrant(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closeFn()

	expiresAt := time.Now().Add(30 * 24 * time.Hour)

	f.fans.On("FindByID", mock.Anything, 1).Return(testFan(), nil)
	f.resolver.On("Resolve", mock.Anything, "monthly", int64(0)).Return(monthlyResolved(), nil)
	f.grants.On("HasActiveGrant", mock.Anything, 1, grant.TypeMonthly, mock.Anything).Return(false, nil)
	f.repo.On("FindByClientTxn", mock.Anything, 1, KindExtra, "txn-1").Return(nil, nil)
	f.wallets.On("GetOrCreateWallet", mock.Anything, 1).Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 5000}, nil)

	f.sqlMock.ExpectBegin()
	f.wallets.On("DebitTx", mock.Anything, mock.Anything, 1, int64(2500), mock.Anything, wallet.KindPurchase, mock.Anything).
		Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 2500}, &wallet.Transaction{ID: 1, AmountCents: -2500}, nil)
	f.repo.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(p *Purchase) bool {
		return p.FanID == 1 && p.Kind == KindExtra && p.AmountCents == 2500 && p.ClientTxnID == "txn-1"
	})).Return(&Purchase{ID: 7, FanID: 1, Kind: KindExtra, AmountCents: 2500, Title: "Monthly Pack", ClientTxnID: "txn-1"}, nil)
	f.grants.On("UpsertTx", mock.Anything, mock.Anything, 1, grant.TypeMonthly, false).
		Return(&grant.AccessGrant{ID: 3, FanID: 1, Type: grant.TypeMonthly, ExpiresAt: expiresAt}, nil)
	f.sqlMock.ExpectCommit()

	f.fans.On("RecordPurchaseSignal", mock.Anything, 1, "Bought Monthly Pack").Return(nil)

	res, err := f.svc.Purchase(context.Background(), 1, PurchaseRequest{
		Kind: KindExtra, PackID: "monthly", ClientTxnID: "txn-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.True(t, res.AccessGranted)
	assert.False(t, res.Complimentary)
	assert.Equal(t, int64(2500), res.Wallet.BalanceCents)
	require.NotNil(t, res.Grant)
	assert.Equal(t, grant.TypeMonthly, res.Grant.Type)

	assert.Equal(t, []string{events.TypePurchaseCreated, events.TypeGrantChanged}, f.emitter.types())
	require.NoError(t, f.sqlMock.ExpectationsWereMet())
	f.repo.AssertExpectations(t)
	f.grants.AssertExpectations(t)
}

func TestPurchase_ConflictResolvesToReused(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closeFn()

	winner := &Purchase{ID: 7, FanID: 1, Kind: KindExtra, ClientTxnID: "txn-1"}

	f.fans.On("FindByID", mock.Anything, 1).Return(testFan(), nil)
	f.resolver.On("Resolve", mock.Anything, "monthly", int64(0)).Return(monthlyResolved(), nil)
	f.grants.On("HasActiveGrant", mock.Anything, 1, grant.TypeMonthly, mock.Anything).Return(false, nil)
	f.repo.On("FindByClientTxn", mock.Anything, 1, KindExtra, "txn-1").Return(nil, nil).Once()
	f.wallets.On("GetOrCreateWallet", mock.Anything, 1).Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 5000}, nil)

	f.sqlMock.ExpectBegin()
	f.wallets.On("DebitTx", mock.Anything, mock.Anything, 1, int64(2500), mock.Anything, wallet.KindPurchase, mock.Anything).
		Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 2500}, &wallet.Transaction{ID: 1}, nil)
	f.repo.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).Return(nil, ErrDuplicate)
	f.sqlMock.ExpectRollback()

	// Re-fetch after the conflict finds the winner's row.
	f.repo.On("FindByClientTxn", mock.Anything, 1, KindExtra, "txn-1").Return(winner, nil).Once()

	res, err := f.svc.Purchase(context.Background(), 1, PurchaseRequest{
		Kind: KindExtra, PackID: "monthly", ClientTxnID: "txn-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeReused, res.Outcome)
	assert.True(t, res.Reused)
	assert.Equal(t, winner, res.Purchase)
	f.grants.AssertNotCalled(t, "UpsertTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	require.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestPurchase_InsufficientDetectedAtCommit(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closeFn()

	f.fans.On("FindByID", mock.Anything, 1).Return(testFan(), nil)
	f.resolver.On("Resolve", mock.Anything, "monthly", int64(0)).Return(monthlyResolved(), nil)
	f.grants.On("HasActiveGrant", mock.Anything, 1, grant.TypeMonthly, mock.Anything).Return(false, nil)
	f.repo.On("FindByClientTxn", mock.Anything, 1, KindExtra, "txn-1").Return(nil, nil)
	// Pre-check passes on a stale read; the locked re-check inside the
	// transaction catches the drained balance.
	f.wallets.On("GetOrCreateWallet", mock.Anything, 1).Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 5000}, nil)

	f.sqlMock.ExpectBegin()
	f.wallets.On("DebitTx", mock.Anything, mock.Anything, 1, int64(2500), mock.Anything, wallet.KindPurchase, mock.Anything).
		Return(nil, nil, wallet.ErrInsufficientBalance)
	f.sqlMock.ExpectRollback()

	res, err := f.svc.Purchase(context.Background(), 1, PurchaseRequest{
		Kind: KindExtra, PackID: "monthly", ClientTxnID: "txn-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInsufficientBalance, res.Outcome)
	assert.Equal(t, int64(2500), res.RequiredCents)
	f.repo.AssertNotCalled(t, "CreateTx", mock.Anything, mock.Anything, mock.Anything)
	require.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestPurchase_ComplimentaryCommitsWithoutCharge(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closeFn()

	f.fans.On("FindByID", mock.Anything, 1).Return(testFan(), nil)
	f.resolver.On("Resolve", mock.Anything, "freebie", int64(0)).Return(&offer.Resolved{
		Title: "freebie", AmountCents: 0, ProductType: offer.ProductOneOff,
	}, nil)
	f.repo.On("FindByClientTxn", mock.Anything, 1, KindExtra, "txn-1").Return(nil, nil)
	f.wallets.On("GetOrCreateWallet", mock.Anything, 1).Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 0}, nil)

	f.sqlMock.ExpectBegin()
	f.wallets.On("DebitTx", mock.Anything, mock.Anything, 1, int64(0), mock.Anything, wallet.KindPurchase, mock.Anything).
		Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 0}, nil, nil)
	f.repo.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
		Return(&Purchase{ID: 7, FanID: 1, Kind: KindExtra, AmountCents: 0, Title: "freebie"}, nil)
	f.sqlMock.ExpectCommit()

	f.fans.On("RecordPurchaseSignal", mock.Anything, 1, "Bought freebie").Return(nil)

	res, err := f.svc.Purchase(context.Background(), 1, PurchaseRequest{
		Kind: KindExtra, OfferID: "freebie", ClientTxnID: "txn-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.True(t, res.Complimentary)
	assert.False(t, res.AccessGranted)
	assert.Equal(t, []string{events.TypePurchaseComplimentary}, f.emitter.types())
	require.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestPurchase_TipRecordsTipPreview(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closeFn()

	f.fans.On("FindByID", mock.Anything, 1).Return(testFan(), nil)
	f.resolver.On("Resolve", mock.Anything, "", int64(500)).Return(&offer.Resolved{
		Title: "One-off purchase", AmountCents: 500, ProductType: offer.ProductOneOff,
	}, nil)
	f.repo.On("FindByClientTxn", mock.Anything, 1, KindTip, "txn-1").Return(nil, nil)
	f.wallets.On("GetOrCreateWallet", mock.Anything, 1).Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 1000}, nil)

	f.sqlMock.ExpectBegin()
	f.wallets.On("DebitTx", mock.Anything, mock.Anything, 1, int64(500), mock.Anything, wallet.KindPurchase, mock.Anything).
		Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 500}, &wallet.Transaction{ID: 1}, nil)
	f.repo.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
		Return(&Purchase{ID: 7, FanID: 1, Kind: KindTip, AmountCents: 500, Title: "One-off purchase"}, nil)
	f.sqlMock.ExpectCommit()

	f.fans.On("RecordPurchaseSignal", mock.Anything, 1, "Sent a tip").Return(nil)

	res, err := f.svc.Purchase(context.Background(), 1, PurchaseRequest{
		Kind: KindTip, AmountCents: 500, ClientTxnID: "txn-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	f.fans.AssertExpectations(t)
}

func TestUnlockPPV_Created(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closeFn()

	f.fans.On("FindByID", mock.Anything, 1).Return(testFan(), nil)
	f.repo.On("FindPPV", mock.Anything, 42, 1).Return(nil, nil)
	f.wallets.On("GetOrCreateWallet", mock.Anything, 1).Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 1000}, nil)

	f.sqlMock.ExpectBegin()
	f.wallets.On("DebitTx", mock.Anything, mock.Anything, 1, int64(300), mock.Anything, wallet.KindPPVUnlock, mock.Anything).
		Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 700}, &wallet.Transaction{ID: 1}, nil)
	f.repo.On("CreatePPVTx", mock.Anything, mock.Anything, mock.MatchedBy(func(p *PPVPurchase) bool {
		return p.PPVMessageID == 42 && p.FanID == 1 && p.AmountCents == 300 && p.Status == PPVStatusPaid
	})).Return(&PPVPurchase{ID: 5, PPVMessageID: 42, FanID: 1, AmountCents: 300, Status: PPVStatusPaid}, nil)
	f.sqlMock.ExpectCommit()

	f.fans.On("RecordPurchaseSignal", mock.Anything, 1, "Unlocked a PPV message").Return(nil)

	res, err := f.svc.UnlockPPV(context.Background(), 1, 42, PPVUnlockRequest{AmountCents: 300, ClientTxnID: "txn-1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	require.NotNil(t, res.PPV)
	assert.Equal(t, 42, res.PPV.PPVMessageID)
	assert.Equal(t, []string{events.TypePPVUnlocked}, f.emitter.types())
	require.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestUnlockPPV_SecondUnlockReused(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closeFn()

	existing := &PPVPurchase{ID: 5, PPVMessageID: 42, FanID: 1, AmountCents: 300, Status: PPVStatusPaid}

	f.fans.On("FindByID", mock.Anything, 1).Return(testFan(), nil)
	f.repo.On("FindPPV", mock.Anything, 42, 1).Return(existing, nil)
	f.wallets.On("GetOrCreateWallet", mock.Anything, 1).Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 700}, nil)

	// Even under a fresh client txn id the unlock must not bill twice.
	res, err := f.svc.UnlockPPV(context.Background(), 1, 42, PPVUnlockRequest{AmountCents: 300, ClientTxnID: "txn-2"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeReused, res.Outcome)
	assert.True(t, res.Reused)
	assert.Equal(t, existing, res.PPV)
	f.repo.AssertNotCalled(t, "CreatePPVTx", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.emitter.events)
}

func TestUnlockPPV_InsufficientBalance(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closeFn()

	f.fans.On("FindByID", mock.Anything, 1).Return(testFan(), nil)
	f.repo.On("FindPPV", mock.Anything, 42, 1).Return(nil, nil)
	f.wallets.On("GetOrCreateWallet", mock.Anything, 1).Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 100}, nil)

	res, err := f.svc.UnlockPPV(context.Background(), 1, 42, PPVUnlockRequest{AmountCents: 300, ClientTxnID: "txn-1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInsufficientBalance, res.Outcome)
	assert.Equal(t, int64(300), res.RequiredCents)
	f.repo.AssertNotCalled(t, "CreatePPVTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestUnlockPPV_ConflictResolvesToReused(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closeFn()

	winner := &PPVPurchase{ID: 5, PPVMessageID: 42, FanID: 1, AmountCents: 300, Status: PPVStatusPaid}

	f.fans.On("FindByID", mock.Anything, 1).Return(testFan(), nil)
	f.repo.On("FindPPV", mock.Anything, 42, 1).Return(nil, nil).Once()
	f.wallets.On("GetOrCreateWallet", mock.Anything, 1).Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 1000}, nil)

	f.sqlMock.ExpectBegin()
	f.wallets.On("DebitTx", mock.Anything, mock.Anything, 1, int64(300), mock.Anything, wallet.KindPPVUnlock, mock.Anything).
		Return(&wallet.Wallet{ID: 10, FanID: 1, BalanceCents: 700}, &wallet.Transaction{ID: 1}, nil)
	f.repo.On("CreatePPVTx", mock.Anything, mock.Anything, mock.Anything).Return(nil, ErrDuplicate)
	f.sqlMock.ExpectRollback()

	f.repo.On("FindPPV", mock.Anything, 42, 1).Return(winner, nil).Once()

	res, err := f.svc.UnlockPPV(context.Background(), 1, 42, PPVUnlockRequest{AmountCents: 300, ClientTxnID: "txn-1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeReused, res.Outcome)
	assert.Equal(t, winner, res.PPV)
	require.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestListPurchases(t *testing.T) {
	f := newServiceFixture(t)
	defer f.closeFn()

	f.repo.On("ListByFan", mock.Anything, 1, 20, 0).Return([]Purchase{{ID: 1}, {ID: 2}}, nil)

	purchases, err := f.svc.ListPurchases(context.Background(), 1, 20, 0)
	require.NoError(t, err)
	assert.Len(t, purchases, 2)
	f.repo.AssertExpectations(t)
}
