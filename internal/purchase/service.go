package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"fanledger/internal/events"
	"fanledger/internal/fan"
	"fanledger/internal/grant"
	"fanledger/internal/logger"
	"fanledger/internal/metrics"
	"fanledger/internal/offer"
	"fanledger/internal/wallet"
)

// Service is the purchase orchestrator: one attempt walks resolve, active
// grant check, idempotency dedupe, balance check, a single commit
// transaction, then post-commit side effects.
type Service interface {
	Purchase(ctx context.Context, fanID int, req PurchaseRequest) (*Result, error)
	UnlockPPV(ctx context.Context, fanID, ppvMessageID int, req PPVUnlockRequest) (*Result, error)
	ListPurchases(ctx context.Context, fanID, limit, offset int) ([]Purchase, error)
}

// TxBeginner is satisfied by *sqlx.DB.
type TxBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// OfferResolver is satisfied by *offer.Resolver.
type OfferResolver interface {
	Resolve(ctx context.Context, identifier string, amountCents int64) (*offer.Resolved, error)
}

type service struct {
	db         TxBeginner
	repo       Repository
	walletRepo wallet.Repository
	grantRepo  grant.Repository
	fanRepo    fan.Repository
	resolver   OfferResolver
	emitter    events.Emitter
}

func NewService(
	db TxBeginner,
	repo Repository,
	walletRepo wallet.Repository,
	grantRepo grant.Repository,
	fanRepo fan.Repository,
	resolver OfferResolver,
	emitter events.Emitter,
) Service {
	return &service{
		db:         db,
		repo:       repo,
		walletRepo: walletRepo,
		grantRepo:  grantRepo,
		fanRepo:    fanRepo,
		resolver:   resolver,
		emitter:    emitter,
	}
}

// commitOutcome is the explicit result variant of the commit step. A
// uniqueness conflict on the purchase key is data, not an exception; the
// caller resolves it into a reused response.
type commitOutcome struct {
	conflict     bool
	insufficient bool

	purchase *Purchase
	ppv      *PPVPurchase
	wallet   *wallet.Wallet
	grant    *grant.AccessGrant
}

func (s *service) Purchase(ctx context.Context, fanID int, req PurchaseRequest) (*Result, error) {
	f, err := s.fanRepo.FindByID(ctx, fanID)
	if errors.Is(err, fan.ErrNotFound) {
		return &Result{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return nil, err
	}

	identifier := req.OfferID
	if identifier == "" {
		identifier = req.PackID
	}

	resolved, err := s.resolver.Resolve(ctx, identifier, req.AmountCents)
	if errors.Is(err, offer.ErrUnresolved) {
		return &Result{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return nil, err
	}

	// CHECK_ACTIVE_GRANT: never re-bill an entitlement the fan already
	// holds. Extending purchases (gifts) skip this and stack instead.
	if resolved.GrantType != nil && !resolved.ExtendIfActive {
		has, err := s.grantRepo.HasActiveGrant(ctx, fanID, *resolved.GrantType, time.Now())
		if err != nil {
			return nil, err
		}
		if has {
			w, err := s.walletRepo.GetOrCreateWallet(ctx, fanID)
			if err != nil {
				return nil, err
			}
			metrics.RecordPurchase(req.Kind, string(OutcomeAlreadyHasAccess))
			return &Result{Outcome: OutcomeAlreadyHasAccess, Wallet: w, AccessGranted: true}, nil
		}
	}

	// CHECK_IDEMPOTENT_DUPLICATE: a client retry must come back as the
	// original purchase, never a second charge.
	existing, err := s.repo.FindByClientTxn(ctx, fanID, req.Kind, req.ClientTxnID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.reusedResult(ctx, fanID, req.Kind, existing)
	}

	// CHECK_BALANCE: a pre-check for a clean error before opening the
	// transaction. The commit re-checks against a locked read.
	w, err := s.walletRepo.GetOrCreateWallet(ctx, fanID)
	if err != nil {
		return nil, err
	}
	if resolved.AmountCents > 0 && w.BalanceCents < resolved.AmountCents {
		metrics.RecordPurchase(req.Kind, string(OutcomeInsufficientBalance))
		return &Result{
			Outcome:       OutcomeInsufficientBalance,
			Wallet:        w,
			RequiredCents: resolved.AmountCents,
		}, nil
	}

	out, err := s.commitPurchase(ctx, fanID, resolved, req)
	if err != nil {
		return nil, err
	}

	switch {
	case out.insufficient:
		metrics.RecordPurchase(req.Kind, string(OutcomeInsufficientBalance))
		return &Result{
			Outcome:       OutcomeInsufficientBalance,
			Wallet:        w,
			RequiredCents: resolved.AmountCents,
		}, nil
	case out.conflict:
		// A concurrent duplicate won the insert; hand back its row.
		raced, err := s.repo.FindByClientTxn(ctx, fanID, req.Kind, req.ClientTxnID)
		if err != nil {
			return nil, err
		}
		if raced == nil {
			return nil, fmt.Errorf("purchase conflict for fan %d but no row for client txn %q", fanID, req.ClientTxnID)
		}
		return s.reusedResult(ctx, fanID, req.Kind, raced)
	}

	result := &Result{
		Outcome:       OutcomeCreated,
		Purchase:      out.purchase,
		Wallet:        out.wallet,
		Grant:         out.grant,
		AccessGranted: out.grant != nil,
		Complimentary: resolved.Free(),
	}

	s.purchaseSideEffects(ctx, f, resolved, result)
	metrics.RecordPurchase(req.Kind, string(OutcomeCreated))

	return result, nil
}

// commitPurchase is the single transaction: locked balance re-check, debit,
// purchase row, grant. All of it commits or none of it does.
func (s *service) commitPurchase(ctx context.Context, fanID int, resolved *offer.Resolved, req PurchaseRequest) (*commitOutcome, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := &commitOutcome{}

	idemKey := fmt.Sprintf("purchase:%d:%s:%s", fanID, req.Kind, req.ClientTxnID)
	meta := map[string]interface{}{
		"kind":        req.Kind,
		"clientTxnId": req.ClientTxnID,
		"title":       resolved.Title,
	}

	w, _, err := s.walletRepo.DebitTx(ctx, tx, fanID, resolved.AmountCents, &idemKey, wallet.KindPurchase, meta)
	if errors.Is(err, wallet.ErrInsufficientBalance) {
		out.insufficient = true
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	var productID *string
	if req.OfferID != "" {
		productID = &req.OfferID
	} else if req.PackID != "" {
		productID = &req.PackID
	}
	var sessionTag *string
	if req.SessionTag != "" {
		sessionTag = &req.SessionTag
	}

	created, err := s.repo.CreateTx(ctx, tx, &Purchase{
		FanID:         fanID,
		ContentItemID: req.ContentItemID,
		Kind:          req.Kind,
		AmountCents:   resolved.AmountCents,
		ProductID:     productID,
		ProductType:   resolved.ProductType,
		Title:         resolved.Title,
		ClientTxnID:   req.ClientTxnID,
		SessionTag:    sessionTag,
	})
	if errors.Is(err, ErrDuplicate) {
		out.conflict = true
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	out.purchase = created

	if resolved.GrantType != nil {
		g, err := s.grantRepo.UpsertTx(ctx, tx, fanID, *resolved.GrantType, resolved.ExtendIfActive)
		if err != nil {
			return nil, err
		}
		out.grant = g
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if resolved.AmountCents > 0 {
		metrics.RecordWalletDebit()
	}
	if out.grant != nil {
		mode := "replace"
		if resolved.ExtendIfActive {
			mode = "extend"
		}
		metrics.RecordGrant(string(*resolved.GrantType), mode)
	}

	out.wallet = w
	return out, nil
}

func (s *service) UnlockPPV(ctx context.Context, fanID, ppvMessageID int, req PPVUnlockRequest) (*Result, error) {
	f, err := s.fanRepo.FindByID(ctx, fanID)
	if errors.Is(err, fan.ErrNotFound) {
		return &Result{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindPPV(ctx, ppvMessageID, fanID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.reusedPPVResult(ctx, fanID, existing)
	}

	w, err := s.walletRepo.GetOrCreateWallet(ctx, fanID)
	if err != nil {
		return nil, err
	}
	if req.AmountCents > 0 && w.BalanceCents < req.AmountCents {
		metrics.RecordPurchase("PPV", string(OutcomeInsufficientBalance))
		return &Result{
			Outcome:       OutcomeInsufficientBalance,
			Wallet:        w,
			RequiredCents: req.AmountCents,
		}, nil
	}

	out, err := s.commitPPV(ctx, fanID, ppvMessageID, req.AmountCents)
	if err != nil {
		return nil, err
	}

	switch {
	case out.insufficient:
		metrics.RecordPurchase("PPV", string(OutcomeInsufficientBalance))
		return &Result{
			Outcome:       OutcomeInsufficientBalance,
			Wallet:        w,
			RequiredCents: req.AmountCents,
		}, nil
	case out.conflict:
		raced, err := s.repo.FindPPV(ctx, ppvMessageID, fanID)
		if err != nil {
			return nil, err
		}
		if raced == nil {
			return nil, fmt.Errorf("ppv conflict for fan %d message %d but no row", fanID, ppvMessageID)
		}
		return s.reusedPPVResult(ctx, fanID, raced)
	}

	result := &Result{
		Outcome: OutcomeCreated,
		PPV:     out.ppv,
		Wallet:  out.wallet,
	}

	if err := s.fanRepo.RecordPurchaseSignal(ctx, fanID, "Unlocked a PPV message"); err != nil {
		logger.Errorf("Failed to record engagement for fan %d: %v", fanID, err)
	}
	s.emitter.Emit(events.Event{
		Type:      events.TypePPVUnlocked,
		CreatorID: f.CreatorID,
		FanID:     fanID,
		Payload: map[string]interface{}{
			"ppvMessageId": ppvMessageID,
			"amountCents":  req.AmountCents,
		},
	})
	metrics.RecordPurchase("PPV", string(OutcomeCreated))

	return result, nil
}

func (s *service) commitPPV(ctx context.Context, fanID, ppvMessageID int, amountCents int64) (*commitOutcome, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := &commitOutcome{}

	// Keyed on (message, fan) rather than the client txn id: a retry of the
	// same unlock must not debit twice even under a fresh client txn id.
	idemKey := fmt.Sprintf("ppv:%d:%d", ppvMessageID, fanID)
	meta := map[string]interface{}{"ppvMessageId": ppvMessageID}

	w, _, err := s.walletRepo.DebitTx(ctx, tx, fanID, amountCents, &idemKey, wallet.KindPPVUnlock, meta)
	if errors.Is(err, wallet.ErrInsufficientBalance) {
		out.insufficient = true
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	created, err := s.repo.CreatePPVTx(ctx, tx, &PPVPurchase{
		PPVMessageID: ppvMessageID,
		FanID:        fanID,
		AmountCents:  amountCents,
		Status:       PPVStatusPaid,
	})
	if errors.Is(err, ErrDuplicate) {
		out.conflict = true
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	out.ppv = created

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if amountCents > 0 {
		metrics.RecordWalletDebit()
	}

	out.wallet = w
	return out, nil
}

func (s *service) ListPurchases(ctx context.Context, fanID, limit, offset int) ([]Purchase, error) {
	return s.repo.ListByFan(ctx, fanID, limit, offset)
}

func (s *service) reusedResult(ctx context.Context, fanID int, kind string, p *Purchase) (*Result, error) {
	w, err := s.walletRepo.GetOrCreateWallet(ctx, fanID)
	if err != nil {
		return nil, err
	}
	metrics.RecordPurchase(kind, string(OutcomeReused))
	return &Result{
		Outcome:  OutcomeReused,
		Purchase: p,
		Wallet:   w,
		Reused:   true,
	}, nil
}

func (s *service) reusedPPVResult(ctx context.Context, fanID int, p *PPVPurchase) (*Result, error) {
	w, err := s.walletRepo.GetOrCreateWallet(ctx, fanID)
	if err != nil {
		return nil, err
	}
	metrics.RecordPurchase("PPV", string(OutcomeReused))
	return &Result{
		Outcome: OutcomeReused,
		PPV:     p,
		Wallet:  w,
		Reused:  true,
	}, nil
}

// purchaseSideEffects runs strictly after commit and never fails the
// purchase: engagement signals and the purchase event are best-effort.
func (s *service) purchaseSideEffects(ctx context.Context, f *fan.Fan, resolved *offer.Resolved, result *Result) {
	preview := fmt.Sprintf("Bought %s", resolved.Title)
	if result.Purchase != nil && result.Purchase.Kind == KindTip {
		preview = "Sent a tip"
	}
	if err := s.fanRepo.RecordPurchaseSignal(ctx, f.ID, preview); err != nil {
		logger.Errorf("Failed to record engagement for fan %d: %v", f.ID, err)
	}

	eventType := events.TypePurchaseCreated
	if resolved.Free() {
		eventType = events.TypePurchaseComplimentary
	}

	payload := map[string]interface{}{
		"title":       resolved.Title,
		"amountCents": resolved.AmountCents,
		"productType": resolved.ProductType,
	}
	if result.Purchase != nil {
		payload["purchaseId"] = result.Purchase.ID
		payload["kind"] = result.Purchase.Kind
	}
	s.emitter.Emit(events.Event{
		Type:      eventType,
		CreatorID: f.CreatorID,
		FanID:     f.ID,
		Payload:   payload,
	})

	if result.Grant != nil {
		s.emitter.Emit(events.Event{
			Type:      events.TypeGrantChanged,
			CreatorID: f.CreatorID,
			FanID:     f.ID,
			Payload: map[string]interface{}{
				"grantType": result.Grant.Type,
				"expiresAt": result.Grant.ExpiresAt,
			},
		})
	}
}
