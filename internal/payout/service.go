package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/staynest/staynest-backend/internal/accounts"
	"github.com/staynest/staynest-backend/pkg/db/models"
	"github.com/staynest/staynest-backend/pkg/enums"
	pkgerrors "github.com/staynest/staynest-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Refund tiers by hours between cancellation and check-in. Inside a tier the
// host and platform legs mirror the original split proportions.
const (
	fullRefundHours = 48
	halfRefundHours = 24
)

const basisPointsDenominator = 10000

// Service is the payout ledger engine. GenerateSplit and RefundOnCancellation
// run inside their caller's transaction; the rest open their own.
type Service interface {
	GenerateSplit(ctx context.Context, tx *gorm.DB, payment *models.Payment) ([]models.TransactionInstruction, error)
	RefundOnCancellation(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) ([]models.TransactionInstruction, error)
	Balance(ctx context.Context, ownerType enums.AccountOwnerType, ownerID uuid.UUID) (*Balance, error)
	MarkInstructionExecuted(ctx context.Context, id uuid.UUID) (*models.TransactionInstruction, error)
	ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.TransactionInstruction, error)
}

type service struct {
	repo        Repository
	accounts    accounts.Repository
	tx          txRunner
	hostShareBP int64
	now         func() time.Time
}

// NewService builds the payout engine. hostShareBP is the host's share of a
// payment in basis points; the platform keeps the remainder as commission.
func NewService(repo Repository, accountsRepo accounts.Repository, tx txRunner, hostShareBP int64) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	if accountsRepo == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if hostShareBP <= 0 || hostShareBP >= basisPointsDenominator {
		return nil, fmt.Errorf("host share must be between 1 and %d basis points", basisPointsDenominator-1)
	}
	return &service{
		repo:        repo,
		accounts:    accountsRepo,
		tx:          tx,
		hostShareBP: hostShareBP,
		now:         time.Now,
	}, nil
}

func (s *service) GenerateSplit(ctx context.Context, tx *gorm.DB, payment *models.Payment) ([]models.TransactionInstruction, error) {
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment required")
	}
	repo := s.repo.WithTx(tx)
	accountsRepo := s.accounts.WithTx(tx)

	exists, err := repo.ExistsSplitForPayment(ctx, payment.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing split")
	}
	if exists {
		return nil, nil
	}

	reservation, err := repo.FindReservation(ctx, payment.ReservationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	listing, err := repo.FindListing(ctx, reservation.ListingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}

	hostAccount, err := s.defaultAccount(ctx, accountsRepo, enums.AccountOwnerHost, listing.HostID)
	if err != nil {
		return nil, err
	}
	travelerAccount, err := s.defaultAccount(ctx, accountsRepo, enums.AccountOwnerTraveler, reservation.TravelerID)
	if err != nil {
		return nil, err
	}
	platformAccount, err := s.platformAccount(ctx, accountsRepo)
	if err != nil {
		return nil, err
	}

	hostAmount, commission := s.split(payment.Amount)
	reservationID := reservation.ID
	paymentID := payment.ID

	instructions := []*models.TransactionInstruction{
		{
			ReservationID:        &reservationID,
			PaymentID:            &paymentID,
			Type:                 enums.InstructionTypePayin,
			Status:               enums.InstructionStatusPending,
			SourceAccountID:      travelerAccount.ID,
			DestinationAccountID: platformAccount.ID,
			Amount:               payment.Amount,
			Reference:            fmt.Sprintf("payin for payment %s", payment.ID),
		},
		{
			ReservationID:        &reservationID,
			PaymentID:            &paymentID,
			Type:                 enums.InstructionTypeHostPayout,
			Status:               enums.InstructionStatusPending,
			SourceAccountID:      platformAccount.ID,
			DestinationAccountID: hostAccount.ID,
			Amount:               hostAmount,
			Reference:            fmt.Sprintf("host payout for payment %s", payment.ID),
		},
		{
			ReservationID:        &reservationID,
			PaymentID:            &paymentID,
			Type:                 enums.InstructionTypePlatformCommission,
			Status:               enums.InstructionStatusPending,
			SourceAccountID:      platformAccount.ID,
			DestinationAccountID: platformAccount.ID,
			Amount:               commission,
			Reference:            fmt.Sprintf("commission for payment %s", payment.ID),
		},
	}

	if err := repo.CreateInstructions(ctx, instructions); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create split instructions")
	}
	return deref(instructions), nil
}

func (s *service) RefundOnCancellation(ctx context.Context, tx *gorm.DB, reservation *models.Reservation) ([]models.TransactionInstruction, error) {
	if reservation == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation required")
	}
	repo := s.repo.WithTx(tx)
	accountsRepo := s.accounts.WithTx(tx)

	paid, err := repo.FindPaidPayments(ctx, reservation.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load paid payments")
	}
	if len(paid) == 0 {
		return nil, nil
	}

	exists, err := repo.ExistsRefundForReservation(ctx, reservation.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing refund")
	}
	if exists {
		return nil, nil
	}

	now := s.now().UTC()
	fraction := refundFraction(reservation.ArrivalDate.Sub(now).Hours())
	if fraction.IsZero() {
		// Inside the no-refund window the money stays where it is.
		return nil, nil
	}

	total := decimal.Zero
	for _, payment := range paid {
		total = total.Add(payment.Amount)
	}

	refundTotal := total.Mul(fraction).Round(2)
	fromHost := total.Mul(fraction).Mul(s.hostShare()).Round(2)
	fromPlatform := refundTotal.Sub(fromHost)

	listing, err := repo.FindListing(ctx, reservation.ListingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	hostAccount, err := s.defaultAccount(ctx, accountsRepo, enums.AccountOwnerHost, listing.HostID)
	if err != nil {
		return nil, err
	}
	travelerAccount, err := s.defaultAccount(ctx, accountsRepo, enums.AccountOwnerTraveler, reservation.TravelerID)
	if err != nil {
		return nil, err
	}
	platformAccount, err := s.platformAccount(ctx, accountsRepo)
	if err != nil {
		return nil, err
	}

	reservationID := reservation.ID
	instructions := []*models.TransactionInstruction{
		{
			ReservationID:        &reservationID,
			Type:                 enums.InstructionTypeRefundFromHost,
			Status:               enums.InstructionStatusPending,
			SourceAccountID:      hostAccount.ID,
			DestinationAccountID: travelerAccount.ID,
			Amount:               fromHost,
			Reference:            fmt.Sprintf("cancellation refund for reservation %s", reservation.ID),
		},
		{
			ReservationID:        &reservationID,
			Type:                 enums.InstructionTypeRefundFromPlatform,
			Status:               enums.InstructionStatusPending,
			SourceAccountID:      platformAccount.ID,
			DestinationAccountID: travelerAccount.ID,
			Amount:               fromPlatform,
			Reference:            fmt.Sprintf("cancellation refund for reservation %s", reservation.ID),
		},
	}
	if err := repo.CreateInstructions(ctx, instructions); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund instructions")
	}

	reason := "reservation cancelled"
	for i := range paid {
		payment := paid[i]
		payment.Status = enums.PaymentStatusRefunded
		payment.RefundedAt = &now
		payment.RefundReason = &reason
		payment.UpdatedAt = now
		if err := repo.SavePayment(ctx, &payment); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment refunded")
		}
	}

	return deref(instructions), nil
}

// Balance is a derived account position: sums of executed instructions over
// the owner's active accounts.
type Balance struct {
	OwnerType enums.AccountOwnerType `json:"ownerType"`
	Incoming  decimal.Decimal        `json:"incoming"`
	Outgoing  decimal.Decimal        `json:"outgoing"`
	Net       decimal.Decimal        `json:"net"`
	Accounts  int                    `json:"accounts"`
}

func (s *service) Balance(ctx context.Context, ownerType enums.AccountOwnerType, ownerID uuid.UUID) (*Balance, error) {
	if !ownerType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid account owner type")
	}

	var accountIDs []uuid.UUID
	if ownerType == enums.AccountOwnerPlatform {
		account, err := s.platformAccount(ctx, s.accounts)
		if err != nil {
			return nil, err
		}
		accountIDs = []uuid.UUID{account.ID}
	} else {
		if ownerID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
		}
		list, err := s.accounts.ListActiveForOwner(ctx, ownerType, ownerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list accounts")
		}
		for _, account := range list {
			accountIDs = append(accountIDs, account.ID)
		}
	}

	incoming, outgoing, err := s.repo.ExecutedTotals(ctx, accountIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "derive balance")
	}
	return &Balance{
		OwnerType: ownerType,
		Incoming:  incoming,
		Outgoing:  outgoing,
		Net:       incoming.Sub(outgoing),
		Accounts:  len(accountIDs),
	}, nil
}

func (s *service) MarkInstructionExecuted(ctx context.Context, id uuid.UUID) (*models.TransactionInstruction, error) {
	var result *models.TransactionInstruction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		instruction, err := repo.FindInstruction(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "instruction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load instruction")
		}
		if instruction.Status != enums.InstructionStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending instructions can be executed").
				WithDetails(map[string]any{"status": instruction.Status})
		}
		now := s.now().UTC()
		instruction.Status = enums.InstructionStatusExecuted
		instruction.ExecutedAt = &now
		if err := repo.SaveInstruction(ctx, instruction); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save instruction")
		}
		result = instruction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.TransactionInstruction, error) {
	if reservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	instructions, err := s.repo.ListByReservation(ctx, reservationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list instructions")
	}
	return instructions, nil
}

// split divides an amount into the host leg and the commission remainder.
// Only the first leg is rounded so both always sum exactly to the input.
func (s *service) split(amount decimal.Decimal) (host, commission decimal.Decimal) {
	host = amount.Mul(s.hostShare()).Round(2)
	commission = amount.Sub(host)
	return host, commission
}

func (s *service) hostShare() decimal.Decimal {
	return decimal.NewFromInt(s.hostShareBP).Div(decimal.NewFromInt(basisPointsDenominator))
}

// refundFraction maps hours before check-in to the refunded share of the
// payment total. Exact boundary hits fall into the more generous tier.
func refundFraction(hoursBeforeCheckIn float64) decimal.Decimal {
	switch {
	case hoursBeforeCheckIn >= fullRefundHours:
		return decimal.NewFromInt(1)
	case hoursBeforeCheckIn >= halfRefundHours:
		return decimal.RequireFromString("0.5")
	default:
		return decimal.Zero
	}
}

func (s *service) defaultAccount(ctx context.Context, repo accounts.Repository, ownerType enums.AccountOwnerType, ownerID uuid.UUID) (*models.LedgerAccount, error) {
	account, err := repo.FindDefaultForOwner(ctx, ownerType, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeLedgerConfig, fmt.Sprintf("%s has no default ledger account", ownerType)).
				WithDetails(map[string]any{"owner_id": ownerID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load default account")
	}
	return account, nil
}

func (s *service) platformAccount(ctx context.Context, repo accounts.Repository) (*models.LedgerAccount, error) {
	account, err := repo.FindPlatformAccount(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeLedgerConfig, "platform ledger account is missing")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load platform account")
	}
	return account, nil
}

func deref(instructions []*models.TransactionInstruction) []models.TransactionInstruction {
	out := make([]models.TransactionInstruction, 0, len(instructions))
	for _, instruction := range instructions {
		out = append(out, *instruction)
	}
	return out
}
