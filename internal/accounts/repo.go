package accounts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/staynest/staynest-backend/pkg/db/models"
	"github.com/staynest/staynest-backend/pkg/enums"
)

// Repository resolves ledger accounts for the payout engine. Accounts are
// lookup targets only; balances are derived from instructions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, account *models.LedgerAccount) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerAccount, error)
	FindDefaultForOwner(ctx context.Context, ownerType enums.AccountOwnerType, ownerID uuid.UUID) (*models.LedgerAccount, error)
	FindPlatformAccount(ctx context.Context) (*models.LedgerAccount, error)
	ListActiveForOwner(ctx context.Context, ownerType enums.AccountOwnerType, ownerID uuid.UUID) ([]models.LedgerAccount, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an accounts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, account *models.LedgerAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerAccount, error) {
	var account models.LedgerAccount
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindDefaultForOwner(ctx context.Context, ownerType enums.AccountOwnerType, ownerID uuid.UUID) (*models.LedgerAccount, error) {
	var account models.LedgerAccount
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND is_default = ? AND active = ?", ownerType, ownerID, true, true).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindPlatformAccount(ctx context.Context) (*models.LedgerAccount, error) {
	var account models.LedgerAccount
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND active = ?", enums.AccountOwnerPlatform, true).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) ListActiveForOwner(ctx context.Context, ownerType enums.AccountOwnerType, ownerID uuid.UUID) ([]models.LedgerAccount, error) {
	var accounts []models.LedgerAccount
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND active = ?", ownerType, ownerID, true).
		Order("created_at ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}
