package repository

import (
	"context"
	"errors"

	"paybridge/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound = errors.New("账户不存在")
	ErrBalanceNegative = errors.New("余额不能为负数")
)

// AccountMutator 在行锁内修改账户，返回错误则整个事务回滚
type AccountMutator func(account *model.Account) error

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByUserID(ctx context.Context, userID int64) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) GetByUserIDForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*model.Account, error) {
	var account model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Update 对应 update_account(user_id, mutator)
// 必须在调用方的事务内执行：加行锁读取 -> mutator 修改 -> 校验非负 -> 写回
func (r *AccountRepository) Update(ctx context.Context, tx *gorm.DB, userID int64, mutate AccountMutator) (*model.Account, error) {
	if tx == nil {
		tx = r.db
	}

	account, err := r.GetByUserIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	version := account.Version
	if err := mutate(account); err != nil {
		return nil, err
	}
	if !account.Valid() {
		return nil, ErrBalanceNegative
	}

	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("user_id = ? AND version = ?", userID, version).
		Updates(map[string]interface{}{
			"balance":         account.Balance,
			"premium_balance": account.PremiumBalance,
			"image_balance":   account.ImageBalance,
			"version":         gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrAccountNotFound
	}

	account.Version = version + 1
	return account, nil
}

// GetOrCreate 用户首次交互时创建账户，initialBalance 为新用户赠送的基础额度
func (r *AccountRepository) GetOrCreate(ctx context.Context, userID int64, initialBalance int64) (*model.Account, error) {
	account, err := r.GetByUserID(ctx, userID)
	if err == nil {
		return account, nil
	}

	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	newAccount := &model.Account{
		UserID:  userID,
		Balance: initialBalance,
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(newAccount).Error

	if err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, userID)
}
