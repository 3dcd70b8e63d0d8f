package service

import (
	"context"
	"errors"
	"fmt"

	"paybridge/internal/config"
	"paybridge/internal/model"
	"paybridge/internal/repository"

	"gorm.io/gorm"
)

type AccountService struct {
	accountRepo *repository.AccountRepository
	cfg         *config.Config
}

func NewAccountService(db *gorm.DB, cfg *config.Config) *AccountService {
	return &AccountService{
		accountRepo: repository.NewAccountRepository(db),
		cfg:         cfg,
	}
}

// GetAccount 查询账户，不存在返回 ErrUnknownAccount，查询不会创建账户
func (s *AccountService) GetAccount(ctx context.Context, userID int64) (*model.Account, error) {
	account, err := s.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: userID=%d", ErrUnknownAccount, userID)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return account, nil
}

// Register 用户首次交互时由机器人调用，新用户赠送基础额度，重复调用返回已有账户
func (s *AccountService) Register(ctx context.Context, userID int64) (*model.Account, error) {
	if userID <= 0 {
		return nil, errors.New("user_id 必须大于0")
	}
	account, err := s.accountRepo.GetOrCreate(ctx, userID, s.cfg.Business.NewUserBalance)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return account, nil
}
