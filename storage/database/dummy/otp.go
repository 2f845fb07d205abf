package dummydb

import (
	"context"
	"time"

	"github.com/trezcool/alama/core/otp"
)

type otpRepository struct {
	db *otpTable
}

var _ otp.Repository = (*otpRepository)(nil) // interface compliance check

func NewOTPRepository(db *DB) otp.Repository {
	return &otpRepository{db: db.otp}
}

func (repo *otpRepository) Replace(_ context.Context, code otp.Code) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[code.Email] = []otp.Code{code}
	return nil
}

func (repo *otpRepository) Find(_ context.Context, email, code string) (otp.Code, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	codes := repo.db.table[email]
	for i := len(codes) - 1; i >= 0; i-- {
		if codes[i].Code == code {
			return codes[i], nil
		}
	}
	return otp.Code{}, otp.ErrNotFound
}

func (repo *otpRepository) MarkVerified(_ context.Context, code otp.Code) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	codes := repo.db.table[code.Email]
	for i := range codes {
		if codes[i].ID == code.ID {
			codes[i].Verified = true
			return nil
		}
	}
	return otp.ErrNotFound
}

func (repo *otpRepository) Claim(_ context.Context, code otp.Code, now time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, c := range repo.db.table[code.Email] {
		if c.ID == code.ID && c.Verified && !c.Expired(now) {
			delete(repo.db.table, code.Email)
			return nil
		}
	}
	return otp.ErrNotFound
}
