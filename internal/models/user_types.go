package models

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is the model for the 'users' table.
// The affiliate fields are embedded here rather than split into their
// own table: a user has at most one affiliate code, and the ledger of
// referred orders lives in 'affiliate_referrals'.
type User struct {
	ID           int64  `json:"id" db:"id"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	FullName     string `json:"fullName" db:"full_name"`
	IsAdmin      bool   `json:"isAdmin" db:"is_admin"`

	// --- Affiliate Fields (Pointers = Clean JSON for non-affiliates) ---
	AffiliateCode   *string `json:"affiliateCode,omitempty" db:"affiliate_code"`
	AffiliateActive bool    `json:"affiliateActive" db:"affiliate_active"`
	CommissionRate  float64 `json:"commissionRate" db:"commission_rate"`
	TotalEarnings   float64 `json:"totalEarnings" db:"total_earnings"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// DefaultCommissionRate is applied when a user first registers as an
// affiliate: 5% of each referred order total.
const DefaultCommissionRate = 0.05

// Password Helper (Standard)
type Password struct {
	Plaintext *string
	Hash      string
}

func (p *Password) Set(plaintextPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintextPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.Hash = string(hash)
	p.Plaintext = &plaintextPassword
	return nil
}

func (p *Password) Matches(plaintextPassword string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(p.Hash), []byte(plaintextPassword))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
