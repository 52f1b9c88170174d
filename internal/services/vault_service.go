// internal/services/vault_service.go
package services

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
	"gorm.io/gorm"

	"github.com/javajoker/couponx-backend/internal/models"
	"github.com/javajoker/couponx-backend/internal/utils"
)

const secretDelimiter = ":"

// VaultService keeps listing codes encrypted at rest with
// XChaCha20-Poly1305. The listing ID is bound as associated data, so a
// ciphertext copied onto another listing fails to open.
type VaultService struct {
	db   *gorm.DB
	aead cipher.AEAD
}

func NewVaultService(db *gorm.DB, key []byte) (*VaultService, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vault cipher: %w", err)
	}
	return &VaultService{db: db, aead: aead}, nil
}

// Seal encrypts secret and encodes it as "<ciphertext>:<nonce>".
func (v *VaultService) Seal(listingID uuid.UUID, secret string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := v.aead.Seal(nil, nonce, []byte(secret), listingID[:])
	return base64.StdEncoding.EncodeToString(ciphertext) + secretDelimiter +
		base64.StdEncoding.EncodeToString(nonce), nil
}

// Open reverses Seal. Any malformed or tampered value is an Internal error.
func (v *VaultService) Open(listingID uuid.UUID, stored string) (string, error) {
	parts := strings.Split(stored, secretDelimiter)
	if len(parts) != 2 {
		return "", utils.NewInternal("stored secret is malformed", errors.New("missing delimiter"))
	}

	ciphertext, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", utils.NewInternal("stored secret is malformed", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", utils.NewInternal("stored secret is malformed", err)
	}
	if len(nonce) != v.aead.NonceSize() {
		return "", utils.NewInternal("stored secret is malformed", fmt.Errorf("nonce length %d", len(nonce)))
	}

	plaintext, err := v.aead.Open(nil, nonce, ciphertext, listingID[:])
	if err != nil {
		return "", utils.NewInternal("failed to decrypt secret", err)
	}
	return string(plaintext), nil
}

// Store encrypts and persists a listing's secret using tx, so it commits
// together with the listing row.
func (v *VaultService) Store(tx *gorm.DB, listingID uuid.UUID, secret string) error {
	sealed, err := v.Seal(listingID, secret)
	if err != nil {
		return utils.NewInternal("failed to encrypt secret", err)
	}
	if err := tx.Create(&models.ListingSecret{ListingID: listingID, EncryptedCode: sealed}).Error; err != nil {
		return utils.NewInternal("failed to store secret", err)
	}
	return nil
}

// Reveal returns the plaintext secret when requester is the seller or holds
// an access grant. ok is false when the listing does not exist, when the
// requester is not authorized and when the listing carries no secret.
func (v *VaultService) Reveal(ctx context.Context, listingID, requester uuid.UUID) (secret string, ok bool, err error) {
	db := v.db.WithContext(ctx)

	var listing models.Listing
	if err := db.Unscoped().Select("id", "seller_id").First(&listing, "id = ?", listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, utils.NewInternal("failed to load listing", err)
	}

	authorized, err := v.HasAccess(ctx, &listing, requester)
	if err != nil || !authorized {
		return "", false, err
	}

	var stored models.ListingSecret
	if err := db.First(&stored, "listing_id = ?", listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, utils.NewInternal("failed to load secret", err)
	}

	plaintext, err := v.Open(listingID, stored.EncryptedCode)
	if err != nil {
		return "", false, err
	}
	return plaintext, true, nil
}

func (v *VaultService) HasAccess(ctx context.Context, listing *models.Listing, requester uuid.UUID) (bool, error) {
	if listing.SellerID == requester {
		return true, nil
	}

	var grants int64
	err := v.db.WithContext(ctx).
		Model(&models.CouponAccessGrant{}).
		Where("listing_id = ? AND user_id = ?", listing.ID, requester).
		Count(&grants).Error
	if err != nil {
		return false, utils.NewInternal("failed to check access grant", err)
	}
	return grants > 0, nil
}
