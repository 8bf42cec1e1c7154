package models

import "time"

// MintStatus is the mint job state machine:
// queued -> minting -> minted | pending_offchain | skipped
type MintStatus string

const (
	MintStatusQueued          MintStatus = "queued"
	MintStatusMinting         MintStatus = "minting"
	MintStatusMinted          MintStatus = "minted"
	MintStatusPendingOffchain MintStatus = "pending_offchain"
	MintStatusSkipped         MintStatus = "skipped"
)

// MintRecord is the persisted intent for a level-up NFT mint. At most one
// record exists per (user, level). Once TxHash is set the record is terminal
// and must never be processed again.
type MintRecord struct {
	ID     string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID string `gorm:"not null;uniqueIndex:idx_mint_user_level" json:"user_id"`
	Level  int    `gorm:"not null;uniqueIndex:idx_mint_user_level" json:"level"`

	JobID       string     `gorm:"index;not null" json:"job_id"`
	Status      MintStatus `gorm:"type:varchar(24);not null;default:'queued';index" json:"status"`
	TxHash      *string    `json:"tx_hash,omitempty"`
	TokenID     *string    `json:"token_id,omitempty"`
	MetadataURI *string    `gorm:"type:text" json:"metadata_uri,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// MintJob is the in-process queue payload handed to the mint worker.
// The persisted MintRecord is created before the job is enqueued so a crash
// mid-flight is recoverable from stored intent.
type MintJob struct {
	JobID     string `json:"job_id"`
	UserID    string `json:"user_id"`
	Level     int    `json:"level"`
	Recipient string `json:"recipient"`
}
