package credential

import (
	"errors"
	"time"

	"github.com/streamlens/streamlens/internal/domain/job"
)

// Credential is the stored form: an opaque encrypted blob keyed by
// (user, platform, profile). Plaintext never appears here.
type Credential struct {
	ID        int64        `json:"id"`
	UserID    int64        `json:"user_id"`
	Platform  job.Platform `json:"platform"`
	Profile   string       `json:"profile"`
	Blob      []byte       `json:"-"`
	Active    bool         `json:"active"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrDecryption         = errors.New("credential decryption failed")
	ErrMissingField       = errors.New("credential payload missing required field")
)
