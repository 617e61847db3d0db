package embedsync

import (
	"crypto/sha256"
	"encoding/hex"

	"codeatlas/pkg/types"
)

// Fingerprint computes a deterministic hex SHA-256 over an entity's
// type, name, summary, and content. Each field is NUL-terminated so
// shifting bytes between fields cannot collide.
func Fingerprint(entity *types.Entity) string {
	h := sha256.New()
	for _, field := range []string{
		string(entity.Type), entity.Name, entity.Summary, entity.Content,
	} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
