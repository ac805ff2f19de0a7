package remote

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

// assetDomainKey separates asset keys from any other BLAKE3 use of the same bytes.
var assetDomainKey = [32]byte{
	's', 'h', 'o', 't', 's', 'y', 'n', 'c', '.', 'a', 's', 's', 'e', 't',
}

// AssetKey derives a content-addressed key for an uploaded asset. Re-uploading
// the same bytes for the same shot yields the same key, so a retried transfer
// overwrites its earlier partial attempt instead of leaking a second object.
func AssetKey(shotID string, data []byte) string {
	hasher, err := blake3.NewKeyed(assetDomainKey[:])
	if err != nil {
		panic("remote: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write(data)
	digest := hex.EncodeToString(hasher.Sum(nil))[:32]
	prefix := sanitizeKeyPart(shotID)
	if prefix == "" {
		return digest
	}
	return prefix + "-" + digest
}

func sanitizeKeyPart(value string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
