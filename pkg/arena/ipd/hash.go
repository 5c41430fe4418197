package ipd

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CodeHash returns a stable hex digest of bot code that ignores formatting:
// lines are trimmed, blank lines and comment lines are dropped. It does not
// ignore identifiers or literal values.
func CodeHash(code string) string {
	var canon []string
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		canon = append(canon, line)
	}
	sum := sha256.Sum256([]byte(strings.Join(canon, "\n")))
	return hex.EncodeToString(sum[:])
}

// StableSeed derives a deterministic match seed from a pair of code hashes,
// so re-running the same pairing replays the same match.
func StableSeed(hashA, hashB string) int64 {
	sum := sha256.Sum256([]byte(hashA + "|" + hashB))
	var seed int64
	for _, b := range sum[:4] {
		seed = seed<<8 | int64(b)
	}
	return seed & 0x7FFFFFFF
}
