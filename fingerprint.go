package sendero

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprintSep separates canonical fields so that field boundaries cannot
// be forged by crafted content ("a","bc" must not collide with "ab","c").
const fingerprintSep = "\x1f"

// Fingerprint returns a deterministic digest of the request's canonical
// fields (destination, subject, body, sender). Two requests with identical
// canonical fields always produce the same fingerprint; Metadata is ignored.
func Fingerprint(req Request) string {
	h := sha256.New()
	h.Write([]byte(req.To))
	h.Write([]byte(fingerprintSep))
	h.Write([]byte(req.Subject))
	h.Write([]byte(fingerprintSep))
	h.Write([]byte(req.Body))
	h.Write([]byte(fingerprintSep))
	h.Write([]byte(req.From))
	return hex.EncodeToString(h.Sum(nil))
}
