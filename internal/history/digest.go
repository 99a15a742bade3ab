package history

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content digests. The version suffix allows changing
// the algorithm without colliding with old digests.
const (
	DomainModel  = "tflmconv/model/v1"
	DomainHeader = "tflmconv/header/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ModelDigest returns the content digest of serialized model bytes.
func ModelDigest(data []byte) string {
	return hashWithDomain(DomainModel, data)
}

// HeaderDigest returns the content digest of a generated header.
func HeaderDigest(text string) string {
	return hashWithDomain(DomainHeader, []byte(text))
}
