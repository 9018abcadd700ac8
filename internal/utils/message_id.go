package utils

import (
	"crypto/sha256"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// GenerateMessageID creates a unique RFC 5322 message id for outbound mail
func GenerateMessageID(domain, metadata string) string {
	alphabet := "abcdefghijklmnopqrstuvwxyz0123456789"
	id, err := gonanoid.Generate(alphabet, 12)
	if err != nil {
		panic(err)
	}

	timestamp := time.Now().UnixMicro()

	var hashComponent string
	if metadata != "" {
		hash := sha256.Sum256([]byte(metadata))
		hashComponent = fmt.Sprintf(".%x", hash[:4])
	}

	localPart := fmt.Sprintf("%d.%s%s", timestamp, id, hashComponent)
	return fmt.Sprintf("<%s@%s>", localPart, domain)
}

// GenerateNanoIDWithPrefix creates a short prefixed identifier for event
// envelopes
func GenerateNanoIDWithPrefix(prefix string, length int) string {
	alphabet := "abcdefghijklmnopqrstuvwxyz0123456789"
	id, err := gonanoid.Generate(alphabet, length)
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%s_%s", prefix, id)
}

// SynthesizeMessageID builds the fallback identity for messages that arrive
// without a Message-ID header. It is stable across polls for the same UID.
func SynthesizeMessageID(uid uint32, accountID uint) string {
	return fmt.Sprintf("uid_%d_%d", uid, accountID)
}
