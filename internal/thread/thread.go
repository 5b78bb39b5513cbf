// Package thread derives conversation identifiers from message headers.
package thread

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Prefix marks thread ids derived from message content rather than headers.
const Prefix = "thread-"

// fingerprintRunes is how much of the body feeds the content fingerprint.
const fingerprintRunes = 100

// Resolve returns the thread id for a message. The first References entry
// wins, then In-Reply-To verbatim, then a fingerprint of the subject and the
// start of the body. Two unrelated messages with the same subject and
// opening text share a thread.
func Resolve(references []string, inReplyTo, subject, body string) string {
	if len(references) > 0 {
		return references[0]
	}
	if inReplyTo != "" {
		return inReplyTo
	}
	return Fingerprint(subject, body)
}

// Fingerprint hashes the subject and the first 100 characters of body.
func Fingerprint(subject, body string) string {
	sum := md5.Sum([]byte(subject + head(body, fingerprintRunes)))
	return Prefix + hex.EncodeToString(sum[:])
}

// ParseReferences splits a References header into message ids.
func ParseReferences(header string) []string {
	return strings.Fields(header)
}

func head(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
