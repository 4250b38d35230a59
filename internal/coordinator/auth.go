package coordinator

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

const (
	challengeSize = 32

	verdictRejected byte = 0
	verdictAccepted byte = 1
)

// errRejected reports that the server did not accept the client's response.
var errRejected = errors.New("authentication rejected")

// authKey derives the 32-byte keyed-hash key from the shared secret.
type authKey [32]byte

func deriveKey(secret string) authKey {
	hasher := blake3.New()
	_, _ = hasher.Write([]byte("zbridge.coordinator.auth:" + secret))
	var key authKey
	copy(key[:], hasher.Sum(nil))
	return key
}

func (k authKey) respond(challenge []byte) []byte {
	hasher, err := blake3.NewKeyed(k[:])
	if err != nil {
		panic("coordinator: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write(challenge)
	return hasher.Sum(nil)[:challengeSize]
}

// serverHandshake challenges the peer and reports whether it proved knowledge
// of the secret. The verdict byte is always written.
func serverHandshake(rw io.ReadWriter, key authKey) (bool, error) {
	challenge := make([]byte, challengeSize)
	if _, err := rand.Read(challenge); err != nil {
		return false, fmt.Errorf("generate challenge: %w", err)
	}
	if _, err := rw.Write(challenge); err != nil {
		return false, fmt.Errorf("send challenge: %w", err)
	}
	response := make([]byte, challengeSize)
	if _, err := io.ReadFull(rw, response); err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}
	ok := subtle.ConstantTimeCompare(response, key.respond(challenge)) == 1
	verdict := verdictRejected
	if ok {
		verdict = verdictAccepted
	}
	if _, err := rw.Write([]byte{verdict}); err != nil {
		return ok, fmt.Errorf("send verdict: %w", err)
	}
	return ok, nil
}

// clientHandshake answers the server's challenge.
func clientHandshake(rw io.ReadWriter, key authKey) error {
	challenge := make([]byte, challengeSize)
	if _, err := io.ReadFull(rw, challenge); err != nil {
		return fmt.Errorf("read challenge: %w", err)
	}
	if _, err := rw.Write(key.respond(challenge)); err != nil {
		return fmt.Errorf("send response: %w", err)
	}
	verdict := make([]byte, 1)
	if _, err := io.ReadFull(rw, verdict); err != nil {
		return fmt.Errorf("read verdict: %w", err)
	}
	if verdict[0] != verdictAccepted {
		return errRejected
	}
	return nil
}
