package storage

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/errors"
)

var errClosed = errors.New("storage: backend closed")

func errDigestMismatch(digestHex string) error {
	return fmt.Errorf("storage: put %s: content-addressing violation: different bytes already stored under this digest", digestHex)
}

func bytesEqual(a, b []byte) bool {
	return bytes.Equal(a, b)
}
