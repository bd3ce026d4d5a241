// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// queryHashKey domain-separates query fingerprints from every other
// keyed hash in the system. ASCII, zero-padded to the 32 bytes the
// keyed construction requires.
var queryHashKey = func() []byte {
	key := make([]byte, 32)
	copy(key, "quarry.audit.query")
	return key
}()

// HashQuery fingerprints query text for the audit trail. The trail
// stores only the fingerprint, never the text, so identical queries
// correlate across entries without retaining their content.
func HashQuery(query string) string {
	hasher, err := blake3.NewKeyed(queryHashKey)
	if err != nil {
		// NewKeyed only fails on a wrong-sized key; ours is built
		// above with the right length.
		panic("audit: blake3 keyed hasher: " + err.Error())
	}
	hasher.Write([]byte(query))
	return hex.EncodeToString(hasher.Sum(nil)[:32])
}
