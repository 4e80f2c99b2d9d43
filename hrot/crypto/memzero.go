package crypto

import "crypto/subtle"

// Zero overwrites b with zeros in a constant-time friendly way.
// Zeroization is best-effort under a garbage collector; overwriting
// before releasing references is still better than relying on
// deferred reclamation.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
}
