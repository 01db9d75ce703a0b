package conquest

import (
	"encoding/hex"
	"encoding/json"

	"lukechampine.com/blake3"
)

// HashState returns the hex BLAKE3 digest of the state's JSON encoding with
// the action log elided. Map keys are encoded in sorted order, so equal
// states always hash equally.
func HashState(gs *GameState) string {
	c := *gs
	c.ActionLog = nil
	data, err := json.Marshal(&c)
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
