package identity

import (
	"hash/fnv"

	"github.com/ashureev/fixedness-lab/internal/domain"
)

// AssignVariant deterministically places a device in a condition for a
// world. The same device may land in different conditions in different
// worlds, which balances exposure across a multi-world study.
func AssignVariant(deviceID, worldID string) domain.Variant {
	h := fnv.New32a()
	_, _ = h.Write([]byte(deviceID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(worldID))
	if h.Sum32()%2 == 0 {
		return domain.VariantA
	}
	return domain.VariantB
}
