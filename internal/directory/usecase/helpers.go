package usecase

import (
	"sort"

	"github.com/allisson/lightldap/internal/directory/domain"
)

// sortedPatchKeys gives attribute patches a deterministic application order.
func sortedPatchKeys(patches map[string]domain.AttributePatch) []string {
	keys := make([]string, 0, len(patches))
	for k := range patches {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
