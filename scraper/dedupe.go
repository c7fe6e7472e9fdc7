package scraper

import (
	"hash/fnv"
	"strings"

	"github.com/use-agent/mapscout/models"
)

// fingerprint hashes the lower-cased word tokens of a business's name,
// address and phone with FNV-64a. Whitespace and case differences collapse to
// the same value.
func fingerprint(b models.Business) uint64 {
	h := fnv.New64a()
	for _, part := range []string{b.Name, b.Address, b.Phone} {
		for _, word := range strings.Fields(strings.ToLower(part)) {
			h.Write([]byte(word))
			h.Write([]byte{0})
		}
		h.Write([]byte{1})
	}
	return h.Sum64()
}

// deduper drops businesses that were already admitted. The feed repeats a
// place when it appears both as an ad and as an organic result, and a detail
// panel that fails to refresh after a click still shows the previous place.
type deduper struct {
	seen map[uint64]struct{}
}

func newDeduper() *deduper {
	return &deduper{seen: make(map[uint64]struct{})}
}

// admit reports whether b is new and records it.
func (d *deduper) admit(b models.Business) bool {
	fp := fingerprint(b)
	if _, ok := d.seen[fp]; ok {
		return false
	}
	d.seen[fp] = struct{}{}
	return true
}
