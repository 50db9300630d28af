package sparsecoll

// Reserved message tags, owned by this library. Bare integer literals
// redefined independently at each call site are a source-of-bugs
// anti-pattern; this block centralizes them instead.
//
// tagBase spells "LA" (locality-aware) across its top two bytes so the
// reserved range is recognizable in a packet trace, with the low 16 bits
// left for this library's own tags.
const tagBase = 0x4C41_0000

const (
	// TagPersonalized is used by the personalized algorithm's sends/probes.
	TagPersonalized = tagBase + 1

	// TagNonblocking is used by the nonblocking algorithm's synchronous
	// sends/probes.
	TagNonblocking = tagBase + 2

	// tagNodeLocal is reserved for a future node-aware algorithm. Nothing
	// in this repository sends with it yet.
	tagNodeLocal = tagBase + 3
)

var _ = tagNodeLocal // reserved, not yet used
