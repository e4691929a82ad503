package querycache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The stores and cached queries call them on hot paths.
type Hooks interface {
	// A stored entry could not be decoded and was removed.
	// reason ∈ {"corrupt", "value_decode"}
	SelfHeal(storageKey, reason string)

	// The backend refused a write under pressure (admission/eviction).
	SetRejected(storageKey string)

	// A cached query was served from the store.
	CacheHit(key string)

	// A cached query found nothing in the store and ran.
	CacheMiss(key string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string) {}
func (NopHooks) SetRejected(string)      {}
func (NopHooks) CacheHit(string)         {}
func (NopHooks) CacheMiss(string)        {}
