package querycache

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// orDefault is coalesce for interface-typed options whose dynamic values may not be comparable.
func orDefault[T any](v T, def T) T {
	if any(v) == nil {
		return def
	}
	return v
}
