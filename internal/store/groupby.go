package store

// GroupBy buckets rows under the parent key extracted by key. Every row with
// a non-zero key appears exactly once in the result; rows whose key is the
// zero value are dropped. No ordering among rows sharing a parent is
// promised.
func GroupBy[T any, K comparable](rows []T, key func(T) K) map[K][]T {
	var zero K
	grouped := make(map[K][]T)
	for _, row := range rows {
		k := key(row)
		if k == zero {
			continue
		}
		grouped[k] = append(grouped[k], row)
	}
	return grouped
}
