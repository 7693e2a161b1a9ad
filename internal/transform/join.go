package transform

// LeftJoin returns one row per match between left and right, merged by merge,
// in left order and then right order. A left row with no match, or whose key
// is absent, is merged with a nil right row and kept.
func LeftJoin[L, R any, K comparable](
	left []L,
	right []R,
	leftKey func(L) (K, bool),
	rightKey func(R) K,
	merge func(L, *R) L,
) []L {
	index := make(map[K][]int, len(right))
	for i, r := range right {
		k := rightKey(r)
		index[k] = append(index[k], i)
	}

	out := make([]L, 0, len(left))
	for _, l := range left {
		k, ok := leftKey(l)
		if !ok {
			out = append(out, merge(l, nil))
			continue
		}
		matches := index[k]
		if len(matches) == 0 {
			out = append(out, merge(l, nil))
			continue
		}
		for _, i := range matches {
			out = append(out, merge(l, &right[i]))
		}
	}

	return out
}

// nullableKey adapts a nullable foreign key to a LeftJoin key extractor.
func nullableKey(k *int64) (int64, bool) {
	if k == nil {
		return 0, false
	}
	return *k, true
}
