package fn

// Map applies f to each element.
func Map[T, U any](items []T, f func(T) U) []U {
	out := make([]U, len(items))
	for i, v := range items {
		out[i] = f(v)
	}
	return out
}

// Filter returns elements where pred is true. The result is never nil.
func Filter[T any](items []T, pred func(T) bool) []T {
	out := make([]T, 0)
	for _, v := range items {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}

// FilterMap applies f and keeps results where ok is true. The result is
// never nil.
func FilterMap[T, U any](items []T, f func(T) (U, bool)) []U {
	out := make([]U, 0)
	for _, v := range items {
		if u, ok := f(v); ok {
			out = append(out, u)
		}
	}
	return out
}

// Find returns the first element where pred is true.
func Find[T any](items []T, pred func(T) bool) (T, bool) {
	for _, v := range items {
		if pred(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// IndexFirst builds a map from key to the first element with that key.
// Elements for which key reports false are skipped.
func IndexFirst[T any, K comparable](items []T, key func(T) (K, bool)) map[K]T {
	out := make(map[K]T)
	for _, v := range items {
		k, ok := key(v)
		if !ok {
			continue
		}
		if _, seen := out[k]; !seen {
			out[k] = v
		}
	}
	return out
}

// GroupBy groups items by a key function, preserving order within groups.
// Elements for which key reports false are skipped.
func GroupBy[T any, K comparable](items []T, key func(T) (K, bool)) map[K][]T {
	out := make(map[K][]T)
	for _, v := range items {
		if k, ok := key(v); ok {
			out[k] = append(out[k], v)
		}
	}
	return out
}

// Concat joins slices into a new slice.
func Concat[T any](parts ...[]T) []T {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]T, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
