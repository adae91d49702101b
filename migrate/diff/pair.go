package diff

// MigrationPair holds the previous and next version of a schema element.
// Either side is nil when the element is created or dropped.
type MigrationPair[T any] struct {
	Previous T
	Next     T
}

// HasBoth reports whether the element exists on both sides.
func HasBoth[T any](p MigrationPair[*T]) bool {
	return p.Previous != nil && p.Next != nil
}
