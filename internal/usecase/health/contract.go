package health

// IndexReadiness reports whether the corpus index is loaded and queryable.
type IndexReadiness interface {
	Ready() bool
}
