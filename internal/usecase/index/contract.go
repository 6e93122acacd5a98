package index

// Document is a raw corpus entry to be chunked and embedded.
type Document struct {
	Source string
	Text   string
}
