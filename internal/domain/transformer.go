package domain

// Transformer maps repository documents into display-ready posts.
type Transformer interface {
	// Transform converts one document. position is its 1-based index within the batch.
	Transform(doc RawDocument, position int) (Post, error)
	// TransformBatch converts a whole batch in order, skipping documents that fail.
	TransformBatch(docs []RawDocument) []Post
}
