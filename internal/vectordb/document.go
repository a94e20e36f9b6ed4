package vectordb

// Document represents one embedded chunk stored in a collection.
type Document struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  DocumentMetadata
}

// DocumentMetadata holds structured information about a chunk.
type DocumentMetadata struct {
	Source     string
	FileID     string
	ChunkIndex int
	ChunkType  string
	Language   string
	DocType    string
}

// SearchResult pairs a document with its distance from the query.
// Distance is 1 - cosine similarity; smaller is closer.
type SearchResult struct {
	Document Document
	Distance float64
}
