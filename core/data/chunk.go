package data

import "fmt"

// ChunkRecord is the unit that travels through the bus. Only Content and
// Embeddings are part of the serialized payload; DocumentID and Index ride
// along as the message key and headers. A nil Content is a chunk carrying
// only embeddings, a nil Embeddings slice is a chunk that has not been
// enriched yet. Nil elements inside Embeddings are preserved as they are.
type ChunkRecord struct {
	DocumentID string
	Index      int
	Content    *string
	Embeddings []*float32
}

// StorageKey identifies the chunk in the document store. Repeated delivery
// of the same logical chunk always maps to the same key.
func (c ChunkRecord) StorageKey() string {
	return fmt.Sprintf("%s_chunk_%d", c.DocumentID, c.Index)
}
