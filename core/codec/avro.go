package codec

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/hamba/avro/v2"

	"github.com/mongodb-partners/doc-embedding-stream/core/data"
)

// ChunkSchema is the Avro definition chunk payloads are registered under.
// content and embeddings are independently nullable, and array elements stay
// nullable so enrichment gaps survive the round trip untouched.
const ChunkSchema = `{
  "type": "record",
  "name": "ChunkRecord",
  "namespace": "docstream",
  "fields": [
    {"name": "content", "type": ["null", "string"], "default": null},
    {"name": "embeddings", "type": ["null", {"type": "array", "items": ["null", "float"]}], "default": null}
  ]
}`

const (
	// wireFormatMarker is the leading byte of every framed message. New
	// markers may be introduced, but decode must keep accepting every marker
	// ever emitted while messages encoded under it can still be in flight.
	wireFormatMarker = 0x00
	wireHeaderSize   = 5
)

type chunkPayload struct {
	Content    *string    `avro:"content"`
	Embeddings []*float32 `avro:"embeddings"`
}

// AvroCodec binds chunk records to registered schema versions. Messages are
// framed as a 1-byte format marker, a 4-byte big-endian schema identifier and
// the Avro-encoded payload. Resolved schemas are cached for the life of the
// process; identifiers are immutable once registered, so the cache is never
// invalidated.
type AvroCodec struct {
	registry Registry

	mu      sync.RWMutex
	schemas map[int]avro.Schema
}

func NewAvroCodec(registry Registry) *AvroCodec {
	return &AvroCodec{
		registry: registry,
		schemas:  make(map[int]avro.Schema),
	}
}

// Encode serializes the record's payload fields against the schema identified
// by schemaID and prefixes the wire header.
func (c *AvroCodec) Encode(record data.ChunkRecord, schemaID int) ([]byte, error) {
	schema, err := c.resolve(schemaID)
	if err != nil {
		return nil, err
	}

	payload, err := avro.Marshal(schema, chunkPayload{
		Content:    record.Content,
		Embeddings: record.Embeddings,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: schema %d: %v", ErrSchemaMismatch, schemaID, err)
	}

	framed := make([]byte, wireHeaderSize, wireHeaderSize+len(payload))
	framed[0] = wireFormatMarker
	binary.BigEndian.PutUint32(framed[1:wireHeaderSize], uint32(schemaID))
	return append(framed, payload...), nil
}

// Decode reads the schema identifier from the wire header, resolves it and
// deserializes the payload. The returned record carries only payload fields;
// the caller fills in identity from the message key and headers.
func (c *AvroCodec) Decode(message []byte) (data.ChunkRecord, int, error) {
	if len(message) < wireHeaderSize {
		return data.ChunkRecord{}, 0, fmt.Errorf("%w: %d bytes", ErrMalformedMessage, len(message))
	}
	if message[0] != wireFormatMarker {
		return data.ChunkRecord{}, 0, fmt.Errorf("%w: unknown format marker %#x", ErrMalformedMessage, message[0])
	}

	schemaID := int(binary.BigEndian.Uint32(message[1:wireHeaderSize]))
	schema, err := c.resolve(schemaID)
	if err != nil {
		return data.ChunkRecord{}, 0, err
	}

	var payload chunkPayload
	if err := avro.Unmarshal(schema, message[wireHeaderSize:], &payload); err != nil {
		return data.ChunkRecord{}, 0, fmt.Errorf("%w: schema %d: %v", ErrMalformedMessage, schemaID, err)
	}

	return data.ChunkRecord{Content: payload.Content, Embeddings: payload.Embeddings}, schemaID, nil
}

// resolve returns the parsed schema for an identifier, fetching it from the
// registry on first use. Concurrent first-writers are safe, the entry stored
// first wins.
func (c *AvroCodec) resolve(schemaID int) (avro.Schema, error) {
	c.mu.RLock()
	schema, ok := c.schemas[schemaID]
	c.mu.RUnlock()
	if ok {
		return schema, nil
	}

	definition, err := c.registry.Fetch(schemaID)
	if err != nil {
		return nil, fmt.Errorf("%w: id %d: %v", ErrUnknownSchema, schemaID, err)
	}
	parsed, err := avro.Parse(definition)
	if err != nil {
		return nil, fmt.Errorf("%w: id %d: %v", ErrUnknownSchema, schemaID, err)
	}

	c.mu.Lock()
	if existing, ok := c.schemas[schemaID]; ok {
		parsed = existing
	} else {
		c.schemas[schemaID] = parsed
	}
	c.mu.Unlock()
	return parsed, nil
}
