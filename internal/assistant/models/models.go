package models

import (
	"time"
)

// SourceKind distinguishes how a document entered the system.
type SourceKind string

const (
	SourceScraped  SourceKind = "scraped"
	SourceUploaded SourceKind = "uploaded"
)

// Document is an ingested text addressable by its URL or filename.
type Document struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Kind       SourceKind `json:"kind"`
	ByteSize   int        `json:"byte_size"`
	IngestedAt time.Time  `json:"ingested_at"`
}

// Chunk is a bounded-length segment of one document, the atomic unit of
// retrieval. Position is the chunk's left-to-right ordinal within its
// document; SourceOrdinal identifies the document within one index build.
type Chunk struct {
	SourceID      string `json:"source_id"`
	SourceOrdinal int    `json:"source_ordinal"`
	Position      int    `json:"position"`
	Text          string `json:"text"`
}

// RetrievalResult is one ranked hit produced at query time. Not persisted.
type RetrievalResult struct {
	Text     string  `json:"text"`
	SourceID string  `json:"source_id"`
	Score    float32 `json:"score"`
	Store    string  `json:"store"`
	ChunkID  int     `json:"chunk_id"`
}

// Lead is a finalized contact submission. Immutable once created; ID is
// assigned by the store.
type Lead struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Education *string   `json:"education"`
	Program   *string   `json:"program_of_interest"`
	Message   *string   `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
