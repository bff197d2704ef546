package store

import "time"

// Library is a tenant-scoped corpus (section 3).
type Library struct {
	ID        int64
	UUID      string
	Name      string
	Area      string
	WSem      float64
	WTxt      float64
	Metadata  map[string]any
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document belongs to exactly one Library.
type Document struct {
	ID              int64
	LibraryID       int64
	Title           string
	ContentMarkdown string
	ContentType     string
	Metadata        map[string]any
	Active          bool
	Status          string
	Progress        int
	Message         string
	TotalTokens     int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Document processing statuses, per section 4.4.
const (
	DocumentStatusPending    = "PENDING"
	DocumentStatusProcessing = "PROCESSING"
	DocumentStatusCompleted  = "COMPLETED"
	DocumentStatusFailed     = "FAILED"
)

// Chapter belongs to exactly one Document.
type Chapter struct {
	ID         int64
	DocumentID int64
	Title      string
	Content    string
	OrderIndex int
	TokenCount int
	Summary    *string
}

// Embedding kinds, mirroring DocumentEmbedding.embedding_kind.
const (
	EmbeddingKindChapter = "chapter"
	EmbeddingKindChunk   = "chunk"
	EmbeddingKindQAPair  = "qa_pair"
	EmbeddingKindSummary = "summary"
)

// DocEmbedding is one DocumentEmbedding row.
type DocEmbedding struct {
	ID             int64
	LibraryID      int64
	DocumentID     int64
	ChapterID      *int64
	Text           string
	OrderInChapter int
	EmbeddingKind  string
	Vector         []float32
	Metadata       map[string]any
}

// UserLibraryAssociation scopes search and administration access.
type UserLibraryAssociation struct {
	UserID    string
	LibraryID int64
	Role      string
}

// Roles a user may hold on a Library.
const (
	RoleOwner        = "owner"
	RoleCollaborator = "collaborator"
	RoleReader       = "reader"
)

// ScoredEmbedding pairs a DocEmbedding with the raw candidate rank/score
// the store computed for it, consumed by the hybrid search fusion step.
type ScoredEmbedding struct {
	Embedding DocEmbedding
	Rank      int
	Score     float64
}
