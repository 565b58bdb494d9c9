package vectorstore

// DocumentMeta identifies where an indexed segment came from.
type DocumentMeta struct {
	// RepoID is the deterministic repository identifier.
	RepoID string `json:"repo_id"`

	// FileID is the deterministic file identifier within the repository.
	FileID string `json:"file_id"`

	// RelativePath is the file path relative to the repository root.
	RelativePath string `json:"relative_path"`
}

// Document is one embedded code segment.
//
// Vector is populated by the indexing pipeline before Upsert and by the
// store on search results only when the backend returns it. Score is set
// only on search results.
type Document struct {
	// ID is the unique identifier of the segment.
	ID string `json:"id"`

	// Content is the segment text.
	Content string `json:"content"`

	// Vector is the segment embedding.
	Vector []float32 `json:"-"`

	// Score is the similarity score on search results (higher is closer).
	Score float32 `json:"score,omitempty"`

	// Meta locates the segment in its repository.
	Meta DocumentMeta `json:"meta"`
}
