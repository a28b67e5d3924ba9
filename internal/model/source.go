package model

const (
	SourceTypeFile = "file"
	SourceTypeURL  = "url"
	SourceTypeText = "text"
)

// Source content is immutable once created; replacing it produces a new
// content hash, which invalidates every chunk derived from the old one.
type Source struct {
	ID          string `json:"id"`
	NotebookID  string `json:"notebook_id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	ContentHash string `json:"content_hash"`
	FileKey     string `json:"file_key,omitempty"`
	State       int    `json:"state"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}
