package model

const (
	OutputStatusDraft      = "DRAFT"
	OutputStatusGenerating = "GENERATING"
	OutputStatusCompleted  = "COMPLETED"
	OutputStatusFailed     = "FAILED"
)

const (
	OutputTypeSummary  = "summary"
	OutputTypeBlogPost = "blog_post"
	OutputTypeBriefing = "briefing"
	OutputTypeMindMap  = "mind_map"
	OutputTypeQA       = "qa"
)

// GenerationRequest is a value object; it is embedded in the Output on
// creation so regenerate can replay it with overrides.
type GenerationRequest struct {
	NotebookID   string   `json:"notebook_id"`
	OutputType   string   `json:"output_type"`
	Title        string   `json:"title,omitempty"`
	SourceIDs    []string `json:"source_ids,omitempty"`
	TemplateID   string   `json:"template_id,omitempty"`
	CustomPrompt string   `json:"custom_prompt,omitempty"`
	Tone         string   `json:"tone,omitempty"`
	TargetLength string   `json:"target_length,omitempty"`
	MaxSources   int      `json:"max_sources"`
	Temperature  float32  `json:"temperature"`
	MaxTokens    int      `json:"max_tokens"`
}

// Output content is immutable once COMPLETED; regenerate is the only way to
// replace it and always increments Version.
type Output struct {
	ID          string            `json:"id"`
	NotebookID  string            `json:"notebook_id"`
	Title       string            `json:"title"`
	Content     string            `json:"content"`
	OutputType  string            `json:"output_type"`
	Status      string            `json:"status"`
	Version     int               `json:"version"`
	SourceRefs  []string          `json:"source_refs"`
	WordCount   int               `json:"word_count"`
	LastError   string            `json:"last_error,omitempty"`
	Request     GenerationRequest `json:"request"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	GeneratedAt int64             `json:"generated_at,omitempty"`
	State       int               `json:"state"`
	Ctime       int64             `json:"ctime"`
	Mtime       int64             `json:"mtime"`
}
