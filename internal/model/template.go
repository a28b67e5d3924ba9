package model

// TemplateSection is one ordered instruction block of an output template.
// MinLength/MaxLength are word counts; zero means unset.
type TemplateSection struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
	MinLength    int    `json:"min_length,omitempty"`
	MaxLength    int    `json:"max_length,omitempty"`
}

type OutputTemplate struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	OutputType   string            `json:"output_type"`
	SystemPrompt string            `json:"system_prompt"`
	Sections     []TemplateSection `json:"sections"`
	State        int               `json:"state"`
	Ctime        int64             `json:"ctime"`
	Mtime        int64             `json:"mtime"`
}
