package model

const (
	StateNormal  = 1
	StateDeleted = 2
)

type Notebook struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	State       int    `json:"state"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}
