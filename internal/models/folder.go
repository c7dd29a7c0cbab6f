package models

const (
	FolderAll           = "all"
	FolderUncategorized = "uncategorized"
)

// Folder is a client-only grouping of notes. It has no server counterpart.
type Folder struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	IsDefault bool   `json:"isDefault"`
}

// DefaultFolders always exist and are never persisted.
var DefaultFolders = []Folder{
	{ID: FolderAll, Name: "All Notes", Color: "gray", IsDefault: true},
	{ID: FolderUncategorized, Name: "Uncategorized", Color: "slate", IsDefault: true},
}

// FolderColors is the palette custom folders may use.
var FolderColors = []string{"blue", "green", "purple", "orange", "pink", "teal", "red", "yellow"}

// IsDefaultFolder reports whether id names one of the implicit folders.
func IsDefaultFolder(id string) bool {
	return id == FolderAll || id == FolderUncategorized
}
