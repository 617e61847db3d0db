package types

import "errors"

// EntityType classifies an indexed unit of content.
type EntityType string

const (
	EntityFile     EntityType = "file"
	EntityFunction EntityType = "function"
	EntityMethod   EntityType = "method"
	EntityTypeDecl EntityType = "type"
	EntityConst    EntityType = "const"
	EntityVar      EntityType = "var"
	EntitySection  EntityType = "section"
)

// Entity is a named unit of indexed content: a file, a symbol, or a
// document section. Name is the qualified name and must be unique within
// a project.
type Entity struct {
	ID        string
	Type      EntityType
	Name      string
	FilePath  string
	StartLine int
	EndLine   int
	Content   string
	Summary   string
	Metadata  EntityMetadata
}

// EntityMetadata carries the optional typed attributes of an entity.
type EntityMetadata struct {
	Language  string
	Signature string
	Exported  bool
}

// Validate checks the entity for required fields.
func (e *Entity) Validate() error {
	if e.ID == "" {
		return errors.New("entity ID is required")
	}
	if e.Name == "" {
		return errors.New("entity name is required")
	}
	if e.Type == "" {
		return errors.New("entity type is required")
	}
	if e.StartLine > 0 && e.EndLine > 0 && e.StartLine > e.EndLine {
		return errors.New("start line must be before or equal to end line")
	}
	return nil
}
