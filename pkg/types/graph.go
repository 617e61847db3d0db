package types

// RelationType classifies a directed graph edge.
type RelationType string

const (
	RelImports    RelationType = "imports"
	RelExports    RelationType = "exports"
	RelCalls      RelationType = "calls"
	RelExtends    RelationType = "extends"
	RelImplements RelationType = "implements"
	RelUses       RelationType = "uses"
	RelDefines    RelationType = "defines"
	RelReferences RelationType = "references"
	RelDependsOn  RelationType = "depends_on"
)

// RelationshipMeta carries the optional typed attributes of an edge.
type RelationshipMeta struct {
	Line       int
	IsExternal bool
	Specifiers []string
}

// Relationship is a typed directed edge between two graph nodes,
// deduplicated on (Type, Source, Target).
type Relationship struct {
	Type     RelationType
	Source   string
	Target   string
	Metadata RelationshipMeta
}

// NodeKind classifies a graph node, inferred from its identifier shape.
type NodeKind string

const (
	NodeSymbol NodeKind = "symbol"
	NodeFile   NodeKind = "file"
	NodeModule NodeKind = "module"
)

// GraphNode is an endpoint in the relationship graph. Nodes are created
// lazily the first time an identifier appears in an edge.
type GraphNode struct {
	ID        string
	Name      string
	Kind      NodeKind
	FilePath  string
	InDegree  int
	OutDegree int
}

// Degree returns the combined in/out degree, used for hub ranking.
func (n *GraphNode) Degree() int {
	return n.InDegree + n.OutDegree
}
