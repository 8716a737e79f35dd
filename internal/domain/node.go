package domain

import (
	"strings"
	"time"
)

// Reserved node ids. _s and _e are the sentinels the compiler injects
// around the top-level declaration; _root optionally groups the forest.
const (
	RootNodeID   = "_root"
	SourceNodeID = "_s"
	SinkNodeID   = "_e"
)

// Kind tags the two closed node variants. The engine and compiler dispatch
// on Kind rather than on a type hierarchy.
type Kind string

const (
	KindBlock    Kind = "block"
	KindPlaybook Kind = "playbook"
)

// IsReservedID reports whether id collides with a sentinel/root id.
func IsReservedID(id string) bool {
	return id == RootNodeID || id == SourceNodeID || id == SinkNodeID
}

// ValidateNodeID enforces the id rules: non-empty, not reserved, no comma.
func ValidateNodeID(id string) error {
	if id == "" {
		return NewDomainError(ErrCodeValidationFailed, "node id must not be empty", nil)
	}
	if IsReservedID(id) {
		return NewDomainError(ErrCodeDuplicateNodeID, "node id \""+id+"\" is reserved", nil)
	}
	if strings.Contains(id, ",") {
		return NewDomainError(ErrCodeDuplicateNodeID, "node id \""+id+"\" must not contain a comma", nil)
	}
	return nil
}

// Node is a tagged union: Block (a container, derived status) and Playbook
// (a leaf, externally launched job). Common fields live directly on Node;
// variant-only fields are grouped in Playbook, present only when
// Kind == KindPlaybook.
type Node struct {
	ID          string
	Kind        Kind
	Description string
	Reference   string // swimlane tag, display only
	Skipped     bool
	StartedAt   *time.Time
	EndedAt     *time.Time

	// Status is the engine-maintained lifecycle state. For a Block it is
	// derived, cached here once the block has been visited and its
	// interior settles. Only the engine goroutine may write it.
	Status NodeStatus

	// Block-only.
	Strategy Strategy

	// Playbook-only.
	Playbook Playbook
}

// Playbook holds the fields of a leaf node that launches one external job.
type Playbook struct {
	PlaybookPath  string
	InventoryPath string
	ExtraVars     map[string]any
	VaultIDs      []string
	ProjectPath   string
	CheckMode     bool
	DiffMode      bool
	Verbosity     int
	Limit         string

	// JobHandle is opaque to the domain layer; it is whatever the runner
	// adapter returned from launch(). nil until the node is launched.
	JobHandle any

	// Ident is the on-disk name used for this launch: the node id on the
	// first launch, "<id>_k" on the k-th retry.
	Ident string

	// RetryCount tracks how many times restart_node has relaunched this
	// node, used only to compute the next Ident.
	RetryCount int
}

// IsBlock reports whether n is a Block variant.
func (n *Node) IsBlock() bool { return n.Kind == KindBlock }

// IsPlaybook reports whether n is a Playbook variant.
func (n *Node) IsPlaybook() bool { return n.Kind == KindPlaybook }

// NewBlockNode constructs a Block variant.
func NewBlockNode(id string, strategy Strategy, description, reference string) *Node {
	return &Node{
		ID:          id,
		Kind:        KindBlock,
		Strategy:    strategy,
		Description: description,
		Reference:   reference,
		Status:      NodeStatusNotStarted,
	}
}

// NewPlaybookNode constructs a Playbook variant.
func NewPlaybookNode(id string, pb Playbook, description, reference string) *Node {
	return &Node{
		ID:          id,
		Kind:        KindPlaybook,
		Playbook:    pb,
		Description: description,
		Reference:   reference,
		Status:      NodeStatusNotStarted,
	}
}
