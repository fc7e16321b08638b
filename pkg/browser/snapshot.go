package browser

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// AXNode is one flattened accessibility tree node. Refs (e0, e1, ...) are
// scoped to the snapshot that issued them.
type AXNode struct {
	Ref         string `json:"ref"`
	Role        string `json:"role"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Value       string `json:"value,omitempty"`
	Multiline   bool   `json:"multiline,omitempty"`
	Disabled    bool   `json:"disabled,omitempty"`
	Focused     bool   `json:"focused,omitempty"`
	BackendID   int64  `json:"backendNodeId,omitempty"`
}

// Snapshot is a point-in-time structured view of the page's accessibility
// tree. All refs from earlier snapshots are invalid once a new snapshot
// exists.
type Snapshot struct {
	Generation uint64
	Nodes      []AXNode
}

// Ref builds an element ref for the node with the given snapshot ref id.
func (s *Snapshot) Ref(id string) (ElementRef, bool) {
	for _, n := range s.Nodes {
		if n.Ref == id {
			return ElementRef{
				Kind:       RefSnapshot,
				SnapshotID: id,
				Generation: s.Generation,
				Disabled:   n.Disabled,
			}, true
		}
	}
	return ElementRef{}, false
}

// ByRole returns all nodes with the given role, in tree order.
func (s *Snapshot) ByRole(role string) []AXNode {
	var out []AXNode
	for _, n := range s.Nodes {
		if n.Role == role {
			out = append(out, n)
		}
	}
	return out
}

// Raw accessibility tree types. The response is parsed by hand: the typed
// CDP bindings reject newer property values the protocol emits in the wild
// (see the "uninteresting" PropertyName), and the subset needed here is
// small.

type rawAXNode struct {
	NodeID           string      `json:"nodeId"`
	Ignored          bool        `json:"ignored"`
	Role             *rawAXValue `json:"role"`
	Name             *rawAXValue `json:"name"`
	Description      *rawAXValue `json:"description"`
	Value            *rawAXValue `json:"value"`
	Properties       []rawAXProp `json:"properties"`
	BackendDOMNodeID int64       `json:"backendDOMNodeId"`
}

type rawAXValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type rawAXProp struct {
	Name  string      `json:"name"`
	Value *rawAXValue `json:"value"`
}

func (v *rawAXValue) String() string {
	if v == nil || v.Value == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err == nil {
		return s
	}
	return strings.Trim(string(v.Value), `"`)
}

func (v *rawAXValue) Bool() bool {
	return v.String() == "true"
}

// parseAXTree converts an Accessibility.getFullAXTree response body into
// flattened nodes plus a ref-to-backend-node-id table. Ignored nodes and
// structural noise roles are dropped.
func parseAXTree(raw []byte) ([]AXNode, map[string]int64, error) {
	var tree struct {
		Nodes []rawAXNode `json:"nodes"`
	}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, nil, fmt.Errorf("failed to parse accessibility tree: %w", err)
	}

	nodes := make([]AXNode, 0, len(tree.Nodes))
	refs := make(map[string]int64)
	refID := 0

	for _, n := range tree.Nodes {
		if n.Ignored {
			continue
		}

		role := n.Role.String()
		name := n.Name.String()
		if role == "" || role == "none" || role == "generic" || role == "InlineTextBox" {
			continue
		}
		if name == "" && role == "StaticText" {
			continue
		}

		ref := fmt.Sprintf("e%d", refID)
		entry := AXNode{
			Ref:         ref,
			Role:        role,
			Name:        name,
			Description: n.Description.String(),
			Value:       n.Value.String(),
			BackendID:   n.BackendDOMNodeID,
		}

		for _, prop := range n.Properties {
			switch prop.Name {
			case "disabled":
				entry.Disabled = prop.Value.Bool()
			case "focused":
				entry.Focused = prop.Value.Bool()
			case "multiline":
				entry.Multiline = prop.Value.Bool()
			}
		}

		if n.BackendDOMNodeID != 0 {
			refs[ref] = n.BackendDOMNodeID
		}

		nodes = append(nodes, entry)
		refID++
	}

	return nodes, refs, nil
}

// refTable tracks the current snapshot generation and its ref-to-backend
// node mapping. Installing a new snapshot bumps the generation, which
// invalidates every previously issued snapshot ref.
type refTable struct {
	mu   sync.Mutex
	gen  uint64
	refs map[string]int64
}

// install records a fresh snapshot's refs and returns its generation.
func (t *refTable) install(refs map[string]int64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	t.refs = refs
	return t.gen
}

// resolve maps a snapshot ref to its backend node ID, rejecting refs from
// superseded snapshots.
func (t *refTable) resolve(ref ElementRef) (int64, error) {
	if ref.Kind != RefSnapshot {
		return 0, fmt.Errorf("ref is not snapshot-scoped")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if ref.Generation != t.gen {
		return 0, fmt.Errorf("ref %s from generation %d, current is %d: %w",
			ref.SnapshotID, ref.Generation, t.gen, ErrStaleRef)
	}
	id, ok := t.refs[ref.SnapshotID]
	if !ok {
		return 0, fmt.Errorf("ref %s: %w", ref.SnapshotID, ErrNotFound)
	}
	return id, nil
}
