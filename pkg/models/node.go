package models

import "strings"

// Node is a single step of a workflow graph.
type Node struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"                  validate:"required,min=1"`
	Type        string         `json:"type"                  validate:"required"`
	TypeVersion float64        `json:"typeVersion,omitempty"`
	Position    [2]int         `json:"position"`
	Disabled    bool           `json:"disabled,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// IsTrigger reports whether the node starts a workflow run. Trigger types are
// recognised by name, e.g. "n8n-nodes-base.scheduleTrigger" or "trigger:webhook".
func (n *Node) IsTrigger() bool {
	return strings.Contains(strings.ToLower(n.Type), "trigger")
}

// ShortType returns the last dotted segment of the node type.
func (n *Node) ShortType() string {
	if idx := strings.LastIndex(n.Type, "."); idx >= 0 {
		return n.Type[idx+1:]
	}

	return n.Type
}

// Link is one downstream edge of a node.
type Link struct {
	Node   string `json:"node"`
	Type   string `json:"type"`
	Index  int    `json:"index"`
	Output int    `json:"output"` // Output slot on the source node
}

// Connections maps a source node name to its downstream links.
type Connections map[string][]Link
