package describe

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/dukex/operion-marketplace/pkg/clone"
	"github.com/dukex/operion-marketplace/pkg/models"
)

// MaxSummaryBytes caps the encoded summary sent to a generator.
const MaxSummaryBytes = 16 * 1024

// Summary is the part of a workflow a generator gets to see.
type Summary struct {
	Name        string             `json:"name"`
	Nodes       []NodeSummary      `json:"nodes"`
	Connections models.Connections `json:"connections"`
}

// NodeSummary describes one node.
type NodeSummary struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Summarize extracts the summary of a workflow. Parameters are cloned so the
// summary always encodes, whatever the workflow holds.
func Summarize(logger *slog.Logger, workflow *models.Workflow) Summary {
	cloner := clone.New(logger)

	summary := Summary{
		Name:        workflow.Name,
		Nodes:       make([]NodeSummary, 0, len(workflow.Nodes)),
		Connections: clone.Connections(workflow.Connections),
	}

	for _, node := range workflow.Nodes {
		if node == nil {
			continue
		}

		params, _ := cloner.Value(node.Parameters).(map[string]any)

		summary.Nodes = append(summary.Nodes, NodeSummary{
			Name:       node.Name,
			Type:       node.Type,
			Parameters: params,
		})
	}

	return summary
}

// JSON encodes the summary in at most MaxSummaryBytes. Parameters are dropped
// first; if that is not enough the encoding is cut.
func (s Summary) JSON() ([]byte, error) {
	payload, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode summary: %w", err)
	}

	if len(payload) <= MaxSummaryBytes {
		return payload, nil
	}

	slim := Summary{Name: s.Name, Connections: s.Connections, Nodes: make([]NodeSummary, len(s.Nodes))}
	for i, node := range s.Nodes {
		slim.Nodes[i] = NodeSummary{Name: node.Name, Type: node.Type}
	}

	payload, err = json.MarshalIndent(slim, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode summary: %w", err)
	}

	if len(payload) <= MaxSummaryBytes {
		return payload, nil
	}

	payload = payload[:MaxSummaryBytes]
	for len(payload) > 0 && !utf8.Valid(payload) {
		payload = payload[:len(payload)-1]
	}

	return payload, nil
}
