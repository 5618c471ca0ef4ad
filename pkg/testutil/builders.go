// Package testutil provides test data builders shared by package tests.
package testutil

import (
	"time"

	"github.com/dukex/operion-marketplace/pkg/models"
	"github.com/google/uuid"
)

// CreateTestNode creates a test Node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		ID:         uuid.New().String(),
		Name:       "Log",
		Type:       "n8n-nodes-base.log",
		Position:   [2]int{100, 200},
		Parameters: map[string]any{"message": "test", "level": "info"},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithTriggerNode configures the node as a schedule trigger.
func WithTriggerNode() func(*models.Node) {
	return func(n *models.Node) {
		n.Name = "Schedule"
		n.Type = "n8n-nodes-base.scheduleTrigger"
		n.Parameters = map[string]any{
			"rule": map[string]any{"interval": []any{map[string]any{"field": "hours"}}},
		}
	}
}

// WithParameters sets the node parameters.
func WithParameters(parameters map[string]any) func(*models.Node) {
	return func(n *models.Node) {
		n.Parameters = parameters
	}
}

// WithName sets the node name.
func WithName(name string) func(*models.Node) {
	return func(n *models.Node) {
		n.Name = name
	}
}

// WithType sets the node type.
func WithType(nodeType string) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = nodeType
	}
}

// CreateTestWorkflow creates a two-node workflow (trigger -> action).
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	trigger := CreateTestNode(WithTriggerNode())
	action := CreateTestNode(WithName("Backup"), WithType("n8n-nodes-base.httpRequest"), WithParameters(map[string]any{
		"url":     "https://backup.example.com",
		"options": map[string]any{"timeout": float64(30)},
	}))

	now := time.Now().UTC()
	workflow := &models.Workflow{
		ID:        uuid.New().String(),
		Name:      "Backup",
		VersionID: uuid.New().String(),
		Graph: models.Graph{
			Nodes:       []*models.Node{trigger, action},
			Connections: models.Connections{trigger.Name: {{Node: action.Name, Type: "main"}}},
			Settings:    map[string]any{"timezone": "UTC"},
			StaticData:  map[string]any{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}
