package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidGraph is returned when a graph snapshot does not match GraphSchema.
var ErrInvalidGraph = errors.New("invalid workflow graph")

// JSONSchema represents a JSON Schema document.
type JSONSchema struct {
	Type                 string               `json:"type,omitempty"`
	Properties           map[string]*Property `json:"properties,omitempty"`
	Required             []string             `json:"required,omitempty"`
	AdditionalProperties *Property            `json:"additionalProperties,omitempty"`
	Title                string               `json:"title,omitempty"`
	Description          string               `json:"description,omitempty"`
}

// Property represents a JSON Schema property.
type Property struct {
	Type                 any                  `json:"type,omitempty"` // string or []string
	Description          string               `json:"description,omitempty"`
	MinLength            *int                 `json:"minLength,omitempty"`
	MaxLength            *int                 `json:"maxLength,omitempty"`
	Minimum              *float64             `json:"minimum,omitempty"`
	Items                *Property            `json:"items,omitempty"`
	Properties           map[string]*Property `json:"properties,omitempty"`
	AdditionalProperties *Property            `json:"additionalProperties,omitempty"`
	Required             []string             `json:"required,omitempty"`
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

// GraphSchema describes a storable graph snapshot.
func GraphSchema() *JSONSchema {
	link := &Property{
		Type:     "object",
		Required: []string{"node"},
		Properties: map[string]*Property{
			"node":   {Type: "string", MinLength: intPtr(1)},
			"type":   {Type: "string"},
			"index":  {Type: "integer", Minimum: floatPtr(0)},
			"output": {Type: "integer", Minimum: floatPtr(0)},
		},
	}

	node := &Property{
		Type:     "object",
		Required: []string{"name", "type"},
		Properties: map[string]*Property{
			"name":       {Type: "string", MinLength: intPtr(1), MaxLength: intPtr(256)},
			"type":       {Type: "string", MinLength: intPtr(1)},
			"parameters": {Type: []string{"object", "null"}},
		},
	}

	return &JSONSchema{
		Type:     "object",
		Title:    "Workflow graph",
		Required: []string{"nodes"},
		Properties: map[string]*Property{
			"nodes": {Type: "array", Items: node},
			"connections": {
				Type: []string{"object", "null"},
				AdditionalProperties: &Property{
					Type:  []string{"array", "null"},
					Items: link,
				},
			},
			"settings":   {Type: []string{"object", "null"}},
			"staticData": {Type: []string{"object", "null"}},
		},
	}
}

// ValidateGraph checks a graph against GraphSchema. Nodes must be non-nil.
func ValidateGraph(graph Graph) error {
	for i, node := range graph.Nodes {
		if node == nil {
			return fmt.Errorf("%w: node %d is empty", ErrInvalidGraph, i)
		}
	}

	if graph.Nodes == nil {
		graph.Nodes = []*Node{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(GraphSchema()),
		gojsonschema.NewGoLoader(graph),
	)
	if err != nil {
		return fmt.Errorf("failed to validate graph: %w", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			messages = append(messages, resultErr.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidGraph, strings.Join(messages, "; "))
	}

	return nil
}
