package clone

import (
	"fmt"
	"slices"

	"github.com/dukex/operion-marketplace/pkg/models"
)

// Graph returns an independent copy of a workflow graph. Node fields are copied
// directly; parameters, settings and static data go through Value. Nil nodes
// stay nil so indices match the source.
func (c *Cloner) Graph(graph models.Graph) (models.Graph, error) {
	out := models.Graph{
		Connections: Connections(graph.Connections),
	}

	if graph.Nodes != nil {
		out.Nodes = make([]*models.Node, len(graph.Nodes))

		for i, node := range graph.Nodes {
			if node == nil {
				continue
			}

			copied := *node

			params, err := c.anyMap(node.Parameters)
			if err != nil {
				return models.Graph{}, fmt.Errorf("node %q parameters: %w", node.Name, err)
			}

			copied.Parameters = params
			out.Nodes[i] = &copied
		}
	}

	settings, err := c.anyMap(graph.Settings)
	if err != nil {
		return models.Graph{}, fmt.Errorf("settings: %w", err)
	}

	staticData, err := c.anyMap(graph.StaticData)
	if err != nil {
		return models.Graph{}, fmt.Errorf("static data: %w", err)
	}

	out.Settings = settings
	out.StaticData = staticData

	return out, nil
}

func (c *Cloner) anyMap(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}

	copied, ok := c.Value(m).(map[string]any)
	if !ok || copied == nil {
		return nil, ErrSerialization
	}

	return copied, nil
}

// Connections copies a connection map. Links are plain values, so copying each
// slice is enough.
func Connections(in models.Connections) models.Connections {
	if in == nil {
		return nil
	}

	out := make(models.Connections, len(in))
	for name, links := range in {
		out[name] = slices.Clone(links)
	}

	return out
}
