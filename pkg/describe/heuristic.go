package describe

import (
	"fmt"
	"strings"

	"github.com/dukex/operion-marketplace/pkg/models"
)

const (
	maxListedTriggers = 2
	maxListedActions  = 3
)

// Heuristic describes a workflow from its node types alone, e.g.
// `Workflow "Backup" triggered by scheduleTrigger using httpRequest (2 nodes total)`.
func Heuristic(workflow *models.Workflow) string {
	var triggers, actions []string

	total := 0

	for _, node := range workflow.Nodes {
		if node == nil {
			continue
		}

		total++

		if node.IsTrigger() {
			triggers = append(triggers, node.ShortType())
		} else {
			actions = append(actions, node.ShortType())
		}
	}

	var b strings.Builder

	b.WriteString(`Workflow "` + workflow.Name + `"`)

	if len(triggers) > 0 {
		b.WriteString(" triggered by ")
		b.WriteString(strings.Join(triggers[:min(len(triggers), maxListedTriggers)], " and "))

		if len(triggers) > maxListedTriggers {
			b.WriteString(" and more")
		}
	}

	if len(actions) > 0 {
		b.WriteString(" using ")
		b.WriteString(strings.Join(actions[:min(len(actions), maxListedActions)], ", "))

		if len(actions) > maxListedActions {
			b.WriteString(" and more")
		}
	}

	fmt.Fprintf(&b, " (%d nodes total)", total)

	return b.String()
}
