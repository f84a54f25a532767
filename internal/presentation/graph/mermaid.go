package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/observer/pkg/domain"
)

// Overlay marks live watches on the diagram.
type Overlay struct {
	// WatchedTypes are the type names targeted by at least one watcher.
	WatchedTypes []string
}

// GenerateMermaid produces a Mermaid flowchart of the types and their relations.
// Edges are styled by relationship kind:
// - ToOne: solid arrow, labelled with the reverse accessor when one exists
// - ManyToMany: double-headed arrow
// - GenericToOne / GenericToMany: dotted arrow
// Types named in the overlay get the "watched" class.
func GenerateMermaid(schemas []domain.Schema, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, s := range schemas {
		safeID := sanitizeMermaidID(s.Name)

		var scalars []string
		for _, f := range s.Fields {
			if f.Kind == domain.Scalar {
				scalars = append(scalars, f.Name)
			}
		}
		if len(scalars) > 0 {
			fmt.Fprintf(&sb, "    %s[\"%s <br/> %s\"]\n", safeID, s.Name, strings.Join(scalars, ", "))
		} else {
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", safeID, s.Name)
		}

		for _, f := range s.Fields {
			if edge := relationEdge(s.Name, f); edge != "" {
				sb.WriteString(edge)
			}
		}
	}

	if overlay != nil && len(overlay.WatchedTypes) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef watched fill:#ffeb3b,stroke:#fbc02d,stroke-width:2px,color:#000;\n")

		seen := make(map[string]bool)
		watched := append([]string(nil), overlay.WatchedTypes...)
		sort.Strings(watched)
		for _, name := range watched {
			safeID := sanitizeMermaidID(name)
			if safeID == "" || seen[safeID] {
				continue
			}
			seen[safeID] = true
			fmt.Fprintf(&sb, "    class %s watched;\n", safeID)
		}
	}

	return sb.String()
}

func relationEdge(owner string, f domain.Field) string {
	from := sanitizeMermaidID(owner)
	label := f.Name
	if f.RelatedName != "" {
		label = fmt.Sprintf("%s / %s", f.Name, f.RelatedName)
	}
	label = strings.ReplaceAll(label, "\"", "'")

	switch f.Kind {
	case domain.ToOne:
		if f.Unique {
			label += " (1:1)"
		}
		return fmt.Sprintf("    %s -- \"%s\" --> %s\n", from, label, sanitizeMermaidID(f.Target))
	case domain.ManyToMany:
		return fmt.Sprintf("    %s <-- \"%s\" --> %s\n", from, label, sanitizeMermaidID(f.Target))
	case domain.GenericToOne:
		return fmt.Sprintf("    %s -. \"%s (%s, %s)\" .-> any((\"*\"))\n", from, label, f.TypeField, f.IDField)
	case domain.GenericToMany:
		return fmt.Sprintf("    %s -. \"%s\" .-> %s\n", from, label, sanitizeMermaidID(f.Target))
	}
	return ""
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
