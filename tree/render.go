package tree

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gitlab.com/paramountdax-exchange/genealogy_api/model"
)

var (
	matchedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7"))
	inactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2C4A54"))
	mutedStyle    = lipgloss.NewStyle().Faint(true)
)

// Render prints the expanded part of the tree, one node per line.
// Nodes with children that are collapsed or not loaded yet are marked with a "+".
func Render(t *Tree, highlight bool) string {
	if t == nil {
		return "no results\n"
	}
	var b strings.Builder
	t.Walk(func(n Node, depth int) bool {
		marker := " "
		if n.HasChildren && (!n.Expanded || !n.Loaded) {
			marker = "+"
		}
		label := fmt.Sprintf("%s (#%d)", n.Name, n.ID)
		switch {
		case highlight && n.Matched:
			label = matchedStyle.Render(label)
		case n.Status == model.MemberStatusInactive:
			label = inactiveStyle.Render(label)
		}
		stats := mutedStyle.Render(fmt.Sprintf("level %d, direct %d, network %d, earnings %d",
			n.AbsoluteLevel, n.DirectRefs, n.NetworkSize, n.Earnings))
		fmt.Fprintf(&b, "%s%s %s  %s\n", strings.Repeat("  ", depth), marker, label, stats)
		return n.Expanded
	})
	return b.String()
}
