package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pbaille/listkeep/internal/domain"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ADD8"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD787")).Strikethrough(true)
	pendingStyle = lipgloss.NewStyle()
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
)

func filterFor(pending, done bool) func(domain.Item) bool {
	switch {
	case pending && !done:
		return func(it domain.Item) bool { return !it.Completed }
	case done && !pending:
		return func(it domain.Item) bool { return it.Completed }
	}
	return nil
}

func renderList(w io.Writer, doc *domain.Document, keep func(domain.Item) bool) {
	d, p := doc.Stats()
	fmt.Fprintf(w, "%s  ✔ %d  • %d  Total %d\n", titleStyle.Render("List"), d, p, len(doc.Items))

	shown := 0
	for _, it := range doc.Items {
		if keep != nil && !keep(it) {
			continue
		}
		box, style := "[ ]", pendingStyle
		if it.Completed {
			box, style = "[x]", doneStyle
		}
		fmt.Fprintf(w, "%s %s %s\n", mutedStyle.Render(shortID(it.ID)), box, style.Render(truncate(it.Text, 80)))
		shown++
	}
	if shown == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no items"))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// resolveID finds the one item whose id starts with prefix
func resolveID(doc *domain.Document, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("empty id")
	}

	var found []string
	for _, it := range doc.Items {
		if it.ID == prefix {
			return it.ID, nil
		}
		if strings.HasPrefix(it.ID, prefix) {
			found = append(found, it.ID)
		}
	}

	switch len(found) {
	case 0:
		return "", fmt.Errorf("item not found: %s", prefix)
	case 1:
		return found[0], nil
	}
	return "", fmt.Errorf("id %s is ambiguous (%d items)", prefix, len(found))
}
