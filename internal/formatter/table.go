package formatter

import (
	"strings"

	"github.com/harunnryd/ignite/internal/packages"
	"github.com/harunnryd/ignite/internal/surface"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

type TableFormatter struct {
	headerStyle  lipgloss.Style
	oddRowStyle  lipgloss.Style
	evenRowStyle lipgloss.Style
	borderStyle  lipgloss.Style
}

func NewTableFormatter() *TableFormatter {
	purple := lipgloss.Color("99")
	gray := lipgloss.Color("245")
	lightGray := lipgloss.Color("241")

	return &TableFormatter{
		headerStyle: lipgloss.NewStyle().
			Foreground(purple).
			Bold(true).
			Align(lipgloss.Center).
			Padding(0, 1),
		oddRowStyle: lipgloss.NewStyle().
			Foreground(gray).
			Padding(0, 1),
		evenRowStyle: lipgloss.NewStyle().
			Foreground(lightGray).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Foreground(purple),
	}
}

func (f *TableFormatter) newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return f.headerStyle
			case row%2 == 0:
				return f.evenRowStyle
			default:
				return f.oddRowStyle
			}
		}).
		Headers(headers...)
}

func (f *TableFormatter) FormatSurfaces(surfaces []*surface.Surface) (string, error) {
	if len(surfaces) == 0 {
		return "No surfaces configured", nil
	}

	t := f.newTable("ID", "Kind", "Target")
	for _, s := range surfaces {
		target := s.Target
		if target == "" {
			target = "-"
		}
		t.Row(s.ID, string(s.Kind), truncateString(target, 50))
	}
	return t.String(), nil
}

func (f *TableFormatter) FormatPackages(pkgs []packages.Package) (string, error) {
	if len(pkgs) == 0 {
		return "No packages found", nil
	}

	t := f.newTable("Name", "Version", "File", "SHA-256", "Depends")
	for _, p := range pkgs {
		t.Row(
			p.Name,
			p.Version,
			truncateString(p.FileName, 40),
			truncateString(p.SHA256, 15),
			truncateString(strings.Join(p.Depends, ", "), 30),
		)
	}
	return t.String(), nil
}

func (f *TableFormatter) FormatBackends(backends []Backend) (string, error) {
	if len(backends) == 0 {
		return "No backends registered", nil
	}

	t := f.newTable("Backend", "Available", "Selected", "Detail")
	for _, b := range backends {
		available := "no"
		if b.Available {
			available = "yes"
		}
		selected := ""
		if b.Selected {
			selected = "*"
		}
		t.Row(b.Name, available, selected, truncateString(b.Error, 50))
	}
	return t.String(), nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
