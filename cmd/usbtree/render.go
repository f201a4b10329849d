package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ardnew/usbtree/tree"
)

// Dracula palette, shared with the rest of our terminal tooling.
const (
	colorGreen   = "#50FA7B"
	colorRed     = "#FF5555"
	colorComment = "#6272A4"
	colorCyan    = "#8BE9FD"
)

// styles holds the terminal styles for one output stream.
type styles struct {
	added, removed, changed, header, iface lipgloss.Style
}

// newStyles binds styles to w so color is only emitted on terminals.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		added:   r.NewStyle().Foreground(lipgloss.Color(colorGreen)).Bold(true),
		removed: r.NewStyle().Foreground(lipgloss.Color(colorRed)).Bold(true),
		changed: r.NewStyle().Foreground(lipgloss.Color(colorCyan)),
		header:  r.NewStyle().Bold(true),
		iface:   r.NewStyle().Foreground(lipgloss.Color(colorComment)),
	}
}

// printList writes the flat device list, one device per line.
func printList(w io.Writer, st styles, devices []*tree.Device) {
	fmt.Fprintln(w, st.header.Render(fmt.Sprintf("Devices (%d)", len(devices))))
	for _, d := range devices {
		fmt.Fprintf(w, "  %s\n", d)
	}
}

// printTree writes the device hierarchy below root. Interfaces are listed
// under their parent device ahead of its children.
func printTree(w io.Writer, st styles, root *tree.Device) {
	fmt.Fprintln(w, st.header.Render("Topology"))
	for _, d := range root.Children() {
		printNode(w, st, d, 1)
	}
}

func printNode(w io.Writer, st styles, d *tree.Device, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s\n", indent, d)
	for _, i := range d.Interfaces() {
		fmt.Fprintf(w, "%s  %s\n", indent, st.iface.Render(i.String()))
	}
	for _, c := range d.Children() {
		printNode(w, st, c, depth+1)
	}
}

// formatListEvent renders one list change for watch mode.
func formatListEvent(st styles, ev tree.ListEvent) string {
	switch ev.Action {
	case tree.ListAdded:
		return st.added.Render("+") + " " + ev.Device.String()
	case tree.ListRemoved:
		return st.removed.Render("-") + " " + ev.Device.String()
	}
	return ""
}

// formatChange renders one attribute change for watch mode.
func formatChange(st styles, d *tree.Device, attr tree.Attribute) string {
	return st.changed.Render("~") + " " + d.String() + " " + st.iface.Render(attr.String())
}
