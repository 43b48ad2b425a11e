// Package ui holds the box drawing used by text reports
package ui

import (
	"io"
	"strings"
	"unicode/utf8"
)

// Tree hierarchy symbols using box drawing characters
const (
	TreeBranch     = "├── "
	TreeLastBranch = "└── "
	TreeContinue   = "│   " // parent has more siblings
	TreeIndent     = "    " // parent was last

	BoxTopLeft    = "┌"
	BoxBottomLeft = "└"
	BoxVertical   = "│"
	BoxHorizontal = "─"
)

// Node is one entry of a rendered tree
type Node struct {
	Label    string
	Children []*Node
}

// BuildTreePrefix generates a tree prefix based on depth, position, and parent positions
func BuildTreePrefix(depth int, isLast bool, parentIsLast []bool) string {
	if depth == 0 {
		return ""
	}

	var b strings.Builder
	for i := 0; i < depth-1; i++ {
		if i < len(parentIsLast) && parentIsLast[i] {
			b.WriteString(TreeIndent)
		} else {
			b.WriteString(TreeContinue)
		}
	}
	if isLast {
		b.WriteString(TreeLastBranch)
	} else {
		b.WriteString(TreeBranch)
	}
	return b.String()
}

// RenderTree writes every root on its own line with its descendants indented
// below it
func RenderTree(w io.Writer, roots []*Node) error {
	var b strings.Builder
	for _, root := range roots {
		b.WriteString(root.Label + "\n")
		renderChildren(&b, root.Children, 1, nil)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func renderChildren(b *strings.Builder, nodes []*Node, depth int, parentIsLast []bool) {
	for i, n := range nodes {
		last := i == len(nodes)-1
		b.WriteString(BuildTreePrefix(depth, last, parentIsLast) + n.Label + "\n")
		// The root level never draws a connector, so it is not tracked.
		renderChildren(b, n.Children, depth+1, append(parentIsLast[:len(parentIsLast):len(parentIsLast)], last))
	}
}

// SectionHeader opens a left-bordered section titled title, padding the rule
// out to width runes
func SectionHeader(title string, width int) string {
	header := BoxTopLeft + strings.Repeat(BoxHorizontal, 2) + " " + title + " "
	return header + repeatString(BoxHorizontal, max(4, width-utf8.RuneCountInString(header))) + "\n"
}

// SectionLine is one content line inside a section
func SectionLine(content string) string {
	return BoxVertical + " " + content + "\n"
}

// SectionFooter closes a section
func SectionFooter(width int) string {
	return BoxBottomLeft + repeatString(BoxHorizontal, width) + "\n"
}

func repeatString(s string, n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(s, n)
}
