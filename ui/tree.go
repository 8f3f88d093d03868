package ui

import (
	"strings"
	"unicode/utf8"
)

// Tree hierarchy symbols using box drawing characters
const (
	TreeBranch     = "├── "
	TreeLastBranch = "└── "
	TreeContinue   = "│   " // Parent has more siblings below
	TreeIndent     = "    " // Parent was last

	BoxTopLeft     = "┌"
	BoxTopRight    = "┐"
	BoxBottomLeft  = "└"
	BoxBottomRight = "┘"
	BoxVertical    = "│"
	BoxHorizontal  = "─"
	BoxTeeRight    = "├"
	BoxTeeLeft     = "┤"
)

// Markers for individual expectations
const (
	MarkPassed = "✓"
	MarkFailed = "✗"
)

// Mark returns the expectation marker for passed
func Mark(passed bool) string {
	if passed {
		return MarkPassed
	}
	return MarkFailed
}

// BuildTreePrefix generates the prefix of a tree line from its depth, its
// position among its siblings and the positions of its ancestors.
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

// Box renders a titled box around lines, widening it to fit the title.
// Lines that do not fit are truncated.
func Box(title string, width int, lines ...string) string {
	var b strings.Builder
	b.WriteString(BuildBoxHeader(title, width))
	width = boxWidth(title, width)
	for _, line := range lines {
		b.WriteString(BuildBoxLine(line, width))
	}
	b.WriteString(BuildBoxFooter(width))
	return b.String()
}

func boxWidth(title string, width int) int {
	if minWidth := utf8.RuneCountInString(title) + 4; width < minWidth {
		return minWidth
	}
	return width
}

// BuildBoxHeader creates a box header with the given title and width
func BuildBoxHeader(title string, width int) string {
	width = boxWidth(title, width)
	padding := width - 4 - utf8.RuneCountInString(title)

	header := BoxTopLeft + strings.Repeat(BoxHorizontal, width-2) + BoxTopRight + "\n"
	header += BoxVertical + " " + title + strings.Repeat(" ", padding+1) + BoxVertical + "\n"
	header += BoxTeeRight + strings.Repeat(BoxHorizontal, width-2) + BoxTeeLeft + "\n"
	return header
}

// BuildBoxFooter creates a box footer with the given width
func BuildBoxFooter(width int) string {
	return BoxBottomLeft + strings.Repeat(BoxHorizontal, max(width-2, 0)) + BoxBottomRight + "\n"
}

// BuildBoxLine creates a content line within a box
func BuildBoxLine(content string, width int) string {
	contentLen := utf8.RuneCountInString(content)
	maxContentLen := width - 4

	if contentLen > maxContentLen {
		runes := []rune(content)
		content = string(runes[:max(maxContentLen-3, 0)]) + "..."
		contentLen = utf8.RuneCountInString(content)
	}

	padding := max(maxContentLen-contentLen, 0)
	return BoxVertical + " " + content + strings.Repeat(" ", padding+1) + BoxVertical + "\n"
}
