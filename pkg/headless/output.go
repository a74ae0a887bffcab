package headless

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Output incrementally prints a streaming turn. It remembers how much of
// the analysis and content channels it has already written so repeated
// snapshots only emit the new suffix.
type Output struct {
	w            io.Writer
	showAnalysis bool
	dim          lipgloss.Style

	analysisDone int
	contentDone  int
	separated    bool
}

// NewOutput creates an output handler writing to w
func NewOutput(w io.Writer, showAnalysis bool) *Output {
	return &Output{
		w:            w,
		showAnalysis: showAnalysis,
		dim: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true),
	}
}

// Append writes whatever portion of analysis and content is new
func (o *Output) Append(analysis, content string) {
	if o.showAnalysis && len(analysis) > o.analysisDone {
		fmt.Fprint(o.w, o.dim.Render(analysis[o.analysisDone:]))
		o.analysisDone = len(analysis)
	}

	if len(content) > o.contentDone {
		if o.analysisDone > 0 && !o.separated {
			fmt.Fprint(o.w, "\n")
			o.separated = true
		}
		fmt.Fprint(o.w, content[o.contentDone:])
		o.contentDone = len(content)
	}
}

// Newline ends the streamed body if anything was printed
func (o *Output) Newline() {
	if o.contentDone > 0 || o.analysisDone > 0 {
		fmt.Fprint(o.w, "\n")
	}
}

// Line prints one trailing line, skipping empties
func (o *Output) Line(text string) {
	if text == "" {
		return
	}
	fmt.Fprintln(o.w, text)
}
