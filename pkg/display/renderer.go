package display

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/molstudio/molchat/pkg/chat"
)

// Renderer turns transcript state into styled console output. All methods
// are pure string producers so they test without a terminal.
type Renderer struct {
	userStyle     lipgloss.Style
	assistantTint lipgloss.Style
	analysisStyle lipgloss.Style
	stepStyle     lipgloss.Style
	artifactStyle lipgloss.Style
	errorStyle    lipgloss.Style
	abortedStyle  lipgloss.Style
	statusStyle   lipgloss.Style

	chromaFormatter chroma.Formatter
	showAnalysis    bool
}

// NewRenderer creates a renderer with terminal-friendly styling
func NewRenderer(showAnalysis bool) *Renderer {
	formatter := formatters.Get("terminal16m")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	return &Renderer{
		showAnalysis:    showAnalysis,
		chromaFormatter: formatter,

		userStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#98FB98")),

		assistantTint: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#87CEEB")),

		analysisStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true),

		stepStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")),

		artifactStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB000")),

		errorStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6347")),

		abortedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6347")),

		statusStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555")).
			Italic(true),
	}
}

// Header renders the role line that precedes a message body
func (r *Renderer) Header(msg chat.Message) string {
	switch msg.Role {
	case chat.RoleUser:
		return r.userStyle.Render("you")
	case chat.RoleAssistant:
		return r.assistantTint.Render("assistant")
	default:
		return msg.Role
	}
}

// Message renders one transcript entry: header, analysis side channel,
// content with highlighted code blocks, tool steps, artifacts and a
// terminal-status banner where applicable.
func (r *Renderer) Message(msg chat.Message, rs *chat.AgentRunState) string {
	var b strings.Builder

	b.WriteString(r.Header(msg))
	b.WriteString("\n")

	if r.showAnalysis && msg.Analysis != "" {
		b.WriteString(r.analysisStyle.Render(msg.Analysis))
		b.WriteString("\n")
	}

	if rs != nil {
		for _, step := range rs.Steps {
			b.WriteString(r.StepLine(step, rs.ElapsedSeconds))
			b.WriteString("\n")
		}
	}

	if msg.Content != "" {
		b.WriteString(r.HighlightCodeBlocks(msg.Content))
		b.WriteString("\n")
	}

	for _, artifact := range msg.Artifacts {
		b.WriteString(r.ArtifactLine(artifact))
		b.WriteString("\n")
	}

	switch msg.Status {
	case chat.StatusAborted:
		b.WriteString(r.abortedStyle.Render("[stopped]"))
		b.WriteString("\n")
	case chat.StatusError:
		b.WriteString(r.errorStyle.Render("[failed]"))
		b.WriteString("\n")
	}

	return b.String()
}

// StepLine renders one tool step with the run's elapsed seconds
func (r *Renderer) StepLine(step chat.AgentStepItem, elapsed int) string {
	name := step.Name
	if name == "" {
		name = "tool"
	}

	if step.Status == chat.StepRunning {
		return r.stepStyle.Render(fmt.Sprintf("⚙ %s ... (%ds)", name, elapsed))
	}
	return r.stepStyle.Render(fmt.Sprintf("⚙ %s done (%ds)", name, elapsed))
}

// ArtifactLine renders an artifact reference
func (r *Renderer) ArtifactLine(artifact chat.Artifact) string {
	marker := "📄"
	if artifact.IsFolder {
		marker = "📁"
	}
	return r.artifactStyle.Render(fmt.Sprintf("%s %s (%s)", marker, artifact.Path, artifact.Type))
}

// StatusLine renders the transient phase label shown while streaming
func (r *Renderer) StatusLine(phase string) string {
	if phase == "" {
		return ""
	}
	return r.statusStyle.Render("· " + phase)
}

// ErrorBanner renders the out-of-transcript error banner
func (r *Renderer) ErrorBanner(text string) string {
	if text == "" {
		return ""
	}
	return r.errorStyle.Render("error: " + text)
}

// HighlightCodeBlocks applies syntax highlighting to fenced code blocks
// and leaves the rest of the content untouched
func (r *Renderer) HighlightCodeBlocks(content string) string {
	if !strings.Contains(content, "```") {
		return content
	}

	var b strings.Builder
	rest := content
	inBlock := false
	language := ""
	var code strings.Builder

	for {
		idx := strings.Index(rest, "```")
		if idx < 0 {
			break
		}

		if !inBlock {
			b.WriteString(rest[:idx])
			rest = rest[idx+3:]
			if nl := strings.Index(rest, "\n"); nl >= 0 {
				language = strings.TrimSpace(rest[:nl])
				rest = rest[nl+1:]
			} else {
				language = strings.TrimSpace(rest)
				rest = ""
			}
			code.Reset()
			inBlock = true
			continue
		}

		code.WriteString(rest[:idx])
		rest = rest[idx+3:]
		b.WriteString(r.highlight(code.String(), language))
		inBlock = false
	}

	if inBlock {
		// Unterminated fence: highlight what we have
		code.WriteString(rest)
		b.WriteString(r.highlight(code.String(), language))
	} else {
		b.WriteString(rest)
	}

	return b.String()
}

func (r *Renderer) highlight(code, language string) string {
	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := r.chromaFormatter.Format(&buf, styles.Get("monokai"), iterator); err != nil {
		return code
	}
	return buf.String()
}
