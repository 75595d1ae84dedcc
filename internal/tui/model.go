package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"farmcopilot/internal/httpapi"
	"farmcopilot/internal/service"
)

const (
	Greeting         = "Hello! Please upload a document to begin."
	NoDocument       = "No document uploaded."
	uploadCommand    = "/upload"
	requestTimeout   = 2 * time.Minute
	inputPlaceholder = "Ask a question about your document, or /upload <path>"
	pendingAnswer    = "Generating answer..."
	pendingUpload    = "Uploading document..."
)

// ChatPort is the TUI-facing subset of the HTTP client.
type ChatPort interface {
	Chat(ctx context.Context, message string) (httpapi.ChatResponse, error)
	Upload(ctx context.Context, path string) (service.UploadSummary, error)
}

type role int

const (
	roleAssistant role = iota
	roleUser
	roleError
)

type message struct {
	role    role
	content string
	sources []service.Source
	query   string
}

type answerMsg struct {
	question string
	resp     httpapi.ChatResponse
	err      error
}

type uploadMsg struct {
	summary service.UploadSummary
	err     error
}

// Model is the Bubble Tea model for the chat client.
type Model struct {
	client       ChatPort
	input        textinput.Model
	viewport     viewport.Model
	spinner      spinner.Model
	messages     []message
	uploadStatus string
	loading      bool
	pending      string // label for the in-flight request
	ready        bool
}

func New(client ChatPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = inputPlaceholder
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		client:       client,
		input:        ti,
		viewport:     viewport.New(0, 0),
		spinner:      sp,
		messages:     []message{{role: roleAssistant, content: Greeting}},
		uploadStatus: NoDocument,
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := historyBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header + upload status, loading line, input box
		m.viewport.Width = max(20, msg.Width-4)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.Type {
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.loading = false
		if msg.err != nil {
			m.messages = append(m.messages, message{role: roleError, content: "Error: " + msg.err.Error()})
		} else {
			m.messages = append(m.messages, message{role: roleAssistant, content: msg.resp.Response, sources: msg.resp.Sources, query: msg.question})
		}
		m.refresh()
		return m, nil

	case uploadMsg:
		m.loading = false
		if msg.err != nil {
			m.uploadStatus = "Upload failed: " + msg.err.Error()
		} else if msg.summary.Message != "" {
			m.uploadStatus = msg.summary.Message
		} else {
			m.uploadStatus = "Upload complete!"
		}
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.loading {
		return m, nil
	}
	m.input.SetValue("")
	m.loading = true

	if text == uploadCommand || strings.HasPrefix(text, uploadCommand+" ") {
		path := strings.TrimSpace(strings.TrimPrefix(text, uploadCommand))
		if path == "" {
			m.loading = false
			m.uploadStatus = "Usage: /upload <path to pdf>"
			return m, nil
		}
		m.uploadStatus = "Uploading..."
		m.pending = pendingUpload
		return m, tea.Batch(m.spinner.Tick, uploadCmd(m.client, path))
	}

	m.pending = pendingAnswer
	m.messages = append(m.messages, message{role: roleUser, content: text})
	m.refresh()
	return m, tea.Batch(m.spinner.Tick, chatCmd(m.client, text))
}

func chatCmd(c ChatPort, question string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		resp, err := c.Chat(ctx, question)
		return answerMsg{question: question, resp: resp, err: err}
	}
}

func uploadCmd(c ChatPort, path string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		sum, err := c.Upload(ctx, path)
		return uploadMsg{summary: sum, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("FarmCopilot")
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.uploadStatus)
	history := historyBoxStyle.Render(m.viewport.View())
	loading := ""
	if m.loading {
		loading = m.spinner.View() + " " + m.pending
	}
	input := inputBoxStyle.Render(m.input.View())
	return header + "\n" + status + "\n" + history + "\n" + loading + "\n" + input
}

func (m Model) renderHistory() string {
	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch msg.role {
		case roleUser:
			b.WriteString(userStyle.Render("You: ") + msg.content)
		case roleError:
			b.WriteString(errorStyle.Render(msg.content))
		default:
			b.WriteString(assistantStyle.Render("FarmCopilot: ") + msg.content)
			for j, src := range msg.sources {
				b.WriteString(fmt.Sprintf("\n  [%d] chunk %d  d=%.3f  ", j+1, src.Position, src.Distance))
				b.WriteString(sourceStyle.Render(highlightBestSentence(src.Preview, msg.query)))
			}
		}
	}
	return b.String()
}

var (
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	sourceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	highlightStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe   = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe      = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

// highlightBestSentence marks the sentence of text sharing the most words
// with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx && bestScore > 0 {
			sent = highlightStyle.Render(sent)
		}
		sentences[i] = sent
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := map[string]struct{}{}
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
