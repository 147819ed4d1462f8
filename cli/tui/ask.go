package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/arbelos-io/glean/types"
)

// stepLabels maps pipeline step names to display labels.
var stepLabels = map[types.StepName]string{
	types.StepFetchingSchema: "Fetching schema",
	types.StepGeneratingSQL:  "Generating SQL",
	types.StepValidating:     "Validating",
	types.StepExecuting:      "Executing",
	types.StepSummarizing:    "Summarizing",
}

// stepStatus tracks one step's lifecycle within the progress view.
// A step name can appear more than once (self-correction repeats
// generation and validation), so steps are kept as an ordered list.
type stepStatus struct {
	name      types.StepName
	done      bool
	elapsedMs int64
	detail    string
}

type eventMsg *types.EventEnvelope

type streamClosedMsg struct{}

// AskModel is a Bubble Tea model that renders a run's progress events
// as they arrive on a channel.
type AskModel struct {
	question string
	events   <-chan *types.EventEnvelope
	cancel   func()

	spinner spinner.Model
	steps   []stepStatus
	answer  string

	done     *types.DonePayload
	failed   *types.FailedPayload
	quitting bool
	width    int
}

// NewAskModel creates a progress model for one run. cancel is invoked
// when the user quits before the run finishes; it may be nil.
func NewAskModel(question string, events <-chan *types.EventEnvelope, cancel func()) AskModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = WarningStyle
	return AskModel{
		question: question,
		events:   events,
		cancel:   cancel,
		spinner:  sp,
	}
}

// Done returns the terminal done payload, if the run succeeded.
func (m AskModel) Done() *types.DonePayload { return m.done }

// Failed returns the terminal failed payload, if the run failed.
func (m AskModel) Failed() *types.FailedPayload { return m.failed }

// Answer returns the accumulated streamed answer text.
func (m AskModel) Answer() string { return m.answer }

func waitForEvent(events <-chan *types.EventEnvelope) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// Init implements tea.Model.
func (m AskModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// Update implements tea.Model.
func (m AskModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			if m.cancel != nil && m.done == nil && m.failed == nil {
				m.cancel()
			}
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m = m.applyEvent(msg)
		if m.done != nil || m.failed != nil {
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		return m, tea.Quit
	}

	return m, nil
}

func (m AskModel) applyEvent(ev *types.EventEnvelope) AskModel {
	switch ev.Type {
	case types.EventTypeStepStarted:
		if ev.Step != nil {
			m.steps = append(m.steps, stepStatus{name: ev.Step.Name})
		}
	case types.EventTypeStepCompleted:
		if ev.Step != nil {
			// Complete the most recent open entry for this step.
			for i := len(m.steps) - 1; i >= 0; i-- {
				if m.steps[i].name == ev.Step.Name && !m.steps[i].done {
					m.steps[i].done = true
					m.steps[i].elapsedMs = ev.Step.ElapsedMs
					m.steps[i].detail = ev.Step.Detail
					break
				}
			}
		}
	case types.EventTypeAnswerChunk:
		if ev.Chunk != nil {
			m.answer += ev.Chunk.Content
		}
	case types.EventTypeDone:
		m.done = ev.Done
		if m.answer == "" && ev.Done != nil {
			m.answer = ev.Done.Answer
		}
	case types.EventTypeFailed:
		m.failed = ev.Failed
	}
	return m
}

// View implements tea.Model.
func (m AskModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("glean"))
	b.WriteString("\n")
	b.WriteString(MutedStyle.Render(m.question))
	b.WriteString("\n\n")

	for _, s := range m.steps {
		label, ok := stepLabels[s.name]
		if !ok {
			label = string(s.name)
		}
		if s.done {
			line := fmt.Sprintf("%s %s", SuccessStyle.Render("✓"), label)
			if s.elapsedMs > 0 {
				line += MutedStyle.Render(fmt.Sprintf(" (%dms)", s.elapsedMs))
			}
			if s.detail != "" {
				line += MutedStyle.Render(" " + s.detail)
			}
			b.WriteString(line)
		} else {
			b.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), label))
		}
		b.WriteString("\n")
	}

	if m.answer != "" {
		b.WriteString("\n")
		b.WriteString(AnswerStyle.Render(m.answer))
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render("Press q or Ctrl+C to cancel"))
	return b.String()
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunAsk runs the progress TUI until the run finishes or the user quits.
// It returns the final model so callers can read the terminal payloads.
func RunAsk(question string, events <-chan *types.EventEnvelope, cancel func()) (AskModel, error) {
	p := tea.NewProgram(NewAskModel(question, events, cancel))
	final, err := p.Run()
	if err != nil {
		return AskModel{}, err
	}
	model, ok := final.(AskModel)
	if !ok {
		return AskModel{}, fmt.Errorf("unexpected final model type %T", final)
	}
	return model, nil
}
