package picker

import (
	"context"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var titleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#00D9FF")).
	Padding(0, 1)

type item string

func (i item) Title() string       { return string(i) }
func (i item) Description() string { return "" }
func (i item) FilterValue() string { return string(i) }

type model struct {
	list   list.Model
	choice string
	done   bool
}

func newModel(candidates []string) model {
	items := make([]list.Item, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, item(c))
	}
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false

	lst := list.New(items, delegate, 40, 12)
	lst.Title = "Select model"
	lst.Styles.Title = titleStyle
	lst.SetShowStatusBar(false)
	lst.SetShowHelp(false)
	return model{list: lst}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "esc", "q", "ctrl+c":
			m.done = true
			return m, tea.Quit
		case "enter":
			if it, ok := m.list.SelectedItem().(item); ok {
				m.choice = string(it)
			}
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.done {
		return ""
	}
	return m.list.View()
}

// TUI shows the candidates in a filterable list. Escape selects nothing.
type TUI struct {
	In  io.Reader
	Out io.Writer
}

func (t TUI) Pick(ctx context.Context, candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", nil
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if t.In != nil {
		opts = append(opts, tea.WithInput(t.In))
	}
	if t.Out != nil {
		opts = append(opts, tea.WithOutput(t.Out))
	}

	final, err := tea.NewProgram(newModel(candidates), opts...).Run()
	if err != nil {
		return "", err
	}
	return final.(model).choice, nil
}
