package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vocabtable/vocabtable/internal/ai"
	"github.com/vocabtable/vocabtable/internal/config"
	"github.com/vocabtable/vocabtable/internal/core"
	"github.com/vocabtable/vocabtable/internal/db"
	"github.com/vocabtable/vocabtable/internal/vocab"
)

type view int

const (
	viewTable view = iota
	viewInput
	viewLoading
)

type inputMode int

const (
	inputModeImportPath inputMode = iota
	inputModeExportPath
)

// importResultMsg carries the result of an async document import
type importResultMsg struct {
	result *core.ImportResult
	err    error
}

type model struct {
	ctx      context.Context
	table    *core.Table
	importer *core.Importer

	rows vocab.List
	row  int
	col  int

	editing bool
	editor  textinput.Model

	view      view
	input     textinput.Model
	inputMode inputMode
	spinner   spinner.Model

	status string
	err    error
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	frameStyle = lipgloss.NewStyle().
			Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	selectedStyle = cellStyle.
			Foreground(lipgloss.Color("170")).
			Bold(true).
			Reverse(true)

	editingStyle = cellStyle.
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

func initialModel(ctx context.Context, tbl *core.Table, importer *core.Importer) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	editor := textinput.New()
	editor.Prompt = ""

	m := model{
		ctx:      ctx,
		table:    tbl,
		importer: importer,
		col:      1,
		editor:   editor,
		view:     viewTable,
		input:    textinput.New(),
		spinner:  s,
	}
	m.refresh()
	return m
}

// refresh copies the table's rows and keeps the cursor inside them
func (m *model) refresh() {
	m.rows = m.table.Entries()
	if m.row >= len(m.rows) {
		m.row = len(m.rows) - 1
	}
	if m.row < 0 {
		m.row = 0
	}
}

func (m model) current() (vocab.Entry, bool) {
	if len(m.rows) == 0 {
		return vocab.Entry{}, false
	}
	return m.rows[m.row], true
}

func (m model) field() vocab.Field {
	return vocab.Columns[m.col]
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case importResultMsg:
		m.view = viewTable
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = fmt.Sprintf("Imported %d new words, skipped %d duplicates", msg.result.Added, msg.result.SkippedDuplicates)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		switch m.view {
		case viewInput:
			return m.updateInput(msg)
		case viewLoading:
			return m, nil
		}

		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateTable(msg)
	}

	if m.editing {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}
	if m.view == viewInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "up", "k":
		if m.row > 0 {
			m.row--
		}

	case "down", "j":
		if m.row < len(m.rows)-1 {
			m.row++
		}

	case "left", "h":
		if m.col > 0 {
			m.col--
		}

	case "right", "l":
		if m.col < len(vocab.Columns)-1 {
			m.col++
		}

	case "a":
		entry, err := m.table.AddEntry(m.ctx)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.status = fmt.Sprintf("Added row %s", entry.STT)
		m.refresh()
		m.row = len(m.rows) - 1

	case "enter":
		return m.beginEdit()

	case "d":
		entry, ok := m.current()
		if !ok {
			return m, nil
		}
		if err := m.table.DeleteEntry(m.ctx, entry.Key); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.status = fmt.Sprintf("Deleted %q", entry.Vocabulary)
		m.refresh()

	case "x":
		return m.openPrompt(inputModeExportPath, "Export file path (default: vocabulary_export.json)")

	case "i":
		if m.importer == nil {
			m.err = fmt.Errorf("import is disabled: ANTHROPIC_API_KEY not set")
			return m, nil
		}
		return m.openPrompt(inputModeImportPath, "Document path (PDF, DOCX or TXT)")
	}

	return m, nil
}

func (m model) beginEdit() (tea.Model, tea.Cmd) {
	entry, ok := m.current()
	if !ok || !m.field().Editable() {
		return m, nil
	}

	value, err := m.table.BeginEdit(entry.Key, m.field())
	if err != nil {
		m.err = err
		return m, nil
	}

	m.err = nil
	m.editing = true
	m.editor.SetValue(value)
	m.editor.CursorEnd()
	return m, m.editor.Focus()
}

// commit ends the edit on success. A rejected value keeps the cell open
// and shows the reason under the table.
func (m model) commit() (model, bool) {
	entry, _ := m.current()

	_, err := m.table.CommitEdit(m.ctx, entry.Key, m.field(), m.editor.Value())
	if err != nil {
		m.err = err
		return m, false
	}

	m.err = nil
	m.editing = false
	m.editor.Blur()
	m.refresh()
	return m, true
}

func (m model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m, _ = m.commit()
		return m, nil

	case "tab", "shift+tab":
		// Leaving the cell is a blur, which commits.
		var ok bool
		m, ok = m.commit()
		if ok {
			if msg.String() == "tab" && m.col < len(vocab.Columns)-1 {
				m.col++
			} else if msg.String() == "shift+tab" && m.col > 1 {
				m.col--
			}
		}
		return m, nil

	case "esc":
		entry, _ := m.current()
		m.table.CancelEdit(entry.Key)
		m.editing = false
		m.err = nil
		m.editor.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m model) openPrompt(mode inputMode, placeholder string) (tea.Model, tea.Cmd) {
	m.view = viewInput
	m.inputMode = mode
	m.input.Reset()
	m.input.Placeholder = placeholder
	m.input.Focus()
	return m, textinput.Blink
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.view = viewTable
		m.input.Blur()
		return m, nil
	case "enter":
		return m.handleInputSubmission()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) handleInputSubmission() (tea.Model, tea.Cmd) {
	inputValue := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	m.input.Blur()

	switch m.inputMode {
	case inputModeImportPath:
		m.view = viewLoading
		m.err = nil
		importer, ctx := m.importer, m.ctx
		importCmd := func() tea.Msg {
			result, err := importer.ImportDocument(ctx, inputValue)
			return importResultMsg{result: result, err: err}
		}
		return m, tea.Batch(importCmd, m.spinner.Tick)

	case inputModeExportPath:
		if inputValue == "" {
			inputValue = "vocabulary_export.json"
		}
		m.view = viewTable
		if err := m.table.Export(inputValue); err != nil {
			m.err = err
		} else {
			m.err = nil
			m.status = fmt.Sprintf("Exported %d rows to %s", len(m.rows), inputValue)
		}
	}

	return m, nil
}

func (m model) View() string {
	switch m.view {
	case viewInput:
		return m.renderInput()
	case viewLoading:
		return m.renderLoading()
	}
	return m.renderTable()
}

func (m model) renderTable() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("Vocabulary"))
	s.WriteString("\n")

	if len(m.rows) == 0 {
		s.WriteString("No words yet. Press a to add a new word.\n")
	} else {
		s.WriteString(m.buildTable().Render())
		s.WriteString("\n")
	}

	s.WriteString("\n")
	if m.err != nil {
		s.WriteString(errorStyle.Render(m.err.Error()))
	} else if m.status != "" {
		s.WriteString(successStyle.Render(m.status))
	}
	s.WriteString("\n\n")

	if m.editing {
		s.WriteString(helpStyle.Render("Enter/Tab save • Esc cancel"))
	} else {
		s.WriteString(helpStyle.Render("a add new word • Enter edit • ←↑↓→ move • d delete • x export • i import • q quit"))
	}

	return frameStyle.Render(s.String())
}

func (m model) buildTable() *table.Table {
	headers := make([]string, len(vocab.Columns))
	for i, f := range vocab.Columns {
		headers[i] = f.Title()
	}

	rows := make([][]string, len(m.rows))
	for i, e := range m.rows {
		cells := make([]string, len(vocab.Columns))
		for j, f := range vocab.Columns {
			cells[j] = e.Get(f)
		}
		if m.editing && i == m.row {
			cells[m.col] = m.editor.View()
		}
		rows[i] = cells
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == m.row && col == m.col && m.editing:
				return editingStyle
			case row == m.row && col == m.col:
				return selectedStyle
			}
			return cellStyle
		})
}

func (m model) renderLoading() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("Vocabulary"))
	s.WriteString("\n\n")
	s.WriteString(m.spinner.View())
	s.WriteString(" Extracting vocabulary with AI...")
	s.WriteString("\n\n")
	s.WriteString("This may take a moment depending on document size.")

	return frameStyle.Render(s.String())
}

func (m model) renderInput() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("Vocabulary"))
	s.WriteString("\n\n")
	s.WriteString(m.input.View())
	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Enter to submit, Esc to cancel"))

	return frameStyle.Render(s.String())
}

// newLogger sends logs to LOG_FILE; the terminal belongs to the UI
func newLogger(cfg config.Config) (*slog.Logger, io.Closer, error) {
	if cfg.LogFile == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), io.NopCloser(nil), nil
	}

	f, err := tea.LogToFile(cfg.LogFile, "vocabtable")
	if err != nil {
		return nil, nil, err
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})), f, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := newLogger(cfg)
	if err != nil {
		fmt.Printf("Error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx := context.Background()

	store, err := db.Open(ctx, cfg.StoreOptions())
	if err != nil {
		fmt.Printf("Error opening %s store: %v\n", cfg.Store, err)
		os.Exit(1)
	}
	defer store.Close()

	tbl := core.NewTable(store, core.Options{
		Logger:         logger,
		PersistDeletes: cfg.PersistDeletes,
	})
	if err := tbl.Initialize(ctx); err != nil {
		fmt.Printf("Error loading vocabulary: %v\n", err)
		os.Exit(1)
	}

	var importer *core.Importer
	if cfg.AnthropicAPIKey != "" {
		aiClient, err := ai.NewClaudeClient(cfg.AnthropicAPIKey)
		if err != nil {
			fmt.Printf("Error initializing AI client: %v\n", err)
			os.Exit(1)
		}
		importer = core.NewImporter(tbl, aiClient, cfg.Language)
	}

	p := tea.NewProgram(initialModel(ctx, tbl, importer))
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
