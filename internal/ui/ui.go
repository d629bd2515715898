package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mirrorwave/tunesync/internal/models"
	"github.com/mirrorwave/tunesync/internal/tasks"
)

// TransferRunner runs one transfer to a terminal stage, reporting progress
// through the channel. Satisfied by the transfer orchestrator.
type TransferRunner interface {
	Run(ctx context.Context, req tasks.TransferRequest, progress chan<- tasks.StageUpdate) (*tasks.TransferResult, error)
}

// LibraryLoader fetches the source library shown in the first view.
type LibraryLoader interface {
	GetLibrary(ctx context.Context) (*models.LibrarySnapshot, error)
}

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LibraryView ViewState = iota
	ConfirmView
	TransferView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx             context.Context
	view            ViewState
	library         LibraryLoader
	runner          TransferRunner
	userID          string
	destinationName string

	width  int
	height int

	itemList list.Model
	loaded   bool
	selected *libraryItem

	progressChan chan tasks.StageUpdate
	done         chan transferDoneMsg
	progress     tasks.StageUpdate
	result       *tasks.TransferResult
	err          error

	help help.Model
	keys keyMap
}

// keyMap defines the key bindings for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	enter   key.Binding
	back    key.Binding
	yes     key.Binding
	no      key.Binding
	restart key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		yes:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "no")),
		restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter},
		{k.back, k.yes, k.no},
		{k.restart, k.quit},
	}
}

type libraryFetchedMsg struct {
	snapshot *models.LibrarySnapshot
	err      error
}

type progressMsg tasks.StageUpdate

type transferDoneMsg struct {
	result *tasks.TransferResult
	err    error
}

// NewModel creates a new TUI model with the provided dependencies.
// destinationName is only used for display.
func NewModel(ctx context.Context, library LibraryLoader, runner TransferRunner, userID, destinationName string) *Model {
	return &Model{
		ctx:             ctx,
		view:            LibraryView,
		library:         library,
		runner:          runner,
		userID:          userID,
		destinationName: destinationName,
		help:            help.New(),
		keys:            newKeyMap(),
	}
}

// Init initializes the TUI by fetching the source library.
func (m *Model) Init() tea.Cmd {
	return m.fetchLibrary()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.loaded {
			m.itemList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case LibraryView:
			return m.handleLibraryKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case libraryFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		items := make([]list.Item, 0, msg.snapshot.Total())
		for _, album := range msg.snapshot.Albums {
			items = append(items, albumItem(album))
		}
		for _, playlist := range msg.snapshot.Playlists {
			items = append(items, playlistItem(playlist))
		}
		m.itemList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.itemList.Title = "Source Library"
		m.itemList.SetSize(m.width-4, m.height-8)
		m.loaded = true
		return m, nil

	case progressMsg:
		m.progress = tasks.StageUpdate(msg)
		return m, m.waitForProgress()

	case transferDoneMsg:
		m.result = msg.result
		m.err = msg.err
		m.view = ResultView
		m.progressChan = nil
		return m, nil
	}

	if m.view == LibraryView && m.loaded {
		var cmd tea.Cmd
		m.itemList, cmd = m.itemList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case LibraryView:
		return m.renderLibrary()
	case ConfirmView:
		return m.renderConfirm()
	case TransferView:
		return m.renderTransfer()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleLibraryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		if !m.loaded {
			return m, nil
		}
		if selected := m.itemList.SelectedItem(); selected != nil {
			if item, ok := selected.(libraryItem); ok {
				m.selected = &item
				m.view = ConfirmView
				return m, nil
			}
		}
	}

	if !m.loaded {
		return m, nil
	}
	var cmd tea.Cmd
	m.itemList, cmd = m.itemList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "n", "esc":
		m.view = LibraryView
		m.selected = nil
		return m, nil
	case "y":
		m.view = TransferView
		return m, m.startTransfer()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = LibraryView
		m.selected = nil
		m.result = nil
		m.err = nil
		m.progress = tasks.StageUpdate{}
		return m, nil
	}
	return m, nil
}

func (m *Model) fetchLibrary() tea.Cmd {
	return func() tea.Msg {
		snapshot, err := m.library.GetLibrary(m.ctx)
		return libraryFetchedMsg{snapshot: snapshot, err: err}
	}
}

func (m *Model) startTransfer() tea.Cmd {
	progressChan := make(chan tasks.StageUpdate, 64)
	m.progressChan = progressChan
	item := *m.selected

	done := make(chan transferDoneMsg, 1)
	go func() {
		result, err := m.runner.Run(m.ctx, tasks.TransferRequest{
			UserID:     m.userID,
			Kind:       item.kind,
			SourceID:   item.id,
			Name:       item.name,
			Artist:     item.artist,
			UPC:        item.upc,
			ArtworkURL: item.artworkURL,
		}, progressChan)
		done <- transferDoneMsg{result: result, err: err}
		close(progressChan)
	}()
	m.done = done

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan, done := m.progressChan, m.done
	return func() tea.Msg {
		if progressChan == nil {
			return transferDoneMsg{result: m.result, err: m.err}
		}

		update, ok := <-progressChan
		if !ok {
			return <-done
		}
		return progressMsg(update)
	}
}

func (m *Model) renderLibrary() string {
	if !m.loaded {
		return styles.help.Render("Loading library...")
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.itemList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Transfer '%s' to %s?", m.selected.name, m.destinationName))
	info := fmt.Sprintf("\nItem: %s (%s)\n", m.selected.name, m.selected.kind)
	if m.selected.trackCount > 0 {
		info += fmt.Sprintf("Tracks: %d\n", m.selected.trackCount)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderTransfer() string {
	title := styles.title.Render("Transferring")

	var stage string
	switch m.progress.Stage {
	case tasks.StageFetching:
		stage = "Fetching source item..."
	case tasks.StageCreating:
		stage = "Creating destination playlist..."
	case tasks.StageSearching:
		stage = "Matching items on " + m.destinationName + "..."
	case tasks.StageAdding:
		stage = "Adding matched items..."
	default:
		stage = "Working..."
	}

	return fmt.Sprintf("%s\n\n%s (%d%%)\n%s", title, stage, m.progress.Progress, m.progress.Message)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Transfer failed: %v", m.err)) + "\n\n" + helpView
	}
	if m.result == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	title := styles.ok.Render("✓ Transfer Complete")
	info := fmt.Sprintf("\n%s\n", m.result.Message)
	if m.result.Requested > 1 && m.result.Matched < m.result.Requested {
		info += styles.warn.Render(fmt.Sprintf("%d items had no match\n", m.result.Requested-m.result.Matched))
	}

	return fmt.Sprintf("%s%s\n%s", title, info, helpView)
}
