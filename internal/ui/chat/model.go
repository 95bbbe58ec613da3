// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/jeranaias/thicode-tui/internal/api"
	"github.com/jeranaias/thicode-tui/internal/chat"
	"github.com/jeranaias/thicode-tui/internal/logger"
	"github.com/jeranaias/thicode-tui/internal/model"
	"github.com/jeranaias/thicode-tui/internal/session"
	"github.com/jeranaias/thicode-tui/internal/ui/components"
	"github.com/jeranaias/thicode-tui/internal/ui/render"
	"github.com/jeranaias/thicode-tui/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// Focus is the pane that receives keys.
type Focus int

const (
	FocusInput   Focus = iota // Message input
	FocusSidebar              // Conversation list
)

// inputMode is what the text input is currently collecting.
type inputMode int

const (
	modeMessage inputMode = iota
	modeRename
	modeConfirmDelete
	modeFilter
)

const (
	messagePlaceholder = "Type a message..."
	newPlaceholder     = "Type the first message of a new conversation..."
	renamePlaceholder  = "New title (Enter to save, Esc to cancel)"
	filterPlaceholder  = "Filter conversations (Enter to open, Esc to clear)"

	headerHeight = 1
	inputHeight  = 2
	statusHeight = 1
)

// Options configures a chat screen.
type Options struct {
	Store    *chat.Store
	Session  *session.Manager // optional; cookies are saved on a timer
	Theme    *styles.Theme
	Switcher *styles.Switcher
	Renderer *render.Renderer
	Username string
	AIModel  string
	Offline  bool
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	store    *chat.Store
	session  *session.Manager
	theme    *styles.Theme
	switcher *styles.Switcher
	renderer *render.Renderer

	// UI Components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	keyMap   KeyMap

	// Store state, refreshed on every change notification
	state       chat.State
	changes     <-chan struct{}
	unsubscribe func()

	// Dimensions
	width  int
	height int

	focus        Focus
	mode         inputMode
	selected     int
	showArchived bool
	showHelp     bool
	target       model.ID // conversation being renamed or deleted
	filter       string   // sidebar fuzzy filter
	draft        string   // message input saved while filtering

	typingSince  time.Time
	lastCount    int
	unauthorized bool
	prompt       string // question shown in the status bar
	toasts       *components.Toasts
	toastTicking bool

	username string
	aiModel  string
	offline  bool
}

// New creates a chat screen over opts.Store.
func New(opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = messagePlaceholder
	ti.CharLimit = 8192
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = styles.DotsSpinner.Bubbles()

	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}
	ti.PromptStyle = theme.InputPrompt
	ti.PlaceholderStyle = theme.InputPlaceholder
	sp.Style = theme.Spinner

	switcher := opts.Switcher
	if switcher == nil {
		switcher = styles.NewSwitcher(styles.ModeSystem, styles.TerminalDetector)
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = render.NewRenderer(render.DefaultWidth, switcher.IsDark(), true)
	}

	changes, unsubscribe := opts.Store.Subscribe()

	return Model{
		store:       opts.Store,
		session:     opts.Session,
		theme:       theme,
		switcher:    switcher,
		renderer:    renderer,
		viewport:    vp,
		input:       ti,
		spinner:     sp,
		keyMap:      DefaultKeyMap(),
		toasts:      components.NewToasts(),
		state:       opts.Store.Snapshot(),
		changes:     changes,
		unsubscribe: unsubscribe,
		username:    opts.Username,
		aiModel:     opts.AIModel,
		offline:     opts.Offline,
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init loads the conversation list and starts the background tickers.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		m.spinner.Tick,
		waitForChange(m.changes),
		FetchConversationsCmd(m.store),
	}
	if m.session != nil {
		cmds = append(cmds, session.TickCmd())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StoreChangedMsg:
		m.syncState()
		return m, waitForChange(m.changes)

	case OpDoneMsg:
		m.noteError(msg.Err)
		if msg.Err == nil {
			return m, m.notify(components.ToastSuccess, opStatus(msg.Op))
		}
		return m, nil

	case ConversationCreatedMsg:
		return m.handleCreated(msg)

	case SendStartedMsg:
		if msg.Err != nil {
			m.noteError(msg.Err)
			return m, nil
		}
		return m, WaitSendCmd(msg.Handle)

	case SendFinishedMsg:
		if err := msg.Handle.Err(); err != nil {
			logger.L().Debug("send finished with error",
				zap.String("state", string(msg.Handle.State())),
				zap.Error(err))
		}
		return m, nil

	case ConfigChangedMsg:
		return m.handleConfigChanged(msg)

	case ClipboardMsg:
		if msg.Err != nil {
			return m, m.notify(components.ToastError, "copy failed: "+msg.Err.Error())
		}
		return m, m.notify(components.ToastSuccess, "copied last reply")

	case components.ToastTickMsg:
		if m.toasts.Tick() {
			return m, components.ToastTickCmd()
		}
		m.toastTicking = false
		return m, nil

	case session.TickMsg:
		if m.session == nil {
			return m, nil
		}
		return m, m.session.HandleTick()

	case session.AutoSaveMsg:
		if msg.Err != nil {
			logger.L().Warn("session auto-save failed", zap.Error(msg.Err))
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.state.Typing || m.state.Loading {
			m.refreshViewport()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat screen.
func (m Model) View() string {
	return m.renderChat()
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Focus returns the pane that receives keys.
func (m Model) Focus() Focus {
	return m.focus
}

// State returns the last store snapshot the screen rendered.
func (m Model) State() chat.State {
	return m.state
}

// Close stops listening for store changes.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// =============================================================================
// MESSAGE HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(m.width, m.height)
	m.layout()
	return m, nil
}

// layout sizes the viewport and input to the space the chrome leaves.
func (m *Model) layout() {
	if m.width == 0 {
		return
	}
	reserved := headerHeight + inputHeight + statusHeight
	if banner := m.renderBanner(); banner != "" {
		reserved += lipgloss.Height(banner)
	}

	m.viewport.Width = m.width - m.theme.SidebarWidth()
	if m.viewport.Width < 1 {
		m.viewport.Width = 1
	}
	m.viewport.Height = m.height - reserved
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}

	// prompt "> " plus container padding
	m.input.Width = m.width - 6
	if m.input.Width < 10 {
		m.input.Width = 10
	}

	m.renderer.SetWidth(calculateContentWidth(m.viewport.Width, 10))
	m.refreshViewport()
}

// syncState takes a fresh snapshot and keeps the selection in range.
func (m *Model) syncState() {
	wasTyping := m.state.Typing
	m.state = m.store.Snapshot()
	if m.state.Typing && !wasTyping {
		m.typingSince = time.Now()
	}
	if m.state.Error == "" {
		m.unauthorized = false
	}
	m.selected = clamp(m.selected, 0, len(m.visible())-1)
	m.layout()
}

// refreshViewport re-renders the messages, following the conversation
// when new messages arrive or the user is already at the bottom.
func (m *Model) refreshViewport() {
	follow := m.viewport.AtBottom() || len(m.state.Messages) != m.lastCount
	m.lastCount = len(m.state.Messages)
	m.viewport.SetContent(m.renderMessages())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) noteError(err error) {
	if err == nil {
		return
	}
	if api.IsUnauthorized(err) {
		m.unauthorized = true
	}
	m.layout()
}

func (m Model) handleCreated(msg ConversationCreatedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.noteError(msg.Err)
		m.input.SetValue(msg.Content)
		return m, nil
	}
	m.showArchived = false
	m.selected = 0
	m.input.Placeholder = messagePlaceholder

	// The backend may or may not record the opening message itself.
	if len(msg.Conversation.Messages) == 0 {
		return m, SendCmd(m.store, msg.Conversation.ID, msg.Content, m.aiModel)
	}
	return m, nil
}

func (m Model) handleConfigChanged(msg ConfigChangedMsg) (tea.Model, tea.Cmd) {
	cfg := msg.Config
	if cfg == nil {
		return m, nil
	}
	var cmd tea.Cmd
	if mode, err := styles.ParseMode(cfg.UI.Theme); err == nil && mode != m.switcher.Mode() {
		m.switcher.Set(mode)
		m.renderer.SetDark(m.switcher.IsDark())
		cmd = m.notify(components.ToastStatus, "theme: "+mode.String())
	}
	m.renderer.SetMarkdown(cfg.UI.Markdown)
	m.refreshViewport()
	return m, cmd
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Quit) {
		m.Close()
		return m, tea.Quit
	}

	if m.showHelp {
		if key.Matches(msg, m.keyMap.Help, m.keyMap.Dismiss) {
			m.showHelp = false
		}
		return m, nil
	}

	switch m.mode {
	case modeConfirmDelete:
		return m.handleConfirmKey(msg)
	case modeRename:
		return m.handleRenameKey(msg)
	case modeFilter:
		return m.handleFilterKey(msg)
	}

	switch {
	case key.Matches(msg, m.keyMap.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keyMap.Dismiss):
		return m.dismiss()

	case key.Matches(msg, m.keyMap.Focus):
		return m.toggleFocus(), nil

	case key.Matches(msg, m.keyMap.New):
		m.store.CloseConversation()
		m.setFocus(FocusInput)
		m.input.Placeholder = newPlaceholder
		return m, nil

	case key.Matches(msg, m.keyMap.Refresh):
		cmds := []tea.Cmd{FetchConversationsCmd(m.store)}
		if m.state.Current != nil {
			cmds = append(cmds, FetchConversationCmd(m.store, m.state.Current.ID))
		}
		return m, tea.Batch(cmds...)

	case key.Matches(msg, m.keyMap.ToggleTheme):
		mode := m.switcher.Toggle()
		m.renderer.SetDark(m.switcher.IsDark())
		m.refreshViewport()
		return m, m.notify(components.ToastStatus, "theme: "+mode.String())

	case key.Matches(msg, m.keyMap.ShowArchived):
		m.showArchived = !m.showArchived
		m.selected = 0
		return m, nil

	case key.Matches(msg, m.keyMap.Copy):
		text, ok := lastReply(m.state.Messages)
		if !ok {
			return m, m.notify(components.ToastWarning, "no reply to copy")
		}
		return m, CopyCmd(text)

	case key.Matches(msg, m.keyMap.Rename):
		return m.startRename()

	case key.Matches(msg, m.keyMap.Archive):
		conv := m.targetConversation()
		if conv == nil {
			return m, nil
		}
		if cmd, ok := m.allowWrite(); !ok {
			return m, cmd
		}
		return m, ArchiveCmd(m.store, conv)

	case key.Matches(msg, m.keyMap.Delete):
		conv := m.targetConversation()
		if conv == nil {
			return m, nil
		}
		if cmd, ok := m.allowWrite(); !ok {
			return m, cmd
		}
		m.mode = modeConfirmDelete
		m.target = conv.ID
		m.prompt = "delete \"" + conv.DisplayTitle() + "\"? (y/n)"
		return m, nil

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	case key.Matches(msg, m.keyMap.Top):
		m.viewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keyMap.Bottom):
		m.viewport.GotoBottom()
		return m, nil
	}

	if m.focus == FocusSidebar {
		return m.handleSidebarKey(msg)
	}

	if key.Matches(msg, m.keyMap.Submit) {
		return m.submit()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	visible := m.visible()
	switch {
	case key.Matches(msg, m.keyMap.Up):
		m.selected = clamp(m.selected-1, 0, len(visible)-1)
	case key.Matches(msg, m.keyMap.Down):
		m.selected = clamp(m.selected+1, 0, len(visible)-1)
	case key.Matches(msg, m.keyMap.Open):
		return m.openSelected()
	case key.Matches(msg, m.keyMap.Filter):
		return m.startFilter()
	}
	return m, nil
}

// openSelected opens the highlighted sidebar entry and moves to the input.
func (m Model) openSelected() (tea.Model, tea.Cmd) {
	visible := m.visible()
	if len(visible) == 0 {
		return m, nil
	}
	id := visible[m.selected].ID
	m.setFocus(FocusInput)
	m.input.Placeholder = messagePlaceholder
	return m, FetchConversationCmd(m.store, id)
}

// startFilter borrows the text input to type a sidebar filter. The message
// being written is kept and restored afterwards.
func (m Model) startFilter() (tea.Model, tea.Cmd) {
	m.mode = modeFilter
	m.draft = m.input.Value()
	m.input.SetValue(m.filter)
	m.input.CursorEnd()
	m.input.Placeholder = filterPlaceholder
	m.input.Focus()
	return m, nil
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filter = ""
		m.endFilter()
		m.selected = 0
		return m, nil
	case tea.KeyEnter:
		m.endFilter()
		if len(m.visible()) == 0 {
			return m, nil
		}
		next, cmd := m.openSelected()
		nm := next.(Model)
		nm.filter = ""
		nm.selected = 0
		return nm, cmd
	case tea.KeyUp:
		m.selected = clamp(m.selected-1, 0, len(m.visible())-1)
		return m, nil
	case tea.KeyDown:
		m.selected = clamp(m.selected+1, 0, len(m.visible())-1)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if q := m.input.Value(); q != m.filter {
		m.filter = q
		m.selected = 0
	}
	return m, cmd
}

// endFilter gives the input back to the message draft. The sidebar keeps
// focus and the filter stays applied.
func (m *Model) endFilter() {
	m.mode = modeMessage
	m.input.SetValue(m.draft)
	m.draft = ""
	m.input.Placeholder = messagePlaceholder
	m.input.Blur()
}

func (m Model) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Dismiss):
		m.endInputMode()
		return m, nil
	case key.Matches(msg, m.keyMap.Submit):
		title := strings.TrimSpace(m.input.Value())
		id := m.target
		m.endInputMode()
		if title == "" {
			return m, nil
		}
		return m, RenameCmd(m.store, id, title)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.target
	m.mode = modeMessage
	m.target = 0
	m.prompt = ""
	if msg.String() == "y" || msg.String() == "Y" {
		return m, DeleteCmd(m.store, id)
	}
	return m, nil
}

// =============================================================================
// ACTIONS
// =============================================================================

func (m Model) submit() (tea.Model, tea.Cmd) {
	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return m, nil
	}
	if cmd, ok := m.allowWrite(); !ok {
		return m, cmd
	}
	m.input.Reset()

	if m.state.Current == nil {
		return m, CreateConversationCmd(m.store, content, m.aiModel)
	}
	return m, SendCmd(m.store, m.state.Current.ID, content, m.aiModel)
}

func (m Model) startRename() (tea.Model, tea.Cmd) {
	conv := m.targetConversation()
	if conv == nil {
		return m, nil
	}
	if cmd, ok := m.allowWrite(); !ok {
		return m, cmd
	}
	m.mode = modeRename
	m.target = conv.ID
	m.setFocus(FocusInput)
	m.input.Placeholder = renamePlaceholder
	m.input.SetValue(conv.Title)
	m.input.CursorEnd()
	return m, nil
}

func (m *Model) endInputMode() {
	m.mode = modeMessage
	m.target = 0
	m.input.Reset()
	m.input.Placeholder = messagePlaceholder
}

func (m Model) dismiss() (tea.Model, tea.Cmd) {
	switch {
	case m.state.Error != "":
		m.store.ClearError()
	case m.toasts.DismissLatest():
	case m.filter != "":
		m.filter = ""
		m.selected = 0
	case m.focus == FocusSidebar:
		m.setFocus(FocusInput)
	}
	return m, nil
}

func (m Model) toggleFocus() Model {
	if m.focus == FocusSidebar || m.theme.SidebarWidth() == 0 {
		m.setFocus(FocusInput)
	} else {
		m.setFocus(FocusSidebar)
	}
	return m
}

func (m *Model) setFocus(f Focus) {
	m.focus = f
	if f == FocusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

// allowWrite reports whether changes can be sent. When they cannot, the
// returned command shows why.
func (m *Model) allowWrite() (tea.Cmd, bool) {
	if m.offline {
		return m.notify(components.ToastWarning, "offline: read-only"), false
	}
	return nil, true
}

// notify queues a toast and starts the expiry ticker if it is not running.
func (m *Model) notify(kind components.ToastKind, message string) tea.Cmd {
	if m.toasts.Add(kind, message) == 0 || m.toastTicking {
		return nil
	}
	m.toastTicking = true
	return components.ToastTickCmd()
}

// visible returns the sidebar's conversations, narrowed by the filter.
func (m Model) visible() []*model.Conversation {
	active, archived := model.SplitByStatus(m.state.Conversations)
	list := active
	if m.showArchived {
		list = archived
	}
	return components.FilterConversations(m.filter, list)
}

// targetConversation is the selected sidebar entry when the sidebar has
// focus, otherwise the open conversation.
func (m Model) targetConversation() *model.Conversation {
	if m.focus == FocusSidebar {
		visible := m.visible()
		if m.selected >= 0 && m.selected < len(visible) {
			return visible[m.selected]
		}
		return nil
	}
	return m.state.Current
}

func opStatus(op string) string {
	switch op {
	case "rename":
		return "renamed"
	case "delete":
		return "deleted"
	case "archive":
		return "archived"
	case "restore":
		return "restored"
	}
	return ""
}
