package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/net/websocket"

	"github.com/jwebster45206/npc-engine/pkg/chat"
	"github.com/jwebster45206/npc-engine/pkg/npc"
)

const (
	PlaceHolderText = "Type your message here..."
	NewCharacter    = "+ Create a new character"
)

// personaFields are the prompts of the new character form, in order.
var personaFields = []string{"Name", "Background", "Behavior"}

type entryKind int

const (
	entryUser entryKind = iota
	entryDialogue
	entryAction
	entryError
)

type chatEntry struct {
	kind entryKind
	note chat.Notification
	text string
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *http.Client
	conn         *websocket.Conn
	sessionID    string
	persona      npc.Persona
	history      []chatEntry
	lastAction   *chat.Notification
	turns        int
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	loading      bool
	disconnected bool

	// Character selection state
	showAvatarModal bool
	avatars         []npc.Persona
	selectedAvatar  int
	loadingAvatars  bool

	// New character form state
	showPersonaForm bool
	formStep        int
	draft           npc.Persona

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type avatarsLoadedMsg struct {
	avatars []npc.Persona
	err     error
}

type sessionReadyMsg struct {
	persona   npc.Persona
	sessionID string
	conn      *websocket.Conn
	err       error
}

type notificationMsg struct {
	note chat.Notification
}

type disconnectedMsg struct {
	err error
}

type sendFailedMsg struct {
	err error
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	actionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")). // green
			Italic(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = chat.MaxMessageLength
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:          cfg,
		client:          client,
		textarea:        ta,
		chatViewport:    chatVp,
		metaViewport:    metaVp,
		showAvatarModal: true,
		loadingAvatars:  true,
	}
}

func writeMetadata(m *ConsoleUI) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("SESSION") + "\n\n")

	content.WriteString("Session ID:\n")
	content.WriteString(shortID(m.sessionID) + "\n\n")

	content.WriteString("Character:\n")
	content.WriteString(m.persona.Name + "\n\n")

	content.WriteString("Turns:\n")
	content.WriteString(fmt.Sprintf("%d\n\n", m.turns))

	content.WriteString("Last Action:\n")
	if m.lastAction != nil {
		content.WriteString(fmt.Sprintf("%s %s\n", m.lastAction.Command, m.lastAction.Target))
		content.WriteString(fmt.Sprintf("(%s)\n", m.lastAction.Animation))
	} else {
		content.WriteString("None\n")
	}

	if m.disconnected {
		content.WriteString("\n" + errorStyle.Render("Disconnected") + "\n")
	}

	content.WriteString("\n")
	content.WriteString("Commands:\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• /help: Help\n")
	content.WriteString("• /persona: Character\n")

	return content.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

// writeChatContent builds the chat content from the history for the current viewport width
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6 // Account for left(3) + right(3) padding

	var content strings.Builder
	content.WriteString(titleStyle.Render("NPC ENGINE") + "\n\n")
	content.WriteString(fmt.Sprintf("You are talking with %s.\n", m.persona.Name))
	content.WriteString("Type your messages below and press Enter.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", max(chatWidth-6, 1))) + "\n\n")

	for _, e := range m.history {
		content.WriteString(formatEntry(e, m.persona.Name, chatWidth) + "\n\n")
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func formatEntry(e chatEntry, speaker string, width int) string {
	switch e.kind {
	case entryUser:
		return userStyle.Render("You: ") + wordwrap.String(e.text, max(width-6, 10))
	case entryDialogue:
		prefix := speaker + ": "
		return speakerStyle.Render(prefix) + wordwrap.String(e.note.Message, max(width-len(prefix), 10))
	case entryAction:
		line := fmt.Sprintf("* %s %s %s (%s)", speaker, strings.ToLower(e.note.Command), e.note.Target, e.note.Animation)
		return actionStyle.Render(wordwrap.String(line, max(width, 10)))
	default:
		return errorStyle.Render(wordwrap.String(e.note.Message, max(width, 10)))
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.loadAvatars()
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Quit modal takes keys; async results still land underneath it.
	if m.showQuitModal {
		switch msg.(type) {
		case tea.KeyMsg, tea.WindowSizeMsg:
			return m.updateQuitModal(msg)
		}
	}

	if m.showAvatarModal || m.showPersonaForm {
		return m.updateSelection(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.textarea, tiCmd = m.textarea.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(tiCmd, vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.writeChatContent()
		m.metaViewport.SetContent(writeMetadata(&m))

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading || m.disconnected {
				return m, nil
			}

			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}

			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}

			m.textarea.Reset()
			m.loading = true
			m.progressTick = 0
			m.history = append(m.history, chatEntry{kind: entryUser, text: input})
			m.writeChatContent()

			return m, tea.Batch(sendMessage(m.conn, input), progressTick())
		}

	case notificationMsg:
		switch msg.note.Type {
		case chat.NotificationDialogue:
			m.loading = false
			m.turns++
			m.history = append(m.history, chatEntry{kind: entryDialogue, note: msg.note})
		case chat.NotificationAction:
			note := msg.note
			m.lastAction = &note
			m.history = append(m.history, chatEntry{kind: entryAction, note: note})
		default:
			m.loading = false
			m.history = append(m.history, chatEntry{kind: entryError, note: msg.note})
		}
		m.writeChatContent()
		m.metaViewport.SetContent(writeMetadata(&m))
		return m, waitForNotification(m.conn)

	case sendFailedMsg:
		m.loading = false
		m.history = append(m.history, chatEntry{
			kind: entryError,
			note: chat.ErrorNotification("Error: " + msg.err.Error()),
		})
		m.writeChatContent()

	case disconnectedMsg:
		m.loading = false
		m.disconnected = true
		m.err = msg.err
		m.history = append(m.history, chatEntry{
			kind: entryError,
			note: chat.ErrorNotification("Connection to the character was lost."),
		})
		m.writeChatContent()
		m.metaViewport.SetContent(writeMetadata(&m))

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

// layout sizes the panels for the current window.
func (m *ConsoleUI) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6
	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	cmd := strings.ToLower(strings.TrimSpace(input))

	switch cmd {
	case "/help":
		helpText := `
Commands:
• /help - Show this help
• /persona - Show the character sheet
• Ctrl+C - End the conversation

How to play:
• Talk to the character and press Enter
• The character may move, pick things up, or change the world
• Actions are shown in green below the reply
`
		currentContent := m.chatViewport.View()
		m.chatViewport.SetContent(currentContent + titleStyle.Render("Help:") + helpText + "\n")
		m.chatViewport.GotoBottom()

	case "/persona":
		width := max(m.chatViewport.Width-6, 10)
		var sheet strings.Builder
		sheet.WriteString(titleStyle.Render(m.persona.Name) + "\n")
		sheet.WriteString(wordwrap.String("Background: "+m.persona.Background, width) + "\n")
		sheet.WriteString(wordwrap.String("Behavior: "+m.persona.Behavior, width) + "\n\n")

		currentContent := m.chatViewport.View()
		m.chatViewport.SetContent(currentContent + sheet.String())
		m.chatViewport.GotoBottom()
	}

	m.textarea.Reset()
	return m, nil
}

func (m ConsoleUI) loadAvatars() tea.Cmd {
	return func() tea.Msg {
		avatars, err := listAvatars(m.client, m.config.APIBaseURL)
		return avatarsLoadedMsg{avatars, err}
	}
}

// startSession initializes the character and opens its socket.
func (m ConsoleUI) startSession(p npc.Persona) tea.Cmd {
	return func() tea.Msg {
		resp, err := initializeNPC(m.client, m.config.APIBaseURL, InitializeRequest{
			Name:           p.Name,
			Background:     p.Background,
			Behavior:       p.Behavior,
			StoryFilePath:  m.config.StoryFile,
			CSharpFilePath: m.config.ScriptFile,
		})
		if err != nil {
			return sessionReadyMsg{err: err}
		}
		conn, err := dialSession(m.config.APIBaseURL, resp.SessionID)
		if err != nil {
			return sessionReadyMsg{err: err}
		}
		return sessionReadyMsg{persona: p, sessionID: resp.SessionID, conn: conn}
	}
}

func waitForNotification(conn *websocket.Conn) tea.Cmd {
	return func() tea.Msg {
		var frame string
		if err := websocket.Message.Receive(conn, &frame); err != nil {
			return disconnectedMsg{err}
		}
		return notificationMsg{parseFrame(frame)}
	}
}

func sendMessage(conn *websocket.Conn, text string) tea.Cmd {
	return func() tea.Msg {
		if err := websocket.Message.Send(conn, text); err != nil {
			return sendFailedMsg{fmt.Errorf("failed to send message: %w", err)}
		}
		return nil
	}
}

func (m ConsoleUI) updateSelection(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case avatarsLoadedMsg:
		m.loadingAvatars = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.avatars = msg.avatars
		}

	case sessionReadyMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.persona = msg.persona
		m.sessionID = msg.sessionID
		m.conn = msg.conn
		m.showAvatarModal = false
		m.showPersonaForm = false
		m.layout()
		m.textarea.Reset()
		m.textarea.Placeholder = PlaceHolderText
		m.textarea.Focus()
		m.writeChatContent()
		m.metaViewport.SetContent(writeMetadata(&m))
		m.ready = true
		return m, tea.Batch(textarea.Blink, waitForNotification(m.conn))

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			m.showQuitModal = true
			return m, nil
		}
		if m.loadingAvatars || m.loading {
			return m, nil
		}
		if m.showPersonaForm {
			return m.updatePersonaForm(msg)
		}

		// The create option follows the saved characters.
		switch msg.Type {
		case tea.KeyUp:
			if m.selectedAvatar > 0 {
				m.selectedAvatar--
			}
		case tea.KeyDown:
			if m.selectedAvatar < len(m.avatars) {
				m.selectedAvatar++
			}
		case tea.KeyEnter:
			m.err = nil
			if m.selectedAvatar == len(m.avatars) {
				m.showAvatarModal = false
				m.showPersonaForm = true
				m.formStep = 0
				m.draft = npc.Persona{}
				m.textarea.Reset()
				m.textarea.Placeholder = personaFields[0]
				m.textarea.Focus()
				return m, textarea.Blink
			}
			m.loading = true
			return m, m.startSession(m.avatars[m.selectedAvatar])
		}
	}

	return m, nil
}

func (m ConsoleUI) updatePersonaForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type != tea.KeyEnter {
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd
	}

	value := strings.TrimSpace(m.textarea.Value())
	switch m.formStep {
	case 0:
		m.draft.Name = value
	case 1:
		m.draft.Background = value
	case 2:
		m.draft.Behavior = value
	}
	m.textarea.Reset()
	m.formStep++

	if m.formStep < len(personaFields) {
		m.textarea.Placeholder = personaFields[m.formStep]
		return m, nil
	}

	if err := m.draft.Validate(); err != nil {
		m.err = err
		m.formStep = 0
		m.textarea.Placeholder = personaFields[0]
		return m, nil
	}
	m.err = nil
	m.loading = true
	return m, m.startSession(m.draft)
}

// terminate asks the server to end the session before the program exits.
func (m ConsoleUI) terminate() {
	if m.conn == nil || m.disconnected {
		return
	}
	_ = websocket.Message.Send(m.conn, chat.TerminateMessage)
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			m.terminate()
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				m.terminate()
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				if m.showAvatarModal {
					return m, nil
				}
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("End Conversation?"))
	content.WriteString("\n\n")
	content.WriteString("The character will remember this conversation next time.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderAvatarModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	switch {
	case m.loadingAvatars:
		content.WriteString(modalTitleStyle.Render("Loading Characters..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Please wait while we fetch saved characters..."))
	case m.loading:
		content.WriteString(modalTitleStyle.Render("Initializing..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Waking your character up..."))
	default:
		content.WriteString(modalTitleStyle.Render("Select a Character"))
		content.WriteString("\n\n")

		options := make([]string, 0, len(m.avatars)+1)
		for _, a := range m.avatars {
			options = append(options, a.Name)
		}
		options = append(options, NewCharacter)

		for i, name := range options {
			if i == m.selectedAvatar {
				content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", name)))
			} else {
				content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", name)))
			}
			content.WriteString("\n")
		}

		if m.err != nil {
			content.WriteString("\n")
			content.WriteString(errorStyle.Render(m.err.Error()))
			content.WriteString("\n")
		}

		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderPersonaForm() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("New Character"))
	content.WriteString("\n\n")

	if m.loading {
		content.WriteString(loadingStyle.Render("Waking your character up..."))
	} else {
		filled := []string{m.draft.Name, m.draft.Background, m.draft.Behavior}
		for i := 0; i < m.formStep && i < len(personaFields); i++ {
			content.WriteString(promptStyle.Render(personaFields[i]+": ") + filled[i] + "\n")
		}
		content.WriteString("\n")
		content.WriteString(speakerStyle.Render(personaFields[min(m.formStep, len(personaFields)-1)]) + "\n")
		content.WriteString(m.textarea.View())
		if m.err != nil {
			content.WriteString("\n\n" + errorStyle.Render(m.err.Error()))
		}
		content.WriteString("\n\n")
		content.WriteString(promptStyle.Render("Enter to continue, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(70).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showAvatarModal {
		return m.renderAvatarModal()
	}
	if m.showPersonaForm {
		return m.renderPersonaForm()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar while a reply is pending
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30 // fallback before sizing
	}
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
