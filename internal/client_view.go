package internal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"leafchat/internal/domain"
	"leafchat/internal/realtime"
	"leafchat/internal/render"
)

const (
	sidebarWidth   = 26
	browserVisible = 14
)

var (
	appTitleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114")).Padding(0, 1)
	subtitleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).MarginTop(1)
	menuBoxStyle       = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("65")).Padding(1, 2).MarginTop(1)
	menuItemStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).PaddingLeft(1)
	menuHotkeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Bold(true)
	menuHintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).MarginTop(1)
	noticeBoxStyle     = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("95")).Padding(1, 2).MarginTop(1)
	alertBoxStyle      = noticeBoxStyle.Copy().BorderForeground(lipgloss.Color("160"))
	chatHeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("65")).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("109"))
	connectedStyle     = statusStyle.Copy().Foreground(lipgloss.Color("42")).Bold(true)
	connectingStyle    = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	errorStyle         = statusStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
	messageBodyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("253"))
	linkStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Underline(true)
	mediaStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("177")).Bold(true)
	messageBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(0, 1)
	sidebarBoxStyle    = messageBoxStyle.Copy().Width(sidebarWidth)
	inputBoxStyle      = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("65")).Padding(0, 1)
	timestampStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	usernameStyle      = lipgloss.NewStyle().Bold(true)
	activeUserStyle    = usernameStyle.Copy().Foreground(lipgloss.Color("114"))
	adminBadgeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	systemMessageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	sectionTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).Bold(true)
	dividerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("237")).Render(" ┃ ")
	selectedItemStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Bold(true)
	itemStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	userColorPalette   = []lipgloss.Color{
		lipgloss.Color("45"),
		lipgloss.Color("81"),
		lipgloss.Color("141"),
		lipgloss.Color("98"),
		lipgloss.Color("63"),
		lipgloss.Color("135"),
		lipgloss.Color("32"),
	}
)

func (model TUIModel) View() string {
	switch model.mode {
	case modeAuthMenu:
		return model.renderAuthMenuView()
	case modeAuthUsername, modeAuthPassword, modeAuthInvite:
		return model.renderAuthPromptView()
	case modeAlert:
		return model.renderAlertView()
	case modeProfileEdit:
		return model.renderProfileEditView()
	case modeFileBrowser:
		return model.renderFileBrowserView()
	case modeUserCard:
		return model.renderUserCardView()
	default:
		return model.renderChatView()
	}
}

func (model TUIModel) renderAuthMenuView() string {
	title := appTitleStyle.Render("leafchat")
	subtitle := subtitleStyle.Render("Invite-only chat for " + model.opts.ChannelName)

	options := []string{
		renderMenuOption("1", "Log in"),
		renderMenuOption("2", "Sign up with an invite"),
		renderMenuOption("q", "Quit"),
	}

	viewSections := []string{
		lipgloss.JoinVertical(lipgloss.Left, title, subtitle),
		menuBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, options...)),
	}

	if model.loading {
		viewSections = append(viewSections, connectingStyle.Render("Working…"))
	}
	if notices := model.renderSystemNotices(); notices != "" {
		viewSections = append(viewSections, notices)
	}

	viewSections = append(viewSections, menuHintStyle.Render("1) Log in  •  2) Sign up  •  q) Quit"))
	return lipgloss.JoinVertical(lipgloss.Left, viewSections...)
}

func (model TUIModel) renderAuthPromptView() string {
	title := "Log in"
	if model.authIntent == authIntentRegister {
		title = "Create an account"
	}
	hint := "Enter your username"
	switch model.mode {
	case modeAuthPassword:
		hint = "Enter your password"
	case modeAuthInvite:
		hint = "Paste the invite token you were given"
	}
	return model.renderPrompt(title, hint+"  •  Esc back")
}

func (model TUIModel) renderPrompt(title, hint string) string {
	header := appTitleStyle.Render(title)
	hintText := menuHintStyle.Render(hint)

	viewSections := []string{header, hintText}

	if model.loading {
		viewSections = append(viewSections, connectingStyle.Render("Working…"))
	}
	if notices := model.renderSystemNotices(); notices != "" {
		viewSections = append(viewSections, notices)
	}

	viewSections = append(viewSections, inputBoxStyle.Render(model.textInput.View()))
	return lipgloss.JoinVertical(lipgloss.Left, viewSections...)
}

func (model TUIModel) renderAlertView() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		appTitleStyle.Render("leafchat"),
		alertBoxStyle.Render(errorStyle.Render(model.alert)),
		menuHintStyle.Render("Enter to continue"),
	)
}

func (model TUIModel) renderChatView() string {
	s := model.current()

	headerSegments := []string{"leafchat", "#" + model.opts.ChannelName}
	if s.User != nil {
		name := s.User.DisplayName()
		if s.User.IsAdmin {
			name += " " + adminBadgeStyle.Render("★")
		}
		headerSegments = append(headerSegments, name)
	}
	if model.opts.ServerURL != "" {
		headerSegments = append(headerSegments, model.opts.ServerURL)
	}
	header := chatHeaderStyle.Render(strings.Join(headerSegments, dividerStyle))

	var statusLine string
	switch s.Channel {
	case realtime.StateJoined.String():
		statusLine = connectedStyle.Render("Connected")
	case realtime.StateDisconnected.String():
		statusLine = errorStyle.Render("Disconnected, reconnecting…")
	default:
		statusLine = connectingStyle.Render("Connecting…")
	}
	if model.loading {
		statusLine += connectingStyle.Render("  Working…")
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		sidebarBoxStyle.Height(model.viewport.Height).Render(model.renderRoster()),
		messageBoxStyle.Render(model.viewport.View()),
	)

	footerHint := menuHintStyle.Render("Enter send • ↑/↓ roster • Ctrl+W profile • Ctrl+O attach • Ctrl+E edit me • Ctrl+L logout • Esc quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		statusLine,
		body,
		inputBoxStyle.Render(model.textInput.View()),
		footerHint,
	)
}

func (model TUIModel) renderRoster() string {
	s := model.current()
	lines := []string{sectionTitleStyle.Render(fmt.Sprintf("Online (%d)", len(s.Online)))}

	idx := 0
	add := func(p domain.Profile, online bool) {
		label := fmt.Sprintf("%s %s", presenceDot(online), truncate(p.DisplayName(), sidebarWidth-6))
		if p.IsAdmin {
			label += adminBadgeStyle.Render(" ★")
		}
		if idx == model.rosterIndex && model.mode == modeChat {
			lines = append(lines, selectedItemStyle.Render("➤ "+label))
		} else {
			lines = append(lines, itemStyle.Render("  "+label))
		}
		idx++
	}
	for _, p := range s.Online {
		add(p, true)
	}
	lines = append(lines, "", sectionTitleStyle.Render(fmt.Sprintf("Offline (%d)", len(s.Offline))))
	for _, p := range s.Offline {
		add(p, false)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (model TUIModel) renderProfileEditView() string {
	view := model.renderPrompt("Edit profile", "Enter save • Ctrl+O choose a picture • Esc cancel")
	if u := model.current().User; u != nil {
		view = lipgloss.JoinVertical(lipgloss.Left, view,
			menuHintStyle.Render("Picture: "+linkStyle.Render(u.Avatar)))
	}
	return view
}

func (model TUIModel) renderFileBrowserView() string {
	title := "Attach a file"
	if model.pickFor == pickAvatar {
		title = "Choose a profile picture"
	}

	b := model.browser
	start := 0
	if b.cursor >= browserVisible {
		start = b.cursor - browserVisible + 1
	}
	end := min(start+browserVisible, len(b.items))

	var lines []string
	if len(b.items) == 0 {
		lines = append(lines, menuHintStyle.Render("Empty directory."))
	}
	for i := start; i < end; i++ {
		item := b.items[i]
		label := item.Name
		if item.IsDir {
			label += "/"
		} else {
			label += timestampStyle.Render("  " + formatFileSize(item.Size))
		}
		if i == b.cursor {
			lines = append(lines, selectedItemStyle.Render("➤ "+label))
		} else {
			lines = append(lines, itemStyle.Render("  "+label))
		}
	}

	viewSections := []string{
		appTitleStyle.Render(title),
		subtitleStyle.Render(b.dir),
		menuBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)),
	}
	if notices := model.renderSystemNotices(); notices != "" {
		viewSections = append(viewSections, notices)
	}
	viewSections = append(viewSections, menuHintStyle.Render("↑/↓ select • Enter open/choose • Esc cancel"))
	return lipgloss.JoinVertical(lipgloss.Left, viewSections...)
}

func (model TUIModel) renderUserCardView() string {
	if model.card == nil {
		return model.renderChatView()
	}
	p := *model.card
	role := "Member"
	if p.IsAdmin {
		role = adminBadgeStyle.Render("★ Admin")
	}
	lines := []string{
		usernameStyle.Copy().Foreground(colorForUser(p.Username)).Render(p.DisplayName()),
		timestampStyle.Render("@" + p.Username),
		"",
		"Role     " + role,
		"Picture  " + linkStyle.Render(p.Avatar()),
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		appTitleStyle.Render("Profile"),
		menuBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)),
		menuHintStyle.Render("Esc back"),
	)
}

func renderMenuOption(hotkey string, label string) string {
	key := menuHotkeyStyle.Render(hotkey)
	return lipgloss.JoinHorizontal(lipgloss.Left, key, menuItemStyle.Render(label))
}

// renderSystemNotices shows notices raised while no session is active.
func (model TUIModel) renderSystemNotices() string {
	if len(model.notices) == 0 {
		return ""
	}
	lines := make([]string, 0, len(model.notices))
	for _, n := range model.notices {
		lines = append(lines, systemMessageStyle.Render(n))
	}
	return noticeBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (model *TUIModel) renderFeed() string {
	s := model.current()
	if len(s.Messages) == 0 {
		return systemMessageStyle.Render("No messages yet. Say hi.")
	}
	lines := make([]string, 0, len(s.Messages))
	for _, m := range s.Messages {
		lines = append(lines, model.renderChatMessage(m))
	}
	return strings.Join(lines, "\n")
}

// renderChatMessage renders one feed entry: timestamp, sender, then the
// classified segments of the body.
func (model *TUIModel) renderChatMessage(m domain.Message) string {
	var prefix []string
	if !m.Timestamp.IsZero() {
		prefix = append(prefix, timestampStyle.Render(m.Timestamp.Local().Format("[15:04]")), " ")
	}
	if m.IsSystem {
		prefix = append(prefix, systemMessageStyle.Render(m.Message))
		return lipgloss.JoinHorizontal(lipgloss.Left, prefix...)
	}

	var nameStyle lipgloss.Style
	if u := model.current().User; u != nil && m.Username == u.Username {
		nameStyle = activeUserStyle
	} else {
		nameStyle = usernameStyle.Copy().Foreground(colorForUser(m.Username))
	}
	name := nameStyle.Render(m.Sender())
	if m.IsAdmin {
		name += adminBadgeStyle.Render(" ★")
	}

	var body strings.Builder
	for _, seg := range render.Message(m) {
		switch seg.Kind {
		case render.KindLink:
			body.WriteString(linkStyle.Render(seg.Text))
		case render.KindImage:
			body.WriteString("\n   " + mediaStyle.Render("[image]") + " " + linkStyle.Render(seg.Text))
		case render.KindVideo:
			body.WriteString("\n   " + mediaStyle.Render("[video]") + " " + linkStyle.Render(seg.Text))
			body.WriteString("\n   " + timestampStyle.Render("Video cannot play here, open the link above."))
		default:
			body.WriteString(messageBodyStyle.Render(strings.ReplaceAll(seg.Text, "\n", "\n   ")))
		}
	}

	prefix = append(prefix, name, ": ")
	return lipgloss.JoinHorizontal(lipgloss.Top, append(prefix, body.String())...)
}

func (model *TUIModel) syncViewport() {
	model.viewport.SetContent(model.renderFeed())
	model.viewport.GotoBottom()
}

func (model *TUIModel) resize(width, height int) {
	model.width = width
	model.height = height
	model.viewport.Width = max(width-sidebarWidth-8, 20)
	model.viewport.Height = max(height-10, 5)
	model.textInput.Width = max(width-8, 10)
	model.syncViewport()
}

func presenceDot(online bool) string {
	if online {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("●")
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("○")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func colorForUser(name string) lipgloss.Color {
	if len(userColorPalette) == 0 {
		return lipgloss.Color("249")
	}
	if name == "" {
		return userColorPalette[0]
	}
	var sum int
	for _, r := range name {
		sum += int(r)
	}
	return userColorPalette[sum%len(userColorPalette)]
}
