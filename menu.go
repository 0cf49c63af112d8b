package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sxxw-site/sitei18n/config"
	"github.com/sxxw-site/sitei18n/i18n"
)

// menuAction is what the user picked in the interactive menu.
type menuAction int

const (
	actionNone menuAction = iota
	actionFirstIncremental
	actionFirstFull
	actionSecondIncremental
	actionSecondFull
	actionClean
	actionSort
	actionBuild
	actionStatus
	actionQuit
)

type menuItem struct {
	key    string
	action menuAction
	label  string
}

// menuState is the screen the menu is on.
type menuState int

const (
	stateChoose menuState = iota
	statePatterns
	stateIncludeBase
)

// menuChoice is the result of one menu session.
type menuChoice struct {
	action      menuAction
	patterns    string
	includeBase bool
}

var (
	menuTitleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true).MarginBottom(1)
	menuSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	menuHintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

type menuModel struct {
	info   [][2]string
	items  []menuItem
	cursor int
	state  menuState
	input  textinput.Model
	notice string
	choice menuChoice
}

func menuItems(cfg *config.Config) []menuItem {
	first := strings.Join(cfg.FirstHop, " / ")
	var skip []string
	seen := map[string]bool{}
	for _, code := range append([]string{cfg.PivotLang}, cfg.FirstHop...) {
		if !seen[code] {
			seen[code] = true
			skip = append(skip, code)
		}
	}
	excluded := strings.Join(skip, "/")
	return []menuItem{
		{"1", actionFirstIncremental, i18n.Tf("First hop (incremental): %s → %s", cfg.BaseLang, first)},
		{"2", actionFirstFull, i18n.Tf("First hop (full): %s → %s", cfg.BaseLang, first)},
		{"3", actionSecondIncremental, i18n.Tf("Second hop (incremental): %s → other languages (excluding %s)", cfg.PivotLang, excluded)},
		{"4", actionSecondFull, i18n.Tf("Second hop (full): %s → other languages (excluding %s)", cfg.PivotLang, excluded)},
		{"5", actionClean, i18n.T("Clean keys from translated files (base untouched, no sorting)")},
		{"6", actionSort, i18n.T("Sort locale files (the only option that sorts)")},
		{"7", actionBuild, i18n.T("Build the site")},
		{"8", actionStatus, i18n.T("Show translation status")},
		{"q", actionQuit, i18n.T("Quit")},
	}
}

func newMenuModel(cfg *config.Config, terms int) menuModel {
	in := textinput.New()
	in.Placeholder = "home.*, footer.copyright"
	in.Prompt = "> "
	in.CharLimit = 512
	in.Width = 60

	return menuModel{
		info: [][2]string{
			{"LANGS_FILE", cfg.LanguagesFile},
			{"locales_dir", cfg.LocalesDir},
			{"BASE", cfg.BaseLang + " (" + cfg.BaseLangName + ")"},
			{"MODEL", cfg.Provider + " " + cfg.Model},
			{"WORKERS", fmt.Sprintf("%d  (env: I18N_WORKERS)", cfg.Workers)},
			{"PROTECTED", fmt.Sprintf("%d  (%s / env: I18N_PROTECTED_TERMS)", terms, cfg.ProtectedTermsFile)},
		},
		items: menuItems(cfg),
		input: in,
	}
}

func (m menuModel) Init() tea.Cmd {
	return nil
}

func (m menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.state == statePatterns {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}
	if key.String() == "ctrl+c" {
		m.choice = menuChoice{action: actionQuit}
		return m, tea.Quit
	}

	switch m.state {
	case statePatterns:
		return m.updatePatterns(key)
	case stateIncludeBase:
		return m.updateIncludeBase(key)
	}

	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "enter", " ":
		return m.pick(m.items[m.cursor].action)
	case "esc":
		return m.pick(actionQuit)
	default:
		for i, it := range m.items {
			if key.String() == it.key {
				m.cursor = i
				return m.pick(it.action)
			}
		}
		m.notice = i18n.T("Invalid choice.")
	}
	return m, nil
}

func (m menuModel) pick(action menuAction) (tea.Model, tea.Cmd) {
	m.notice = ""
	switch action {
	case actionClean:
		m.state = statePatterns
		m.input.SetValue("")
		focus := m.input.Focus()
		return m, tea.Batch(focus, textinput.Blink)
	case actionSort:
		m.state = stateIncludeBase
		return m, nil
	}
	m.choice = menuChoice{action: action}
	return m, tea.Quit
}

func (m menuModel) updatePatterns(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "esc":
		m.state = stateChoose
		m.input.Blur()
		return m, nil
	case "enter":
		v := strings.TrimSpace(m.input.Value())
		if v == "" {
			m.notice = i18n.T("No valid keys given")
			return m, nil
		}
		m.choice = menuChoice{action: actionClean, patterns: v}
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return m, cmd
}

func (m menuModel) updateIncludeBase(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch strings.ToLower(key.String()) {
	case "esc":
		m.state = stateChoose
		return m, nil
	case "y":
		m.choice = menuChoice{action: actionSort, includeBase: true}
		return m, tea.Quit
	case "n", "enter":
		m.choice = menuChoice{action: actionSort}
		return m, tea.Quit
	}
	return m, nil
}

func (m menuModel) View() string {
	if m.choice.action != actionNone {
		return ""
	}

	var b strings.Builder
	b.WriteString(menuTitleStyle.Render("========== sitei18n =========="))
	b.WriteString("\n")
	for _, kv := range m.info {
		fmt.Fprintf(&b, "%-12s: %s\n", kv[0], kv[1])
	}
	b.WriteString(strings.Repeat("-", 32) + "\n")

	switch m.state {
	case statePatterns:
		b.WriteString(i18n.T("Keys to clean (comma-separated; prefixes like home.* or home. or home*):") + "\n")
		b.WriteString(m.input.View() + "\n")
	case stateIncludeBase:
		b.WriteString(i18n.T("Also sort the base file? (y/N)") + "\n")
	default:
		for i, it := range m.items {
			line := fmt.Sprintf("%s) %s", it.key, it.label)
			if i == m.cursor {
				line = menuSelectedStyle.Render("› " + line)
			} else {
				line = "  " + line
			}
			b.WriteString(line + "\n")
		}
	}

	if m.notice != "" {
		b.WriteString("\n" + warningStyle.Render(m.notice) + "\n")
	}
	b.WriteString("\n" + menuHintStyle.Render(i18n.T("↑/↓ or number to choose · enter to confirm · esc to go back")) + "\n")
	return b.String()
}

// ---------------------------------------------------------------------------
// Menu loop
// ---------------------------------------------------------------------------

func newMenuCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Open the interactive menu",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd.Context())
		},
	}
}

// runMenu shows the menu, runs the chosen operation and returns to the menu
// until the user quits. Operation errors are reported and do not end the
// loop; configuration errors do.
func runMenu(ctx context.Context) error {
	for {
		cfg, err := loadConfig(config.Overrides{})
		if err != nil {
			return err
		}
		terms, _ := cfg.LoadTerms()

		final, err := tea.NewProgram(newMenuModel(cfg, len(terms)), tea.WithContext(ctx)).Run()
		if err != nil {
			return err
		}
		choice := final.(menuModel).choice

		if choice.action == actionNone || choice.action == actionQuit {
			fmt.Println("Bye.")
			return nil
		}
		if err := runMenuChoice(ctx, choice); err != nil {
			logError("%v", err)
		}
	}
}

func runMenuChoice(ctx context.Context, c menuChoice) error {
	switch c.action {
	case actionFirstIncremental:
		return runTranslate(ctx, translateArgs{hop: "first", mode: "incremental"})
	case actionFirstFull:
		return runTranslate(ctx, translateArgs{hop: "first", mode: "full"})
	case actionSecondIncremental:
		return runTranslate(ctx, translateArgs{hop: "second", mode: "incremental"})
	case actionSecondFull:
		return runTranslate(ctx, translateArgs{hop: "second", mode: "full"})
	case actionClean:
		return runClean(c.patterns)
	case actionSort:
		return runSort(c.includeBase)
	case actionBuild:
		return runBuild(ctx, false, 0, false)
	case actionStatus:
		return runStatus()
	}
	return nil
}
