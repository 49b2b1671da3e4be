// internal/tui/browser.go
//
// The plugin browser. Like the rest of the bubbletea code it follows The Elm
// Architecture: Browser is the model, Update folds key and window messages
// into it, and View renders it.

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/lattice-hub/internal/feature"
	"github.com/kingrea/lattice-hub/plugins"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)
	activeMark   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD787")).Render("●")
	inactiveMark = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).Render("○")
	paneStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	typeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// pluginItem implements list.Item for one crawl record.
type pluginItem struct {
	plugin    plugins.Plugin
	activated bool
}

func (i pluginItem) Title() string {
	mark := inactiveMark
	if i.activated {
		mark = activeMark
	}
	return fmt.Sprintf("%s %s", mark, i.plugin.Name)
}

func (i pluginItem) Description() string {
	state := "installed"
	if i.activated {
		state = "activated"
	}
	return fmt.Sprintf("%s · %d features · %s", state, len(i.plugin.Features), i.plugin.Dir)
}

func (i pluginItem) FilterValue() string { return i.plugin.Name }

// Activation reports whether a plugin has a configuration record.
type Activation interface {
	ConfigFor(name string) (plugins.Config, bool)
}

// Browser lists installed plugins and shows the features of the selected one.
type Browser struct {
	project    string
	list       list.Model
	showDetail bool
	width      int
	height     int
}

// NewBrowser builds a browser over the crawl result. active may be nil, in
// which case nothing is shown as activated.
func NewBrowser(project string, installed []plugins.Plugin, active Activation) *Browser {
	items := make([]list.Item, 0, len(installed))
	for _, p := range installed {
		activated := false
		if active != nil {
			_, activated = active.ConfigFor(p.Name)
		}
		items = append(items, pluginItem{plugin: p, activated: activated})
	}
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Installed plugins"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	return &Browser{project: project, list: l}
}

// Init is called once when the program starts.
func (b *Browser) Init() tea.Cmd {
	return nil
}

// Update handles a message.
func (b *Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width = msg.Width
		b.height = msg.Height
		b.list.SetSize(b.listWidth(), max(0, msg.Height-4))
		return b, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return b, tea.Quit
		case "enter":
			b.showDetail = !b.showDetail
			b.list.SetSize(b.listWidth(), max(0, b.height-4))
			return b, nil
		case "esc":
			b.showDetail = false
			return b, nil
		}
	}

	var cmd tea.Cmd
	b.list, cmd = b.list.Update(msg)
	return b, cmd
}

// View renders the browser.
func (b *Browser) View() string {
	header := headerStyle.Render("⬡ HUB · " + b.project)
	if len(b.list.Items()) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, hintStyle.Render("No plugins installed. Press q to quit."))
	}
	body := b.list.View()
	if b.showDetail {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, b.renderDetail())
	}
	footer := hintStyle.Render("enter: features · esc: close · q: quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// Selected returns the highlighted plugin.
func (b *Browser) Selected() (plugins.Plugin, bool) {
	item, ok := b.list.SelectedItem().(pluginItem)
	if !ok {
		return plugins.Plugin{}, false
	}
	return item.plugin, true
}

func (b *Browser) listWidth() int {
	if b.showDetail {
		return max(20, b.width/2)
	}
	return b.width
}

func (b *Browser) renderDetail() string {
	p, ok := b.Selected()
	if !ok {
		return ""
	}
	return paneStyle.Width(max(20, b.width-b.listWidth()-4)).Render(DescribeFeatures(p))
}

// DescribeFeatures renders a plugin's features grouped by type, in the
// canonical type order.
func DescribeFeatures(p plugins.Plugin) string {
	if len(p.Features) == 0 {
		return p.Name + " offers no features."
	}
	byType := map[feature.Type][]string{}
	for _, f := range p.Features {
		byType[f.Type] = append(byType[f.Type], feature.Qualify(p.Name, f.Name))
	}
	var lines []string
	for _, typ := range feature.Types() {
		names := byType[typ]
		if len(names) == 0 {
			continue
		}
		lines = append(lines, typeStyle.Render(string(typ)))
		for _, name := range names {
			lines = append(lines, "  "+name)
		}
	}
	return strings.Join(lines, "\n")
}
