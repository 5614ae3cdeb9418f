package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/v2/list"
	"github.com/charmbracelet/bubbles/v2/spinner"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/spf13/cobra"

	"evmnorm/internal/evmnorm/styles"
	"evmnorm/internal/pipeline"
	"evmnorm/internal/ui/colorize"
	"evmnorm/internal/vector"
)

type viewMode int

const (
	viewSummary viewMode = iota
	viewDims
	viewListing
)

// dimItem is one non-zero vector dimension.
type dimItem struct {
	name  string
	value float64
}

func (i dimItem) Title() string       { return i.name }
func (i dimItem) Description() string { return "" }
func (i dimItem) FilterValue() string { return i.name }

type dimDelegate struct{}

func (d dimDelegate) Height() int                               { return 1 }
func (d dimDelegate) Spacing() int                              { return 0 }
func (d dimDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d dimDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(dimItem)
	if !ok {
		return
	}

	indicator := " "
	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	if index == m.Index() {
		indicator = ">"
		nameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	}
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("81"))

	// Bar scaled to the [0,1] range of a dimension
	bar := strings.Repeat("█", int(i.value*20+0.5))
	fmt.Fprintf(w, " %s  %-28s %s %s",
		indicator,
		nameStyle.Render(i.name),
		valueStyle.Render(fmt.Sprintf("%.4f", i.value)),
		lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render(bar))
}

type inspectModel struct {
	viewport    viewport.Model
	listingView viewport.Model
	dimsList    list.Model
	spinner     spinner.Model
	mode        viewMode
	pipe        *pipeline.Pipeline
	name        string
	hex         string
	analysis    *pipeline.Analysis
	err         error
	loading     bool
	width       int
	height      int
}

type analysisMsg struct {
	analysis *pipeline.Analysis
	err      error
}

func analyzeCmd(p *pipeline.Pipeline, hex string) tea.Cmd {
	return func() tea.Msg {
		a, err := p.Analyze(hex)
		return analysisMsg{analysis: a, err: err}
	}
}

func newInspectModel(p *pipeline.Pipeline, name, hex string) inspectModel {
	vp := viewport.New()
	vp.SetWidth(80)
	vp.SetHeight(24)

	lvp := viewport.New()
	lvp.SetWidth(80)
	lvp.SetHeight(24)

	dims := list.New([]list.Item{}, dimDelegate{}, 80, 24)
	dims.SetShowStatusBar(false)
	dims.SetFilteringEnabled(true)
	dims.Title = "Dimensions"
	dims.Styles.Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		MarginLeft(2)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))

	m := inspectModel{
		viewport:    vp,
		listingView: lvp,
		dimsList:    dims,
		spinner:     s,
		pipe:        p,
		name:        name,
		hex:         hex,
		loading:     true,
		width:       80,
		height:      24,
	}
	m.updateContent()
	return m
}

func (m inspectModel) Init() tea.Cmd {
	return tea.Batch(analyzeCmd(m.pipe, m.hex), m.spinner.Tick)
}

func (m inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case analysisMsg:
		m.loading = false
		m.analysis, m.err = msg.analysis, msg.err
		if m.analysis != nil {
			m.dimsList.SetItems(dimItems(m.analysis.Vector))
			m.dimsList.Title = fmt.Sprintf("Dimensions (%d non-zero of %d)", len(m.dimsList.Items()), vector.Dimensions)
			listing, _ := colorize.ColorizeListing(m.analysis.Program.String())
			m.listingView.SetContent(listing)
		}
		m.updateContent()
		return m, nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		if m.loading {
			m.updateContent()
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		if msg.Width != m.width || msg.Height != m.height {
			m.width = msg.Width
			m.height = msg.Height
			m.viewport.SetWidth(msg.Width)
			m.viewport.SetHeight(msg.Height - 2)
			m.listingView.SetWidth(msg.Width)
			m.listingView.SetHeight(msg.Height - 2)
			m.dimsList.SetWidth(msg.Width)
			m.dimsList.SetHeight(msg.Height - 2)
			m.updateContent()
		}

	case tea.KeyMsg:
		// Let the list consume keys while its filter is open
		if m.mode == viewDims && m.dimsList.FilterState() == list.Filtering {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			break
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			if m.analysis != nil {
				m.mode = (m.mode + 1) % 3
			}
			return m, nil
		case "s":
			m.mode = viewSummary
			return m, nil
		case "v":
			if m.analysis != nil {
				m.mode = viewDims
			}
			return m, nil
		case "l":
			if m.analysis != nil {
				m.mode = viewListing
			}
			return m, nil
		}
	}

	switch m.mode {
	case viewDims:
		m.dimsList, cmd = m.dimsList.Update(msg)
	case viewListing:
		m.listingView, cmd = m.listingView.Update(msg)
	default:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m inspectModel) View() string {
	var content, menu string
	switch m.mode {
	case viewDims:
		content = m.dimsList.View()
		menu = " S: summary • L: listing • /: filter • Tab: cycle • Q: quit "
	case viewListing:
		content = m.listingView.View()
		menu = " S: summary • V: vector • Tab: cycle • Q: quit "
	default:
		content = m.viewport.View()
		if m.analysis != nil {
			menu = " V: vector • L: listing • Tab: cycle • Q: quit "
		} else {
			menu = " Q: quit "
		}
	}

	menuStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1).
		Width(m.width)

	return content + "\n" + menuStyle.Render(menu)
}

func (m *inspectModel) updateContent() {
	var markdown string
	switch {
	case m.loading:
		markdown = fmt.Sprintf("# %s\n\n%s Analyzing...", m.name, m.spinner.View())
	case m.err != nil:
		markdown = fmt.Sprintf("# %s\n\n**error:** %s", m.name, m.err)
	default:
		markdown = summaryMarkdown(m.name, pipeline.NewResult(m.analysis))
	}

	width := m.width
	if width == 0 {
		width = 80
	}
	renderer, err := styles.GetMarkdownRenderer(width - 2)
	if err != nil {
		m.viewport.SetContent(markdown)
		return
	}
	rendered, _ := renderer.Render(markdown)
	m.viewport.SetContent(strings.TrimSuffix(rendered, "\n"))
}

// summaryMarkdown renders the headline facts of an analysis.
func summaryMarkdown(name string, r *pipeline.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(name))
	sb.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&sb, "| instructions | %d |\n", len(r.Instructions))
	fmt.Fprintf(&sb, "| size | %s |\n", r.Features.Structural.CodeSizeBucket)
	fmt.Fprintf(&sb, "| metadata stripped | %d bytes |\n", r.MetadataStripped)
	fmt.Fprintf(&sb, "| dropped JUMPDESTs | %d |\n", r.DroppedJumpDests)
	fmt.Fprintf(&sb, "| truncated | %t |\n", r.Truncated)
	fmt.Fprintf(&sb, "| selectors | %d |\n", r.Features.Structural.SelectorDispatchCount)
	fmt.Fprintf(&sb, "| basic blocks | %d |\n", r.Features.ControlFlow.BasicBlocks)
	fmt.Fprintf(&sb, "| storage touches | %d |\n", r.Features.DataFlow.StorageTouches)
	fmt.Fprintf(&sb, "| external calls | %d |\n", r.Features.DataFlow.ExternalCalls)
	if r.Metadata != nil {
		fmt.Fprintf(&sb, "| metadata | %s |\n", describeSpan(r.Metadata))
	}
	bc := r.NormalizedBytecode
	if len(bc) > 66 {
		bc = bc[:64] + "…"
	}
	fmt.Fprintf(&sb, "\n```\n%s\n```\n", bc)
	return sb.String()
}

func dimItems(v vector.Vector) []list.Item {
	items := make([]list.Item, 0, 32)
	for i, name := range vector.Names() {
		if v[i] != 0 {
			items = append(items, dimItem{name: name, value: v[i]})
		}
	}
	return items
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <bytecode>",
	Short: "Browse the analysis of one program interactively",
	Example: `
# Open the viewer on a file
evmnorm inspect @Token.bin
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		hex, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}

		if !interactive() {
			res, err := a.pipe.Normalize(hex)
			if err != nil {
				return err
			}
			printf(cmd, "%s", summaryMarkdown(inputName(args[0]), res))
			return nil
		}

		program := tea.NewProgram(
			newInspectModel(a.pipe, inputName(args[0]), hex),
			tea.WithAltScreen(),
			tea.WithContext(cmd.Context()),
		)
		if _, err := program.Run(); err != nil {
			slog.Error("TUI run error", "error", err)
			return fmt.Errorf("TUI error: %v", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
