package panel

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Display draws a View. The panel never calls Render concurrently.
type Display interface {
	Render(v View) error
}

// Multi renders every view on each of its displays.
type Multi []Display

func (m Multi) Render(v View) error {
	var errs []error
	for _, d := range m {
		if err := d.Render(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	orange = lipgloss.Color("#FF9900")
	green  = lipgloss.Color("#10B981")
	red    = lipgloss.Color("#F87171")
	blue   = lipgloss.Color("#60A5FA")
	muted  = lipgloss.Color("#9CA3AF")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(orange)
	mutedStyle  = lipgloss.NewStyle().Foreground(muted)
	doneStyle   = lipgloss.NewStyle().Foreground(green).Strikethrough(true)
	activeBox   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(orange).Padding(0, 1)
	actionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#111827")).Background(orange).Padding(0, 1)

	bannerStyles = map[BannerKind]lipgloss.Style{
		BannerError:   lipgloss.NewStyle().Bold(true).Foreground(red),
		BannerInfo:    lipgloss.NewStyle().Foreground(blue),
		BannerSuccess: lipgloss.NewStyle().Foreground(green),
	}
)

// TerminalDisplay renders the panel with lipgloss styles.
type TerminalDisplay struct {
	w     io.Writer
	width int
}

func NewTerminalDisplay(w io.Writer) *TerminalDisplay {
	width := 80
	if f, ok := w.(*os.File); ok {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 20 {
			width = cols
		}
	}
	return &TerminalDisplay{w: w, width: width}
}

func (d *TerminalDisplay) Render(v View) error {
	var b strings.Builder
	header := titleStyle.Render("Console Nano")
	if v.Service != "" {
		header += mutedStyle.Render("  [" + v.Service + "]")
	}
	if v.UsingMockAI {
		header += mutedStyle.Render("  (local assistant)")
	}
	b.WriteString(header + "\n")

	if v.Banner != nil {
		b.WriteString(bannerStyles[v.Banner.Kind].Render(bannerIcon(v.Banner.Kind)+" "+v.Banner.Text) + "\n")
	}
	b.WriteString("\n")

	switch v.Screen {
	case ScreenTask:
		b.WriteString(titleStyle.Render(v.Title) + "\n\n")
		for _, s := range v.Steps {
			b.WriteString(d.step(s) + "\n")
		}
		writeExtras(&b, v)
	case ScreenComplete:
		b.WriteString(completion(v))
	default:
		b.WriteString(welcome)
	}

	b.WriteString("\n" + mutedStyle.Render(history(v)))
	_, err := fmt.Fprintln(d.w, lipgloss.NewStyle().MaxWidth(d.width).Render(b.String()))
	return err
}

func (d *TerminalDisplay) step(s StepView) string {
	line := fmt.Sprintf("%d. [%s] %s", s.Number, strings.ReplaceAll(string(s.Type), "_", " "), s.Description)
	switch s.Status {
	case StepDone:
		return doneStyle.Render("✓ " + line)
	case StepPending:
		return mutedStyle.Render("  " + line)
	}
	body := line + stepBody(s)
	if s.Action != "" {
		body += "\n" + actionStyle.Render(s.Action) + mutedStyle.Render("  /done")
	}
	return activeBox.Width(min(d.width-4, 100)).Render(body)
}

const welcome = `Tell me what you want to do in the AWS console, or ask a question.
  e.g. "create an s3 bucket", "launch an ec2 instance", "what is iam?"
`

// Text renders v without styling, for chat frontends.
func Text(v View) string {
	var b strings.Builder
	if v.Banner != nil {
		b.WriteString(bannerIcon(v.Banner.Kind) + " " + v.Banner.Text + "\n\n")
	}
	switch v.Screen {
	case ScreenTask:
		b.WriteString(v.Title + "\n\n")
		for _, s := range v.Steps {
			mark := "  "
			switch s.Status {
			case StepDone:
				mark = "✓ "
			case StepActive:
				mark = "▶ "
			}
			b.WriteString(fmt.Sprintf("%s%d. %s\n", mark, s.Number, s.Description))
			if s.Status == StepActive {
				b.WriteString(stepBody(s) + "\n")
				if s.Action != "" {
					b.WriteString("  → /done (" + s.Action + ")\n")
				}
			}
		}
		writeExtras(&b, v)
	case ScreenComplete:
		b.WriteString(completion(v))
	default:
		b.WriteString(welcome)
	}
	return strings.TrimSpace(b.String())
}

func stepBody(s StepView) string {
	var b strings.Builder
	if s.ButtonName != "" {
		fmt.Fprintf(&b, "\n   Button: %q", s.ButtonName)
	}
	if s.Details != "" {
		b.WriteString("\n   " + s.Details)
	}
	for i, e := range s.ExecutionSteps {
		fmt.Fprintf(&b, "\n   %d) %s", i+1, e)
	}
	return b.String()
}

func writeExtras(b *strings.Builder, v View) {
	if len(v.ExternalActions) > 0 {
		b.WriteString("\nOutside the console:\n")
		for _, a := range v.ExternalActions {
			fmt.Fprintf(b, "  [%s] %s\n", a.Type, a.Description)
			if a.Content != "" {
				b.WriteString(indent(a.Content, "      ") + "\n")
			}
		}
	}
	if len(v.NextTasks) > 0 {
		b.WriteString("\nAfterwards:\n")
		for i, t := range v.NextTasks {
			fmt.Fprintf(b, "  /next %d  %s\n", i+1, t)
		}
	}
}

func completion(v View) string {
	var b strings.Builder
	if v.Question != "" {
		fmt.Fprintf(&b, "Question: %s\n\nAnswer:\n%s\n", v.Question, v.Answer)
		return b.String()
	}
	b.WriteString("Task completed successfully! ✅\n")
	if v.Completed != "" {
		fmt.Fprintf(&b, "\nCompleted: %q\n", v.Completed)
	}
	if len(v.NextTasks) > 0 {
		b.WriteString("\nWhat's next?\n")
		for i, t := range v.NextTasks {
			fmt.Fprintf(&b, "  /next %d  %s\n", i+1, t)
		}
	}
	return b.String()
}

func history(v View) string {
	var b strings.Builder
	if len(v.Tasks) > 0 {
		b.WriteString("Recent tasks:\n")
		for i, t := range v.Tasks {
			fmt.Fprintf(&b, "  /rerun %d  %s (%s, %s)\n", i+1, t.Summary, t.Service, t.CompletedAt.Format("15:04"))
		}
	}
	if len(v.Questions) > 0 {
		b.WriteString("Recent questions:\n")
		for i, q := range v.Questions {
			fmt.Fprintf(&b, "  /ask %d  %s (%s)\n", i+1, q.Question, q.AskedAt.Format("15:04"))
		}
	}
	return b.String()
}

func bannerIcon(k BannerKind) string {
	switch k {
	case BannerError:
		return "⚠"
	case BannerSuccess:
		return "✓"
	}
	return "ℹ"
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}
