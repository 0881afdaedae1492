package panel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rahul/consolenano/internal/bridge"
)

type command struct {
	help string
	// indexed commands take a 1-based position as argument
	indexed bool
	run     func(p *Panel, ctx context.Context, i int) error
}

var commands = map[string]command{
	"/done": {help: "confirm the active step", run: func(p *Panel, ctx context.Context, _ int) error {
		return p.CompleteStep(ctx)
	}},
	"/reset": {help: "restart the current task", run: func(p *Panel, ctx context.Context, _ int) error {
		return p.Reset(ctx)
	}},
	"/home": {help: "drop the task and go back to the start", run: func(p *Panel, ctx context.Context, _ int) error {
		return p.Home(ctx)
	}},
	"/tasks": {help: "show completed tasks", run: func(p *Panel, ctx context.Context, _ int) error {
		p.refreshTasks(ctx)
		p.render()
		return nil
	}},
	"/questions": {help: "show asked questions", run: func(p *Panel, ctx context.Context, _ int) error {
		p.refreshQuestions(ctx)
		p.render()
		return nil
	}},
	"/rerun": {help: "run completed task N again", indexed: true, run: func(p *Panel, ctx context.Context, i int) error {
		v := p.View()
		if i >= len(v.Tasks) {
			return errNoEntry
		}
		return p.HandleInput(ctx, v.Tasks[i].Prompt)
	}},
	"/ask": {help: "ask question N again", indexed: true, run: func(p *Panel, ctx context.Context, i int) error {
		v := p.View()
		if i >= len(v.Questions) {
			return errNoEntry
		}
		return p.HandleInput(ctx, v.Questions[i].Question)
	}},
	"/next": {help: "start suggested task N", indexed: true, run: func(p *Panel, ctx context.Context, i int) error {
		v := p.View()
		if i >= len(v.NextTasks) {
			return errNoEntry
		}
		return p.HandleInput(ctx, v.NextTasks[i])
	}},
	"/delete-task": {help: "delete completed task N", indexed: true, run: func(p *Panel, ctx context.Context, i int) error {
		return p.history(ctx, bridge.DeleteCompletedTask, bridge.IndexRequest{Index: i})
	}},
	"/delete-question": {help: "delete question N", indexed: true, run: func(p *Panel, ctx context.Context, i int) error {
		return p.history(ctx, bridge.DeleteQuestion, bridge.IndexRequest{Index: i})
	}},
	"/clear-tasks": {help: "clear the task history", run: func(p *Panel, ctx context.Context, _ int) error {
		return p.history(ctx, bridge.ClearTaskHistory, nil)
	}},
	"/clear-questions": {help: "clear the question history", run: func(p *Panel, ctx context.Context, _ int) error {
		return p.history(ctx, bridge.ClearQuestionHistory, nil)
	}},
	"/dismiss": {help: "hide the banner", run: func(p *Panel, ctx context.Context, _ int) error {
		p.Dismiss()
		return nil
	}},
}

var errNoEntry = errors.New("no such entry")

// Execute runs a slash command, or treats line as free text.
func (p *Panel) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return p.HandleInput(ctx, line)
	}

	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])
	if name == "/help" {
		p.ShowBanner(BannerInfo, Help())
		return nil
	}
	cmd, ok := commands[name]
	if !ok {
		p.ShowBanner(BannerError, fmt.Sprintf("Unknown command %s. Try /help.", name))
		return nil
	}

	i := 0
	if cmd.indexed {
		var n int
		var err error
		if len(fields) > 1 {
			n, err = strconv.Atoi(fields[1])
		}
		if len(fields) < 2 || err != nil || n < 1 {
			p.ShowBanner(BannerError, fmt.Sprintf("Usage: %s N", name))
			return nil
		}
		i = n - 1
	}

	err := cmd.run(p, ctx, i)
	if errors.Is(err, errNoEntry) {
		p.ShowBanner(BannerError, fmt.Sprintf("%s: there is no entry %d", name, i+1))
		return nil
	}
	return err
}

// Help lists the commands.
func Help() string {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		c := commands[n]
		usage := n
		if c.indexed {
			usage += " N"
		}
		fmt.Fprintf(&b, "%-20s %s\n", usage, c.help)
	}
	return strings.TrimRight(b.String(), "\n")
}

// history sends a history edit and reloads both lists.
func (p *Panel) history(ctx context.Context, t bridge.Type, data any) error {
	var st bridge.Status
	if err := p.call(ctx, t, data, &st); err != nil {
		return err
	}
	if !st.Success {
		p.ShowBanner(BannerError, st.Error)
	}
	p.refreshTasks(ctx)
	p.refreshQuestions(ctx)
	p.render()
	return nil
}
