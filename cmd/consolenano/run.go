package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rahul/consolenano/internal/background"
	"github.com/rahul/consolenano/internal/bridge"
	"github.com/rahul/consolenano/internal/browser"
	"github.com/rahul/consolenano/internal/gateway"
	"github.com/rahul/consolenano/internal/observability"
	"github.com/rahul/consolenano/internal/panel"
	"github.com/rahul/consolenano/internal/store"
	"github.com/rahul/consolenano/internal/tools"
	"github.com/rahul/consolenano/pkg/config"
)

const heartbeatInterval = 30 * time.Second

var errQuit = errors.New("quit")

func newRunCmd(root *rootOptions) *cobra.Command {
	var offline, status bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Attach to Chrome and guide console tasks from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			return runAssistant(cmd.Context(), cfg, offline, status)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "use the local oracle only")
	cmd.Flags().BoolVar(&status, "status", false, "redraw a live status line on stderr")
	return cmd
}

func runAssistant(ctx context.Context, cfg config.Config, offline, status bool) error {
	logger := observability.NewLogger(cfg.Logging, observability.NewTermWriter(os.Stderr))
	defer logger.Sync()
	observability.PrintBanner(os.Stdout)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := bridge.NewBus(logger.Logger)
	defer bus.Close()

	host := browser.NewHost(bus, cfg.Browser, logger.Logger)
	pageTool := tools.NewPageTool(host)
	eng, mock, err := newEngine(ctx, cfg, logger, offline, pageTool)
	if err != nil {
		return err
	}
	eng.Excerpter = pageTool

	st, err := store.NewSessionStore(cfg.Session.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := host.Start(ctx); err != nil {
		return err
	}
	defer host.Close()

	svc := background.NewService(bus, host, eng, st, logger)
	svc.UsingMock = mock
	defer svc.Register()()

	displays := panel.Multi{panel.NewTerminalDisplay(os.Stdout)}
	var tg *gateway.TelegramGateway
	if tgCfg, ok := cfg.GetTelegramConfig(); ok {
		tg, err = gateway.NewTelegramGateway(tgCfg.Token, tgCfg.ChatID, logger.Logger)
		if err != nil {
			return err
		}
		displays = append(displays, tg)
	}
	pnl := panel.New(bus, host, displays, cfg.Panel, logger)
	defer pnl.Register()()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return host.Run(gctx) })
	g.Go(func() error { return pnl.Run(gctx) })
	g.Go(func() error { return readInput(gctx, os.Stdin, pnl, logger, tg == nil) })
	if tg != nil {
		tg.Panel = pnl
		g.Go(func() error { return tg.Start(gctx) })
	}
	g.Go(func() error {
		heartbeat(gctx, logger, status)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	logger.Info("shutting down")
	return nil
}

// readInput feeds stdin lines to the panel. /quit ends the session, as does
// end of input when the terminal is the only frontend.
func readInput(ctx context.Context, r io.Reader, exec gateway.Executor, logger *observability.Logger, quitOnEOF bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if quitOnEOF {
					return errQuit
				}
				return nil
			}
			line = strings.TrimSpace(line)
			switch line {
			case "":
				continue
			case "/quit", "/exit":
				return errQuit
			}
			if err := exec.Execute(ctx, line); err != nil {
				logger.Debug("input failed", zap.String("line", line), zap.Error(err))
			}
		}
	}
}

func heartbeat(ctx context.Context, logger *observability.Logger, status bool) {
	beat := time.NewTicker(heartbeatInterval)
	defer beat.Stop()
	var redraw <-chan time.Time
	if status {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		redraw = t.C
	}

	frame := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-beat.C:
			observability.Heartbeat()
			logger.LogHeartbeat()
		case <-redraw:
			frame++
			observability.PrintLiveStatus(os.Stderr, frame)
		}
	}
}
