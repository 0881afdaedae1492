package observability

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
	colorOrange   = "\033[38;5;208m"
)

var radarFrames = []string{"◜", "◝", "◞", "◟"}

// termMu serialises terminal output between log lines and the status line.
var termMu sync.Mutex

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

type termWriter struct {
	w io.Writer
}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return tw.w.Write(p)
}

// NewTermWriter returns a writer that never interleaves with PrintLiveStatus.
func NewTermWriter(w io.Writer) io.Writer {
	return termWriter{w: w}
}

const banner = `
  ______                       __        _   __
 / ____/___  ____  _________  / /__     / | / /___ _____  ____
/ /   / __ \/ __ \/ ___/ __ \/ / _ \   /  |/ / __ ` + "`" + `/ __ \/ __ \
/ /___/ /_/ / / / (__  ) /_/ / /  __/  / /|  / /_/ / / / / /_/ /
\____/\____/_/ /_/____/\____/_/\___/  /_/ |_/\__,_/_/ /_/\____/

          >> YOUR AWS CONSOLE CO-PILOT <<
`

// PrintBanner writes the startup banner centred on the terminal width.
func PrintBanner(w io.Writer) {
	width := termWidth()
	termMu.Lock()
	defer termMu.Unlock()
	for _, l := range strings.Split(banner, "\n") {
		padding := max((width-utf8.RuneCountInString(l))/2, 0)
		fmt.Fprintf(w, "%s%s%s%s\n", strings.Repeat(" ", padding), colorOrange, l, colorReset)
	}
}

// StatusLine renders the one-line health summary: heartbeat age, phase and
// the task being worked on.
func StatusLine(now time.Time, frame int) string {
	phase, task, lastHB := GetStatus()

	pulse, pulseColor := "OFFLINE", colorNeonMag
	switch delta := now.Sub(lastHB); {
	case delta < 40*time.Second:
		pulse, pulseColor = "HEALTHY", colorNeonCyan
	case delta < 90*time.Second:
		pulse, pulseColor = "LAGGING", colorPurple
	}

	radar := " "
	if phase != PhaseIdle {
		radar = radarFrames[frame%len(radarFrames)]
	}

	display := task
	if display == "" {
		display = "Waiting..."
	}
	if utf8.RuneCountInString(display) > 25 {
		display = string([]rune(display)[:22]) + "..."
	}

	return fmt.Sprintf("[%s] %s%-7s%s | %-9s %s | %s | up %v",
		lastHB.Format("15:04:05"),
		pulseColor, pulse, colorReset,
		phase, radar,
		display,
		now.Sub(startTime).Round(time.Second),
	)
}

// PrintLiveStatus redraws the status line in place.
func PrintLiveStatus(w io.Writer, frame int) {
	line := StatusLine(time.Now(), frame)
	termMu.Lock()
	fmt.Fprintf(w, "\r\033[K%s", line)
	termMu.Unlock()
}
