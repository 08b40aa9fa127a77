package buildlog

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Width of the separator printed before each stage's script.
const ruleWidth = 80

var (
	ruleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	scriptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
)

// Writes stage separators, scripts and command output.
//
// Every call issues a single write to the underlying stream, which is never
// buffered. Safe for concurrent use.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// Creates a console writing to w.
func NewConsole(w io.Writer, color bool) *Console {
	return &Console{w: w, color: color}
}

// Prints a horizontal separator.
func (c *Console) Rule() {
	c.write(c.style(ruleStyle, strings.Repeat("=", ruleWidth)))
}

// Echoes a script, line by line.
func (c *Console) Script(script string) {
	script = strings.TrimRight(script, "\n")
	lines := strings.Split(script, "\n")
	for i, line := range lines {
		lines[i] = c.style(scriptStyle, line)
	}
	c.write(strings.Join(lines, "\n"))
}

// Prints one line of decoded command output exactly as received.
func (c *Console) Line(text string) {
	c.write(text)
}

// Prints one line of undecodable command output as a quoted byte string.
func (c *Console) Raw(line []byte) {
	c.write(fmt.Sprintf("%q", line))
}

func (c *Console) style(s lipgloss.Style, text string) string {
	if !c.color {
		return text
	}
	return s.Render(text)
}

func (c *Console) write(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	io.WriteString(c.w, text+"\n")
}
