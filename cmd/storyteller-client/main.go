package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/pixil98/go-storyteller/internal/protocol"
	"github.com/pixil98/go-storyteller/internal/world"
)

func main() {
	addr := flag.String("addr", "", "server address")
	name := flag.String("name", "", "display name")
	flag.Parse()

	stdin := bufio.NewReader(os.Stdin)
	if *addr == "" {
		*addr = prompt(stdin, "server address [localhost:4040]: ", "localhost:4040")
	}
	if *name == "" {
		*name = prompt(stdin, "your name: ", "")
	}
	if *name == "" {
		fmt.Fprintln(os.Stderr, "a name is required")
		os.Exit(1)
	}

	if err := run(*addr, *name); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func prompt(r *bufio.Reader, label, fallback string) string {
	fmt.Print(label)
	line, err := r.ReadString('\n')
	if err != nil {
		return fallback
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return fallback
	}
	return line
}

type client struct {
	conn net.Conn
	mu   sync.Mutex

	// turn is the collection turn actions should be stamped with, tracked
	// from snapshots and deltas so the server can reject stale input.
	turn atomic.Int64

	app  *tview.Application
	view *tview.TextView
}

func run(addr, name string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	c := &client{conn: conn}

	if err := c.send(&protocol.Join{Name: name}); err != nil {
		return fmt.Errorf("joining: %w", err)
	}

	c.app = tview.NewApplication()

	c.view = tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true).
		SetChangedFunc(func() { c.app.Draw() })
	c.view.SetBorder(true).SetTitle(" story ")
	c.view.ScrollToEnd()

	input := tview.NewInputField().SetLabel("> ")
	input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := strings.TrimSpace(input.GetText())
		input.SetText("")
		if text == "" {
			return
		}
		if err := c.submit(text); err != nil {
			c.printf("[red]send failed: %s[-]", err)
		}
	})

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(c.view, 0, 1, false).
		AddItem(input, 1, 0, true)

	go c.readLoop()

	return c.app.SetRoot(flex, true).Run()
}

// submit sends a slash command or a turn action.
func (c *client) submit(text string) error {
	if cmd, ok := strings.CutPrefix(text, "/"); ok {
		return c.send(&protocol.Command{Name: cmd})
	}
	c.printf("[yellow]you:[-] %s", text)
	return c.send(&protocol.Action{Turn: int(c.turn.Load()), Text: text})
}

func (c *client) send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.WriteFrame(c.conn, msg)
}

func (c *client) readLoop() {
	for {
		msg, err := protocol.ReadFrame(c.conn)
		if err != nil {
			c.printf("[red]disconnected: %s[-]", err)
			c.app.Stop()
			return
		}

		switch t := msg.(type) {
		case *protocol.Welcome:
			c.printf("[green]connected as %s[-]", t.ParticipantID)
		case *protocol.Snapshot:
			if t.State != nil {
				c.turn.Store(int64(t.State.Turn))
				c.printf("%s", describeSnapshot(t.State))
			}
		case *protocol.Delta:
			// The next collection turn follows the completed one.
			c.turn.Store(int64(t.Turn) + 1)
			c.printf("[gray]turn %d (%d changes)[-]", t.Turn, len(t.Mutations))
		case *protocol.Notice:
			c.printf("%s", tview.Escape(t.Text))
		case *protocol.Roster:
			c.printf("[blue]present: %s[-]", strings.Join(t.Names, ", "))
		case *protocol.Error:
			c.printf("[red]%s: %s[-]", t.Code, t.Message)
		}
	}
}

func (c *client) printf(format string, args ...any) {
	fmt.Fprintf(c.view, format+"\n", args...)
}

func describeSnapshot(s *world.Snapshot) string {
	if len(s.Locations) == 0 {
		return "[gray]the story has not started yet[-]"
	}

	ids := make([]string, 0, len(s.Locations))
	for id := range s.Locations {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "[gray]turn %d[-]\n", s.Turn)
	for _, id := range ids {
		loc := s.Locations[id]
		fmt.Fprintf(&b, "[white]%s[-]", tview.Escape(loc.Name))
		var names []string
		for _, p := range s.ParticipantsAt(id) {
			names = append(names, p.Name)
		}
		if len(names) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(names, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
