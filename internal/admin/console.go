package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pixil98/go-storyteller/internal"
	"github.com/pixil98/go-storyteller/internal/display"
	"github.com/pixil98/go-storyteller/internal/session"
)

// Console is the operator command loop served over the telnet and ssh
// listeners. It reads one command per line and acts on the live session.
type Console struct {
	sess *session.Session
}

func NewConsole(sess *session.Session) *Console {
	return &Console{sess: sess}
}

func (c *Console) HandleConsole(ctx context.Context, rw io.ReadWriter) {
	rw.Write([]byte("storyteller operator console. Type 'help' for commands.\n"))

	for {
		if ctx.Err() != nil {
			return
		}

		line, err := internal.Prompt(rw, "> ")
		if err != nil {
			return
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "help":
			c.help(rw)
		case "status":
			c.status(rw)
		case "roster":
			c.roster(rw)
		case "world":
			c.world(rw)
		case "turns":
			c.turns(rw)
		case "start":
			c.report(rw, c.sess.Start())
		case "end":
			c.confirmEnd(rw)
		case "kick":
			c.kick(rw, args)
		case "window":
			c.window(rw, args)
		case "quit", "exit":
			return
		default:
			fmt.Fprintf(rw, "unknown command %q\n", cmd)
		}
	}
}

func (c *Console) report(rw io.Writer, err error) {
	if err != nil {
		fmt.Fprintf(rw, "error: %s\n", err)
		return
	}
	rw.Write([]byte("ok\n"))
}

func (c *Console) help(rw io.Writer) {
	rw.Write([]byte(display.Wrap(strings.Join([]string{
		"status            session phase, turn, world counts",
		"roster            connected participants",
		"world             locations, occupants, effects",
		"turns             retained turn records",
		"start             begin the story",
		"end               end the story and return to the lobby",
		"kick <name>       disconnect a participant",
		"window <dur>      set the input collection window, e.g. 45s",
		"quit              leave the console",
	}, "\n")) + "\n"))
}

func (c *Console) status(rw io.Writer) {
	locs, parts, effects := c.sess.Store().Stats()
	fmt.Fprintf(rw, "phase: %s\nturn: %d\nwindow: %s\nconnected: %d\nworld: %d locations, %d participants, %d effects\n",
		c.sess.Phase(), c.sess.Store().Turn(), c.sess.Window(),
		c.sess.Registry().ConnectedCount(), locs, parts, effects)
}

func (c *Console) roster(rw io.Writer) {
	conns := c.sess.Registry().Connected()
	if len(conns) == 0 {
		rw.Write([]byte("nobody connected\n"))
		return
	}
	for _, p := range conns {
		fmt.Fprintf(rw, "%s  %s  joined %s\n", p.ID, p.Name, p.JoinedAt.Format(time.TimeOnly))
	}
}

func (c *Console) world(rw io.Writer) {
	snap := c.sess.Store().Snapshot()

	ids := make([]string, 0, len(snap.Locations))
	for id := range snap.Locations {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		loc := snap.Locations[id]
		fmt.Fprintf(rw, "[%s] %s", id, loc.Name)
		if len(loc.Connections) > 0 {
			fmt.Fprintf(rw, " -> %s", strings.Join(loc.Connections, ", "))
		}
		rw.Write([]byte("\n"))
		for _, p := range snap.ParticipantsAt(id) {
			fmt.Fprintf(rw, "    %s\n", p.Name)
		}
	}

	effIDs := make([]string, 0, len(snap.Effects))
	for id := range snap.Effects {
		effIDs = append(effIDs, id)
	}
	sort.Strings(effIDs)
	for _, id := range effIDs {
		e := snap.Effects[id]
		fmt.Fprintf(rw, "effect [%s] %s", id, e.Name)
		if e.ExpiresIn > 0 {
			fmt.Fprintf(rw, " (%d turns left)", e.ExpiresIn)
		}
		rw.Write([]byte("\n"))
	}
}

func (c *Console) turns(rw io.Writer) {
	printed := false
	if r := c.sess.Ledger().Current(); r != nil {
		fmt.Fprintf(rw, "current: turn %d, %d mutations\n", r.Turn, len(r.Mutations))
		printed = true
	}
	if r := c.sess.Ledger().Previous(); r != nil {
		fmt.Fprintf(rw, "previous: turn %d, %d mutations\n", r.Turn, len(r.Mutations))
		printed = true
	}
	if !printed {
		rw.Write([]byte("no turns recorded\n"))
	}
}

func (c *Console) confirmEnd(rw io.ReadWriter) {
	ok, err := internal.PromptYN(rw, "end the story for everyone? [y/n] ")
	if err != nil || !ok {
		return
	}
	c.report(rw, c.sess.End())
}

func (c *Console) kick(rw io.Writer, args []string) {
	if len(args) != 1 {
		rw.Write([]byte("usage: kick <name>\n"))
		return
	}

	for _, p := range c.sess.Registry().Connected() {
		if strings.EqualFold(p.Name, args[0]) || p.ID == args[0] {
			c.report(rw, c.sess.Kick(p.ID))
			return
		}
	}
	c.report(rw, fmt.Errorf("%w: %s", session.ErrUnknownParticipant, args[0]))
}

func (c *Console) window(rw io.Writer, args []string) {
	if len(args) != 1 {
		rw.Write([]byte("usage: window <duration>\n"))
		return
	}
	d, err := time.ParseDuration(args[0])
	if err != nil || d <= 0 {
		c.report(rw, errors.New("duration must be positive, e.g. 45s"))
		return
	}
	c.sess.SetWindow(d)
	c.report(rw, nil)
}
