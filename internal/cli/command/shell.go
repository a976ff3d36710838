package command

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/worldsave/internal/cli/repl"
	"github.com/yndnr/worldsave/internal/core/service"
	"github.com/yndnr/worldsave/internal/core/world"
	"github.com/yndnr/worldsave/internal/storage/record"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Interactive session over one sample world",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "entities",
				Usage: "Number of placed entities in the sample world",
				Value: 100,
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not persist command history",
			},
		},
		Action: runShell,
	}
}

// shell holds the world edited by an interactive session. Its methods run
// on the REPL goroutine, which is also the goroutine that delivers slot
// info loads.
type shell struct {
	c     *cli.Context
	e     *env
	mgr   *service.Manager
	n     int
	world *world.World
}

func runShell(c *cli.Context) error {
	e, mgr, err := openManager(c)
	if err != nil {
		return err
	}
	n := c.Int("entities")
	s := &shell{c: c, e: e, mgr: mgr, n: n, world: sampleWorld(n, false)}

	historyFile := repl.DefaultHistoryFile()
	if c.Bool("no-history") {
		historyFile = ""
	}
	r := repl.New(repl.Config{
		Prompt:       "worldsave> ",
		Input:        c.App.Reader,
		Output:       stdout(c),
		HistoryFile:  historyFile,
		BeforePrompt: func() { mgr.Tick() },
	}, s.commands()...)
	return r.Run()
}

func (s *shell) commands() []repl.Command {
	return []repl.Command{
		{Name: "save", Usage: "save NAME: save the world", Run: s.save},
		{Name: "load", Usage: "load NAME: load a slot into the world", Run: s.load},
		{Name: "autosave", Usage: "Save to the next autosave slot", Run: s.autosave},
		{Name: "list", Usage: "Load slot infos in the background", Run: s.list},
		{Name: "info", Usage: "info NAME: load one slot info in the background", Run: s.info},
		{Name: "wait", Usage: "Wait for background loads to be delivered", Run: s.wait},
		{Name: "pending", Usage: "Show undelivered background loads", Run: s.pending},
		{Name: "delete", Usage: "delete NAME: delete a slot", Run: s.delete},
		{Name: "play", Usage: "Advance the world: spawn objects, change state", Run: s.play},
		{Name: "reset", Usage: "Reset the world to its placed state", Run: s.reset},
		{Name: "status", Usage: "Summarize the world", Run: s.status},
	}
}

func oneName(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected one slot name")
	}
	return args[0], nil
}

func (s *shell) save(args []string) error {
	name, err := oneName(args)
	if err != nil {
		return err
	}
	info, err := s.mgr.SaveSlot(s.c.Context, name, s.world, service.SlotMeta{Subname: "shell"})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout(s.c), "saved %s (%s)\n", info.Name, info.ID)
	return nil
}

func (s *shell) load(args []string) error {
	name, err := oneName(args)
	if err != nil {
		return err
	}
	info, err := s.mgr.LoadSlot(s.c.Context, name, s.world)
	if info != nil {
		fmt.Fprintf(stdout(s.c), "loaded %s, saved %s\n", info.Name, info.SaveDate.Local().Format(time.DateTime))
	}
	return err
}

func (s *shell) autosave([]string) error {
	info, err := s.mgr.Autosave(s.c.Context, s.world, service.SlotMeta{Subname: "shell"})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout(s.c), "saved %s (%s)\n", info.Name, info.ID)
	return nil
}

func (s *shell) printInfos(infos []*record.SlotInfo) {
	w := stdout(s.c)
	if len(infos) == 0 {
		fmt.Fprintln(w, "no slots")
		return
	}
	for _, info := range infos {
		fmt.Fprintf(w, "  %-20s %-10s %s\n", info.Name, info.Level, info.SaveDate.Local().Format(time.DateTime))
	}
}

func (s *shell) list([]string) error {
	return s.mgr.LoadSlotInfos(s.c.Context, "", s.e.cfg.Save.SortByRecent, s.printInfos)
}

func (s *shell) info(args []string) error {
	name, err := oneName(args)
	if err != nil {
		return err
	}
	return s.mgr.LoadSlotInfos(s.c.Context, name, false, s.printInfos)
}

// wait ticks until every background load has been delivered.
func (s *shell) wait([]string) error {
	deadline := time.Now().Add(10 * time.Second)
	for s.mgr.Pending() > 0 {
		if time.Now().After(deadline) {
			return errors.New("background loads still pending")
		}
		if s.mgr.Tick() == 0 {
			time.Sleep(10 * time.Millisecond)
		}
	}
	return nil
}

func (s *shell) pending([]string) error {
	fmt.Fprintf(stdout(s.c), "%d pending\n", s.mgr.Pending())
	return nil
}

func (s *shell) delete(args []string) error {
	name, err := oneName(args)
	if err != nil {
		return err
	}
	return s.mgr.DeleteSlot(s.c.Context, name)
}

func (s *shell) play([]string) error {
	s.world = sampleWorld(s.n, true)
	return s.status(nil)
}

func (s *shell) reset([]string) error {
	s.world = sampleWorld(s.n, false)
	return s.status(nil)
}

func (s *shell) status([]string) error {
	spawned := 0
	for _, e := range s.world.Entities {
		if e.Spawned {
			spawned++
		}
	}
	gold := uint32(0)
	if st, ok := s.world.Session.State.(*sessionState); ok {
		gold = st.Gold
	}
	fmt.Fprintf(stdout(s.c), "%d entities, %d spawned, gold=%d\n", len(s.world.Entities), spawned, gold)
	return nil
}
