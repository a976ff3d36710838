package command

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/worldsave/internal/cli/output"
	"github.com/yndnr/worldsave/internal/config"
	"github.com/yndnr/worldsave/internal/core/domain"
	"github.com/yndnr/worldsave/internal/core/service"
	"github.com/yndnr/worldsave/internal/infra/confloader"
	"github.com/yndnr/worldsave/internal/infra/shutdown"
	"github.com/yndnr/worldsave/internal/server/httpserver"
	"github.com/yndnr/worldsave/internal/storage/record"
	"github.com/yndnr/worldsave/internal/storage/slotstore"
	"github.com/yndnr/worldsave/internal/telemetry/logger"
)

// SlotsCommand returns the slots subcommand group.
func SlotsCommand() *cli.Command {
	return &cli.Command{
		Name:    "slots",
		Aliases: []string{"slot"},
		Usage:   "Save slot management",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List save slots",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "sort",
						Usage: "Sort by save date, newest first (default from save.sort_by_recent)",
					},
				},
				Action: slotsList,
			},
			{
				Name:      "info",
				Usage:     "Show the header of a slot",
				ArgsUsage: "NAME",
				Action:    slotsInfo,
			},
			{
				Name:      "inspect",
				Usage:     "Show the records stored in a slot",
				ArgsUsage: "NAME",
				Action:    slotsInspect,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a slot",
				ArgsUsage: "NAME",
				Action:    slotsDelete,
			},
			{
				Name:  "prune",
				Usage: "Delete all but the most recent slots",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "keep",
						Usage:    "Number of slots to keep",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "autosave-only",
						Usage: "Only consider autosave slots",
					},
				},
				Action: slotsPrune,
			},
			{
				Name:  "watch",
				Usage: "Report slot changes until interrupted",
				Description: "With an HTTP address, also serves /health, /slots, /metrics and a\n" +
					"websocket stream of changes on /events.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "http-addr",
						Aliases: []string{"metrics-addr"},
						Usage:   "Serve the HTTP API on this address",
					},
				},
				Action: slotsWatch,
			},
		},
	}
}

// slotRow is one line of the slot listing.
type slotRow struct {
	Name       string        `json:"name" yaml:"name"`
	Subname    string        `json:"subname,omitempty" yaml:"subname,omitempty"`
	Level      string        `json:"level" yaml:"level"`
	SaveDate   time.Time     `json:"save_date" yaml:"save_date"`
	PlayedTime time.Duration `json:"played_time" yaml:"played_time"`
	Size       string        `json:"size" yaml:"size" table:"wide"`
	ID         string        `json:"id" yaml:"id" table:"wide"`
}

// infoView is the printable form of a slot header.
type infoView struct {
	Name       string            `json:"name" yaml:"name"`
	Subname    string            `json:"subname,omitempty" yaml:"subname,omitempty"`
	ID         string            `json:"id" yaml:"id"`
	Level      string            `json:"level" yaml:"level"`
	SaveDate   time.Time         `json:"save_date" yaml:"save_date"`
	PlayedTime time.Duration     `json:"played_time" yaml:"played_time"`
	Custom     map[string]string `json:"custom,omitempty" yaml:"custom,omitempty" table:"-"`
}

func newInfoView(info *record.SlotInfo) infoView {
	return infoView{
		Name:       info.Name,
		Subname:    info.Subname,
		ID:         info.ID,
		Level:      info.Level,
		SaveDate:   info.SaveDate,
		PlayedTime: info.PlayedTime,
		Custom:     maps.Clone(info.Custom),
	}
}

func slotsList(c *cli.Context) error {
	e, mgr, err := openManager(c)
	if err != nil {
		return err
	}

	sortByRecent := e.cfg.Save.SortByRecent
	if c.IsSet("sort") {
		sortByRecent = c.Bool("sort")
	}
	infos, err := mgr.LoadSlotInfosSync(c.Context, "", sortByRecent)
	if err != nil {
		return err
	}

	rows := make([]slotRow, 0, len(infos))
	for _, info := range infos {
		row := slotRow{
			Name:       info.Name,
			Subname:    info.Subname,
			Level:      info.Level,
			SaveDate:   info.SaveDate,
			PlayedTime: info.PlayedTime,
			ID:         info.ID,
		}
		if entry, err := e.store.Stat(c.Context, info.Name); err == nil {
			row.Size = output.FormatBytes(entry.Size)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 && isTable(c) {
		fmt.Fprintln(stdout(c), "No slots found.")
		return nil
	}
	return render(c, rows)
}

func slotName(c *cli.Context) (string, error) {
	name := c.Args().First()
	if name == "" {
		return "", fmt.Errorf("slot name required")
	}
	return name, nil
}

func slotsInfo(c *cli.Context) error {
	name, err := slotName(c)
	if err != nil {
		return err
	}
	_, mgr, err := openManager(c)
	if err != nil {
		return err
	}

	infos, err := mgr.LoadSlotInfosSync(c.Context, name, false)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		// The loader skips unreadable slots; tell missing from corrupt.
		if _, err := mgr.ReadSlot(c.Context, name); err != nil {
			return err
		}
		return domain.ErrSlotNotFound.WithDetails("%s", name)
	}

	view := newInfoView(infos[0])
	if err := render(c, view); err != nil {
		return err
	}
	if isTable(c) && len(view.Custom) > 0 {
		fmt.Fprintln(stdout(c))
		return render(c, view.Custom)
	}
	return nil
}

// entityRow summarizes one entity record.
type entityRow struct {
	Name         string   `json:"name" yaml:"name"`
	Class        string   `json:"class" yaml:"class"`
	Procedural   bool     `json:"procedural" yaml:"procedural"`
	Hidden       bool     `json:"hidden" yaml:"hidden"`
	Components   int      `json:"components" yaml:"components"`
	Tags         []string `json:"tags,omitempty" yaml:"tags,omitempty" table:"wide"`
	PayloadBytes int      `json:"payload_bytes" yaml:"payload_bytes" table:"wide"`
}

type inspectView struct {
	Info     infoView    `json:"info" yaml:"info"`
	Session  string      `json:"session,omitempty" yaml:"session,omitempty"`
	Entities []entityRow `json:"entities" yaml:"entities"`
}

func slotsInspect(c *cli.Context) error {
	name, err := slotName(c)
	if err != nil {
		return err
	}
	_, mgr, err := openManager(c)
	if err != nil {
		return err
	}

	f, err := mgr.ReadSlot(c.Context, name)
	if err != nil {
		return err
	}

	view := inspectView{Info: newInfoView(f.Info)}
	if f.Data.Session != nil {
		view.Session = f.Data.Session.Class
	}
	view.Entities = make([]entityRow, 0, len(f.Data.Entities))
	for _, r := range f.Data.Entities {
		view.Entities = append(view.Entities, entityRow{
			Name:         r.Name,
			Class:        r.Class,
			Procedural:   r.Procedural,
			Hidden:       r.Hidden,
			Components:   len(r.Components),
			Tags:         r.Tags,
			PayloadBytes: len(r.Payload),
		})
	}

	if !isTable(c) {
		return render(c, view)
	}
	w := stdout(c)
	fmt.Fprintf(w, "Slot:     %s (%s)\n", view.Info.Name, view.Info.ID)
	fmt.Fprintf(w, "Level:    %s\n", view.Info.Level)
	fmt.Fprintf(w, "Saved:    %s\n", view.Info.SaveDate.Local().Format(time.RFC3339))
	if view.Session != "" {
		fmt.Fprintf(w, "Session:  %s\n", view.Session)
	}
	fmt.Fprintf(w, "Entities: %d\n\n", len(view.Entities))
	if len(view.Entities) == 0 {
		return nil
	}
	return render(c, view.Entities)
}

func slotsDelete(c *cli.Context) error {
	name, err := slotName(c)
	if err != nil {
		return err
	}
	_, mgr, err := openManager(c)
	if err != nil {
		return err
	}
	if err := mgr.DeleteSlot(c.Context, name); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "Slot %q deleted.\n", name)
	return nil
}

func slotsPrune(c *cli.Context) error {
	keep := c.Int("keep")
	if keep < 0 {
		return fmt.Errorf("--keep must not be negative")
	}
	e, mgr, err := openManager(c)
	if err != nil {
		return err
	}

	var removed []string
	if c.Bool("autosave-only") {
		removed, err = slotstore.Prune(c.Context, e.store, keep, service.IsAutosave)
	} else {
		removed, err = mgr.Prune(c.Context, keep)
	}
	if err != nil {
		return err
	}

	w := stdout(c)
	if len(removed) == 0 {
		fmt.Fprintln(w, "Nothing to prune.")
		return nil
	}
	for _, name := range removed {
		fmt.Fprintf(w, "Deleted %s\n", name)
	}
	return nil
}

// slotsWatch reports slot changes until SIGINT, SIGTERM or cancellation of
// the command context. Slot infos are loaded in the background and
// delivered by the tick loop.
func slotsWatch(c *cli.Context) error {
	e, mgr, err := openManager(c)
	if err != nil {
		return err
	}
	fs, ok := slotstore.Unwrap(e.store).(*slotstore.FileStore)
	if !ok {
		return fmt.Errorf("watch requires the %s engine", slotstore.EngineFile)
	}
	sw, err := slotstore.NewWatcher(fs, e.log.Slog())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	h := shutdown.NewHandler(5 * time.Second)
	h.OnClose(sw.Close)

	var feed *httpserver.Feed
	if addr := httpAddr(c, e.cfg); addr != "" {
		feed = httpserver.NewFeed(e.log.Slog())
		srv := httpserver.New(addr, httpserver.NewRouter(httpserver.RouterConfig{
			Store:    e.store,
			Registry: e.registry,
			Metrics:  e.metrics,
			Feed:     feed,
			Logger:   e.log.Slog(),
		}))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.log.Error("http server failed", "addr", addr, "error", err)
			}
		}()
		h.OnShutdown(srv.Shutdown)
		h.OnClose(feed.Close)
		e.log.Info("serving http", "addr", addr)
	}
	publish := func(ev httpserver.Event) {
		if feed != nil {
			feed.Publish(ev)
		}
	}

	if e.cfgPath != "" {
		cw, err := confloader.NewWatcher(confloader.WithWatcherLogger(e.log.Slog()))
		if err != nil {
			return err
		}
		if err := cw.Watch(e.cfgPath); err != nil {
			cw.Stop()
			return err
		}
		cw.OnChange(func(string) { e.reload() })
		cw.StartAsync()
		h.OnClose(cw.Stop)
	}

	// Registered last so it runs first.
	h.OnClose(func() error {
		cancel()
		return nil
	})

	changes := make(chan slotstore.Change, 64)
	go sw.Run(ctx, func(ch slotstore.Change) {
		select {
		case changes <- ch:
		case <-ctx.Done():
		}
	})

	done := make(chan error, 1)
	go func() { done <- h.Wait(ctx) }()

	w := stdout(c)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	e.log.Info("watching slots", "dir", fs.Dir())
	for {
		select {
		case ch := <-changes:
			if ch.Kind == slotstore.SlotRemoved {
				fmt.Fprintf(w, "%s\t%s\n", ch.Slot, ch.Kind)
				publish(httpserver.Event{Slot: ch.Slot, Kind: ch.Kind.String()})
				continue
			}
			err := mgr.LoadSlotInfos(ctx, ch.Slot, false, func(infos []*record.SlotInfo) {
				for _, info := range infos {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.Name, ch.Kind, info.Level, info.ID)
					publish(httpserver.Event{Slot: info.Name, Kind: ch.Kind.String(), Level: info.Level, ID: info.ID})
				}
			})
			if err != nil {
				e.log.Warn("slot info load failed", "slot", ch.Slot, "error", err)
			}
		case <-ticker.C:
			mgr.Tick()
		case <-ctx.Done():
			return <-done
		}
	}
}

func httpAddr(c *cli.Context, cfg *config.Config) string {
	if addr := c.String("http-addr"); addr != "" {
		return addr
	}
	if cfg.Metrics.Enabled {
		return cfg.Metrics.Addr
	}
	return ""
}

// reload re-reads the configuration file and applies the log level. Other
// settings take effect on the next invocation.
func (e *env) reload() {
	cfg, err := config.Load(e.cfgPath, e.overrides)
	if err != nil {
		e.log.Warn("configuration reload failed", "path", e.cfgPath, "error", err)
		return
	}
	logger.SetLevel(cfg.Log.Level)
	e.log.Info("configuration reloaded", "path", e.cfgPath, "log_level", cfg.Log.Level)
}
