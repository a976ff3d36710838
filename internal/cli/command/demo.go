package command

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/worldsave/internal/core/capture"
	"github.com/yndnr/worldsave/internal/core/service"
	"github.com/yndnr/worldsave/internal/core/world"
	"github.com/yndnr/worldsave/internal/storage/archive"
	"github.com/yndnr/worldsave/internal/telemetry/logger"
)

// Persisted state of the sample world classes.
type (
	crateState struct {
		Health int32  `save:"1"`
		Label  string `save:"2"`
	}
	lampState struct {
		On bool `save:"1"`
	}
	projectileState struct {
		Damage int32 `save:"1"`
	}
	sessionState struct {
		Gold  uint32 `save:"1"`
		Quest string `save:"2"`
	}
)

// sampleRegistry registers the classes of the sample world.
func sampleRegistry() *archive.Registry {
	reg := archive.NewRegistry()
	archive.RegisterType[crateState](reg, "Crate")
	archive.RegisterType[lampState](reg, "Lamp")
	archive.RegisterType[projectileState](reg, "Projectile")
	archive.RegisterType[sessionState](reg, "Session")
	return reg
}

// sampleWorld builds a level with n placed crates. With spawned set, it
// also contains runtime projectiles and a modified session, as a world
// would look after some play.
func sampleWorld(n int, spawned bool) *world.World {
	w := &world.World{
		Level:   "sample",
		Session: &world.Session{Class: "Session", State: &sessionState{Quest: "intro"}},
	}
	for i := range n {
		name := fmt.Sprintf("crate-%03d", i)
		e := world.NewEntity(name, "Crate")
		e.State = &crateState{Health: 100, Label: name}
		e.Transform.Location = world.Vector{X: float64(i) * 2}

		root := world.NewComponent("root", "Scene", world.KindScene)
		root.Mobility = world.Movable
		e.AddComponent(root)

		lamp := world.NewComponent("lamp", "Lamp", world.KindBasic)
		lamp.State = &lampState{}
		e.AddComponent(lamp)

		if i%5 == 0 {
			e.Tags = []string{capture.DefaultSaveTagPrefix + "loot"}
		}
		w.Entities = append(w.Entities, e)
	}
	if !spawned {
		return w
	}

	w.Session.State = &sessionState{Gold: 250, Quest: "find-the-key"}
	for i, e := range w.Entities {
		s := e.State.(*crateState)
		s.Health = int32(100 - i%100)
		e.Transform.Location.Z = 1
		if c, ok := e.Component("lamp"); ok {
			c.State.(*lampState).On = i%2 == 0
		}
	}
	for i := range max(1, n/10) {
		p := world.NewEntity(fmt.Sprintf("projectile-%d", i), "Projectile")
		p.State = &projectileState{Damage: 10}
		body := world.NewComponent("body", "Sphere", world.KindPrimitive)
		body.Mobility = world.Movable
		body.Body = &world.Body{LinearVelocity: world.Vector{X: 30}}
		p.AddComponent(body)
		w.Spawn(p)
	}
	return w
}

// DemoCommand returns the demo subcommand group.
func DemoCommand() *cli.Command {
	entities := &cli.IntFlag{
		Name:  "entities",
		Usage: "Number of placed entities in the sample world",
		Value: 100,
	}
	return &cli.Command{
		Name:  "demo",
		Usage: "Save and load a generated sample world",
		Subcommands: []*cli.Command{
			{
				Name:      "save",
				Usage:     "Save the sample world to a slot",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					entities,
					&cli.StringFlag{
						Name:  "subname",
						Usage: "Slot description",
					},
					&cli.DurationFlag{
						Name:  "played",
						Usage: "Played time to record",
					},
				},
				Action: demoSave,
			},
			{
				Name:   "autosave",
				Usage:  "Save the sample world to the next autosave slot",
				Flags:  []cli.Flag{entities},
				Action: demoAutosave,
			},
			{
				Name:      "load",
				Usage:     "Load a slot into a fresh sample world",
				ArgsUsage: "NAME",
				Flags:     []cli.Flag{entities},
				Action:    demoLoad,
			},
			benchCommand(entities),
		},
	}
}

func demoSave(c *cli.Context) error {
	name, err := slotName(c)
	if err != nil {
		return err
	}
	_, mgr, err := openManager(c)
	if err != nil {
		return err
	}

	w := sampleWorld(c.Int("entities"), true)
	info, err := mgr.SaveSlot(c.Context, name, w, service.SlotMeta{
		Subname:    c.String("subname"),
		PlayedTime: c.Duration("played"),
		Custom:     map[string]string{"generator": "demo"},
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "Saved slot %q (%s): %d entities\n", info.Name, info.ID, len(w.Entities))
	return nil
}

func demoAutosave(c *cli.Context) error {
	_, mgr, err := openManager(c)
	if err != nil {
		return err
	}
	w := sampleWorld(c.Int("entities"), true)
	info, err := mgr.Autosave(c.Context, w, service.SlotMeta{Subname: "autosave"})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "Autosaved to %q (%s)\n", info.Name, info.ID)
	return nil
}

func demoLoad(c *cli.Context) error {
	name, err := slotName(c)
	if err != nil {
		return err
	}
	e, mgr, err := openManager(c)
	if err != nil {
		return err
	}
	ctx := logger.WithSlot(logger.WithLogger(c.Context, e.log), name)

	w := sampleWorld(c.Int("entities"), false)
	start := time.Now()
	info, loadErr := mgr.LoadSlot(ctx, name, w)
	if info == nil {
		return loadErr
	}
	logger.L(ctx).Debug("sample world restored", "entities", len(w.Entities), "id", info.ID)

	spawned := 0
	for _, e := range w.Entities {
		if e.Spawned {
			spawned++
		}
	}
	out := stdout(c)
	fmt.Fprintf(out, "Loaded slot %q (level %s) in %s: %d entities, %d spawned\n",
		info.Name, info.Level, time.Since(start).Round(time.Millisecond), len(w.Entities), spawned)
	if s, ok := w.Session.State.(*sessionState); ok {
		fmt.Fprintf(out, "Session: quest=%s gold=%d\n", s.Quest, s.Gold)
	}
	return loadErr
}
