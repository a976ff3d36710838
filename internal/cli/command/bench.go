package command

import (
	"fmt"
	"time"

	"github.com/pkg/profile"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/worldsave/internal/cli/output"
	"github.com/yndnr/worldsave/internal/core/service"
)

const benchSlot = "bench"

type benchRow struct {
	Round int           `json:"round"`
	Save  string `json:"save"`
	Load  string `json:"load"`
	Bytes string `json:"bytes"`
}

func benchCommand(entities cli.Flag) *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "Save and reload the sample world repeatedly",
		Description: "Each round saves the sample world to the \"bench\" slot and loads it\n" +
			"back into a fresh world. The slot is deleted afterwards.",
		Flags: []cli.Flag{
			entities,
			&cli.IntFlag{
				Name:  "rounds",
				Usage: "Number of save/load rounds",
				Value: 5,
			},
			&cli.StringFlag{
				Name:  "profile",
				Usage: "Profile the rounds: cpu, mem, allocs",
			},
			&cli.StringFlag{
				Name:  "profile-dir",
				Usage: "Directory for the profile file",
				Value: ".",
			},
		},
		Action: demoBench,
	}
}

func profileMode(name string) (func(*profile.Profile), error) {
	switch name {
	case "cpu":
		return profile.CPUProfile, nil
	case "mem":
		return profile.MemProfile, nil
	case "allocs":
		return profile.MemProfileAllocs, nil
	}
	return nil, fmt.Errorf("unknown profile %q (want cpu, mem or allocs)", name)
}

func demoBench(c *cli.Context) error {
	rounds := c.Int("rounds")
	if rounds < 1 {
		return fmt.Errorf("rounds must be positive")
	}
	var mode func(*profile.Profile)
	if name := c.String("profile"); name != "" {
		m, err := profileMode(name)
		if err != nil {
			return err
		}
		mode = m
	}
	e, mgr, err := openManager(c)
	if err != nil {
		return err
	}

	n := c.Int("entities")
	if mode != nil {
		p := profile.Start(mode, profile.ProfilePath(c.String("profile-dir")), profile.NoShutdownHook, profile.Quiet)
		defer p.Stop()
	}

	rows := make([]benchRow, 0, rounds)
	for i := range rounds {
		w := sampleWorld(n, true)
		start := time.Now()
		if _, err := mgr.SaveSlot(c.Context, benchSlot, w, service.SlotMeta{Subname: "bench"}); err != nil {
			return err
		}
		saved := time.Since(start)

		size, err := e.store.Stat(c.Context, benchSlot)
		if err != nil {
			return err
		}

		start = time.Now()
		if _, err := mgr.LoadSlot(c.Context, benchSlot, sampleWorld(n, false)); err != nil {
			return err
		}
		rows = append(rows, benchRow{
			Round: i + 1,
			Save:  saved.Round(time.Microsecond).String(),
			Load:  time.Since(start).Round(time.Microsecond).String(),
			Bytes: output.FormatBytes(size.Size),
		})
	}
	if err := mgr.DeleteSlot(c.Context, benchSlot); err != nil {
		return err
	}
	return render(c, rows)
}
