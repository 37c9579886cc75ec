package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/reallyoldfogie/aoe2rec-go/aoe2rec"
	"github.com/reallyoldfogie/aoe2rec-go/internal/cli"
)

type rename struct {
	slot uint32
	name string
}

// renames collects repeated -rename slot:name flags.
type renames []rename

func (r *renames) String() string { return fmt.Sprint(*r) }

func (r *renames) Set(v string) error {
	slot, name, ok := strings.Cut(v, ":")
	if !ok || name == "" {
		return fmt.Errorf("want slot:name, got %q", v)
	}
	id, err := strconv.ParseUint(slot, 10, 32)
	if err != nil {
		return fmt.Errorf("bad slot %q", slot)
	}
	*r = append(*r, rename{slot: uint32(id), name: name})
	return nil
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] -o <out.aoe2record> <in.aoe2record>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Gives players that share a color a color of their own.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	out := flag.String("o", "", "Output path")
	config := flag.String("config", "", "Config file (default "+cli.DefaultConfigFile+" if present)")
	var names renames
	flag.Var(&names, "rename", "Rename a player, as slot:name (repeatable)")
	flag.Parse()

	if *out == "" || flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	if _, err := cli.Setup(*config); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Msg("read input")
	}
	fixed, err := aoe2rec.Rewrite(data, func(h *aoe2rec.Header) error {
		patches, err := aoe2rec.FixColors(h)
		if err != nil {
			return err
		}
		if err := h.Apply(patches); err != nil {
			return err
		}
		log.Info().Int("recolored", len(patches)/2).Msg("colors fixed")
		for _, r := range names {
			if err := h.RenamePlayer(r.slot, r.name); err != nil {
				return fmt.Errorf("rename slot %d: %w", r.slot, err)
			}
		}
		for i := range h.Players {
			p := &h.Players[i]
			fmt.Printf("ID %d: %d %-20s (sc=%d)\n", p.PlayerID, p.ColorNumber(), p.Name, p.SelectedColor)
		}
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("fix colors failed")
	}

	if err := os.WriteFile(*out, fixed, 0o644); err != nil {
		log.Fatal().Err(err).Msg("write output")
	}
}
