package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/reallyoldfogie/aoe2rec-go/aoe2rec/merge"
	"github.com/reallyoldfogie/aoe2rec-go/internal/cli"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] -o <out.aoe2record> <in1.aoe2record> <in2.aoe2record> ...\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Merges recordings of one match so that the output shows every player's chat.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	out := flag.String("o", "", "Output path")
	config := flag.String("config", "", "Config file (default "+cli.DefaultConfigFile+" if present)")
	flag.Parse()

	if *out == "" || flag.NArg() < 2 {
		flag.Usage()
		os.Exit(1)
	}
	cfg, err := cli.Setup(*config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	var inputs []merge.Input
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatal().Err(err).Msg("read input")
		}
		inputs = append(inputs, merge.Input{Name: filepath.Base(path), Data: data})
	}

	res, err := merge.Merge(inputs, cfg.Merge)
	if err != nil {
		log.Fatal().Err(err).Msg("merge failed")
	}

	for _, s := range res.Seats {
		fmt.Printf("%s: player %d, force %d, %d ms\n", s.Input, s.PlayerID, s.ForceID, s.Duration)
	}
	fmt.Printf("Selected main input: %s\n", res.Backbone)
	for _, c := range res.Chats {
		fmt.Printf("%6d: %s\n", c.Time/1000, c.MessageAGP)
	}

	if err := os.WriteFile(*out, res.Data, 0o644); err != nil {
		log.Fatal().Err(err).Msg("write output")
	}
	log.Info().
		Str("output", *out).
		Int("bytes", len(res.Data)).
		Str("xxhash", fmt.Sprintf("%016x", res.Digest)).
		Msg("merged recording written")
}
