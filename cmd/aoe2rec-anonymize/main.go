package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/reallyoldfogie/aoe2rec-go/aoe2rec"
	"github.com/reallyoldfogie/aoe2rec-go/internal/cli"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] -o <out.aoe2record> <in.aoe2record>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Renames every player to P<color> and removes profile ids.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	out := flag.String("o", "", "Output path")
	config := flag.String("config", "", "Config file (default "+cli.DefaultConfigFile+" if present)")
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
	anon, names, err := aoe2rec.Anonymize(data)
	if err != nil {
		log.Fatal().Err(err).Msg("anonymize failed")
	}

	old := make([]string, 0, len(names))
	for n := range names {
		old = append(old, n)
	}
	sort.Slice(old, func(i, j int) bool { return names[old[i]] < names[old[j]] })
	for _, n := range old {
		fmt.Printf("%-4s %s\n", names[n], n)
	}

	if err := os.WriteFile(*out, anon, 0o644); err != nil {
		log.Fatal().Err(err).Msg("write output")
	}
}
