package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/reallyoldfogie/aoe2rec-go/aoe2rec"
	"github.com/reallyoldfogie/aoe2rec-go/internal/cli"
)

type dump struct {
	File   string
	Report *aoe2rec.Report `json:",omitempty"`
	Error  string          `json:",omitempty"`
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <game.aoe2record> [game2.aoe2record ...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Prints the parsed header, chat and postgame data of recorded games as JSON.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	config := flag.String("config", "", "Config file (default "+cli.DefaultConfigFile+" if present)")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}
	if _, err := cli.Setup(*config); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	exitCode := 0
	var total uint32
	var dumps []dump
	for _, file := range flag.Args() {
		d := dump{File: file}
		data, err := os.ReadFile(file)
		if err == nil {
			d.Report, err = aoe2rec.Inspect(data)
		}
		if err != nil {
			log.Error().Err(err).Str("file", file).Msg("dump failed")
			d.Error = err.Error()
			exitCode = 1
		} else {
			total += d.Report.Duration
		}
		dumps = append(dumps, d)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dumps); err != nil {
		log.Fatal().Err(err).Msg("encode")
	}
	if len(dumps) > 1 {
		log.Info().Uint32("total_ms", total).Int("files", len(dumps)).Msg("total match time")
	}
	os.Exit(exitCode)
}
