package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/reallyoldfogie/aoe2rec-go/aoe2rec"
	"github.com/reallyoldfogie/aoe2rec-go/internal/cli"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <game.aoe2record> [game2.aoe2record ...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Parses recorded games completely and reports problems.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	verbose := flag.Bool("v", false, "Verbose output")
	quiet := flag.Bool("q", false, "Quiet mode (errors only)")
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

	files := flag.Args()
	exitCode := 0

	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			fmt.Fprintf(os.Stderr, "❌ %s: file not found\n", file)
			exitCode = 1
			continue
		}

		if *verbose {
			fmt.Printf("Validating %s...\n", file)
		}

		var err error
		if *quiet {
			err = aoe2rec.ValidateFileQuiet(file)
		} else {
			err = aoe2rec.ValidateFile(file)
		}

		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %s: %v\n", filepath.Base(file), err)
			exitCode = 1
		} else if !*quiet {
			fmt.Printf("✅ %s: valid\n", filepath.Base(file))
		}
	}

	if exitCode == 0 && !*quiet && len(files) > 1 {
		fmt.Printf("\nAll %d recorded games are valid!\n", len(files))
	}

	os.Exit(exitCode)
}
