package cli

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger points the global zerolog logger at stderr. format "json"
// writes JSON lines, anything else a console format. Unknown levels fall
// back to info.
func InitLogger(level, format string) {
	initLogger(os.Stderr, level, format)
}

func initLogger(out io.Writer, level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if strings.ToLower(format) == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()
}

// Setup loads the configuration at path (see Load) and initializes the
// logger from it.
func Setup(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		InitLogger("info", "text")
		return cfg, err
	}
	InitLogger(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}
