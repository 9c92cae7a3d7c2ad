package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/jsaowji/d2vsource/pkg/adapters/indexcache"
	"github.com/jsaowji/d2vsource/pkg/adapters/logger"
	"github.com/jsaowji/d2vsource/pkg/adapters/osfilesystem"
	"github.com/jsaowji/d2vsource/pkg/adapters/smartdecoder"
	"github.com/jsaowji/d2vsource/pkg/config"
	"github.com/jsaowji/d2vsource/pkg/index"
	"github.com/jsaowji/d2vsource/pkg/ports"
	"github.com/jsaowji/d2vsource/pkg/session"
)

var errNoIndex = errors.New("no index file given")

// env is what every command needs: configuration, logger, the loaded index
// and a backend factory.
type env struct {
	cfg      config.Config
	log      ports.Logger
	fs       ports.FileSystem
	idx      *index.Index
	backends smartdecoder.Factory
	decoder  smartdecoder.Info
}

// loadConfig reads --config and applies the global flags on top.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	}

	if c.IsSet("backend") {
		cfg.Backend = c.String("backend")
	}
	if c.IsSet("ffmpeg-path") {
		cfg.FFmpegPath = c.String("ffmpeg-path")
	}
	if c.IsSet("scratch-size") {
		cfg.ScratchSize = c.Int("scratch-size")
	}
	if c.IsSet("cache") {
		cfg.Cache.Enabled = c.Bool("cache")
	}
	if c.IsSet("cache-path") {
		cfg.Cache.Path = c.String("cache-path")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.Bool("quiet") {
		cfg.LogLevel = "quiet"
	}
	return cfg, cfg.Validate()
}

// setup loads the configuration, the index named by the first argument (or
// the config) and selects a backend.
func setup(c *cli.Context) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, fs: osfilesystem.New()}
	if level := cfg.LogLevelValue(); level == ports.LevelQuiet {
		e.log = logger.NewNoop()
	} else {
		e.log = logger.NewConsole(level)
	}

	path := c.Args().First()
	if path == "" {
		path = cfg.Index
	}
	if path == "" {
		return nil, errNoIndex
	}
	if e.idx, err = e.loadIndex(path); err != nil {
		return nil, err
	}

	e.backends, e.decoder, err = smartdecoder.NewFactory(e.idx, cfg.ToDecoderOptions(e.log))
	if err != nil {
		return nil, err
	}
	e.log.Debug("Using %s backend for %s", e.decoder.Backend, e.decoder.Codec)
	return e, nil
}

func (e *env) loadIndex(path string) (*index.Index, error) {
	if !e.cfg.Cache.Enabled {
		return index.LoadFile(path)
	}
	cache, err := indexcache.Open(e.cfg.Cache.Path, e.log)
	if err != nil {
		e.log.Warn("Index cache unavailable: %v", err)
		return index.LoadFile(path)
	}
	defer cache.Close()
	return cache.Load(path)
}

// openSession opens a session with a fresh backend.
func (e *env) openSession() (*session.Session, error) {
	backend, err := e.backends()
	if err != nil {
		return nil, err
	}
	return session.Open(e.idx, session.Deps{
		FS:      e.fs,
		Backend: backend,
		Logger:  e.log,
	}, e.cfg.ToSessionOptions())
}

// frameArg parses the positional argument at i as a frame number.
func frameArg(c *cli.Context, i int) (int, error) {
	s := c.Args().Get(i)
	if s == "" {
		return 0, errors.New(l10n.T("frame number argument is required"))
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: %q", l10n.T("invalid frame number"), s)
	}
	return n, nil
}
