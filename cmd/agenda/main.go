package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cloud.google.com/go/civil"
	"github.com/robfig/cron/v3"

	"agenda/internal/agenda"
	"agenda/internal/config"
	"agenda/internal/ics"
	appLog "agenda/internal/log"
	"agenda/internal/web"
)

type flagConfig struct {
	configPath string
	day        string
	days       int
	exportPath string
	importPath string
	serve      bool
	logLevel   string
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	applyLogLevel(conf.LogLevel, flags.logLevel)

	if err := run(flags, conf, os.Stdout); err != nil {
		appLog.Error("agenda failed", err)
		os.Exit(1)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", defaultConfigPath(), "Path to config file")
	flag.StringVar(&cfg.day, "day", "", "First day to print (YYYY-MM-DD, default today)")
	flag.IntVar(&cfg.days, "days", 1, "Number of days to print")
	flag.StringVar(&cfg.exportPath, "export", "", "Write the agenda as ICS to this file ('-' for stdout)")
	flag.StringVar(&cfg.importPath, "import", "", "Append events from this ICS file to the config")
	flag.BoolVar(&cfg.serve, "serve", false, "Run the HTTP API and the cron digest until interrupted")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Override config log_level")

	flag.Parse()

	return cfg
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "agenda.yaml"
	}
	return filepath.Join(dir, "agenda", "config.yaml")
}

func applyLogLevel(values ...string) {
	for _, v := range values {
		if v == "" {
			continue
		}
		if l, ok := appLog.ParseLevel(v); ok {
			appLog.SetLevel(l)
		} else {
			appLog.Warn("unknown log level; keeping previous", "value", v)
		}
	}
}

func run(flags flagConfig, conf *config.Config, out io.Writer) error {
	if flags.importPath != "" {
		if err := importICS(flags, conf); err != nil {
			return err
		}
	}

	a, err := conf.Agenda()
	if err != nil {
		return err
	}

	switch {
	case flags.exportPath != "":
		return exportICS(flags.exportPath, a, out)
	case flags.serve:
		return serve(flags, conf, a)
	}

	from := civil.DateOf(time.Now())
	if flags.day != "" {
		if from, err = civil.ParseDate(flags.day); err != nil {
			return fmt.Errorf("parse -day: %w", err)
		}
	}
	if flags.days < 1 {
		return errors.New("-days must be at least 1")
	}
	for i := 0; i < flags.days; i++ {
		printDay(out, a, from.AddDays(i))
	}
	return nil
}

func printDay(w io.Writer, a *agenda.Agenda, d civil.Date) {
	occs := a.OccurrencesInDay(d)
	fmt.Fprintf(w, "%s (%s)\n", d, d.In(time.UTC).Weekday())
	if len(occs) == 0 {
		fmt.Fprintln(w, "  no events")
		return
	}
	for _, occ := range occs {
		fmt.Fprintf(w, "  %s - %s  %s\n", config.FormatDateTime(occ.Start), config.FormatDateTime(occ.End), occ.Title)
	}
}

func importICS(flags flagConfig, conf *config.Config) error {
	f, err := os.Open(flags.importPath)
	if err != nil {
		return err
	}
	defer f.Close()

	events, err := ics.Decode(f)
	if err != nil {
		return err
	}
	for _, e := range events {
		conf.Events = append(conf.Events, config.FromEvent(e))
	}
	if err := conf.Save(flags.configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	appLog.Info("imported events", "path", flags.importPath, "count", len(events))
	return nil
}

func exportICS(path string, a *agenda.Agenda, stdout io.Writer) error {
	w := stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := ics.Encode(w, a.Events(), ics.EncodeOptions{}); err != nil {
		return err
	}
	appLog.Info("exported agenda", "path", path, "count", a.Len())
	return nil
}

func serve(flags flagConfig, conf *config.Config, a *agenda.Agenda) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := web.NewServer(conf, a)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGHUP {
				reload(flags.configPath, srv)
				continue
			}
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
			return
		}
	}()

	c := cron.New()
	if _, err := c.AddFunc(conf.Digest, func() { digest(srv) }); err != nil {
		return fmt.Errorf("schedule digest %q: %w", conf.Digest, err)
	}
	c.Start()
	defer c.Stop()

	appLog.Info("agenda serving", "listen", conf.Listen, "digest", conf.Digest, "events", a.Len())
	return srv.ListenAndServe(ctx)
}

// reload re-reads the event list; listen address and digest schedule only
// change on restart.
func reload(path string, srv *web.Server) {
	conf, err := config.Load(path)
	if err != nil {
		appLog.Error("reload: config rejected", err, "path", path)
		return
	}
	a, err := conf.Agenda()
	if err != nil {
		appLog.Error("reload: some events skipped", err)
	}
	srv.SetAgenda(a)
	appLog.Info("reload: agenda replaced", "events", a.Len())
}

func digest(srv *web.Server) {
	today := civil.DateOf(time.Now())
	occs := srv.Agenda().OccurrencesInDay(today)
	appLog.Info("digest", "date", today, "events", len(occs))
	for _, occ := range occs {
		appLog.Info("digest event", "title", occ.Title, "start", config.FormatDateTime(occ.Start), "end", config.FormatDateTime(occ.End))
	}
}
