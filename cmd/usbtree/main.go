//go:build linux

// Command usbtree prints the USB device tree and optionally follows it.
//
// Usage:
//
//	usbtree [-c file] [-i interval] [-w] [--nats_url url] [-v level]
//
// Without -w the tree is printed once. With -w every change is printed
// until SIGINT or SIGTERM. Configuration may also come from usbtree.yaml
// or USBTREE_* environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ardnew/usbtree/internal/config"
	"github.com/ardnew/usbtree/internal/natsink"
	"github.com/ardnew/usbtree/pkg"
	"github.com/ardnew/usbtree/pkg/linux/usbid"
	"github.com/ardnew/usbtree/pkg/prof"
	"github.com/ardnew/usbtree/snapshot/sysfs"
	"github.com/ardnew/usbtree/tree"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		pkg.LogError(pkg.ComponentCmd, "usbtree failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	fs := config.Flags(filepath.Base(os.Args[0]))
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}

	level, _ := pkg.ParseLogLevel(cfg.Log.Level)
	pkg.SetLogLevel(level)
	pkg.SetLogFormat(pkg.ParseLogFormat(cfg.Log.Format))
	if cfg.ConfigFile != "" {
		pkg.LogDebug(pkg.ComponentCmd, "loaded config", "file", cfg.ConfigFile)
	}

	session, err := prof.Start(prof.Options{
		CPU:  cfg.Profile.CPU,
		Heap: cfg.Profile.Heap,
		Addr: cfg.Profile.Addr,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Stop(); err != nil {
			pkg.LogWarn(pkg.ComponentCmd, "failed to write profiles", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := usbid.NewWithPaths(cfg.USBIDs)
	if !db.Load() {
		pkg.LogWarn(pkg.ComponentCmd, "usb.ids database not found", "paths", cfg.USBIDs)
	}
	src := sysfs.New(sysfs.WithRoot(cfg.SysfsRoot), sysfs.WithDatabase(db))

	// Observers attach between the first cycle and Start, so no change
	// after the initial print goes unseen.
	opts := []tree.Option{tree.WithInterval(cfg.Interval), tree.WithDeferredStart()}

	var hp *sysfs.Hotplug
	if cfg.Watch && cfg.Hotplug {
		if hp, err = sysfs.NewHotplug(nil); err != nil {
			pkg.LogWarn(pkg.ComponentCmd, "hotplug unavailable, polling only", "error", err)
			hp = nil
		} else {
			defer func() {
				stop()
				_ = hp.Close()
			}()
			go func() {
				if err := hp.Run(ctx); err != nil && !errors.Is(err, context.Canceled) &&
					!errors.Is(err, pkg.ErrClosed) {
					pkg.LogWarn(pkg.ComponentCmd, "hotplug monitor stopped", "error", err)
				}
			}()
			opts = append(opts, tree.WithTrigger(hp.Trigger()))
		}
	}

	t, err := tree.New(ctx, src, opts...)
	if err != nil {
		return fmt.Errorf("failed to start device tree: %w", err)
	}
	defer func() {
		_ = t.Close()
		<-t.Done()
	}()

	st := newStyles(os.Stdout)
	printList(os.Stdout, st, t.List().Items())
	fmt.Fprintln(os.Stdout)
	printTree(os.Stdout, st, t.Root())

	if !cfg.Watch {
		return nil
	}

	var sink *natsink.Sink
	if cfg.NATS.URL != "" {
		nc, err := natsink.Connect(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer nc.Close()

		if sink, err = natsink.New(nc, cfg.NATS.Subject, nil); err != nil {
			return err
		}
		defer sink.Attach(t)()
		pkg.LogInfo(pkg.ComponentCmd, "publishing events", "url", cfg.NATS.URL, "subject", cfg.NATS.Subject)
	}

	defer newWatcher(os.Stdout, st).attach(t)()
	t.Start()

	select {
	case <-ctx.Done():
	case <-t.Done():
	}

	s := t.Stats()
	summary := []any{
		"cycles", s.Cycles,
		"skipped", s.Skipped,
		"suppressed", s.Suppressed,
		"errors", s.Errors,
	}
	if hp != nil {
		summary = append(summary, "uevents", hp.Events())
	}
	if sink != nil {
		published, failed := sink.Stats()
		summary = append(summary, "published", published, "publish_failed", failed)
	}
	pkg.LogInfo(pkg.ComponentCmd, "stopped", summary...)
	return nil
}
