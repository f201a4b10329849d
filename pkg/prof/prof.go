//go:build profile

package prof

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	rpprof "runtime/pprof"
	"sync"
	"time"

	"github.com/ardnew/usbtree/pkg"
)

// Session is a running set of profiles.
type Session struct {
	opts Options
	cpu  *os.File
	srv  *http.Server
	once sync.Once
	err  error
}

var (
	// activeMu guards active; the runtime allows one CPU profile at a time.
	activeMu sync.Mutex
	active   bool
)

// Start begins the profiles selected by o.
func Start(o Options) (*Session, error) {
	activeMu.Lock()
	defer activeMu.Unlock()
	if active {
		return nil, fmt.Errorf("profile session already active: %w", pkg.ErrInvalidParameter)
	}

	s := &Session{opts: o}
	if o.CPU != "" {
		f, err := os.Create(o.CPU)
		if err != nil {
			return nil, fmt.Errorf("create cpu profile: %w", err)
		}
		if err := rpprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("start cpu profile: %w", err)
		}
		s.cpu = f
	}

	if o.Addr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		s.srv = &http.Server{Addr: o.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				pkg.LogWarn(pkg.ComponentCmd, "pprof server stopped", "addr", o.Addr, "error", err)
			}
		}()
	}

	active = true
	return s, nil
}

// Stop ends the CPU profile, writes the snapshot profiles and shuts down
// the HTTP handlers. Only the first call has any effect.
func (s *Session) Stop() error {
	s.once.Do(func() {
		var errs []error
		if s.cpu != nil {
			rpprof.StopCPUProfile()
			errs = append(errs, s.cpu.Close())
		}
		if s.opts.Heap != "" {
			errs = append(errs, writeProfile("heap", s.opts.Heap))
		}
		if s.opts.Goroutine != "" {
			errs = append(errs, writeProfile("goroutine", s.opts.Goroutine))
		}
		if s.srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			errs = append(errs, s.srv.Shutdown(ctx))
			cancel()
		}
		s.err = errors.Join(errs...)

		activeMu.Lock()
		active = false
		activeMu.Unlock()
	})
	return s.err
}

func writeProfile(name, path string) error {
	p := rpprof.Lookup(name)
	if p == nil {
		return fmt.Errorf("profile %s: %w", name, pkg.ErrNotSupported)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return p.WriteTo(f, 0)
}
