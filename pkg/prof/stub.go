//go:build !profile

package prof

import (
	"fmt"

	"github.com/ardnew/usbtree/pkg"
)

// Session is inert when built without the "profile" tag.
type Session struct{}

// Start fails with pkg.ErrNotSupported if o requests any profile.
func Start(o Options) (*Session, error) {
	if o.Enabled() {
		return nil, fmt.Errorf("profiling requires the profile build tag: %w", pkg.ErrNotSupported)
	}
	return &Session{}, nil
}

// Stop does nothing.
func (s *Session) Stop() error { return nil }
