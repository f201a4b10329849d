package tree

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ardnew/usbtree/pkg"
	"github.com/ardnew/usbtree/snapshot"
)

// Factory constructs the Device that will represent a newly seen record.
// Implementations may return a Device carrying their own data via SetData;
// the matcher fills in every attribute afterwards.
type Factory interface {
	NewDevice(rec *snapshot.Record) *Device
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(rec *snapshot.Record) *Device

// NewDevice calls f(rec).
func (f FactoryFunc) NewDevice(rec *snapshot.Record) *Device { return f(rec) }

// DefaultFactory returns the factory producing plain devices.
func DefaultFactory() Factory {
	return FactoryFunc(func(*snapshot.Record) *Device { return NewDevice() })
}

// Matcher maps snapshot records to live devices by instance id and is the
// only place devices are created. Its cache is never purged; an entry whose
// device has been detached is replaced the next time its key is seen.
type Matcher struct {
	factory Factory
	querier snapshot.Querier
	log     *slog.Logger

	mu    sync.Mutex
	cache map[string]*Device
}

// NewMatcher returns a matcher creating devices with f. A nil f selects
// DefaultFactory. q, if not nil, resolves details for records that arrive
// without them.
func NewMatcher(f Factory, q snapshot.Querier) *Matcher {
	if f == nil {
		f = DefaultFactory()
	}
	return &Matcher{
		factory: f,
		querier: q,
		log:     pkg.Logger(pkg.ComponentMatcher),
		cache:   make(map[string]*Device),
	}
}

func (m *Matcher) setLogger(l *slog.Logger) {
	m.log = l.With("component", string(pkg.ComponentMatcher))
}

// MatchOrCreate returns the live device for rec, updating it in place, or
// creates one when rec's instance id has no live device. Devices that drop
// out of the returned device's subtree are detached before it returns.
func (m *Matcher) MatchOrCreate(rec *snapshot.Record) (*Device, error) {
	if rec == nil {
		return nil, fmt.Errorf("match record: %w", pkg.ErrInvalidParameter)
	}
	c := m.newCycle()
	d := m.match(rec, c)
	c.finish()
	return d, nil
}

// Len returns the number of cached identity keys.
func (m *Matcher) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}

func (m *Matcher) lookup(id string) *Device {
	if id == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.cache[id]
	if d == nil || d.Detached() {
		return nil
	}
	return d
}

func (m *Matcher) store(id string, d *Device) {
	if id == "" {
		return
	}
	m.mu.Lock()
	m.cache[id] = d
	m.mu.Unlock()
}

// match is MatchOrCreate within an ongoing cycle. The cache lock is never
// held across update, which recurses back into the matcher.
func (m *Matcher) match(rec *snapshot.Record, c *cycle) *Device {
	if d := m.lookup(rec.InstanceID); d != nil {
		d.update(rec, c)
		return d
	}

	d := m.factory.NewDevice(rec)
	if d == nil {
		m.log.Warn("factory returned no device", "id", rec.InstanceID)
		d = NewDevice()
	}
	d.update(rec, c)
	m.store(rec.InstanceID, d)
	c.created++

	m.log.Debug("device created", "id", rec.InstanceID, "interface", rec.IsInterface)
	return d
}

func (m *Matcher) newCycle() *cycle {
	return &cycle{matcher: m}
}

// cycle carries the bookkeeping of one reconciliation pass.
type cycle struct {
	matcher *Matcher
	removed []*Device
	created int
	dropped int
}

// details returns the resolved details of rec, querying them on demand when
// the snapshot was not resolved up front.
func (c *cycle) details(rec *snapshot.Record) *snapshot.Details {
	if rec.Resolved() {
		return rec.Details
	}
	if q := c.matcher.querier; q != nil {
		rec.Details = snapshot.ResolveRecord(rec.Node, q)
		return rec.Details
	}
	return &snapshot.Details{
		Description:      snapshot.NoValue,
		ClassDescription: snapshot.NoValue,
		HardwareIDs:      []string{},
	}
}

// finish tears down every device removed during the cycle that was not
// re-attached to another parent.
func (c *cycle) finish() {
	for _, d := range c.removed {
		if d.Parent() != nil || d.Detached() {
			continue
		}
		d.detach()
		c.dropped++
		c.matcher.log.Debug("device removed", "id", d.InstanceID())
	}
	c.removed = nil
}
