// Package listview is a scrolling window over a flat row source such as the
// visible-item index. It keeps the rows of the window materialized, fetching
// rows that scroll in and recycling rows that scroll out.
package listview

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/vanderheijden86/flatree/pkg/visindex"
)

// ErrOutOfRange is returned for row numbers or scroll factors outside the
// list.
var ErrOutOfRange = errors.New("out of range")

// Provider is the row source; *visindex.Index satisfies it.
type Provider interface {
	Count() (int, error)
	Item(flat int) (visindex.Item, error)
	Recycle(flat int, item visindex.Item) error
}

// Notifier is a provider that reports its own shape changes. New subscribes
// the list to both signals, replacing any handlers already registered.
type Notifier interface {
	OnViewChanged(fn func())
	OnDataChanged(fn func())
}

// List is a viewport of Height rows starting at First.
type List struct {
	provider Provider
	height   int
	first    int

	// held[i] is the item for row heldFirst+i.
	held      []visindex.Item
	heldFirst int
	stale     bool
	dropped   int

	selected    int
	hasSelected bool

	log zerolog.Logger
}

// Option configures a List.
type Option func(*List)

// WithHeight sets the initial number of rows in the window.
func WithHeight(rows int) Option {
	return func(l *List) { l.height = max(rows, 0) }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *List) { l.log = log }
}

// New creates a list over p.
func New(p Provider, opts ...Option) *List {
	l := &List{provider: p, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	if n, ok := p.(Notifier); ok {
		n.OnViewChanged(l.Invalidate)
		n.OnDataChanged(l.Invalidate)
	}
	return l
}

// Height is the window size in rows.
func (l *List) Height() int { return l.height }

// First is the row shown at the top of the window.
func (l *List) First() int { return l.first }

// Dropped counts items discarded by Invalidate without being recycled.
func (l *List) Dropped() int { return l.dropped }

// SetHeight resizes the window.
func (l *List) SetHeight(rows int) error {
	l.height = max(rows, 0)
	return l.sync()
}

// VisibleCount is the number of rows actually shown, which is less than
// Height near the end of the list.
func (l *List) VisibleCount() (int, error) {
	count, err := l.provider.Count()
	if err != nil {
		return 0, err
	}
	return visible(l.clampFirst(l.first, count), l.height, count), nil
}

func visible(first, height, count int) int {
	return max(min(height, count-first), 0)
}

func (l *List) clampFirst(first, count int) int {
	return max(min(first, count-l.height), 0)
}

// Rows returns the items of the window, top first. The slice is owned by
// the list and valid until the next call that scrolls or mutates.
func (l *List) Rows() ([]visindex.Item, error) {
	if err := l.sync(); err != nil {
		return nil, err
	}
	return l.held, nil
}

// ItemAt returns the item of row flat if it is inside the window.
func (l *List) ItemAt(flat int) (visindex.Item, bool) {
	i := flat - l.heldFirst
	if l.stale || i < 0 || i >= len(l.held) {
		return nil, false
	}
	return l.held[i], true
}

// ScrollBy moves the window by delta rows, clamped to the list.
func (l *List) ScrollBy(delta int) error {
	return l.ScrollTo(l.first + delta)
}

// ScrollTo puts row first at the top of the window, clamped to the list.
func (l *List) ScrollTo(first int) error {
	l.first = first
	return l.sync()
}

// ScrollFactor is the window position as a fraction of the scrollable
// range: 0 at the top, 1 at the bottom, 0 when everything fits.
func (l *List) ScrollFactor() (float64, error) {
	count, err := l.provider.Count()
	if err != nil {
		return 0, err
	}
	span := count - l.height
	if span <= 0 {
		return 0, nil
	}
	return float64(l.clampFirst(l.first, count)) / float64(span), nil
}

// SetScrollFactor scrolls to a fraction of the scrollable range.
func (l *List) SetScrollFactor(f float64) error {
	if math.IsNaN(f) || f < 0 || f > 1 {
		return fmt.Errorf("scroll factor %v: %w", f, ErrOutOfRange)
	}
	count, err := l.provider.Count()
	if err != nil {
		return err
	}
	span := max(count-l.height, 0)
	return l.ScrollTo(int(math.Round(f * float64(span))))
}

// EnsureVisible scrolls the least amount that brings row flat into the
// window.
func (l *List) EnsureVisible(flat int) error {
	count, err := l.provider.Count()
	if err != nil {
		return err
	}
	if flat < 0 || flat >= count {
		return fmt.Errorf("row %d of %d: %w", flat, count, ErrOutOfRange)
	}
	switch {
	case flat < l.first:
		return l.ScrollTo(flat)
	case l.height > 0 && flat >= l.first+l.height:
		return l.ScrollTo(flat - l.height + 1)
	}
	return l.sync()
}

// Selected returns the selected row, if any.
func (l *List) Selected() (int, bool) {
	return l.selected, l.hasSelected
}

// Select marks row flat as selected.
func (l *List) Select(flat int) error {
	count, err := l.provider.Count()
	if err != nil {
		return err
	}
	if flat < 0 || flat >= count {
		return fmt.Errorf("row %d of %d: %w", flat, count, ErrOutOfRange)
	}
	l.selected, l.hasSelected = flat, true
	return nil
}

// ClearSelection removes the selection.
func (l *List) ClearSelection() {
	l.selected, l.hasSelected = 0, false
}

// Release recycles every held item. Rows are refetched on the next Rows.
func (l *List) Release() error {
	var errs []error
	for i, item := range l.held {
		if item == nil {
			continue
		}
		if err := l.provider.Recycle(l.heldFirst+i, item); err != nil {
			errs = append(errs, err)
		}
	}
	l.held = l.held[:0]
	return errors.Join(errs...)
}

// Invalidate marks the window stale after the provider changed shape. Items
// still held at that point can no longer be recycled at their old rows and
// are dropped; use Mutate to release them first.
func (l *List) Invalidate() {
	if n := len(l.held); n > 0 && !l.stale {
		l.dropped += n
		l.log.Warn().Int("items", n).Msg("list invalidated while holding items")
		l.held = l.held[:0]
	}
	l.stale = true
}

// Mutate releases the window, runs fn (which changes the provider), then
// invalidates. The window is refetched on the next Rows. A Notifier
// provider invalidates the list on its own; Mutate is still needed to hand
// the held rows back before their row numbers move.
func (l *List) Mutate(fn func() error) error {
	if err := l.Release(); err != nil {
		return err
	}
	err := fn()
	l.Invalidate()
	return err
}

// sync brings the held items in line with the window.
func (l *List) sync() error {
	count, err := l.provider.Count()
	if err != nil {
		return err
	}
	if l.stale {
		l.held = l.held[:0]
		l.stale = false
	}
	if l.hasSelected && l.selected >= count {
		if count == 0 {
			l.ClearSelection()
		} else {
			l.selected = count - 1
		}
	}
	l.first = l.clampFirst(l.first, count)
	n := visible(l.first, l.height, count)

	// Keep the overlap between the held run and the new window.
	lo := max(l.first, l.heldFirst)
	hi := min(l.first+n, l.heldFirst+len(l.held))
	var errs []error
	for i, item := range l.held {
		if row := l.heldFirst + i; row < lo || row >= hi {
			if err := l.provider.Recycle(row, item); err != nil {
				errs = append(errs, err)
			}
		}
	}
	next := make([]visindex.Item, n)
	for row := lo; row < hi; row++ {
		next[row-l.first] = l.held[row-l.heldFirst]
	}
	l.held, l.heldFirst = next, l.first
	for i := range next {
		if next[i] != nil {
			continue
		}
		item, err := l.provider.Item(l.first + i)
		if err != nil {
			errs = append(errs, err, l.Release())
			return errors.Join(errs...)
		}
		next[i] = item
	}
	return errors.Join(errs...)
}
