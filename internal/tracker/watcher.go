package tracker

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// EventKind classifies a newly appended tracker event-log line.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventClosed  EventKind = "closed"
)

// RoutingDestination is where a classified event is sent for review.
type RoutingDestination string

const (
	RouteFile          RoutingDestination = "file"
	RouteCommentOnItem RoutingDestination = "comment-on-item"
	RouteNewItem       RoutingDestination = "new-item"
	RouteNone          RoutingDestination = "none"
)

// logLine is one line of the tracker's append-only event log. Title
// mirrors the work-item's title at the time the line was appended, kept
// here (rather than requiring a round-trip lookup through the adapter)
// so a RoutingRule's TitleGlob can classify on it directly.
type logLine struct {
	ItemID    string `json:"item_id"`
	Title     string `json:"title,omitempty"`
	Status    Status `json:"status"`
	Timestamp string `json:"timestamp"`
}

// classify derives an EventKind from a logLine's status: a line whose
// status is closed is a closure; an open line for an item not seen in
// earlier lines is a creation; anything else is an update.
func classify(line logLine, seenBefore bool) EventKind {
	switch line.Status {
	case StatusClosed:
		return EventClosed
	case StatusOpen:
		if !seenBefore {
			return EventCreated
		}
		return EventUpdated
	default:
		return EventUpdated
	}
}

// RoutingRule maps a classified event to a review destination (spec.md
// Section 4.8: "routed to configurable review destinations"). TitleGlob,
// when set, further restricts the rule to items whose title matches the
// pattern (e.g. "security: *" -> comment-on-item instead of the default
// file route) — a rule with no TitleGlob matches every item of its Kind.
type RoutingRule struct {
	Kind        EventKind
	TitleGlob   string
	Destination RoutingDestination
}

// DefaultRouting sends closures to file review and leaves everything
// else unrouted, a conservative default a deployment is expected to
// override.
func DefaultRouting() []RoutingRule {
	return []RoutingRule{
		{Kind: EventClosed, Destination: RouteFile},
	}
}

// compiledRoutingRule is a RoutingRule with its TitleGlob compiled once,
// at watcher construction, rather than on every classified line.
type compiledRoutingRule struct {
	kind        EventKind
	titleGlob   glob.Glob
	destination RoutingDestination
}

func compileRoutingRules(rules []RoutingRule) []compiledRoutingRule {
	compiled := make([]compiledRoutingRule, 0, len(rules))
	for _, r := range rules {
		c := compiledRoutingRule{kind: r.Kind, destination: r.Destination}
		if r.TitleGlob != "" {
			g, err := glob.Compile(r.TitleGlob, '/')
			if err != nil {
				slog.Warn("skipping invalid tracker routing title glob", "pattern", r.TitleGlob, "error", err)
			} else {
				c.titleGlob = g
			}
		}
		compiled = append(compiled, c)
	}
	return compiled
}

func routeFor(rules []compiledRoutingRule, kind EventKind, title string) RoutingDestination {
	for _, r := range rules {
		if r.kind != kind {
			continue
		}
		if r.titleGlob != nil && !r.titleGlob.Match(title) {
			continue
		}
		return r.destination
	}
	return RouteNone
}

// Watcher monitors a tracker's append-only event log, classifying newly
// appended lines and routing them to review destinations, and firing
// OnClosure for closures so the learning pipeline can react (spec.md
// Section 4.8). It generalizes the teacher's config directory watcher
// from dispatch-on-basename to dispatch-on-line-classification.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	path      string
	offset    int64
	seen      map[string]bool
	rules     []compiledRoutingRule

	// OnEvent fires for every classified line, after routing.
	OnEvent func(ItemID string, kind EventKind, dest RoutingDestination)
	// OnClosure fires specifically for closures, carrying the closure
	// event the learning pipeline consumes.
	OnClosure func(ClosureEvent)
}

// NewWatcher creates a watcher over the tracker event log at path,
// reading any existing content first (so replaying the log on startup
// doesn't re-fire already-seen lines), then watching its directory for
// subsequent appends.
func NewWatcher(path string, rules []RoutingRule) (*Watcher, error) {
	if rules == nil {
		rules = DefaultRouting()
	}

	w := &Watcher{
		path:  path,
		seen:  map[string]bool{},
		rules: compileRoutingRules(rules),
		done:  make(chan struct{}),
	}

	if err := w.catchUp(); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating tracker event watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}
	w.fsWatcher = fw

	go w.processEvents()

	slog.Info("tracker event watcher started", "path", path)
	return w, nil
}

// catchUp reads the event log from the beginning up to its current size
// and advances the read offset, marking every item seen so subsequent
// lines for that item classify as updates rather than creations.
func (w *Watcher) catchUp() error {
	f, err := os.Open(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening tracker event log %s: %w", w.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line logLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		w.seen[line.ItemID] = true
	}
	offset, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("seeking tracker event log %s: %w", w.path, err)
	}
	w.offset = offset
	return nil
}

func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.readNewLines()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("tracker event watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) readNewLines() {
	f, err := os.Open(w.path)
	if err != nil {
		slog.Error("reopening tracker event log failed", "path", w.path, "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Seek(w.offset, io.SeekStart); err != nil {
		slog.Error("seeking tracker event log failed", "path", w.path, "error", err)
		return
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line logLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			slog.Warn("skipping malformed tracker event line", "error", err)
			continue
		}

		kind := classify(line, w.seen[line.ItemID])
		w.seen[line.ItemID] = true
		dest := routeFor(w.rules, kind, line.Title)

		if w.OnEvent != nil {
			w.OnEvent(line.ItemID, kind, dest)
		}
		if kind == EventClosed && w.OnClosure != nil {
			w.OnClosure(ClosureEvent{ItemID: line.ItemID})
		}
	}
	if offset, err := f.Seek(0, io.SeekCurrent); err == nil {
		w.offset = offset
	}
}

// Close stops the watcher and releases its resources.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsWatcher.Close()
}
