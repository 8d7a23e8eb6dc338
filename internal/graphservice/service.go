// Package graphservice owns the state around graph builds: the selected note,
// the active settings, the last published snapshot and the sync gate.
// Builds themselves are delegated to a stateless graph builder.
package graphservice

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/starford/notegraph/internal/graph"
	"github.com/starford/notegraph/internal/metrics"
)

// Refresh triggers.
const (
	ReasonStartup         = "startup"
	ReasonNoteChange      = "noteChange"
	ReasonSelectionChange = "noteSelectionChange"
	ReasonSyncComplete    = "syncComplete"
	ReasonSettingsChange  = "settingsChange"
)

// Snapshot is what viewers render.
type Snapshot struct {
	Graph             *graph.Graph `json:"graph"`
	CurrentNoteID     string       `json:"current_note_id"`
	ShowLinkDirection bool         `json:"show_link_direction"`
	NodeFontSize      int          `json:"node_font_size"`
	NodeDistanceRatio float64      `json:"node_distance_ratio"`
}

// GraphBuilder builds one graph per request.
type GraphBuilder interface {
	Build(ctx context.Context, req graph.Request) (*graph.Graph, error)
}

// Publisher receives every snapshot that differs from the previous one.
type Publisher func(reason string, snap *Snapshot)

// Service serializes rebuilds and publishes changed snapshots.
type Service struct {
	builder GraphBuilder
	logger  *slog.Logger
	publish Publisher

	mu       sync.Mutex
	settings Settings
	selected string
	snapshot *Snapshot
	syncing  bool
	inFlight bool
	pending  string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithPublisher sets the snapshot publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publish = p
	}
}

// New creates a service building with b under settings.
func New(b GraphBuilder, settings Settings, opts ...Option) *Service {
	s := &Service{
		builder:  b,
		logger:   slog.Default(),
		settings: settings,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settings returns the active settings.
func (s *Service) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Selected returns the selected note id.
func (s *Service) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Snapshot returns the last published snapshot, or nil before the first one.
func (s *Service) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Current returns the last published snapshot, building one first if none
// exists yet. While a sync holds publishing back it builds an unpublished
// snapshot instead.
func (s *Service) Current(ctx context.Context) (*Snapshot, error) {
	if snap := s.Snapshot(); snap != nil {
		return snap, nil
	}
	if _, err := s.Refresh(ctx, ReasonStartup); err != nil {
		return nil, err
	}
	if snap := s.Snapshot(); snap != nil {
		return snap, nil
	}
	s.mu.Lock()
	settings, selected := s.settings, s.selected
	s.mu.Unlock()
	return s.snapshotFor(ctx, settings, selected)
}

// Refresh rebuilds the graph and publishes it if it changed. It does nothing
// while a sync is in progress. A refresh arriving while another is building
// is folded into one extra rebuild after the current one finishes; the
// running build is never restarted. The result reports whether a snapshot
// was published.
func (s *Service) Refresh(ctx context.Context, reason string) (bool, error) {
	published, _, err := s.refresh(ctx, reason)
	return published, err
}

// refresh reports in queued whether the request was handed to a build
// already in flight instead of running here.
func (s *Service) refresh(ctx context.Context, reason string) (published, queued bool, err error) {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		s.logger.Debug("graphservice: refresh skipped during sync", slog.String("reason", reason))
		return false, false, nil
	}
	if s.inFlight {
		s.pending = reason
		s.mu.Unlock()
		return false, true, nil
	}
	s.inFlight = true
	s.mu.Unlock()

	for {
		changed, buildErr := s.rebuild(ctx, reason)
		published = published || changed
		err = buildErr

		// A failed build still serves the requests queued behind it.
		s.mu.Lock()
		next := s.pending
		s.pending = ""
		if next == "" || s.syncing || ctx.Err() != nil {
			s.inFlight = false
			s.mu.Unlock()
			return published, false, err
		}
		s.mu.Unlock()
		reason = next
	}
}

func (s *Service) rebuild(ctx context.Context, reason string) (bool, error) {
	s.mu.Lock()
	settings, selected := s.settings, s.selected
	s.mu.Unlock()

	snap, err := s.snapshotFor(ctx, settings, selected)
	if err != nil {
		s.logger.Warn("graphservice: build failed",
			slog.String("reason", reason),
			slog.String("error", err.Error()))
		return false, err
	}

	s.mu.Lock()
	if s.snapshot != nil && reflect.DeepEqual(s.snapshot, snap) {
		s.mu.Unlock()
		return false, nil
	}
	s.snapshot = snap
	s.mu.Unlock()

	metrics.SnapshotPublishes.WithLabelValues(reason).Inc()
	s.logger.Info("graphservice: snapshot published",
		slog.String("reason", reason),
		slog.Int("nodes", len(snap.Graph.Nodes)),
		slog.Int("edges", len(snap.Graph.Edges)))
	if s.publish != nil {
		s.publish(reason, snap)
	}
	return true, nil
}

func (s *Service) snapshotFor(ctx context.Context, settings Settings, selected string) (*Snapshot, error) {
	g, err := s.builder.Build(ctx, settings.Request(selected))
	if err != nil {
		return nil, fmt.Errorf("graphservice: build: %w", err)
	}
	return &Snapshot{
		Graph:             g,
		CurrentNoteID:     selected,
		ShowLinkDirection: settings.ShowLinkDirection,
		NodeFontSize:      settings.NodeFontSize,
		NodeDistanceRatio: float64(settings.NodeDistance) / 100.0,
	}, nil
}

// Select changes the selected note, refreshes and returns a snapshot centred
// on noteID. When the refresh is queued behind a running build or held back
// by a sync, the returned snapshot is built here and not published; the
// queued rebuild publishes it later.
func (s *Service) Select(ctx context.Context, noteID string) (*Snapshot, error) {
	s.mu.Lock()
	s.selected = noteID
	s.mu.Unlock()
	_, queued, err := s.refresh(ctx, ReasonSelectionChange)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	settings, snap := s.settings, s.snapshot
	s.mu.Unlock()
	if !queued && snap != nil && snap.CurrentNoteID == noteID {
		return snap, nil
	}
	return s.snapshotFor(ctx, settings, noteID)
}

// UpdateSettings validates and applies settings, then refreshes.
func (s *Service) UpdateSettings(ctx context.Context, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	_, err := s.Refresh(ctx, ReasonSettingsChange)
	return err
}

// BeginSync holds refreshes back until EndSync.
func (s *Service) BeginSync() {
	s.mu.Lock()
	s.syncing = true
	s.mu.Unlock()
}

// EndSync releases the sync gate and refreshes once.
func (s *Service) EndSync(ctx context.Context) error {
	s.mu.Lock()
	s.syncing = false
	s.mu.Unlock()
	_, err := s.Refresh(ctx, ReasonSyncComplete)
	return err
}

// Build runs an ad-hoc build. The snapshot is left untouched.
func (s *Service) Build(ctx context.Context, req graph.Request) (*graph.Graph, error) {
	return s.builder.Build(ctx, req)
}
