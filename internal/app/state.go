// Package app provides application lifecycle management, session state
// and events.
package app

import (
	"fmt"
	"sync"

	"frame-marker/internal/annotation"
	"frame-marker/internal/calibrate"
	"frame-marker/internal/interaction"
	"frame-marker/internal/mapper"
	"frame-marker/internal/media"
	"frame-marker/internal/project"
)

// EventType identifies application-level events.
type EventType int

const (
	EventMediaLoaded EventType = iota
	EventDocumentLoaded
	EventDocumentSaved
	EventModified
	EventSplitChanged
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// Session is the full per-surface stack: one media frame, one annotation
// store, and the mapper/calibration/interaction machinery bound to it.
// Two sessions exist in split view and never share mutable state.
type Session struct {
	mu sync.RWMutex

	Store  *annotation.Store
	Mapper *mapper.Mapper
	Calib  *calibrate.Engine
	Ctrl   *interaction.Controller

	Frame    *media.Frame
	playback float64
}

// NewSession wires an empty session.
func NewSession(durations annotation.Durations) *Session {
	s := &Session{
		Store:  annotation.NewStore(),
		Mapper: mapper.New(),
	}
	s.Store.SetDurations(durations)
	s.Store.SetProjector(s.Mapper.ToVisual)
	s.Calib = calibrate.New(s.Store, s.Mapper)
	s.Ctrl = interaction.New(s.Store, s.Mapper, s.Calib, s.PlaybackTime)
	return s
}

// LoadMedia decodes the frame at path and rebinds the surface aspect
// ratio to it. Annotations are kept: their geometry is normalized, so
// they reproject onto the new content box.
func (s *Session) LoadMedia(path string) error {
	if !media.IsSupportedFormat(path) {
		return fmt.Errorf("unsupported media format: %s", path)
	}
	frame, err := media.Load(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.Frame = frame
	s.mu.Unlock()

	s.Mapper.SetAspectRatio(frame.AspectRatio())
	s.Store.RecomputeAngles()
	return nil
}

// Media returns the loaded frame, or nil.
func (s *Session) Media() *media.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Frame
}

// SetPlaybackTime advances the session clock. Time-windowed annotations
// show and hide against this value.
func (s *Session) SetPlaybackTime(t float64) {
	s.mu.Lock()
	s.playback = t
	s.mu.Unlock()
}

// PlaybackTime returns the current session clock in seconds.
func (s *Session) PlaybackTime() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playback
}

// State holds the application state: the primary session, an optional
// secondary one for split view, and the document path.
type State struct {
	mu sync.RWMutex

	DocumentPath string
	Modified     bool

	Primary   *Session
	Secondary *Session

	durations annotation.Durations
	listeners map[EventType][]EventListener
}

// NewState creates the application state with one session.
func NewState(durations annotation.Durations) *State {
	st := &State{
		durations: durations,
		listeners: make(map[EventType][]EventListener),
	}
	st.Primary = st.newTrackedSession()
	return st
}

func (st *State) newTrackedSession() *Session {
	s := NewSession(st.durations)
	s.Store.On(annotation.EventAnnotationsChanged, func(interface{}) {
		st.SetModified(true)
	})
	return s
}

// On registers an event listener for the specified event type.
func (st *State) On(event EventType, listener EventListener) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.listeners[event] = append(st.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (st *State) Emit(event EventType, data interface{}) {
	st.mu.RLock()
	listeners := st.listeners[event]
	st.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SetModified marks the document as modified and emits an event.
func (st *State) SetModified(modified bool) {
	st.mu.Lock()
	changed := st.Modified != modified
	st.Modified = modified
	st.mu.Unlock()
	if changed {
		st.Emit(EventModified, modified)
	}
}

// SetSplit enables or disables the secondary session. Disabling drops its
// annotations; the primary session is never touched.
func (st *State) SetSplit(enabled bool) {
	st.mu.Lock()
	if enabled && st.Secondary == nil {
		st.Secondary = st.newTrackedSession()
	} else if !enabled {
		st.Secondary = nil
	}
	st.mu.Unlock()
	st.Emit(EventSplitChanged, enabled)
}

// SplitActive reports whether the secondary session exists.
func (st *State) SplitActive() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.Secondary != nil
}

// LoadMedia loads a frame into the primary session.
func (st *State) LoadMedia(path string) error {
	if err := st.Primary.LoadMedia(path); err != nil {
		return err
	}
	st.Emit(EventMediaLoaded, path)
	return nil
}

// LoadDocument reads an annotation document into the primary session,
// loading the referenced media when present. Undo history is reset.
func (st *State) LoadDocument(path string) error {
	doc, err := project.Load(path)
	if err != nil {
		return err
	}

	if mediaPath := doc.ResolveMediaPath(path); mediaPath != "" {
		if err := st.Primary.LoadMedia(mediaPath); err != nil {
			return err
		}
	}
	st.Primary.Store.LoadSnap(doc.Snapshot())

	st.mu.Lock()
	st.DocumentPath = path
	st.Modified = false
	st.mu.Unlock()

	st.Emit(EventDocumentLoaded, path)
	return nil
}

// SaveDocument writes the primary session's annotations to path.
func (st *State) SaveDocument(path string) error {
	var mediaPath string
	if frame := st.Primary.Media(); frame != nil {
		mediaPath = frame.Path
	}

	doc := project.FromSnapshot(st.Primary.Store.Snapshot(), path, mediaPath)
	if err := project.Save(path, doc); err != nil {
		return err
	}

	st.mu.Lock()
	st.DocumentPath = path
	st.Modified = false
	st.mu.Unlock()

	st.Emit(EventDocumentSaved, path)
	return nil
}
