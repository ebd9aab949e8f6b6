// Package state holds the resumption state for incremental extraction: a
// nested map of replication-key watermarks, scoped per stream and, for
// form-scoped streams, per form id. Watermarks are RFC3339 UTC strings, so
// lexicographic order matches chronological order. All operations are pure
// map manipulation; persistence is the caller's concern.
package state

// Hierarchy exposes the parent/child stream topology the bookmark
// recursion walks. The stream registry implements it.
type Hierarchy interface {
	// Children returns the child stream ids of a stream, empty when leaf.
	Children(stream string) []string
	// ReplicationKey returns the stream's replication key field name.
	ReplicationKey(stream string) string
}

// State is the full resumption state map. For form-scoped streams the
// value under a stream id is {form_id: {replication_key: watermark}}; for
// the global forms stream it is {replication_key: watermark} directly.
type State struct {
	Bookmarks map[string]map[string]interface{} `json:"bookmarks"`
}

// New returns an empty state.
func New() *State {
	return &State{Bookmarks: make(map[string]map[string]interface{})}
}

// GetBookmark reads the watermark for a stream, scoped to formID when
// non-empty. Missing entries at any level return def, never an error.
func (s *State) GetBookmark(stream, formID, key, def string) string {
	if s == nil || s.Bookmarks == nil {
		return def
	}
	streamMap, ok := s.Bookmarks[stream]
	if !ok {
		return def
	}
	if formID == "" {
		if v, ok := streamMap[key].(string); ok {
			return v
		}
		return def
	}
	formMap, ok := streamMap[formID].(map[string]interface{})
	if !ok {
		return def
	}
	if v, ok := formMap[key].(string); ok {
		return v
	}
	return def
}

// setBookmark writes a single watermark, creating intermediate maps.
func (s *State) setBookmark(stream, formID, key, value string) {
	if s.Bookmarks == nil {
		s.Bookmarks = make(map[string]map[string]interface{})
	}
	streamMap, ok := s.Bookmarks[stream]
	if !ok {
		streamMap = make(map[string]interface{})
		s.Bookmarks[stream] = streamMap
	}
	if formID == "" {
		streamMap[key] = value
		return
	}
	formMap, ok := streamMap[formID].(map[string]interface{})
	if !ok {
		formMap = make(map[string]interface{})
		streamMap[formID] = formMap
	}
	formMap[key] = value
}

// GetMinBookmark returns the minimum of upperBound, the stream's own
// watermark when the stream is selected, and the same computation over
// each selected child. A parent page must never advance past the slowest
// selected child's confirmed progress, otherwise selecting a child later
// would skip data the parent already paged past.
func (s *State) GetMinBookmark(h Hierarchy, stream string, selected map[string]bool, upperBound, def, formID string) string {
	min := upperBound
	if selected[stream] {
		if b := s.GetBookmark(stream, formID, h.ReplicationKey(stream), def); b < min {
			min = b
		}
	}
	for _, child := range h.Children(stream) {
		if !selected[child] {
			continue
		}
		if b := s.GetMinBookmark(h, child, selected, upperBound, def, formID); b < min {
			min = b
		}
	}
	return min
}

// WriteBookmark records value as the stream's watermark when the stream is
// selected, then recurses into every child regardless of selection. The
// recursion is unconditional but each write is gated, so unselected
// streams never gain state entries while later selection of a child still
// starts cleanly from the read-path default. Writes never lower an
// existing watermark: a run that emitted nothing new keeps the prior one.
func (s *State) WriteBookmark(h Hierarchy, stream string, selected map[string]bool, formID, value string) {
	if selected[stream] {
		key := h.ReplicationKey(stream)
		if existing := s.GetBookmark(stream, formID, key, ""); value > existing {
			s.setBookmark(stream, formID, key, value)
		}
	}
	for _, child := range h.Children(stream) {
		s.WriteBookmark(h, child, selected, formID, value)
	}
}

// Snapshot returns a deep copy of the bookmark map, used to pin a floor
// for the uncompleted-submissions pass before the completed pass mutates
// the live state.
func (s *State) Snapshot() *State {
	out := New()
	for stream, streamMap := range s.Bookmarks {
		copied := make(map[string]interface{}, len(streamMap))
		for k, v := range streamMap {
			if formMap, ok := v.(map[string]interface{}); ok {
				inner := make(map[string]interface{}, len(formMap))
				for fk, fv := range formMap {
					inner[fk] = fv
				}
				copied[k] = inner
				continue
			}
			copied[k] = v
		}
		out.Bookmarks[stream] = copied
	}
	return out
}
