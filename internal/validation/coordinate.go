package validation

// CoordinateLimit counts how often a schema coordinate (Type.field) occurs on
// the current traversal path.
type CoordinateLimit struct {
	Max   int
	Count int
}

// Add increments the counter. It returns false without incrementing once the
// maximum is reached. A non-positive Max means unlimited.
func (l *CoordinateLimit) Add() bool {
	if l.Max > 0 && l.Count >= l.Max {
		return false
	}
	l.Count++
	return true
}

// Remove decrements the counter.
func (l *CoordinateLimit) Remove() {
	if l.Count > 0 {
		l.Count--
	}
}

func (l *CoordinateLimit) reset() {
	l.Max = 0
	l.Count = 0
}

// FieldDepthCycleTracker enforces recursion limits per coordinate. Limits are
// created lazily and recycled into a free-list when the tracker is cleared.
type FieldDepthCycleTracker struct {
	DefaultMax int
	Maxima     map[string]int

	active   map[string]*CoordinateLimit
	freeList []*CoordinateLimit
}

func NewFieldDepthCycleTracker() *FieldDepthCycleTracker {
	return &FieldDepthCycleTracker{active: make(map[string]*CoordinateLimit)}
}

// Initialize prepares the tracker for a new pass with the given limits.
func (t *FieldDepthCycleTracker) Initialize(defaultMax int, maxima map[string]int) {
	t.Clear()
	t.DefaultMax = defaultMax
	t.Maxima = maxima
}

// Add enters a coordinate. It returns false when the coordinate has already
// recurred as often as allowed.
func (t *FieldDepthCycleTracker) Add(coordinate string) bool {
	limit, ok := t.active[coordinate]
	if !ok {
		limit = t.acquire()
		limit.Max = t.DefaultMax
		if max, ok := t.Maxima[coordinate]; ok {
			limit.Max = max
		}
		t.active[coordinate] = limit
	}
	return limit.Add()
}

// Remove leaves a coordinate previously entered with Add.
func (t *FieldDepthCycleTracker) Remove(coordinate string) {
	if limit, ok := t.active[coordinate]; ok {
		limit.Remove()
	}
}

// Depth returns how often the coordinate occurs on the current path.
func (t *FieldDepthCycleTracker) Depth(coordinate string) int {
	if limit, ok := t.active[coordinate]; ok {
		return limit.Count
	}
	return 0
}

// Clear recycles every limit and drops the configured maxima.
func (t *FieldDepthCycleTracker) Clear() {
	for key, limit := range t.active {
		limit.reset()
		t.freeList = append(t.freeList, limit)
		delete(t.active, key)
	}
	t.DefaultMax = 0
	t.Maxima = nil
}

func (t *FieldDepthCycleTracker) acquire() *CoordinateLimit {
	if n := len(t.freeList); n > 0 {
		limit := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		return limit
	}
	return &CoordinateLimit{}
}
