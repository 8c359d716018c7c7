package importer

import "github.com/sells-group/employer-import/internal/employer"

// workingMap tracks who holds which secondary key while a run mutates the
// store, so that later candidates see the effect of earlier ones.
type workingMap struct {
	byTaxID map[string]string // tax id -> employer id
	keyOf   map[string]string // employer id -> secondary key
	holder  map[string]string // secondary key -> employer id
}

func newWorkingMap(snapshot []employer.Employer) *workingMap {
	w := &workingMap{
		byTaxID: make(map[string]string, len(snapshot)),
		keyOf:   make(map[string]string, len(snapshot)),
		holder:  make(map[string]string, len(snapshot)),
	}
	for _, e := range snapshot {
		w.add(e.TaxID, e.ID, e.SecondaryKey)
	}
	return w
}

func (w *workingMap) idOf(taxID string) string {
	return w.byTaxID[taxID]
}

func (w *workingMap) holderOf(key string) string {
	return w.holder[key]
}

// add registers an employer. An empty key means it holds none.
func (w *workingMap) add(taxID, id, key string) {
	w.byTaxID[taxID] = id
	if key != "" {
		w.claim(id, key)
	}
}

// claim moves key to id, dropping whatever key id held before.
func (w *workingMap) claim(id, key string) {
	if old, ok := w.keyOf[id]; ok && w.holder[old] == id {
		delete(w.holder, old)
	}
	w.keyOf[id] = key
	w.holder[key] = id
}

// release clears key from its holder unless the holder is exceptID, and
// returns how many holders were freed.
func (w *workingMap) release(key, exceptID string) int {
	id, ok := w.holder[key]
	if !ok || id == exceptID {
		return 0
	}
	delete(w.holder, key)
	delete(w.keyOf, id)
	return 1
}
