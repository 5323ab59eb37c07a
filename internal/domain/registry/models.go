package registry

// Record is one known vehicle: the attributes we expect to observe when
// its plate is decoded. Records are immutable after load.
type Record struct {
	Plate  string `json:"plate"`
	Make   string `json:"make"`
	Model  string `json:"model"`
	Color  string `json:"color"`
	Wanted bool   `json:"wanted"`
}

// Lookup resolves a canonical plate to its record. Exact match only; a
// single misread character yields a miss, never a near match.
type Lookup interface {
	Find(plate string) (Record, bool)
}

// Registry is an in-memory Lookup built once at startup.
type Registry struct {
	records map[string]Record
}

// New builds a registry from records, keyed by the canonical plate the
// caller already normalized. Later duplicates win.
func New(records []Record) *Registry {
	m := make(map[string]Record, len(records))
	for _, rec := range records {
		m[rec.Plate] = rec
	}
	return &Registry{records: m}
}

func (r *Registry) Find(plate string) (Record, bool) {
	rec, ok := r.records[plate]
	return rec, ok
}

// Size reports the number of loaded records.
func (r *Registry) Size() int {
	return len(r.records)
}
