package state

import (
	"errors"

	"quickex/storage"
)

type journalEntry struct {
	value   []byte
	deleted bool
}

// Journal buffers writes over a database so an invocation can be committed as
// one batch or thrown away. Reads observe the buffered writes first.
type Journal struct {
	base  storage.Database
	dirty map[string]journalEntry
	order []string
}

// NewJournal opens an empty overlay on base.
func NewJournal(base storage.Database) *Journal {
	return &Journal{base: base, dirty: make(map[string]journalEntry)}
}

// Get returns storage.ErrNotFound when the key is absent or deleted in the
// overlay.
func (j *Journal) Get(key []byte) ([]byte, error) {
	if entry, ok := j.dirty[string(key)]; ok {
		if entry.deleted {
			return nil, storage.ErrNotFound
		}
		return append([]byte(nil), entry.value...), nil
	}
	if j.base == nil {
		return nil, storage.ErrNotFound
	}
	return j.base.Get(key)
}

func (j *Journal) Put(key, value []byte) error {
	j.record(key, journalEntry{value: append([]byte(nil), value...)})
	return nil
}

func (j *Journal) Delete(key []byte) error {
	j.record(key, journalEntry{deleted: true})
	return nil
}

func (j *Journal) record(key []byte, entry journalEntry) {
	k := string(key)
	if _, seen := j.dirty[k]; !seen {
		j.order = append(j.order, k)
	}
	j.dirty[k] = entry
}

// Dirty returns the number of keys touched since the last commit or discard.
func (j *Journal) Dirty() int { return len(j.order) }

// Commit writes every buffered mutation to the base database in one batch.
// The overlay is left untouched when the batch fails.
func (j *Journal) Commit() error {
	if len(j.order) == 0 {
		return nil
	}
	if j.base == nil {
		return errors.New("journal: no backing database")
	}
	batch := j.base.NewBatch()
	for _, k := range j.order {
		entry := j.dirty[k]
		if entry.deleted {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), entry.value)
	}
	if err := batch.Write(); err != nil {
		return err
	}
	j.Discard()
	return nil
}

// Discard drops every buffered mutation.
func (j *Journal) Discard() {
	j.dirty = make(map[string]journalEntry)
	j.order = nil
}
