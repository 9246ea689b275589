package signal

import (
	"fmt"
	"slices"
)

// Collection is an insertion-ordered map from dataset key to table. It is
// owned by one caller at a time and is not safe for concurrent use.
type Collection struct {
	keys   []string
	tables map[string]*Table
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{tables: make(map[string]*Table)}
}

// Add inserts a table under key. Duplicate keys are rejected.
func (c *Collection) Add(key string, t *Table) error {
	if t == nil {
		return fmt.Errorf("nil table for key %q", key)
	}
	if _, ok := c.tables[key]; ok {
		return fmt.Errorf("duplicate key %q", key)
	}
	c.keys = append(c.keys, key)
	c.tables[key] = t
	return nil
}

// Set inserts or replaces the table under key, keeping its position.
func (c *Collection) Set(key string, t *Table) {
	if _, ok := c.tables[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.tables[key] = t
}

// Get returns the table for key.
func (c *Collection) Get(key string) (*Table, bool) {
	t, ok := c.tables[key]
	return t, ok
}

// Delete removes key if present.
func (c *Collection) Delete(key string) {
	if _, ok := c.tables[key]; !ok {
		return
	}
	delete(c.tables, key)
	c.keys = slices.DeleteFunc(c.keys, func(k string) bool { return k == key })
}

// DeleteFunc removes every entry for which drop returns true and reports
// how many were removed.
func (c *Collection) DeleteFunc(drop func(key string, t *Table) bool) int {
	removed := 0
	kept := c.keys[:0]
	for _, k := range c.keys {
		if drop(k, c.tables[k]) {
			delete(c.tables, k)
			removed++
			continue
		}
		kept = append(kept, k)
	}
	c.keys = kept
	return removed
}

// Keys returns the keys in insertion order.
func (c *Collection) Keys() []string {
	return slices.Clone(c.keys)
}

// Len returns the number of tables.
func (c *Collection) Len() int {
	return len(c.keys)
}

// Each visits tables in insertion order until fn returns false.
func (c *Collection) Each(fn func(key string, t *Table) bool) {
	for _, k := range c.keys {
		if !fn(k, c.tables[k]) {
			return
		}
	}
}

// Clone deep-copies every table.
func (c *Collection) Clone() *Collection {
	out := NewCollection()
	for _, k := range c.keys {
		out.Set(k, c.tables[k].Clone())
	}
	return out
}
