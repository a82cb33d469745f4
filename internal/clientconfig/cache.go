package clientconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Cache is a small persistent key/value store kept in one JSON file. It
// plays the part of the browser's local storage for the controller.
type Cache struct {
	mu   sync.Mutex
	path string
}

// NewCache returns a cache backed by the file at path. The file and its
// directory are created on first write.
func NewCache(path string) *Cache {
	return &Cache{path: path}
}

// Path returns the backing file.
func (c *Cache) Path() string { return c.path }

// Get returns the raw value stored under key.
func (c *Cache) Get(key string) (json.RawMessage, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.readLocked()
	if err != nil {
		return nil, false, err
	}
	v, ok := entries[key]
	return v, ok, nil
}

// Set stores value under key.
func (c *Cache) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.readLocked()
	if err != nil {
		// A corrupt cache file is replaced rather than blocking writes.
		entries = map[string]json.RawMessage{}
	}
	entries[key] = raw
	return c.writeLocked(entries)
}

// Remove deletes key.
func (c *Cache) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.readLocked()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return c.writeLocked(entries)
}

func (c *Cache) readLocked() (map[string]json.RawMessage, error) {
	entries := map[string]json.RawMessage{}
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse cache %s: %w", c.path, err)
	}
	return entries, nil
}

func (c *Cache) writeLocked(entries map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
