// Package catalog holds the static lab inventory the dashboard browses
// and the scanner matches detections against.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Item is one inventory entry. Class links the item to a detection
// class name, so a recognized object can be shown next to its catalog
// record.
type Item struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Class    string   `yaml:"class"`
	Location string   `yaml:"location"`
	Quantity int      `yaml:"quantity"`
	Tags     []string `yaml:"tags"`
	Notes    string   `yaml:"notes"`
}

// Catalog is an immutable item table with lookup indexes.
type Catalog struct {
	items   []Item
	byID    map[string]Item
	byClass map[string][]Item
}

// Load reads the catalog YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var doc struct {
		Items []Item `yaml:"items"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	return New(doc.Items), nil
}

// New builds a catalog from an item list.
func New(items []Item) *Catalog {
	c := &Catalog{
		items:   items,
		byID:    make(map[string]Item, len(items)),
		byClass: make(map[string][]Item),
	}
	for _, item := range items {
		c.byID[item.ID] = item
		if item.Class != "" {
			key := strings.ToLower(item.Class)
			c.byClass[key] = append(c.byClass[key], item)
		}
	}
	return c
}

// Items returns all entries in file order.
func (c *Catalog) Items() []Item {
	return c.items
}

// Get looks an item up by id.
func (c *Catalog) Get(id string) (Item, bool) {
	item, ok := c.byID[id]
	return item, ok
}

// Search matches q case-insensitively against item names, tags,
// locations, and classes. An empty query returns everything.
func (c *Catalog) Search(q string) []Item {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return c.items
	}

	var out []Item
	for _, item := range c.items {
		if matches(item, q) {
			out = append(out, item)
		}
	}
	return out
}

// ByClass returns the items registered for a detection class name.
func (c *Catalog) ByClass(class string) []Item {
	return c.byClass[strings.ToLower(class)]
}

func matches(item Item, q string) bool {
	if strings.Contains(strings.ToLower(item.Name), q) ||
		strings.Contains(strings.ToLower(item.Location), q) ||
		strings.Contains(strings.ToLower(item.Class), q) {
		return true
	}
	for _, tag := range item.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}
