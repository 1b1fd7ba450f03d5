package transform

// Cache holds the latest group transform per group name.
// Controller signals replace or invalidate entries; the render loop only reads.
// Like the item store it is owned by a single goroutine.
type Cache struct {
	groups map[string]*Group
}

// NewCache creates an empty group cache.
func NewCache() *Cache {
	return &Cache{groups: make(map[string]*Group)}
}

// Set validates g and stores it, replacing any group with the same name.
func (c *Cache) Set(g Group) error {
	if err := g.Validate(); err != nil {
		return err
	}
	c.groups[g.Name] = &g
	return nil
}

// Get returns the group with the given name.
func (c *Cache) Get(name string) (*Group, bool) {
	g, ok := c.groups[name]
	return g, ok
}

// Remove drops one group. Returns false if it was not cached.
func (c *Cache) Remove(name string) bool {
	if _, ok := c.groups[name]; !ok {
		return false
	}
	delete(c.groups, name)
	return true
}

// Reset drops every cached group.
func (c *Cache) Reset() {
	c.groups = make(map[string]*Group)
}

// Len returns the number of cached groups.
func (c *Cache) Len() int {
	return len(c.groups)
}

// Lookup returns the group owning an item id: the one with the longest
// matching prefix. Ties go to the lexically smaller group name so the
// result does not depend on map order.
func (c *Cache) Lookup(id string) *Group {
	var best *Group
	bestLen := -1
	for _, g := range c.groups {
		n := g.Matches(id)
		if n < 0 {
			continue
		}
		if n > bestLen || (n == bestLen && g.Name < best.Name) {
			best = g
			bestLen = n
		}
	}
	return best
}
