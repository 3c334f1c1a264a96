package export

import "github.com/emirpasic/gods/lists/arraylist"

// maxSimultaneousProcesses bounds how many fast-import children may be alive
// at once across all target repositories.
const maxSimultaneousProcesses = 100

// processCache is an LRU over repositories with live children. The front of
// the list is the least recently used. The converter is single-threaded, so
// no locking; a multi-threaded port must add a mutex here.
type processCache struct {
	lru *arraylist.List
}

var procCache = processCache{lru: arraylist.New()}

// touch moves repo to the most-recently-used end, closing least-recently-used
// children first if the cache is full.
func (c *processCache) touch(repo *Repository) error {
	if idx := c.lru.IndexOf(repo); idx != -1 {
		c.lru.Remove(idx)
	}

	// If the cache is too big, close from the front.
	for c.lru.Size() >= maxSimultaneousProcesses {
		victim, _ := c.lru.Get(0)
		c.lru.Remove(0)
		if err := victim.(*Repository).closeFastImport(); err != nil {
			return err
		}
	}

	c.lru.Add(repo)
	return nil
}

func (c *processCache) remove(repo *Repository) {
	if idx := c.lru.IndexOf(repo); idx != -1 {
		c.lru.Remove(idx)
	}
}
