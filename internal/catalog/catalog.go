// Package catalog holds the static challenge set. Entries are immutable
// after construction; callers receive copies.
package catalog

import (
	"fmt"
	"sort"

	"github.com/lijuuu/CTFArenaService/internal/model"
)

type Catalog struct {
	byID map[int]model.Challenge
	ids  []int
}

// New validates and indexes challenges. Ids must be unique and positive,
// points positive and flags non-empty.
func New(challenges []model.Challenge) (*Catalog, error) {
	c := &Catalog{byID: make(map[int]model.Challenge, len(challenges))}
	for _, ch := range challenges {
		if ch.ID <= 0 {
			return nil, fmt.Errorf("challenge %q: id must be positive", ch.Title)
		}
		if _, dup := c.byID[ch.ID]; dup {
			return nil, fmt.Errorf("duplicate challenge id %d", ch.ID)
		}
		if ch.Points <= 0 {
			return nil, fmt.Errorf("challenge %d: points must be positive", ch.ID)
		}
		if ch.Flag == "" {
			return nil, fmt.Errorf("challenge %d: empty flag", ch.ID)
		}
		ch.Hints = append([]string(nil), ch.Hints...)
		c.byID[ch.ID] = ch
		c.ids = append(c.ids, ch.ID)
	}
	sort.Ints(c.ids)
	return c, nil
}

// Get returns the challenge with the given id.
func (c *Catalog) Get(id int) (model.Challenge, bool) {
	ch, ok := c.byID[id]
	return ch, ok
}

// IDs returns every challenge id in ascending order.
func (c *Catalog) IDs() []int {
	return append([]int(nil), c.ids...)
}

// All returns every challenge ordered by id.
func (c *Catalog) All() []model.Challenge {
	out := make([]model.Challenge, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id])
	}
	return out
}

// Points is the point value for id, or 0 when unknown.
func (c *Catalog) Points(id int) int {
	return c.byID[id].Points
}

// Default returns the standard arena catalog.
func Default() *Catalog {
	c, err := New(defaultChallenges)
	if err != nil {
		panic(err)
	}
	return c
}
