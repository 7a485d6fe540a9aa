// Package rotation provides the fair pull sequence the scheduler draws
// batch items from. Every item is yielded exactly once per cycle; the
// working set is reshuffled at each cycle boundary.
package rotation

import (
	"context"
	"math/rand/v2"

	"github.com/EshelEyni/Chirper-sub001/internal/botgen"
)

// Item is one (bot, options) pair in the rotation.
type Item struct {
	BotID   string
	Options botgen.Options
}

// PromptLister returns every stored prompt. A nil slice means the listing
// is missing; an empty non-nil slice means there are no prompts.
type PromptLister interface {
	GetAllPrompts(ctx context.Context) ([]botgen.PromptRecord, error)
}

// Rotation is an infinite pull sequence over a fixed population.
// It is not safe for concurrent use.
type Rotation struct {
	items  []Item
	cursor int
	rng    *rand.Rand
}

// New returns a rotation over a copy of items. A nil rng uses a randomly
// seeded source.
func New(items []Item, rng *rand.Rand) *Rotation {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	cp := append([]Item(nil), items...)
	// Cursor at the end forces a shuffle on first pull.
	return &Rotation{items: cp, cursor: len(cp), rng: rng}
}

// Seed lists all prompts once and builds a rotation whose options carry
// the templated prompt and its post type.
func Seed(ctx context.Context, lister PromptLister, rng *rand.Rand) (*Rotation, error) {
	records, err := lister.GetAllPrompts(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		return nil, botgen.ErrPromptsFalsey
	}
	items := make([]Item, 0, len(records))
	for _, r := range records {
		items = append(items, Item{
			BotID: r.BotID,
			Options: botgen.Options{
				Prompt:   botgen.ApplyTemplate(r.PromptText, r.ContentType),
				PostType: r.ContentType,
			},
		})
	}
	return New(items, rng), nil
}

// Pull returns the next item. ok is false only when the population is empty.
func (r *Rotation) Pull() (item Item, ok bool) {
	if len(r.items) == 0 {
		return Item{}, false
	}
	if r.cursor >= len(r.items) {
		r.rng.Shuffle(len(r.items), func(i, j int) {
			r.items[i], r.items[j] = r.items[j], r.items[i]
		})
		r.cursor = 0
	}
	item = r.items[r.cursor]
	r.cursor++
	return item, true
}

// Len returns the population size.
func (r *Rotation) Len() int { return len(r.items) }
