package app

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/colthorp/eater-cli-go/internal/api"
	"github.com/colthorp/eater-cli-go/internal/kv"
	"github.com/colthorp/eater-cli-go/internal/ledger"
)

const keyFoodExtras = "food_extras_by_time"

// ExtraAddedSugar counts teaspoons of sugar. It is stored with the other
// extras but reported separately.
const ExtraAddedSugar = "added_sugar_tsp"

// ExtraDefinition is what one tap of an extra adds to a dish.
type ExtraDefinition struct {
	Grams    int
	Calories int
}

// ExtraDefinitions lists the extras kept on the device.
var ExtraDefinitions = map[string]ExtraDefinition{
	"lemon_5g":        {Grams: 5, Calories: 1},
	"honey_10g":       {Grams: 10, Calories: 30},
	"soy_sauce_15g":   {Grams: 15, Calories: 10},
	"wasabi_3g":       {Grams: 3, Calories: 8},
	"spicy_pepper_5g": {Grams: 5, Calories: 2},
}

// ExtraKeys returns the known extra keys in sorted order.
func ExtraKeys() []string {
	keys := make([]string, 0, len(ExtraDefinitions))
	for k := range ExtraDefinitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DecoratedProduct is a product with its local extras applied.
type DecoratedProduct struct {
	api.Product
	Extras         map[string]int `json:"extras,omitempty"`
	AddedSugarTsp  int            `json:"added_sugar_tsp,omitempty"`
	ExtrasCalories int            `json:"extras_calories,omitempty"`
}

// TotalCalories is the dish plus its extras.
func (p DecoratedProduct) TotalCalories() int {
	return p.Calories + p.ExtrasCalories
}

// Extras stores per-dish extra counts keyed by product time.
type Extras struct {
	mu sync.Mutex
	kv kv.Store
}

// NewExtras creates an extras store persisted in store.
func NewExtras(store kv.Store) *Extras {
	return &Extras{kv: store}
}

type extrasByTime map[string]map[string]int

func (e *Extras) load() extrasByTime {
	m := extrasByTime{}
	if !kv.GetJSON(e.kv, keyFoodExtras, &m) || m == nil {
		return extrasByTime{}
	}
	return m
}

func (e *Extras) add(t int64, key string, n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.load()
	id := strconv.FormatInt(t, 10)
	if m[id] == nil {
		m[id] = map[string]int{}
	}
	m[id][key] += n
	if err := kv.SetJSON(e.kv, keyFoodExtras, m); err != nil {
		return fmt.Errorf("persist extras: %w", err)
	}
	return nil
}

// Add records one tap of extra key on the dish at t.
func (e *Extras) Add(t int64, key string) error {
	if _, ok := ExtraDefinitions[key]; !ok {
		return fmt.Errorf("unknown extra %q: %w", key, ledger.ErrInvalidInput)
	}
	return e.add(t, key, 1)
}

// AddSugar records tsp teaspoons of added sugar on the dish at t.
func (e *Extras) AddSugar(t int64, tsp int) error {
	if tsp <= 0 {
		return fmt.Errorf("sugar teaspoons %d: %w", tsp, ledger.ErrInvalidInput)
	}
	return e.add(t, ExtraAddedSugar, tsp)
}

// For returns the extras recorded on the dish at t.
func (e *Extras) For(t int64) map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := map[string]int{}
	for k, v := range e.load()[strconv.FormatInt(t, 10)] {
		out[k] = v
	}
	return out
}

// Remove drops every extra recorded on the dish at t.
func (e *Extras) Remove(t int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.load()
	id := strconv.FormatInt(t, 10)
	if _, ok := m[id]; !ok {
		return nil
	}
	delete(m, id)
	return kv.SetJSON(e.kv, keyFoodExtras, m)
}

// Apply decorates products with their extras.
func (e *Extras) Apply(products []api.Product) []DecoratedProduct {
	e.mu.Lock()
	m := e.load()
	e.mu.Unlock()

	out := make([]DecoratedProduct, 0, len(products))
	for _, p := range products {
		d := DecoratedProduct{Product: p, Extras: map[string]int{}}
		for k, n := range m[strconv.FormatInt(p.Time, 10)] {
			if k == ExtraAddedSugar {
				d.AddedSugarTsp = n
				continue
			}
			d.Extras[k] = n
			d.ExtrasCalories += ExtraDefinitions[k].Calories * n
		}
		out = append(out, d)
	}
	return out
}
