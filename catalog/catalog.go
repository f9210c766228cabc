/*
Package catalog holds the static list of destinations and their tours.

PURPOSE:
  The plan service only stores what the user booked. Everything else a
  plan needs to display (image, location, base expense split, duration)
  comes from this catalog, which ships embedded in the binary.

KEY CONCEPTS:
  Destination: A place with a base price, duration and expense split
  Tour:        A bookable variant of a destination with its own price/expenses
  Draft:       A tour turned into plan creation input
  Fill:        Completing a server record with catalog display fields

SEE ALSO:
  - destinations.yaml: The data
  - planstore/store.go: Fills every loaded plan
*/
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/perugo/reservation-engine/plan"
)

//go:embed destinations.yaml
var embedded []byte

var (
	ErrUnknownDestination = errors.New("unknown destination")
	ErrUnknownTour        = errors.New("unknown tour")
)

// =============================================================================
// TYPES
// =============================================================================

type Destination struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Location    string          `yaml:"location"`
	Kind        string          `yaml:"kind"`
	Price       decimal.Decimal `yaml:"-"`
	Duration    string          `yaml:"duration"`
	Budget      string          `yaml:"budget"`
	Image       string          `yaml:"image"`
	Description string          `yaml:"description"`
	Expenses    plan.Expenses   `yaml:"-"`
	Tours       []Tour          `yaml:"-"`
}

type Tour struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Price       decimal.Decimal `yaml:"-"`
	Includes    []string        `yaml:"includes"`
	Expenses    plan.Expenses   `yaml:"-"`
}

// DurationDays reads the day count out of the duration label.
func (d Destination) DurationDays() int { return plan.DurationDaysFromLabel(d.Duration) }

// Catalog is read-only after Parse and safe for concurrent use.
type Catalog struct {
	destinations []Destination
	byID         map[string]int
}

// =============================================================================
// LOADING
// =============================================================================

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog, parsed once.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(embedded)
	})
	return defaultCatalog, defaultErr
}

// Parse reads a catalog document. Destination ids must be unique.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{byID: make(map[string]int, len(doc.Destinations))}
	for i, raw := range doc.Destinations {
		d := raw.Destination
		if d.ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate destination %q", d.ID)
		}
		d.Price = raw.Price.Decimal
		d.Expenses = plan.Expenses(raw.Expenses)
		d.Tours = make([]Tour, len(raw.Tours))
		for j, rt := range raw.Tours {
			t := rt.Tour
			t.Price = rt.Price.Decimal
			t.Expenses = plan.Expenses(rt.Expenses)
			d.Tours[j] = t
		}
		c.byID[d.ID] = len(c.destinations)
		c.destinations = append(c.destinations, d)
	}
	return c, nil
}

// =============================================================================
// LOOKUPS
// =============================================================================

// All returns destinations in display order.
func (c *Catalog) All() []Destination {
	return append([]Destination(nil), c.destinations...)
}

func (c *Catalog) Lookup(id string) (Destination, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Destination{}, false
	}
	return c.destinations[i], true
}

func (c *Catalog) Tour(destinationID, tourName string) (Tour, bool) {
	d, ok := c.Lookup(destinationID)
	if !ok {
		return Tour{}, false
	}
	for _, t := range d.Tours {
		if t.Name == tourName {
			return t, true
		}
	}
	return Tour{}, false
}

// DraftFor builds the creation input for booking a tour.
func (c *Catalog) DraftFor(destinationID, tourName string) (plan.Draft, error) {
	d, ok := c.Lookup(destinationID)
	if !ok {
		return plan.Draft{}, fmt.Errorf("%w: %q", ErrUnknownDestination, destinationID)
	}
	t, ok := c.Tour(destinationID, tourName)
	if !ok {
		return plan.Draft{}, fmt.Errorf("%w: %q at %s", ErrUnknownTour, tourName, destinationID)
	}
	return plan.Draft{
		DestinationID:   d.ID,
		DestinationName: d.Name,
		TourName:        t.Name,
		Price:           t.Price,
		DurationLabel:   d.Duration,
		DurationDays:    d.DurationDays(),
		Expenses:        t.Expenses.Clone(),
		Image:           d.Image,
		Location:        d.Location,
	}, nil
}

// Fill completes display fields the service left empty. Expenses fall
// back to the tour's split, then the destination's. A plan for an
// unknown destination is returned unchanged.
func (c *Catalog) Fill(p plan.Plan) plan.Plan {
	d, ok := c.Lookup(p.DestinationID)
	if !ok {
		return p
	}
	out := p.Clone()
	if out.DestinationName == "" {
		out.DestinationName = d.Name
	}
	if out.Image == "" {
		out.Image = d.Image
	}
	if out.Location == "" {
		out.Location = d.Location
	}
	if len(out.Expenses) == 0 {
		if t, ok := c.Tour(d.ID, out.TourName); ok && len(t.Expenses) > 0 {
			out.Expenses = t.Expenses.Clone()
		} else {
			out.Expenses = d.Expenses.Clone()
		}
	}
	if out.DurationLabel == "" {
		out.DurationLabel = d.Duration
		// Dates already set were derived from the old duration; keep them consistent.
		if out.StartDate == nil && out.EndDate == nil {
			out.DurationDays = d.DurationDays()
		}
	}
	return out
}

// =============================================================================
// YAML DECODING
// =============================================================================

type document struct {
	Destinations []rawDestination `yaml:"destinations"`
}

type rawDestination struct {
	Destination `yaml:",inline"`
	Price       money       `yaml:"price"`
	Expenses    expenseList `yaml:"expenses"`
	Tours       []rawTour   `yaml:"tours"`
}

type rawTour struct {
	Tour     `yaml:",inline"`
	Price    money       `yaml:"price"`
	Expenses expenseList `yaml:"expenses"`
}

type money struct{ decimal.Decimal }

func (m *money) UnmarshalYAML(node *yaml.Node) error {
	d, err := decimal.NewFromString(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: price %q: %w", node.Line, node.Value, err)
	}
	m.Decimal = d
	return nil
}

// expenseList decodes a mapping node keeping key order.
type expenseList plan.Expenses

func (e *expenseList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expenses must be a mapping", node.Line)
	}
	out := make(expenseList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		amount, err := decimal.NewFromString(val.Value)
		if err != nil {
			return fmt.Errorf("line %d: expense %s: %w", val.Line, key.Value, err)
		}
		if amount.IsNegative() {
			return fmt.Errorf("line %d: expense %s is negative", val.Line, key.Value)
		}
		out = append(out, plan.Expense{Category: key.Value, Amount: amount})
	}
	*e = out
	return nil
}
