// Package seed generates deterministic synthetic datasets for demos and tests.
package seed

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/jaswdr/faker"

	"github.com/restrack/restrack-ai/internal/analytics/timeseries"
	"github.com/restrack/restrack-ai/internal/models"
)

// Options shapes a generated dataset. The same options always yield the
// same dataset.
type Options struct {
	Seed      int64
	Kitchens  int
	Items     int
	Months    int
	Buildings int
	// SpikeRate is the probability that a kitchen-month of an item is an
	// injected consumption spike.
	SpikeRate float64
	// Now anchors the generated window the same way an analysis at Now
	// would; zero means the current time.
	Now time.Time
}

// DefaultOptions returns a small but complete dataset shape.
func DefaultOptions() Options {
	return Options{
		Seed:      42,
		Kitchens:  4,
		Items:     20,
		Months:    12,
		Buildings: 3,
		SpikeRate: 0.05,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Kitchens <= 0 {
		o.Kitchens = def.Kitchens
	}
	if o.Items <= 0 {
		o.Items = def.Items
	}
	if o.Months <= 0 {
		o.Months = def.Months
	}
	if o.Buildings <= 0 {
		o.Buildings = def.Buildings
	}
	o.SpikeRate = math.Min(math.Max(o.SpikeRate, 0), 1)
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	o.Now = o.Now.UTC()
	return o
}

type category struct {
	name  string
	unit  string
	price [2]int
}

var categories = []category{
	{"produce", "kg", [2]int{1, 8}},
	{"dairy", "l", [2]int{1, 5}},
	{"meat", "kg", [2]int{6, 30}},
	{"dry goods", "kg", [2]int{1, 6}},
	{"beverages", "l", [2]int{1, 10}},
	{"cleaning", "unit", [2]int{2, 25}},
}

var vehicleTypes = []string{"van", "truck", "car", "refrigerated truck"}

// Generator builds synthetic datasets.
type Generator struct {
	opts  Options
	fake  faker.Faker
	first time.Time
}

// NewGenerator creates a generator for the given options.
func NewGenerator(opts Options) *Generator {
	opts = opts.withDefaults()
	return &Generator{
		opts:  opts,
		fake:  faker.NewWithSeed(rand.NewSource(opts.Seed)),
		first: timeseries.NewWindow(opts.Now, opts.Months).Start(),
	}
}

// Options returns the effective options.
func (g *Generator) Options() Options { return g.opts }

// Generate builds a dataset. Consumption covers the Months complete calendar
// months the analysis window holds at Now; assets and rentals fall in the
// same span.
func (g *Generator) Generate() *models.Dataset {
	ds := &models.Dataset{}
	g.supplies(ds)
	g.consumption(ds)
	g.rentals(ds)
	g.assets(ds)
	return ds
}

// ─── Supplies & consumption ──────────────────────────────────────────────────

func (g *Generator) supplies(ds *models.Dataset) {
	seen := make(map[string]bool)
	for i := 0; i < g.opts.Items; i++ {
		c := categories[g.fake.IntBetween(0, len(categories)-1)]
		name := g.title(g.fake.Lorem().Word())
		if seen[name] {
			name = fmt.Sprintf("%s %d", name, i+1)
		}
		seen[name] = true
		ds.Supplies = append(ds.Supplies, models.SupplyItem{
			ItemID:       fmt.Sprintf("sup-%03d", i+1),
			Name:         name,
			Category:     c.name,
			Unit:         c.unit,
			PricePerUnit: g.fake.Float64(2, c.price[0], c.price[1]),
		})
	}
}

func (g *Generator) consumption(ds *models.Dataset) {
	kitchens := make([]string, g.opts.Kitchens)
	share := make([]float64, g.opts.Kitchens)
	for k := range kitchens {
		kitchens[k] = fmt.Sprintf("kitchen-%02d", k+1)
		share[k] = float64(g.fake.IntBetween(70, 130)) / 100
	}

	for _, item := range ds.Supplies {
		base := float64(g.fake.IntBetween(20, 200))
		// Monthly growth between -3% and +3%.
		growth := float64(g.fake.IntBetween(-3, 3)) / 100
		seasonal := g.chance(0.3)

		for m := 0; m < g.opts.Months; m++ {
			month := g.first.AddDate(0, m, 0)
			level := base * math.Pow(1+growth, float64(m))
			if seasonal {
				level *= 1 + 0.25*math.Sin(2*math.Pi*float64(month.Month())/12)
			}
			for k, kitchen := range kitchens {
				qty := level * share[k] / float64(len(kitchens))
				qty *= float64(g.fake.IntBetween(85, 115)) / 100
				if g.chance(g.opts.SpikeRate) {
					qty *= float64(g.fake.IntBetween(250, 400)) / 100
				}
				ds.Consumption = append(ds.Consumption, models.ConsumptionRecord{
					ItemID:    item.ItemID,
					KitchenID: kitchen,
					Quantity:  math.Round(qty*100) / 100,
					Date:      g.dayIn(month),
					UnitPrice: item.PricePerUnit,
				})
			}
		}
	}
}

// ─── Rentals ─────────────────────────────────────────────────────────────────

func (g *Generator) rentals(ds *models.Dataset) {
	n := g.fake.IntBetween(2, 6)
	for i := 0; i < n; i++ {
		vt := g.fake.RandomStringElement(vehicleTypes)
		start := g.dayIn(g.first.AddDate(0, g.fake.IntBetween(0, g.opts.Months/2), 0))
		r := models.RentalRecord{
			VehicleID:     fmt.Sprintf("veh-%02d", i+1),
			VehicleType:   vt,
			StartDate:     start,
			MonthlyAmount: g.fake.Float64(2, 300, 1500),
		}
		if g.chance(0.25) {
			r.EndDate = start.AddDate(0, g.fake.IntBetween(2, 6), 0)
		}
		ds.Rentals = append(ds.Rentals, r)
	}
}

// ─── Locations & assets ──────────────────────────────────────────────────────

func (g *Generator) assets(ds *models.Dataset) {
	buildings := make([]string, 0, g.opts.Buildings)
	seen := make(map[string]bool)
	for b := 0; b < g.opts.Buildings; b++ {
		name := g.fake.Address().City()
		if seen[name] {
			name = fmt.Sprintf("%s %d", name, b+1)
		}
		seen[name] = true
		buildings = append(buildings, name)
	}

	n := 0
	for b, building := range buildings {
		floors := g.fake.IntBetween(1, 3)
		for f := 1; f <= floors; f++ {
			rooms := g.fake.IntBetween(2, 4)
			for r := 1; r <= rooms; r++ {
				loc := models.LocationKey{
					Building: building,
					Floor:    fmt.Sprint(f),
					Room:     fmt.Sprintf("%d%02d", f, r),
				}
				ds.Locations = append(ds.Locations, loc)

				count := g.fake.IntBetween(3, 8)
				for i := 0; i < count; i++ {
					n++
					g.asset(ds, n, loc, g.dayIn(g.first.AddDate(0, g.fake.IntBetween(0, g.opts.Months-1), 0)))
				}
				// The last building goes on a buying spree in the final months.
				if b == len(buildings)-1 && b > 0 && g.opts.SpikeRate > 0 {
					for i := 0; i < count; i++ {
						n++
						g.asset(ds, n, loc, g.dayIn(g.first.AddDate(0, g.opts.Months-1-g.fake.IntBetween(0, 1), 0)))
					}
				}
			}
		}
	}
}

func (g *Generator) asset(ds *models.Dataset, n int, loc models.LocationKey, purchased time.Time) {
	a := models.AssetRecord{
		AssetID:        fmt.Sprintf("ast-%04d", n),
		Location:       loc,
		PurchaseAmount: g.fake.Float64(2, 50, 3000),
		PurchaseDate:   purchased,
		Status:         "ACTIVE",
	}
	ds.AssetHistory = append(ds.AssetHistory, models.AssetHistoryEvent{
		AssetID:   a.AssetID,
		Action:    models.ActionPurchased,
		Timestamp: purchased,
		Details:   "Purchased from " + g.fake.Company().Name(),
	})

	end := g.first.AddDate(0, g.opts.Months, 0)
	switch {
	case g.chance(0.1):
		at := g.after(purchased, end)
		a.Status = "DISPOSED"
		ds.AssetHistory = append(ds.AssetHistory, models.AssetHistoryEvent{
			AssetID:   a.AssetID,
			Action:    models.ActionDisposed,
			Timestamp: at,
			Details:   g.fake.RandomStringElement([]string{"damaged", "obsolete", "lost", "replaced"}),
		})
	case g.chance(0.1):
		ds.AssetHistory = append(ds.AssetHistory, models.AssetHistoryEvent{
			AssetID:   a.AssetID,
			Action:    models.ActionMoved,
			Timestamp: g.after(purchased, end),
			Details:   "moved within " + loc.Building,
		})
	}
	ds.Assets = append(ds.Assets, a)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (g *Generator) chance(p float64) bool {
	if p <= 0 {
		return false
	}
	return float64(g.fake.IntBetween(0, 9999)) < p*10000
}

// dayIn returns a noon timestamp on a random day of month m.
func (g *Generator) dayIn(m time.Time) time.Time {
	return time.Date(m.Year(), m.Month(), g.fake.IntBetween(1, 28), 12, 0, 0, 0, time.UTC)
}

// after returns a time strictly between t and end, or t plus one day when
// the span is too short.
func (g *Generator) after(t, end time.Time) time.Time {
	days := int(end.Sub(t).Hours() / 24)
	if days < 2 {
		return t.AddDate(0, 0, 1)
	}
	return t.AddDate(0, 0, g.fake.IntBetween(1, days-1))
}

func (g *Generator) title(w string) string {
	if w == "" {
		return "Item"
	}
	return strings.ToUpper(w[:1]) + w[1:]
}

// Counts returns the number of rows per record kind.
func Counts(ds *models.Dataset) map[string]int {
	if ds == nil {
		return map[string]int{}
	}
	return map[string]int{
		"supplies":      len(ds.Supplies),
		"consumption":   len(ds.Consumption),
		"rentals":       len(ds.Rentals),
		"locations":     len(ds.Locations),
		"assets":        len(ds.Assets),
		"asset_history": len(ds.AssetHistory),
	}
}
