package stub

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/brakes/brakes-estimator/internal/estimate/domain"
)

var catalogueDate = domain.Timestamp{Time: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}

func seedPrices() []domain.PriceRecord {
	rec := func(material, unit string, price float64, source, code, category string, confidence float64, desc string) domain.PriceRecord {
		return domain.PriceRecord{
			Material:    material,
			Unit:        unit,
			PriceINR:    price,
			Source:      source,
			ItemCode:    code,
			Category:    category,
			FetchedDate: catalogueDate,
			Confidence:  confidence,
			Description: desc,
		}
	}
	return []domain.PriceRecord{
		rec("Concrete M15 (1:2:4)", "cum", 5850, "CPWD SOR 2023", "4.1.3", "Concrete", 0.95, "Plain cement concrete 1:2:4 with 20mm aggregate"),
		rec("Concrete M20", "cum", 6420, "CPWD SOR 2023", "4.1.2", "Concrete", 0.95, "Plain cement concrete M20 for footpaths"),
		rec("Concrete M30", "cum", 7980, "CPWD SOR 2023", "5.2.4", "Concrete", 0.93, "Reinforced cement concrete M30, New Jersey barrier profile"),
		rec("Galvanized Steel W-Beam", "kg", 92, "GeM", "GEM-WB-310", "Steel", 0.9, "Hot-dip galvanized W-beam crash barrier, 3mm"),
		rec("MS Pipe Bollard", "nos", 2350, "GeM", "GEM-BOL-150", "Steel", 0.85, "150mm dia MS pipe bollard, 1m height, painted"),
		rec("Thermoplastic Paint", "kg", 118, "CPWD SOR 2024", "16.4.1", "Paint & Marking", 0.94, "Hot applied thermoplastic with glass beads"),
		rec("Thermoplastic White Paint", "sqm", 420, "CPWD SOR 2024", "16.4.2", "Paint & Marking", 0.92, "Zebra crossing thermoplastic, 2.5mm"),
		rec("Reflective Sheeting Type III", "sqm", 3150, "GeM", "GEM-RS-T3", "Signage", 0.9, "High intensity prismatic retro-reflective sheeting"),
		rec("Reflective Sheeting Type II", "sqm", 2280, "GeM", "GEM-RS-T2", "Signage", 0.88, "Engineering grade retro-reflective sheeting"),
		rec("LED Luminaire 100W", "nos", 14800, "CPWD SOR 2024", "E-12.7", "Lighting", 0.91, "LED street light with pole and foundation"),
		rec("Traffic Signal Unit", "nos", 98500, "GeM", "GEM-TSU-3A", "Lighting", 0.82, "Three aspect LED signal head with controller share"),
		rec("Flexible Delineator", "nos", 640, "GeM", "GEM-DEL-750", "Safety Devices", 0.87, "Polyurethane spring post delineator"),
		rec("PVC Traffic Cone", "nos", 380, "GeM", "GEM-CONE-750", "Safety Devices", 0.86, "750mm PVC cone with reflective collar"),
	}
}

// Catalogue is the read-only materials price reference
type Catalogue struct {
	records    []domain.PriceRecord
	byName     map[string]domain.PriceRecord
	categories map[string][]domain.PriceRecord
}

// NewCatalogue indexes records sorted by material name
func NewCatalogue(records []domain.PriceRecord) *Catalogue {
	sorted := append([]domain.PriceRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Material < sorted[j].Material })

	c := &Catalogue{
		records:    sorted,
		byName:     make(map[string]domain.PriceRecord, len(sorted)),
		categories: make(map[string][]domain.PriceRecord),
	}
	for _, r := range sorted {
		c.byName[strings.ToLower(r.Material)] = r
		c.categories[r.Category] = append(c.categories[r.Category], r)
	}
	return c
}

// DefaultCatalogue returns the seeded price reference
func DefaultCatalogue() *Catalogue {
	return NewCatalogue(seedPrices())
}

func (c *Catalogue) Len() int { return len(c.records) }

// Lookup finds a material by case-insensitive exact name
func (c *Catalogue) Lookup(name string) (domain.PriceRecord, bool) {
	r, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return r, ok
}

// Search matches every whitespace-separated term against name, code and description
func (c *Catalogue) Search(query string, limit int) []domain.PriceRecord {
	terms := strings.Fields(strings.ToLower(query))
	results := make([]domain.PriceRecord, 0)
	for _, r := range c.records {
		haystack := strings.ToLower(r.Material + " " + r.ItemCode + " " + r.Description)
		match := true
		for _, t := range terms {
			if !strings.Contains(haystack, t) {
				match = false
				break
			}
		}
		if match {
			results = append(results, r)
			if len(results) == limit {
				break
			}
		}
	}
	return results
}

// Category returns the materials in one category (exact, case-insensitive)
func (c *Catalogue) Category(name string) (string, []domain.PriceRecord, bool) {
	for cat, records := range c.categories {
		if strings.EqualFold(cat, name) {
			return cat, records, true
		}
	}
	return "", nil, false
}

// Categories returns category names in sorted order
func (c *Catalogue) Categories() []string {
	names := make([]string, 0, len(c.categories))
	for name := range c.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Statistics summarises prices across the whole catalogue
func (c *Catalogue) Statistics() domain.PriceStatistics {
	stats := domain.PriceStatistics{
		TotalMaterials: len(c.records),
		Categories:     len(c.categories),
	}
	if len(c.records) == 0 {
		return stats
	}
	stats.MinPrice = math.Inf(1)
	var sum float64
	for _, r := range c.records {
		stats.MinPrice = math.Min(stats.MinPrice, r.PriceINR)
		stats.MaxPrice = math.Max(stats.MaxPrice, r.PriceINR)
		sum += r.PriceINR
	}
	stats.AvgPrice = round2(sum / float64(len(c.records)))
	return stats
}

// Page returns a slice of the name-ordered catalogue
func (c *Catalogue) Page(limit, offset int) []domain.PriceRecord {
	if offset >= len(c.records) {
		return []domain.PriceRecord{}
	}
	end := offset + limit
	if end > len(c.records) {
		end = len(c.records)
	}
	return c.records[offset:end]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
