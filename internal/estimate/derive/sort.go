package derive

import (
	"fmt"
	"sort"
	"strings"

	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey selects the item field to order by
type SortKey string

const (
	KeyType       SortKey = "type"
	KeyQuantity   SortKey = "quantity"
	KeyCost       SortKey = "cost"
	KeyConfidence SortKey = "confidence"
)

type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case KeyType, KeyQuantity, KeyCost, KeyConfidence:
		return k, nil
	}
	return "", fmt.Errorf("unknown sort key %q: must be one of type, quantity, cost, confidence", s)
}

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Ascending, Descending:
		return d, nil
	case "":
		return Ascending, nil
	}
	return "", fmt.Errorf("unknown sort direction %q: must be asc or desc", s)
}

// Sorter orders estimate items. Type ordering follows the collation rules of
// its locale. A Sorter is safe for concurrent use.
type Sorter struct {
	tag language.Tag
}

// NewSorter creates a sorter for a BCP 47 locale; empty means English
func NewSorter(locale string) (*Sorter, error) {
	if strings.TrimSpace(locale) == "" {
		return &Sorter{tag: language.English}, nil
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	return &Sorter{tag: tag}, nil
}

var defaultSorter = &Sorter{tag: language.English}

// Sort returns a new slice ordered by key using English collation
func Sort(items []domain.EstimateItem, key SortKey, dir Direction) ([]domain.EstimateItem, error) {
	return defaultSorter.Sort(items, key, dir)
}

// Sort returns a new slice of items ordered by key. Items with equal keys
// keep their original relative order in both directions. items is not modified.
func (s *Sorter) Sort(items []domain.EstimateItem, key SortKey, dir Direction) ([]domain.EstimateItem, error) {
	order, err := s.Order(items, key, dir)
	if err != nil {
		return nil, err
	}
	out := make([]domain.EstimateItem, len(order))
	for i, idx := range order {
		out[i] = items[idx]
	}
	return out, nil
}

// Order returns the original indices of items in sorted order
func (s *Sorter) Order(items []domain.EstimateItem, key SortKey, dir Direction) ([]int, error) {
	less, err := s.lessFunc(items, key)
	if err != nil {
		return nil, err
	}
	if dir != Ascending && dir != Descending {
		return nil, fmt.Errorf("unknown sort direction %q", dir)
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if dir == Descending {
			return less(order[b], order[a])
		}
		return less(order[a], order[b])
	})
	return order, nil
}

func (s *Sorter) lessFunc(items []domain.EstimateItem, key SortKey) (func(i, j int) bool, error) {
	switch key {
	case KeyType:
		// collate.Collator is not safe for concurrent use
		col := collate.New(s.tag)
		keys := make([][]byte, len(items))
		var buf collate.Buffer
		for i, item := range items {
			keys[i] = append([]byte(nil), col.KeyFromString(&buf, item.Intervention.Type)...)
			buf.Reset()
		}
		return func(i, j int) bool { return string(keys[i]) < string(keys[j]) }, nil
	case KeyQuantity:
		return func(i, j int) bool { return items[i].Intervention.Quantity < items[j].Intervention.Quantity }, nil
	case KeyCost:
		return func(i, j int) bool { return items[i].TotalCost < items[j].TotalCost }, nil
	case KeyConfidence:
		return func(i, j int) bool { return items[i].Intervention.Confidence < items[j].Intervention.Confidence }, nil
	}
	return nil, fmt.Errorf("unknown sort key %q", key)
}
