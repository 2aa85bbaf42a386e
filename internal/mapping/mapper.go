// Package mapping resolves vessels and cargo manifests to canonical product
// categories. Translation into the shared vocabulary happens here, at the
// boundary, so the correlator only ever compares canonical tags.
package mapping

import (
	"sort"
	"strings"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
)

// Vocabulary is the controlled category set plus descriptor aliases.
type Vocabulary struct {
	categories map[contracts.Category]struct{}
	aliases    map[string]contracts.Category
}

func NewVocabulary(categories []contracts.Category, aliases map[string]contracts.Category) *Vocabulary {
	v := &Vocabulary{
		categories: make(map[contracts.Category]struct{}, len(categories)),
		aliases:    make(map[string]contracts.Category, len(aliases)),
	}
	for _, c := range categories {
		v.categories[contracts.NormalizeCategory(string(c))] = struct{}{}
	}
	for alias, c := range aliases {
		canonical := contracts.NormalizeCategory(string(c))
		v.categories[canonical] = struct{}{}
		v.aliases[normalizeDescriptor(alias)] = canonical
	}
	return v
}

// DefaultVocabulary covers the retail categories the bridge tracks out of the box.
func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(
		[]contracts.Category{"electronics", "toys", "furniture", "clothing", "groceries"},
		map[string]contracts.Category{
			"laptops":              "electronics",
			"smartphones":          "electronics",
			"consumer electronics": "electronics",
			"semiconductors":       "electronics",
			"games":                "toys",
			"board games":          "toys",
			"sofas":                "furniture",
			"tables":               "furniture",
			"apparel":              "clothing",
			"garments":             "clothing",
			"textiles":             "clothing",
			"food":                 "groceries",
			"produce":              "groceries",
			"dry goods":            "groceries",
		},
	)
}

// Resolve translates a descriptor. Canonical tags win over aliases.
func (v *Vocabulary) Resolve(descriptor string) (contracts.Category, bool) {
	key := normalizeDescriptor(descriptor)
	if key == "" {
		return "", false
	}
	if _, ok := v.categories[contracts.Category(key)]; ok {
		return contracts.Category(key), true
	}
	if c, ok := v.aliases[key]; ok {
		return c, true
	}
	return "", false
}

func (v *Vocabulary) Contains(c contracts.Category) bool {
	_, ok := v.categories[contracts.NormalizeCategory(string(c))]
	return ok
}

// VesselIndex maps raw vessel names to the categories they carry. Names are
// matched case-insensitively, so "Megastar" and "MEGAStar" share one entry.
type VesselIndex struct {
	byVessel map[string]map[contracts.Category]struct{}
}

func NewVesselIndex(rows []contracts.MappingRow) *VesselIndex {
	idx := &VesselIndex{byVessel: make(map[string]map[contracts.Category]struct{})}
	for _, row := range rows {
		if !row.Valid() {
			continue
		}
		key := normalizeDescriptor(row.VesselName)
		set, ok := idx.byVessel[key]
		if !ok {
			set = make(map[contracts.Category]struct{})
			idx.byVessel[key] = set
		}
		set[contracts.NormalizeCategory(string(row.Category))] = struct{}{}
	}
	return idx
}

func (idx *VesselIndex) Lookup(vesselID string) []contracts.Category {
	if idx == nil {
		return nil
	}
	set := idx.byVessel[normalizeDescriptor(vesselID)]
	out := make([]contracts.Category, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func (idx *VesselIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.byVessel)
}

type Mapper struct {
	vocab   *Vocabulary
	vessels *VesselIndex
}

func NewMapper(vocab *Vocabulary, vessels *VesselIndex) *Mapper {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Mapper{vocab: vocab, vessels: vessels}
}

// Result carries the mapped categories and the descriptors that missed the vocabulary.
type Result struct {
	Categories []contracts.Category
	Unmapped   []string
}

// Map returns the sorted, de-duplicated categories affected by a shipment.
func (m *Mapper) Map(vesselID string, manifest []string) []contracts.Category {
	return m.MapDetailed(vesselID, manifest).Categories
}

func (m *Mapper) MapDetailed(vesselID string, manifest []string) Result {
	set := make(map[contracts.Category]struct{})
	var unmapped []string

	for _, descriptor := range manifest {
		if strings.TrimSpace(descriptor) == "" {
			continue
		}
		if c, ok := m.vocab.Resolve(descriptor); ok {
			set[c] = struct{}{}
			continue
		}
		unmapped = append(unmapped, descriptor)
		set[contracts.CategoryUncategorized] = struct{}{}
	}

	for _, c := range m.vessels.Lookup(vesselID) {
		set[c] = struct{}{}
	}

	if len(set) == 0 {
		set[contracts.CategoryUncategorized] = struct{}{}
	}

	categories := make([]contracts.Category, 0, len(set))
	for c := range set {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	return Result{Categories: categories, Unmapped: unmapped}
}

func normalizeDescriptor(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
