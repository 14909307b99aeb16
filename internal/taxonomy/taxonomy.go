// Package taxonomy defines the closed vocabulary of mental-factor labels
// and their mapping to the three root categories.
//
// The dictionary is loaded once at process start and never mutated at
// runtime. Labels outside the vocabulary are tolerated: they enrich to an
// empty root set instead of invalidating an analysis result.
package taxonomy

import "github.com/mindmirror/mindmirror/internal/models"

// Root categories. Every mapped label points at a subset of these three.
const (
	RootGreed    = "greed"
	RootAversion = "aversion"
	RootDelusion = "delusion"
)

// Roots returns the fixed root-category set in canonical order.
func Roots() []string {
	return []string{RootGreed, RootAversion, RootDelusion}
}

// rootDictionary maps each mental-factor label to its root categories.
// Derived from the classical fifty-one mental factors; only afflictive
// factors carry roots, wholesome factors map to none.
var rootDictionary = map[string][]string{
	// primary afflictions
	"craving":    {RootGreed},
	"attachment": {RootGreed},
	"anger":      {RootAversion},
	"hatred":     {RootAversion},
	"pride":      {RootGreed, RootDelusion},
	"ignorance":  {RootDelusion},
	"doubt":      {RootDelusion},
	"wrong view": {RootDelusion},

	// secondary afflictions
	"resentment":      {RootAversion},
	"spite":           {RootAversion},
	"rage":            {RootAversion},
	"envy":            {RootAversion, RootGreed},
	"jealousy":        {RootAversion, RootGreed},
	"stinginess":      {RootGreed},
	"greed for gain":  {RootGreed},
	"deceit":          {RootGreed, RootDelusion},
	"pretension":      {RootGreed, RootDelusion},
	"concealment":     {RootDelusion},
	"shamelessness":   {RootDelusion},
	"disregard":       {RootDelusion},
	"restlessness":    {RootGreed, RootAversion, RootDelusion},
	"dullness":        {RootDelusion},
	"faithlessness":   {RootDelusion},
	"laziness":        {RootDelusion},
	"heedlessness":    {RootGreed, RootAversion, RootDelusion},
	"forgetfulness":   {RootDelusion},
	"distraction":     {RootGreed, RootAversion, RootDelusion},
	"inattentiveness": {RootDelusion},
	"worry":           {RootAversion},
	"regret":          {RootAversion},

	// wholesome factors carry no afflictive root
	"faith":          {},
	"shame":          {},
	"consideration":  {},
	"non-attachment": {},
	"non-hatred":     {},
	"non-delusion":   {},
	"diligence":      {},
	"pliancy":        {},
	"equanimity":     {},
	"non-harming":    {},
}

// LookupRoots returns the root-category set for a label, or an empty set
// when the label is outside the dictionary.
func LookupRoots(label string) []string {
	roots, ok := rootDictionary[label]
	if !ok {
		return []string{}
	}
	out := make([]string, len(roots))
	copy(out, roots)
	return out
}

// Contains reports whether a label belongs to the closed vocabulary.
func Contains(label string) bool {
	_, ok := rootDictionary[label]
	return ok
}

// Enrich maps each label to an EnrichedFactor carrying its root set.
// Unknown labels pass through with an empty root set.
func Enrich(labels []string) []models.EnrichedFactor {
	factors := make([]models.EnrichedFactor, 0, len(labels))
	for _, name := range labels {
		factors = append(factors, models.EnrichedFactor{
			Name:  name,
			Roots: LookupRoots(name),
		})
	}
	return factors
}

// DeriveRoots returns the deduplicated union of root sets across a batch of
// enriched factors, in canonical root order.
func DeriveRoots(factors []models.EnrichedFactor) []string {
	seen := make(map[string]bool)
	for _, f := range factors {
		for _, r := range f.Roots {
			seen[r] = true
		}
	}
	derived := make([]string, 0, len(seen))
	for _, r := range Roots() {
		if seen[r] {
			derived = append(derived, r)
		}
	}
	return derived
}
