package encoder

import (
	"math"
	"strings"

	"campus-dining-be/internal/entity"

	"github.com/cespare/xxhash/v2"
)

// Dimension of locally encoded vectors.
const Dimension = 128

// Slot layout inside the vector. Each categorical family hashes into its own
// range so unrelated attributes never collide with each other.
const (
	slotTags        = 0
	tagsWidth       = 24
	slotIngredients = 24
	ingredientWidth = 24
	slotAllergens   = 48
	allergenWidth   = 12
	slotTaste       = 60 // 4 dims: spicy, sweet, salty, sour
	slotPrice       = 64
	priceWidth      = 4
	slotQuality     = 68
	qualityWidth    = 4
	slotCanteen     = 72
	canteenWidth    = 12
	slotName        = 84
	nameWidth       = 24
	slotBehavior    = 108
	behaviorWidth   = 12
	// [120, 128) reserved for future signals.
)

// allergenPenalty is the fixed negative weight written into the user-side
// allergen slot. It is a safety signal, not a similarity one: a user vector
// must point away from items carrying their allergens.
const allergenPenalty = -2.0

// priceScale normalizes canteen prices into [0,1]; campus dishes above this
// are clamped.
const priceScale = 100.0

func hashBucket(s string, width int) int {
	return int(xxhash.Sum64String(strings.ToLower(s)) % uint64(width))
}

// accumulate hashes each element into its slot and dampens repeated buckets
// with log(1+count) so high-frequency values cannot dominate the vector.
func accumulate(vec []float32, elems []string, offset, width int) {
	if width <= 0 || len(elems) == 0 {
		return
	}
	counts := make(map[int]int, len(elems))
	for _, e := range elems {
		if e == "" {
			continue
		}
		counts[hashBucket(e, width)]++
	}
	for bucket, n := range counts {
		vec[offset+bucket] += float32(math.Log1p(float64(n)))
	}
}

func accumulateWeighted(vec []float32, weights map[string]float64, offset, width int) {
	if width <= 0 {
		return
	}
	for e, w := range weights {
		if e == "" || w == 0 {
			continue
		}
		vec[offset+hashBucket(e, width)] += float32(math.Log1p(math.Abs(w))) * sign(w)
	}
}

func sign(v float64) float32 {
	if v < 0 {
		return -1
	}
	return 1
}

// Normalize scales vec to unit length. Zero vectors are returned untouched.
func Normalize(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / magnitude)
	}
	return out
}

// EncodeItem turns a menu item's attributes into a deterministic
// L2-normalized vector. Missing attributes contribute nothing.
func EncodeItem(item *entity.MenuItem) []float32 {
	vec := make([]float32, Dimension)
	if item == nil {
		return vec
	}

	accumulate(vec, item.Tags, slotTags, tagsWidth)
	accumulate(vec, item.Ingredients, slotIngredients, ingredientWidth)
	accumulate(vec, item.Allergens, slotAllergens, allergenWidth)
	accumulate(vec, nameTokens(item.Name), slotName, nameWidth)

	vec[slotTaste+0] = float32(item.SpicyLevel) / 5.0
	vec[slotTaste+1] = float32(item.SweetLevel) / 5.0
	vec[slotTaste+2] = float32(item.SaltyLevel) / 5.0
	vec[slotTaste+3] = float32(item.SourLevel) / 5.0

	vec[slotPrice] = float32(math.Min(item.Price/priceScale, 1.0))

	vec[slotQuality] = float32(item.AvgRating / 5.0)
	vec[slotQuality+1] = float32(math.Min(math.Log1p(float64(item.RatingCount))/math.Log1p(1000), 1.0))

	if item.CanteenName != "" {
		accumulate(vec, []string{item.CanteenName}, slotCanteen, canteenWidth)
	}

	return Normalize(vec)
}

// EncodeUser projects a user's declared and behavioral profile into the same
// slot space as items, so that cosine similarity between the two is
// meaningful. Allergens receive a strong fixed negative weight.
func EncodeUser(features *entity.UserFeatures) []float32 {
	vec := make([]float32, Dimension)
	if features == nil {
		return vec
	}

	if p := features.Preference; p != nil {
		accumulate(vec, p.TagPreferences, slotTags, tagsWidth)
		accumulate(vec, p.IngredientPreferences, slotIngredients, ingredientWidth)
		accumulate(vec, p.PreferredCanteens, slotCanteen, canteenWidth)

		if p.SpicyLevel != nil {
			vec[slotTaste+0] = float32(*p.SpicyLevel) / 5.0
		}
		if p.SweetLevel != nil {
			vec[slotTaste+1] = float32(*p.SweetLevel) / 5.0
		}
		if p.SaltyLevel != nil {
			vec[slotTaste+2] = float32(*p.SaltyLevel) / 5.0
		}
		if p.SourLevel != nil {
			vec[slotTaste+3] = float32(*p.SourLevel) / 5.0
		}
		if p.PriceMin != nil && p.PriceMax != nil {
			mid := (*p.PriceMin + *p.PriceMax) / 2
			vec[slotPrice] = float32(math.Min(mid/priceScale, 1.0))
		}
	}

	if f := features.Favorites; f != nil && f.Count > 0 {
		accumulateWeighted(vec, f.TagWeights, slotTags, tagsWidth)
		for c := range f.Canteens {
			accumulate(vec, []string{c}, slotCanteen, canteenWidth)
		}
		for ing := range f.Ingredients {
			accumulate(vec, []string{ing}, slotIngredients, ingredientWidth)
		}
		// Behavioral taste overrides declared taste only when unset.
		if vec[slotTaste+0] == 0 {
			vec[slotTaste+0] = float32(f.AvgSpicy / 5.0)
		}
		if vec[slotTaste+1] == 0 {
			vec[slotTaste+1] = float32(f.AvgSweet / 5.0)
		}
		if vec[slotTaste+2] == 0 {
			vec[slotTaste+2] = float32(f.AvgSalty / 5.0)
		}
		if vec[slotTaste+3] == 0 {
			vec[slotTaste+3] = float32(f.AvgSour / 5.0)
		}
		vec[slotBehavior] = float32(math.Min(math.Log1p(float64(f.Count))/math.Log1p(100), 1.0))
	}

	if b := features.Browse; b != nil {
		accumulateWeighted(vec, b.TagWeights, slotTags, tagsWidth)
		accumulateWeighted(vec, b.CanteenWeights, slotCanteen, canteenWidth)
		vec[slotBehavior+1] = float32(math.Min(math.Log1p(float64(len(b.RecentItemIds)))/math.Log1p(100), 1.0))
	}

	for allergen := range features.Allergens {
		vec[slotAllergens+hashBucket(allergen, allergenWidth)] = allergenPenalty
	}

	return Normalize(vec)
}

func nameTokens(name string) []string {
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '/' || r == ','
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
