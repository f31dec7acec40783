package scoring

import (
	"math"
	"sort"
	"strings"

	"campus-dining-be/internal/entity"
)

// Neutral is the sub-score used when a signal has no data to judge by. A
// user without favorites is neither attracted to nor repelled by anything.
const Neutral = 0.5

// avoidPenalty is subtracted from the preference score for every avoided
// ingredient present in the item.
const avoidPenalty = 0.3

// Blend factors applied when an embedding similarity is available for a
// candidate: the rule-based preference score keeps the majority share.
const (
	ruleBlend      = 0.7
	embeddingBlend = 0.3
)

// SearchContext carries the active search query, pre-tokenized once per
// request rather than per candidate.
type SearchContext struct {
	Query  string
	Tokens []string
}

func NewSearchContext(query string) *SearchContext {
	q := strings.TrimSpace(strings.ToLower(query))
	if q == "" {
		return nil
	}
	return &SearchContext{Query: q, Tokens: tokenize(q)}
}

// Candidate is one recalled item plus its optional embedding similarity to
// the requesting user.
type Candidate struct {
	Item         *entity.MenuItem
	EmbeddingSim *float64
	Sources      []string
}

// Breakdown holds the six independent sub-scores and the final composite.
type Breakdown struct {
	Preference float64
	Favorite   float64
	Browse     float64
	Quality    float64
	Diversity  float64
	Search     float64
	Final      float64
}

// Ranked is a scored candidate. Breakdown is nil unless requested.
type Ranked struct {
	Item      *entity.MenuItem
	Score     float64
	Breakdown *Breakdown
	Sources   []string
}

// Rank scores every candidate against the user's features and returns them
// sorted by descending score. The sort is stable, so recall order decides
// ties. Weights that sum to zero fall back to the defaults.
func Rank(candidates []Candidate, features *entity.UserFeatures, weights entity.ScoreWeights, search *SearchContext, keepBreakdown bool) []Ranked {
	if weights.Sum() <= 0 {
		weights = entity.DefaultScoreWeights()
	}

	ranked := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		if c.Item == nil {
			continue
		}
		b := Breakdown{
			Preference: PreferenceScore(c.Item, features, c.EmbeddingSim),
			Favorite:   FavoriteScore(c.Item, features),
			Browse:     BrowseScore(c.Item, features),
			Quality:    QualityScore(c.Item),
			Diversity:  DiversityScore(c.Item, features),
			Search:     SearchScore(c.Item, search),
		}
		b.Final = (b.Preference*weights.Preference +
			b.Favorite*weights.Favorite +
			b.Browse*weights.Browse +
			b.Quality*weights.Quality +
			b.Diversity*weights.Diversity +
			b.Search*weights.Search) / weights.Sum()

		r := Ranked{Item: c.Item, Score: b.Final, Sources: c.Sources}
		if keepBreakdown {
			bb := b
			r.Breakdown = &bb
		}
		ranked = append(ranked, r)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// PreferenceScore measures how well the item matches the user's declared
// preferences. Only signals the user actually declared count toward the
// ratio; a user with no profile at all gets the neutral score. An avoided
// ingredient present in the item subtracts a fixed penalty. When an
// embedding similarity is supplied, the rule-based score is blended with it.
func PreferenceScore(item *entity.MenuItem, features *entity.UserFeatures, embeddingSim *float64) float64 {
	var p *entity.PreferenceProfile
	if features != nil {
		p = features.Preference
	}
	if p == nil {
		return blend(Neutral, embeddingSim)
	}

	var total, matched float64

	if len(p.TagPreferences) > 0 {
		total++
		matched += overlapRatio(item.Tags, p.TagPreferences)
	}

	if p.PriceMin != nil || p.PriceMax != nil {
		total++
		if priceInRange(item.Price, p.PriceMin, p.PriceMax) {
			matched++
		}
	}

	for _, t := range [][2]*int{
		{p.SpicyLevel, &item.SpicyLevel},
		{p.SweetLevel, &item.SweetLevel},
		{p.SaltyLevel, &item.SaltyLevel},
		{p.SourLevel, &item.SourLevel},
	} {
		if t[0] != nil {
			total++
			matched += tasteTargetSimilarity(math.Abs(float64(*t[0] - *t[1])))
		}
	}

	if len(p.PreferredCanteens) > 0 {
		total++
		for _, c := range p.PreferredCanteens {
			if c == item.CanteenName {
				matched++
				break
			}
		}
	}

	if len(p.IngredientPreferences) > 0 {
		total++
		matched += overlapRatio(item.Ingredients, p.IngredientPreferences)
	}

	score := Neutral
	if total > 0 {
		score = matched / total
	}

	for _, avoid := range p.AvoidIngredients {
		if containsFold(item.Ingredients, avoid) {
			score -= avoidPenalty
			break
		}
	}

	return blend(clamp01(score), embeddingSim)
}

// FavoriteScore compares the item against the aggregate profile of the
// user's favorited items: tag overlap 25%, same-canteen 15%, ingredient
// overlap 20%, taste distance 20%, price distance 20%.
func FavoriteScore(item *entity.MenuItem, features *entity.UserFeatures) float64 {
	var f *entity.FavoriteSummary
	if features != nil {
		f = features.Favorites
	}
	if f == nil || f.Count == 0 {
		return Neutral
	}

	tagScore := weightedOverlap(item.Tags, f.TagWeights)

	canteenScore := 0.0
	if f.Canteens[item.CanteenName] {
		canteenScore = 1.0
	}

	ingScore := 0.0
	if len(item.Ingredients) > 0 {
		hit := 0
		for _, ing := range item.Ingredients {
			if f.Ingredients[ing] {
				hit++
			}
		}
		ingScore = float64(hit) / float64(len(item.Ingredients))
	}

	tasteDiff := math.Abs(float64(item.SpicyLevel)-f.AvgSpicy) +
		math.Abs(float64(item.SweetLevel)-f.AvgSweet) +
		math.Abs(float64(item.SaltyLevel)-f.AvgSalty) +
		math.Abs(float64(item.SourLevel)-f.AvgSour)
	tasteScore := tasteProfileSimilarity(tasteDiff)

	priceScore := priceDistanceSimilarity(item.Price, f.AvgPrice)

	return clamp01(0.25*tagScore + 0.15*canteenScore + 0.20*ingScore + 0.20*tasteScore + 0.20*priceScore)
}

// BrowseScore measures overlap with the time-decayed browse aggregates: tag
// weights 60%, canteen weights 40%.
func BrowseScore(item *entity.MenuItem, features *entity.UserFeatures) float64 {
	var b *entity.BrowseSummary
	if features != nil {
		b = features.Browse
	}
	if b == nil || (len(b.TagWeights) == 0 && len(b.CanteenWeights) == 0) {
		return Neutral
	}

	tagScore := weightedOverlap(item.Tags, b.TagWeights)
	canteenScore := weightedOverlap([]string{item.CanteenName}, b.CanteenWeights)

	return clamp01(0.6*tagScore + 0.4*canteenScore)
}

// QualityScore is 70% normalized average rating plus 30% log-scaled review
// count, saturating around a thousand reviews.
func QualityScore(item *entity.MenuItem) float64 {
	ratingScore := item.AvgRating / 5.0
	countScore := math.Min(math.Log1p(float64(item.RatingCount))/math.Log1p(1000), 1.0)
	return clamp01(0.7*ratingScore + 0.3*countScore)
}

// DiversityScore discourages re-surfacing: 0 for already-favorited items,
// 0.3 for recently browsed ones, 1 otherwise.
func DiversityScore(item *entity.MenuItem, features *entity.UserFeatures) float64 {
	if features.HasFavorited(item.Id) {
		return 0
	}
	if features.RecentlyBrowsed(item.Id) {
		return 0.3
	}
	return 1
}

// SearchScore is only meaningful with an active search context: exact or
// substring name match 40%, tag tokens 25%, description tokens 20%,
// ingredient tokens 15%.
func SearchScore(item *entity.MenuItem, search *SearchContext) float64 {
	if search == nil {
		return Neutral
	}

	name := strings.ToLower(item.Name)
	nameScore := 0.0
	switch {
	case name == search.Query:
		nameScore = 1.0
	case strings.Contains(name, search.Query):
		nameScore = 0.8
	}

	tagScore := tokenOverlap(item.Tags, search.Tokens)
	descScore := tokenOverlap(tokenize(strings.ToLower(item.Description)), search.Tokens)
	ingScore := tokenOverlap(item.Ingredients, search.Tokens)

	return clamp01(0.40*nameScore + 0.25*tagScore + 0.20*descScore + 0.15*ingScore)
}

// tasteTargetSimilarity converts a distance to a single declared taste
// target into [0,1]. The denominator is the 0-5 scale of one dimension.
func tasteTargetSimilarity(diff float64) float64 {
	return clamp01(1.0 - diff/5.0)
}

// tasteProfileSimilarity converts the summed distance across all four taste
// dimensions against an aggregate favorite profile into [0,1]. The
// denominator is the 20-point total span of the four dimensions. Kept
// separate from tasteTargetSimilarity on purpose: merging the two would
// change existing rankings.
func tasteProfileSimilarity(totalDiff float64) float64 {
	return clamp01(1.0 - totalDiff/20.0)
}

func priceDistanceSimilarity(price, anchor float64) float64 {
	if anchor <= 0 {
		return Neutral
	}
	return clamp01(1.0 - math.Min(math.Abs(price-anchor)/anchor, 1.0))
}

func priceInRange(price float64, min, max *float64) bool {
	if min != nil && price < *min {
		return false
	}
	if max != nil && price > *max {
		return false
	}
	return true
}

// overlapRatio is the fraction of wanted elements present in have.
func overlapRatio(have, wanted []string) float64 {
	if len(wanted) == 0 {
		return 0
	}
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[strings.ToLower(h)] = true
	}
	hit := 0
	for _, w := range wanted {
		if set[strings.ToLower(w)] {
			hit++
		}
	}
	return float64(hit) / float64(len(wanted))
}

// weightedOverlap sums the weights of matched elements over the total
// weight mass.
func weightedOverlap(elems []string, weights map[string]float64) float64 {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return 0
	}
	var hit float64
	for _, e := range elems {
		hit += weights[e]
	}
	return clamp01(hit / total)
}

func tokenOverlap(elems []string, tokens []string) float64 {
	if len(tokens) == 0 || len(elems) == 0 {
		return 0
	}
	set := make(map[string]bool, len(elems))
	for _, e := range elems {
		set[strings.ToLower(e)] = true
	}
	hit := 0
	for _, t := range tokens {
		if set[t] {
			hit++
		}
	}
	return float64(hit) / float64(len(tokens))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '、' || r == '/'
	})
}

func containsFold(elems []string, target string) bool {
	for _, e := range elems {
		if strings.EqualFold(e, target) {
			return true
		}
	}
	return false
}

func blend(rule float64, embeddingSim *float64) float64 {
	if embeddingSim == nil {
		return rule
	}
	return clamp01(ruleBlend*rule + embeddingBlend*clamp01(*embeddingSim))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
