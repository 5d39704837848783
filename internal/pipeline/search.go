package pipeline

import (
	"sort"

	"salesboard/internal"
	"salesboard/internal/util"
)

const maxSearchPool = 1500

type SearchHit struct {
	Row   internal.ConsolidatedRow `json:"-"`
	Score float64                  `json:"score"`
}

// ProductIndex looks up consolidated rows by product name: exact normalized
// names first, then token overlap blended with bigram similarity.
type ProductIndex struct {
	rows        []internal.ConsolidatedRow
	byName      map[string][]int
	tokenToRows map[string]map[int]struct{}
}

func BuildProductIndex(rows []internal.ConsolidatedRow) *ProductIndex {
	idx := &ProductIndex{
		rows:        rows,
		byName:      map[string][]int{},
		tokenToRows: map[string]map[int]struct{}{},
	}
	for i, row := range rows {
		name := util.NormalizeText(row.Product)
		idx.byName[name] = append(idx.byName[name], i)
		for _, token := range util.Tokenize(name) {
			if _, ok := idx.tokenToRows[token]; !ok {
				idx.tokenToRows[token] = map[int]struct{}{}
			}
			idx.tokenToRows[token][i] = struct{}{}
		}
	}
	return idx
}

// Search returns up to limit rows ranked by how well their product matches
// the query. Rows with no similarity at all are left out.
func (idx *ProductIndex) Search(query string, limit int) []SearchHit {
	normalized := util.CollapseSpaces(util.NormalizeText(query))
	if normalized == "" {
		return []SearchHit{}
	}

	if exact := idx.byName[normalized]; len(exact) > 0 {
		out := make([]SearchHit, 0, len(exact))
		for _, i := range exact {
			out = append(out, SearchHit{Row: idx.rows[i], Score: 1})
		}
		return truncateHits(out, limit)
	}

	queryTokens := util.Tokenize(normalized)
	pool := map[int]struct{}{}
	for _, token := range queryTokens {
		for i := range idx.tokenToRows[token] {
			pool[i] = struct{}{}
		}
	}
	if len(pool) == 0 {
		for i := range idx.rows {
			if i >= maxSearchPool {
				break
			}
			pool[i] = struct{}{}
		}
	}

	out := make([]SearchHit, 0, len(pool))
	for i := range pool {
		candidate := util.NormalizeText(idx.rows[i].Product)
		score := scoreName(normalized, candidate, queryTokens, util.Tokenize(candidate))
		if score <= 0 {
			continue
		}
		out = append(out, SearchHit{Row: idx.rows[i], Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		a, b := out[i].Row, out[j].Row
		if a.City != b.City {
			return a.City < b.City
		}
		return a.Product < b.Product
	})
	return truncateHits(out, limit)
}

func scoreName(query, candidate string, queryTokens, candidateTokens []string) float64 {
	dice := util.DiceCoefficient(query, candidate)
	if len(queryTokens) == 0 || len(candidateTokens) == 0 {
		return dice
	}

	set := map[string]struct{}{}
	for _, t := range candidateTokens {
		set[t] = struct{}{}
	}
	overlap := 0
	for _, t := range queryTokens {
		if _, ok := set[t]; ok {
			overlap++
		}
	}
	tokenScore := float64(overlap) / float64(len(queryTokens))
	return 0.65*dice + 0.35*tokenScore
}

func truncateHits(hits []SearchHit, limit int) []SearchHit {
	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}
