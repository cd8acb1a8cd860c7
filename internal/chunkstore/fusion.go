package chunkstore

import "sort"

// rrfConstant is the RRF smoothing parameter, k=60, carried over from the
// store's hybrid reranker.
const rrfConstant = 60

// fusedRow is one row after reciprocal-rank fusion of a BM25 hit list and
// a vector hit list, keyed by the row's composite key.
type fusedRow struct {
	Key         string
	RRFScore    float64
	BM25Score   float64
	bm25Rank    int
	vecRank     int
	InBothLists bool
}

// rrfFuse combines BM25 and vector results using reciprocal rank fusion.
// Documents appearing in only one list receive the missing list's
// contribution at rank max(len(bm25),len(vec))+1.
//
// Sort order: RRFScore desc, InBothLists true first, BM25Score desc,
// Key asc — the same deterministic tie-break as the original fusion.
func rrfFuse(bm25 []bm25Hit, vec []vectorHit) []fusedRow {
	if len(bm25) == 0 && len(vec) == 0 {
		return nil
	}

	rows := make(map[string]*fusedRow, len(bm25)+len(vec))
	getOrCreate := func(key string) *fusedRow {
		if r, ok := rows[key]; ok {
			return r
		}
		r := &fusedRow{Key: key}
		rows[key] = r
		return r
	}

	for rank, r := range bm25 {
		row := getOrCreate(r.Key)
		row.BM25Score = r.Score
		row.bm25Rank = rank + 1
		row.RRFScore += 1.0 / float64(rrfConstant+rank+1)
	}
	for rank, r := range vec {
		row := getOrCreate(r.Key)
		row.vecRank = rank + 1
		row.RRFScore += 1.0 / float64(rrfConstant+rank+1)
		if row.bm25Rank > 0 {
			row.InBothLists = true
		}
	}

	missingRank := len(bm25)
	if len(vec) > missingRank {
		missingRank = len(vec)
	}
	missingRank++

	for _, r := range rows {
		if r.bm25Rank == 0 && r.vecRank > 0 {
			r.RRFScore += 1.0 / float64(rrfConstant+missingRank)
		}
		if r.vecRank == 0 && r.bm25Rank > 0 {
			r.RRFScore += 1.0 / float64(rrfConstant+missingRank)
		}
	}

	out := make([]fusedRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RRFScore != b.RRFScore {
			return a.RRFScore > b.RRFScore
		}
		if a.InBothLists != b.InBothLists {
			return a.InBothLists
		}
		if a.BM25Score != b.BM25Score {
			return a.BM25Score > b.BM25Score
		}
		return a.Key < b.Key
	})

	if len(out) > 0 && out[0].RRFScore != 0 {
		max := out[0].RRFScore
		for i := range out {
			out[i].RRFScore /= max
		}
	}

	return out
}
