package director

import "github.com/fyrsmithlabs/storyloom/internal/memoir"

// DistributeMedia redistributes the chapters' pooled media references under
// the configured strategy. Exactly one strategy is active per run:
//
//   - balanced: even split, remainder to the earliest chapters
//   - front_loaded: weight decays linearly with position
//   - climactic: weight peaks at the middle position
//   - scattered: pool shuffled, even split, random +/-1 jitter
//
// Pool order is preserved for every strategy except scattered, which draws
// from the injected RNG.
func (d *Director) DistributeMedia(chapters []memoir.Chapter) []memoir.Chapter {
	if len(chapters) == 0 {
		return chapters
	}

	pool := make([]string, 0)
	for _, c := range chapters {
		pool = append(pool, c.MediaPaths...)
	}
	if len(pool) == 0 {
		return chapters
	}

	var counts []int
	switch d.cfg.MediaStrategy {
	case "front_loaded":
		counts = weightedCounts(frontLoadedWeights(len(chapters)), len(pool))
	case "climactic":
		counts = weightedCounts(climacticWeights(len(chapters)), len(pool))
	case "scattered":
		d.rng.Shuffle(len(pool), func(i, j int) {
			pool[i], pool[j] = pool[j], pool[i]
		})
		counts = evenCounts(len(chapters), len(pool))
		d.jitterCounts(counts)
	default: // balanced
		counts = evenCounts(len(chapters), len(pool))
	}

	out := make([]memoir.Chapter, len(chapters))
	copy(out, chapters)
	offset := 0
	for i := range out {
		take := counts[i]
		if offset+take > len(pool) {
			take = len(pool) - offset
		}
		out[i].MediaPaths = append([]string(nil), pool[offset:offset+take]...)
		offset += take
	}
	// Anything stranded by jitter rounding lands on the final chapter.
	if offset < len(pool) {
		last := len(out) - 1
		out[last].MediaPaths = append(out[last].MediaPaths, pool[offset:]...)
	}
	return out
}

// evenCounts splits total across n slots, remainder to the earliest.
func evenCounts(n, total int) []int {
	counts := make([]int, n)
	base := total / n
	rem := total % n
	for i := range counts {
		counts[i] = base
		if i < rem {
			counts[i]++
		}
	}
	return counts
}

// frontLoadedWeights decay linearly: the first chapter weighs n, the last 1.
func frontLoadedWeights(n int) []float64 {
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = float64(n - i)
	}
	return weights
}

// climacticWeights peak at the middle position.
func climacticWeights(n int) []float64 {
	weights := make([]float64, n)
	mid := float64(n-1) / 2
	for i := range weights {
		dist := float64(i) - mid
		if dist < 0 {
			dist = -dist
		}
		weights[i] = mid - dist + 1
	}
	return weights
}

// weightedCounts apportions total by weight with largest-remainder rounding.
func weightedCounts(weights []float64, total int) []int {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	counts := make([]int, len(weights))
	assigned := 0
	type remainder struct {
		index int
		frac  float64
	}
	rems := make([]remainder, 0, len(weights))
	for i, w := range weights {
		exact := float64(total) * w / sum
		counts[i] = int(exact)
		assigned += counts[i]
		rems = append(rems, remainder{index: i, frac: exact - float64(counts[i])})
	}
	// Hand out the leftovers to the largest fractional parts; ties go to
	// the earliest position.
	for assigned < total {
		best := 0
		for i := 1; i < len(rems); i++ {
			if rems[i].frac > rems[best].frac {
				best = i
			}
		}
		counts[rems[best].index]++
		rems[best].frac = -1
		assigned++
	}
	return counts
}

// jitterCounts nudges adjacent counts by one, at random, preserving the
// total.
func (d *Director) jitterCounts(counts []int) {
	for i := 0; i < len(counts)-1; i++ {
		if counts[i] > 0 && d.rng.Intn(2) == 1 {
			counts[i]--
			counts[i+1]++
		}
	}
}
