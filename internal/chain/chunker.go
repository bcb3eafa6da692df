package chain

// BlockRange is an inclusive block interval.
type BlockRange struct {
	From uint64
	To   uint64
}

// Span returns the number of blocks covered by the range.
func (r BlockRange) Span() uint64 {
	return r.To - r.From + 1
}

// SplitRange splits the inclusive interval [from, to] into consecutive
// sub-ranges of at most maxSpan blocks, covering the interval with no gaps
// and no overlaps. Providers cap eth_getLogs ranges, so every log query goes
// through this first. from > to yields nil; a range that already fits yields
// a single chunk.
func SplitRange(from, to, maxSpan uint64) []BlockRange {
	if from > to {
		return nil
	}
	if maxSpan == 0 {
		maxSpan = 1
	}

	chunks := make([]BlockRange, 0, (to-from)/maxSpan+1)
	for start := from; start <= to; {
		end := start + maxSpan - 1
		if end > to || end < start { // end < start guards uint64 overflow
			end = to
		}
		chunks = append(chunks, BlockRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}
	return chunks
}
