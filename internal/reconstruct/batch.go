package reconstruct

import "fmt"

// batchRange is a half-open range [From, To) of pool positions fetched in one call.
type batchRange struct {
	From int
	To   int
}

// splitBatches splits n pools into consecutive batches of at most size pools.
func splitBatches(n, size int) ([]batchRange, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if n < 0 {
		return nil, fmt.Errorf("pool count must be >= 0")
	}

	ranges := make([]batchRange, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		ranges = append(ranges, batchRange{From: start, To: min(start+size, n)})
	}
	return ranges, nil
}
