package engine

// MaxBatch is the largest number of items the controller accepts in one
// create or update payload.
const MaxBatch = 40

// Chunk splits items into consecutive batches of at most size items.
// A size below one selects MaxBatch.
func Chunk[T any](items []T, size int) [][]T {
	if size < 1 {
		size = MaxBatch
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
