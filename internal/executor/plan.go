package executor

// Batch is a contiguous index range [From, To) generated and staged as one unit.
type Batch struct {
	Index  int
	From   int
	To     int
	Chunks []Chunk
}

// Chunk is a contiguous sub-range of a batch evaluated by one worker.
type Chunk struct {
	From int
	To   int
}

// Size returns the number of items in the batch.
func (b Batch) Size() int { return b.To - b.From }

// Size returns the number of items in the chunk.
func (c Chunk) Size() int { return c.To - c.From }

// Plan splits [0, target) into ceil(target/batchSize) batches and every batch
// into chunks of at most chunkSize items.
func Plan(target, batchSize, chunkSize int) []Batch {
	if target <= 0 || batchSize <= 0 || chunkSize <= 0 {
		return nil
	}
	count := (target + batchSize - 1) / batchSize
	batches := make([]Batch, 0, count)
	for b := 0; b < count; b++ {
		from := b * batchSize
		to := min(from+batchSize, target)
		batch := Batch{Index: b, From: from, To: to}
		for c := from; c < to; c += chunkSize {
			batch.Chunks = append(batch.Chunks, Chunk{From: c, To: min(c+chunkSize, to)})
		}
		batches = append(batches, batch)
	}
	return batches
}
