package audio

import (
	"sync"
	"time"
)

// ChunkQueue is an ordered, bounded queue of audio byte chunks. The capture
// source appends at the tail at arbitrary times with arbitrary sizes; the
// scheduler extracts fixed-size segments from the head once per tick.
//
// The queue is bounded by maxBytes. When an append pushes the running total
// over the bound, the oldest chunks are evicted from the head until the
// total fits again. Eviction is the backpressure policy: a consumer that
// falls behind loses the oldest audio instead of blocking the producer.
type ChunkQueue struct {
	maxBytes int

	chunks     [][]byte
	totalBytes int

	// Statistics
	chunksAppended    uint64
	bytesAppended     uint64
	chunksEvicted     uint64
	bytesEvicted      uint64
	segmentsExtracted uint64
	bytesExtracted    uint64
	lastAppend        time.Time

	mu sync.Mutex
}

// QueueStats represents queue statistics for monitoring.
type QueueStats struct {
	BufferedBytes     int    `json:"buffered_bytes"`
	BufferedChunks    int    `json:"buffered_chunks"`
	MaxBytes          int    `json:"max_bytes"`
	ChunksAppended    uint64 `json:"chunks_appended"`
	BytesAppended     uint64 `json:"bytes_appended"`
	ChunksEvicted     uint64 `json:"chunks_evicted"`
	BytesEvicted      uint64 `json:"bytes_evicted"`
	SegmentsExtracted uint64 `json:"segments_extracted"`
	BytesExtracted    uint64 `json:"bytes_extracted"`
}

// NewChunkQueue creates a queue bounded to maxBytes of buffered audio.
func NewChunkQueue(maxBytes int) *ChunkQueue {
	return &ChunkQueue{
		maxBytes: maxBytes,
		chunks:   make([][]byte, 0, 16),
	}
}

// Append copies data onto the tail of the queue and evicts from the head
// until the buffered total is back under the capacity bound. It returns the
// number of bytes evicted to make room.
func (q *ChunkQueue) Append(data []byte) int {
	if len(data) == 0 {
		return 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	// The queue owns its chunks; callers may reuse their buffer.
	chunk := make([]byte, len(data))
	copy(chunk, data)

	q.chunks = append(q.chunks, chunk)
	q.totalBytes += len(chunk)
	q.chunksAppended++
	q.bytesAppended += uint64(len(chunk))
	q.lastAppend = time.Now()

	evicted := 0
	for q.totalBytes > q.maxBytes && len(q.chunks) > 0 {
		head := q.chunks[0]
		q.chunks = q.chunks[1:]
		q.totalBytes -= len(head)
		evicted += len(head)
		q.chunksEvicted++
		q.bytesEvicted += uint64(len(head))
	}

	return evicted
}

// ExtractSegment removes up to target bytes from the head of the queue,
// preserving byte order. If the boundary falls inside a chunk, the chunk is
// split and the remainder is pushed back onto the head so the next
// extraction resumes exactly where this one stopped.
//
// The result is exactly target bytes long unless the queue ran out first, in
// which case it is whatever was buffered — possibly empty. The caller
// decides what a short or empty segment means.
func (q *ChunkQueue) ExtractSegment(target int) []byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	if target < 0 {
		target = 0
	}

	segment := make([]byte, 0, target)
	for len(segment) < target && len(q.chunks) > 0 {
		head := q.chunks[0]
		q.chunks = q.chunks[1:]

		need := target - len(segment)
		if len(head) > need {
			segment = append(segment, head[:need]...)
			// Remainder keeps its place at the head of the queue.
			q.chunks = append([][]byte{head[need:]}, q.chunks...)
			q.totalBytes -= need
		} else {
			segment = append(segment, head...)
			q.totalBytes -= len(head)
		}
	}

	q.segmentsExtracted++
	q.bytesExtracted += uint64(len(segment))

	return segment
}

// BufferedBytes returns the current buffered byte total.
func (q *ChunkQueue) BufferedBytes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.totalBytes
}

// Len returns the number of buffered chunks.
func (q *ChunkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// MaxBytes returns the configured capacity bound.
func (q *ChunkQueue) MaxBytes() int {
	return q.maxBytes
}

// Reset discards all buffered chunks. Statistics are preserved.
func (q *ChunkQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.chunks = q.chunks[:0]
	q.totalBytes = 0
}

// LastAppend returns the time of the most recent append.
func (q *ChunkQueue) LastAppend() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastAppend
}

// Stats returns a snapshot of the queue statistics.
func (q *ChunkQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return QueueStats{
		BufferedBytes:     q.totalBytes,
		BufferedChunks:    len(q.chunks),
		MaxBytes:          q.maxBytes,
		ChunksAppended:    q.chunksAppended,
		BytesAppended:     q.bytesAppended,
		ChunksEvicted:     q.chunksEvicted,
		BytesEvicted:      q.bytesEvicted,
		SegmentsExtracted: q.segmentsExtracted,
		BytesExtracted:    q.bytesExtracted,
	}
}
