package ingest

import "github.com/hazyhaar/aadhaar-pulse/pkg/records"

// batcher accumulates records and flushes every size records. The buffer
// spans files, so the number of flushes depends only on the total count.
type batcher struct {
	size  int
	buf   []records.Record
	flush func([]records.Record) error
	err   error
}

func (b *batcher) add(r records.Record) error {
	if b.err != nil {
		return b.err
	}
	b.buf = append(b.buf, r)
	if len(b.buf) >= b.size {
		return b.drain()
	}
	return nil
}

// drain flushes whatever is buffered.
func (b *batcher) drain() error {
	if b.err != nil {
		return b.err
	}
	if len(b.buf) == 0 {
		return nil
	}
	if err := b.flush(b.buf); err != nil {
		b.err = err
		return err
	}
	b.buf = make([]records.Record, 0, b.size)
	return nil
}
