package timeline

import "context"

type ingestTaskKey struct{}

// WithIngestTask marks ctx as belonging to the WAL-ingest task of §4.8.
// wait_lsn asserts against this marker: the ingest task is the only
// writer, so it blocking on its own gate would deadlock (§4.2).
func WithIngestTask(ctx context.Context) context.Context {
	return context.WithValue(ctx, ingestTaskKey{}, true)
}

func isIngestTask(ctx context.Context) bool {
	v, _ := ctx.Value(ingestTaskKey{}).(bool)
	return v
}
