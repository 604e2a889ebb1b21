package stream

// Materialize drains r into a plain slice, closing r when done. It is
// the Go analogue of STXXL's stream::materialize, used by callers (and
// by Testable Property 5: materialize(read_stream(write_stream(xs)))
// == xs) that want the whole sequence in memory rather than streaming
// it further.
func Materialize[T any](r *Reader[T]) ([]T, error) {
	defer r.Close()
	out := make([]T, 0, r.total)
	for !r.Empty() {
		out = append(out, r.Peek())
		r.Next()
	}
	return out, r.Err()
}
