package codec

// RecordSink is the idiomatic Go translation of the protocol's five-case
// record callback: instead of a single `(chunk, len, idx, user) -> int`
// function distinguishing cases by sentinel idx values, each case is its
// own method. Event ordering and semantics are unchanged from the wire
// protocol's callback contract.
//
// A non-nil error returned from Chunk, RecordEnd, or MessageDone forces the
// parser into its error state and triggers a MessageFailed callback, per
// the protocol's "non-zero callback return aborts the message" rule.
type RecordSink interface {
	// Chunk delivers one complete, length-prefixed wire chunk belonging to
	// record idx. Chunking is visible here exactly as declared on the
	// wire: a record larger than 65535 bytes arrives as multiple Chunk
	// calls with the same idx, to be concatenated by the sink.
	Chunk(idx int, chunk []byte) error

	// RecordEnd signals that record idx has fully terminated (its EOR was
	// seen). It fires for every record, including the last one in the
	// message (whose terminator is followed directly by EOM, not RSEP).
	RecordEnd(idx int) error

	// MessageDone signals the whole message parsed and authenticated
	// cleanly.
	MessageDone() error

	// MessageFailed signals that parsing or authentication failed. The
	// parser is terminal after this call; the connection should be closed.
	MessageFailed(err error)

	// Closed signals that the underlying connection closed. Any resources
	// held by the sink for this parser should be released.
	Closed()
}
