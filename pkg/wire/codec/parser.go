package codec

import (
	"encoding/binary"
	"time"

	"github.com/shardcache-go/shc/pkg/wire"
	"github.com/shardcache-go/shc/pkg/wire/auth"
)

// State is one of the parser's nine states, plus AuthErr as a distinguished
// terminal alongside Err.
type State int

const (
	StateNone State = iota
	StateMagic
	StateSigHdr
	StateHdr
	StateRecord
	StateRSEP
	StateAuth
	StateDone
	StateErr
	StateAuthErr
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateMagic:
		return "MAGIC"
	case StateSigHdr:
		return "SIG_HDR"
	case StateHdr:
		return "HDR"
	case StateRecord:
		return "RECORD"
	case StateRSEP:
		return "RSEP"
	case StateAuth:
		return "AUTH"
	case StateDone:
		return "DONE"
	case StateErr:
		return "ERR"
	case StateAuthErr:
		return "AUTH_ERR"
	default:
		return "UNKNOWN"
	}
}

// recordPhase tracks progress within the RECORD state across the fields a
// single wire chunk is made of: an optional leading digest (0xF1 mode
// only), a 16-bit length, and the payload itself.
type recordPhase int

const (
	phaseDigest recordPhase = iota
	phaseLen
	phasePayload
)

// Parser is the resumable streaming state machine described in the
// protocol's component design: it consumes arbitrary byte slices via Feed,
// drives the state machine as far as buffered input allows, and emits
// record/message events through a RecordSink. All mutable scalars live on
// this one struct; no state is spread across helper routines.
type Parser struct {
	secret []byte
	sink   RecordSink

	state State
	err   error

	pending []byte // unconsumed input, the parser's "ring buffer"

	magicBuf [4]byte
	magicLen int

	sigMode wire.SigMode
	cmd     wire.Command

	phase     recordPhase
	lenBuf    [2]byte
	lenLen    int
	clen      int
	coff      int
	chunkBuf  []byte
	recordIdx int
	recordLen int

	digestBuf [8]byte
	digestLen int

	// running is fed selectively in 0xF1 mode (length bytes, payload
	// bytes, and the bundled EOR+RSEP / EOR+EOM triples) and checked at
	// every record boundary. wholeHash is fed every raw byte from the
	// command byte through EOM, unconditionally, for 0xF0 mode's single
	// trailing digest.
	running   *auth.State
	wholeHash *auth.State

	lastActivity time.Time
}

// NewParser creates a parser bound to secret (nil/empty means
// unauthenticated connections are accepted) and sink. The same parser
// instance is reused across a persistent connection's pipelined messages;
// see Feed.
func NewParser(secret []byte, sink RecordSink) *Parser {
	p := &Parser{secret: secret, sink: sink}
	p.resetMessage()
	return p
}

// State reports the parser's current state.
func (p *Parser) State() State { return p.state }

// Command reports the command byte of the message currently (or most
// recently) being parsed. Valid once stepHdr has consumed it; zero before
// that point.
func (p *Parser) Command() wire.Command { return p.cmd }

// LastActivity reports when Feed last delivered any bytes, for the
// reactor-driven idle-timeout check described in the concurrency model.
func (p *Parser) LastActivity() time.Time { return p.lastActivity }

// resetMessage resets per-message scalars to their initial values, per the
// lifecycle rule that a parser resets to NONE after DONE but keeps its
// ring buffer and secret across messages on a persistent connection.
func (p *Parser) resetMessage() {
	p.state = StateNone
	p.err = nil
	p.magicLen = 0
	p.sigMode = wire.SigNone
	p.cmd = 0
	p.phase = phaseLen
	p.lenLen = 0
	p.clen = 0
	p.coff = 0
	p.recordIdx = 0
	p.recordLen = 0
	p.digestLen = 0
	p.running = nil
	p.wholeHash = nil
}

// Reset explicitly returns the parser to its initial state, discarding any
// buffered partial message. Feed also does this automatically on entry
// after reaching DONE, so callers normally never need this directly.
func (p *Parser) Reset() {
	p.pending = nil
	p.resetMessage()
}

// Feed delivers more bytes from the connection and drives the state
// machine to a fixpoint on the buffered input. It consumes the entire
// slice (buffering any unprocessable remainder internally) and returns
// len(data), matching the reactor's on_input contract, together with the
// error of a message that fails during this call. Once the parser is in a
// terminal error state, every later Feed returns 0 and an error without
// consuming input, until the caller discards or Resets the parser.
func (p *Parser) Feed(data []byte) (int, error) {
	if p.state == StateErr || p.state == StateAuthErr {
		return 0, wire.ProtocolError("parser is in a terminal error state", p.err)
	}
	if p.state == StateDone {
		p.resetMessage()
	}

	p.lastActivity = time.Now()
	p.pending = append(p.pending, data...)

	if err := p.run(); err != nil {
		return len(data), err
	}
	return len(data), nil
}

// Closed notifies the sink that the underlying connection has closed and
// releases any resources the sink holds for this parser. Per the
// callback contract this is the idx=-3 notification.
func (p *Parser) Closed() {
	p.sink.Closed()
}

func (p *Parser) run() error {
	for {
		switch p.state {
		case StateNone:
			if !p.stepNone() {
				return nil
			}
		case StateMagic:
			cont, err := p.stepMagic()
			if err != nil {
				return p.fail(err)
			}
			if !cont {
				return nil
			}
		case StateSigHdr:
			cont, err := p.stepSigHdr()
			if err != nil {
				return p.fail(err)
			}
			if !cont {
				return nil
			}
		case StateHdr:
			cont, err := p.stepHdr()
			if err != nil {
				return p.fail(err)
			}
			if !cont {
				return nil
			}
		case StateRecord:
			cont, err := p.stepRecord()
			if err != nil {
				return p.fail(err)
			}
			if !cont {
				return nil
			}
		case StateRSEP:
			cont, err := p.stepRSEP()
			if err != nil {
				return p.fail(err)
			}
			if !cont {
				return nil
			}
		case StateAuth:
			cont, err := p.stepAuth()
			if err != nil {
				return p.fail(err)
			}
			if !cont {
				return nil
			}
		case StateDone:
			if err := p.deliver(p.sink.MessageDone); err != nil {
				return p.fail(err)
			}
			if len(p.pending) == 0 {
				return nil
			}
			// More buffered input follows in the same Feed call (a
			// coalesced read carrying back-to-back pipelined messages).
			// Reset now and keep running to a fixpoint instead of
			// waiting for the next Feed to pick it up.
			p.resetMessage()
		default:
			return nil
		}
	}
}

// fail transitions the parser to its terminal error state and notifies the
// sink exactly once. AuthError causes transition to AUTH_ERR; everything
// else to ERR.
func (p *Parser) fail(err error) error {
	if wire.IsKind(err, wire.KindAuth) {
		p.state = StateAuthErr
	} else {
		p.state = StateErr
	}
	p.err = err
	p.sink.MessageFailed(err)
	return err
}

func (p *Parser) deliver(fn func() error) error {
	if err := fn(); err != nil {
		return wire.CallbackError("record sink returned an error", err)
	}
	return nil
}

// stepNone peels leading NOOP padding; the first non-NOOP byte anchors
// magic. Returns false when more input is needed.
func (p *Parser) stepNone() bool {
	i := 0
	for i < len(p.pending) && p.pending[i] == wire.Noop {
		i++
	}
	p.pending = p.pending[i:]
	if len(p.pending) == 0 {
		return false
	}
	p.state = StateMagic
	p.magicLen = 0
	return true
}

func (p *Parser) stepMagic() (bool, error) {
	n := copy(p.magicBuf[p.magicLen:], p.pending)
	p.pending = p.pending[n:]
	p.magicLen += n
	if p.magicLen < 4 {
		return false, nil
	}

	magic := binary.BigEndian.Uint32(p.magicBuf[:])
	if magic&wire.MagicMask != wire.MagicPrefix {
		return false, wire.ProtocolError("bad magic prefix", nil)
	}
	version := byte(magic)
	if version > wire.Version {
		return false, wire.ProtocolError("unsupported protocol version", nil)
	}
	p.state = StateSigHdr
	return true, nil
}

// stepSigHdr peeks (does not unconditionally consume) one byte: if it is a
// signature marker it is consumed here and HDR reads the real command
// byte next; otherwise it is left for HDR to consume as the command byte
// itself.
func (p *Parser) stepSigHdr() (bool, error) {
	if len(p.pending) == 0 {
		return false, nil
	}
	b := p.pending[0]

	if b == wire.SigHdrWhole || b == wire.SigHdrChunk {
		if len(p.secret) == 0 {
			return false, wire.AuthError("signature header present but no secret configured", nil)
		}
		if b == wire.SigHdrChunk {
			p.sigMode = wire.SigChunk
		} else {
			p.sigMode = wire.SigWhole
		}
		p.pending = p.pending[1:]
		p.state = StateHdr
		return true, nil
	}

	if len(p.secret) > 0 {
		return false, wire.AuthError("secret configured but no signature header present", nil)
	}
	p.sigMode = wire.SigNone
	p.state = StateHdr
	return true, nil
}

func (p *Parser) stepHdr() (bool, error) {
	if len(p.pending) == 0 {
		return false, nil
	}
	p.cmd = wire.Command(p.pending[0])
	p.pending = p.pending[1:]

	if !p.cmd.Valid() {
		return false, wire.ProtocolError("unknown command", nil)
	}

	switch p.sigMode {
	case wire.SigChunk:
		p.running = auth.New(p.secret)
		p.running.Write([]byte{byte(p.cmd)})
		p.phase = phaseDigest
	case wire.SigWhole:
		p.wholeHash = auth.New(p.secret)
		p.wholeHash.Write([]byte{byte(p.cmd)})
		p.phase = phaseLen
	default:
		p.phase = phaseLen
	}

	p.recordIdx = 0
	p.recordLen = 0
	p.clen = 0
	p.coff = 0
	p.digestLen = 0
	p.state = StateRecord
	return true, nil
}

// stepRecord drives one iteration of the chunk sub-machine: an optional
// leading digest check, a 16-bit length read, and payload accumulation.
func (p *Parser) stepRecord() (bool, error) {
	switch p.phase {
	case phaseDigest:
		return p.stepRecordDigest()
	case phaseLen:
		return p.stepRecordLen()
	case phasePayload:
		return p.stepRecordPayload()
	}
	return false, nil
}

// stepRecordDigest consumes and verifies the 8-byte digest that precedes
// every record boundary in 0xF1 mode: after the command byte, after each
// completed chunk, and after returning from RSEP into a new record.
func (p *Parser) stepRecordDigest() (bool, error) {
	n := copy(p.digestBuf[p.digestLen:], p.pending)
	p.pending = p.pending[n:]
	p.digestLen += n
	if p.digestLen < wire.DigestLen {
		return false, nil
	}
	p.digestLen = 0

	want := p.running.Digest()
	if p.digestBuf != want {
		return false, wire.AuthError("chunk digest mismatch", nil)
	}

	if p.clen > 0 {
		if err := p.deliver(func() error { return p.sink.Chunk(p.recordIdx, p.chunkBuf[:p.clen]) }); err != nil {
			return false, err
		}
	}
	p.phase = phaseLen
	return true, nil
}

func (p *Parser) stepRecordLen() (bool, error) {
	n := copy(p.lenBuf[p.lenLen:], p.pending)
	p.pending = p.pending[n:]
	p.lenLen += n
	if p.lenLen < 2 {
		return false, nil
	}
	p.lenLen = 0

	clen := int(binary.BigEndian.Uint16(p.lenBuf[:]))

	if p.sigMode == wire.SigWhole {
		p.wholeHash.Write(p.lenBuf[:])
	}

	if clen == 0 {
		// EOR: the zero-length chunk that terminates a record. Its bytes
		// are fed into the running hash only when bundled with the RSEP
		// or EOM byte that follows, per the builder's byte-exact output.
		p.state = StateRSEP
		return true, nil
	}

	if p.recordLen+clen > wire.MaxRecord {
		return false, wire.ProtocolError("record exceeds maximum size", nil)
	}
	p.recordLen += clen

	if p.sigMode == wire.SigChunk {
		p.running.Write(p.lenBuf[:])
	}

	p.clen = clen
	p.coff = 0
	if cap(p.chunkBuf) < clen {
		p.chunkBuf = make([]byte, clen)
	} else {
		p.chunkBuf = p.chunkBuf[:clen]
	}
	p.phase = phasePayload
	return true, nil
}

func (p *Parser) stepRecordPayload() (bool, error) {
	if len(p.pending) == 0 {
		return false, nil
	}
	n := copy(p.chunkBuf[p.coff:p.clen], p.pending)
	p.pending = p.pending[n:]
	p.coff += n

	if p.sigMode == wire.SigWhole {
		p.wholeHash.Write(p.chunkBuf[p.coff-n : p.coff])
	}
	if p.sigMode == wire.SigChunk {
		p.running.Write(p.chunkBuf[p.coff-n : p.coff])
	}

	if p.coff < p.clen {
		return false, nil
	}

	if p.sigMode == wire.SigChunk {
		p.phase = phaseDigest
		return true, nil
	}

	// Unauthenticated or whole-message mode: no per-chunk digest, so
	// deliver the chunk immediately and move on to the next length field.
	if err := p.deliver(func() error { return p.sink.Chunk(p.recordIdx, p.chunkBuf[:p.clen]) }); err != nil {
		return false, err
	}
	p.phase = phaseLen
	return true, nil
}

// stepRSEP reads the single byte following a record's EOR: RSEP (0x80)
// starts a new record, 0x00 is EOM and ends the message.
func (p *Parser) stepRSEP() (bool, error) {
	if len(p.pending) == 0 {
		return false, nil
	}
	b := p.pending[0]
	p.pending = p.pending[1:]

	switch b {
	case wire.RSEP:
		if p.sigMode == wire.SigChunk {
			// The preceding EOR's zero bytes were deliberately not fed
			// when read in stepRecordLen; bundle them here with RSEP,
			// matching the builder's byte-exact digest placement.
			p.running.Write([]byte{0, 0, wire.RSEP})
		}
		if p.sigMode == wire.SigWhole {
			// EOR's zero bytes were already fed in stepRecordLen; only
			// the RSEP byte itself is new.
			p.wholeHash.Write([]byte{wire.RSEP})
		}
		if err := p.deliver(func() error { return p.sink.RecordEnd(p.recordIdx) }); err != nil {
			return false, err
		}
		p.recordIdx++
		p.recordLen = 0
		p.clen = 0
		p.coff = 0
		if p.sigMode == wire.SigChunk {
			p.phase = phaseDigest
		} else {
			p.phase = phaseLen
		}
		p.state = StateRecord
		return true, nil

	case wire.EOM:
		if p.sigMode == wire.SigChunk {
			p.running.Write([]byte{0, 0, wire.EOM})
		}
		if p.sigMode == wire.SigWhole {
			p.wholeHash.Write([]byte{wire.EOM})
		}
		if err := p.deliver(func() error { return p.sink.RecordEnd(p.recordIdx) }); err != nil {
			return false, err
		}
		if p.sigMode == wire.SigNone {
			p.state = StateDone
			return true, nil
		}
		p.digestLen = 0
		p.state = StateAuth
		return true, nil

	default:
		return false, wire.ProtocolError("unexpected byte after record terminator", nil)
	}
}

// stepAuth consumes and verifies the message's trailing digest: in 0xF1
// mode the per-chunk digest that follows EOM, checked against the running
// hash, or in 0xF0 mode the cmd-through-EOM whole-message hash.
func (p *Parser) stepAuth() (bool, error) {
	n := copy(p.digestBuf[p.digestLen:], p.pending)
	p.pending = p.pending[n:]
	p.digestLen += n
	if p.digestLen < wire.DigestLen {
		return false, nil
	}

	var want [8]byte
	if p.sigMode == wire.SigChunk {
		want = p.running.Digest()
	} else {
		want = p.wholeHash.Digest()
	}
	if p.digestBuf != want {
		return false, wire.AuthError("message digest mismatch", nil)
	}

	p.state = StateDone
	return true, nil
}
