package audio

import "sync"

// Sink starts playback of a decoded buffer and hands back a live stream.
// Concrete sinks wrap whatever output device the host has.
type Sink interface {
	Start(buf *Buffer) (Stream, error)
}

// Stream is one active playback. Stop must release the underlying
// resource; Done is closed when playback finishes on its own.
type Stream interface {
	Stop()
	Done() <-chan struct{}
}

// Player drives at most one stream at a time. Starting playback for a
// new message stops whatever is currently playing (last request wins,
// no queueing).
type Player struct {
	sink Sink

	mu      sync.Mutex
	current Stream
	playing string // message id of the active stream, "" when idle
	gen     uint64
}

func NewPlayer(sink Sink) *Player {
	return &Player{sink: sink}
}

// Play decodes payload and starts it for the given message, stopping any
// active stream first. Decode and sink failures leave the player idle.
func (p *Player) Play(messageID, payload string) error {
	buf, err := DecodeSpeech(payload)
	if err != nil {
		p.Stop()
		return err
	}

	p.mu.Lock()
	if p.current != nil {
		p.current.Stop()
		p.current = nil
		p.playing = ""
	}
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	stream, err := p.sink.Start(buf)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.gen != gen {
		// A later Play or Stop won the race while the sink was
		// starting; this stream must never go live.
		p.mu.Unlock()
		stream.Stop()
		return nil
	}
	p.current = stream
	p.playing = messageID
	p.mu.Unlock()

	go func() {
		<-stream.Done()
		p.mu.Lock()
		if p.gen == gen {
			p.current = nil
			p.playing = ""
		}
		p.mu.Unlock()
	}()

	return nil
}

// Stop halts the active stream, if any, and invalidates any Play still
// waiting on its sink.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	if p.current != nil {
		p.current.Stop()
		p.current = nil
		p.playing = ""
	}
}

// Playing reports the message id currently being played, or "" when idle.
func (p *Player) Playing() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}
