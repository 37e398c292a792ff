// Package protocol is the thin, synchronous façade over the OSC datagram
// socket speaking the audio server's control protocol (§4.1, §6).
package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/mohsenil85/tuidaw/internal/engineerr"
	"github.com/mohsenil85/tuidaw/internal/types"
)

// Bundle is an atomic, time-stamped set of messages. The server applies every
// message in a bundle together, in order, at the bundle's timestamp.
type Bundle struct {
	Time     time.Time
	Messages []*osc.Message
}

// toOSC converts the bundle into the underlying library's own osc.Bundle,
// which writes Time as the bundle's wire timetag.
func (b *Bundle) toOSC() *osc.Bundle {
	ob := osc.NewBundle(b.Time)
	for _, m := range b.Messages {
		ob.Append(m)
	}
	return ob
}

// MeterSnapshot is the most recently decoded stereo peak level.
type MeterSnapshot struct {
	Left, Right float64
}

// Client is a synchronous façade over a UDP connection to scsynth. Every
// call is non-blocking in the sense that it never waits for a server
// acknowledgement (§4.1); failures surface at the next send.
type Client struct {
	osc *osc.Client

	mu        sync.Mutex
	meter     MeterSnapshot
	waveforms map[uint32][]float32
}

// Dial opens a client to addr (host:port form is resolved by the caller;
// Dial takes host and port directly to match the underlying library).
func Dial(host string, port int) *Client {
	return &Client{
		osc:       osc.NewClient(host, port),
		waveforms: make(map[uint32][]float32),
	}
}

// Connect sends /notify 1 to subscribe to feedback messages (§4.6 connect).
func (c *Client) Connect() error {
	msg := osc.NewMessage("/notify")
	msg.Append(int32(1))
	if err := c.osc.Send(msg); err != nil {
		return fmt.Errorf("%w: /notify: %v", engineerr.ErrProtocol, err)
	}
	return nil
}

// SendMessage is a fire-and-forget single message (§4.1).
func (c *Client) SendMessage(address string, args ...interface{}) error {
	msg := osc.NewMessage(address)
	msg.Append(args...)
	if err := c.osc.Send(msg); err != nil {
		return fmt.Errorf("%w: %s: %v", engineerr.ErrProtocol, address, err)
	}
	return nil
}

// TimeFromNow returns the protocol timestamp for a bundle that should
// execute at approximately now+delta on the server's clock. Delta <= 0
// means "execute immediately."
func TimeFromNow(delta time.Duration) time.Time {
	if delta <= 0 {
		return time.Time{} // osc.Bundle zero-time means "immediately"
	}
	return time.Now().Add(delta)
}

// SendBundle sends messages as a single atomic bundle timestamped at t.
func (c *Client) SendBundle(messages []*osc.Message, t time.Time) error {
	b := &Bundle{Time: t, Messages: messages}
	if err := c.osc.Send(b.toOSC()); err != nil {
		return fmt.Errorf("%w: bundle: %v", engineerr.ErrProtocol, err)
	}
	return nil
}

// CreateGroupMessage builds /g_new id add_action target.
func CreateGroupMessage(id int32, action types.AddAction, target int32) *osc.Message {
	msg := osc.NewMessage("/g_new")
	msg.Append(id, int32(action), target)
	return msg
}

// CreateGroup sends /g_new immediately (non-bundled; used for idempotent
// one-off group creation outside a voice-spawn bundle).
func (c *Client) CreateGroup(id int32, action types.AddAction, target int32) error {
	if err := c.osc.Send(CreateGroupMessage(id, action, target)); err != nil {
		return fmt.Errorf("%w: /g_new: %v", engineerr.ErrProtocol, err)
	}
	return nil
}

// CreateSynthMessage builds /s_new def nodeID add_action target name/value pairs.
func CreateSynthMessage(defName string, nodeID int32, action types.AddAction, target int32, params map[string]float32) *osc.Message {
	msg := osc.NewMessage("/s_new")
	msg.Append(defName, nodeID, int32(action), target)
	for name, val := range params {
		msg.Append(name, val)
	}
	return msg
}

// CreateSynth sends /s_new immediately with an explicit add action and
// target, for placements other than add-to-tail-of-a-group (§4.3 step 6,
// §6: "uses add-to-tail and add-after").
func (c *Client) CreateSynth(defName string, nodeID int32, action types.AddAction, target int32, params map[string]float32) error {
	msg := CreateSynthMessage(defName, nodeID, action, target, params)
	if err := c.osc.Send(msg); err != nil {
		return fmt.Errorf("%w: /s_new: %v", engineerr.ErrProtocol, err)
	}
	return nil
}

// CreateSynthInGroup sends /s_new immediately, adding to the tail of group.
func (c *Client) CreateSynthInGroup(defName string, nodeID int32, group int32, params map[string]float32) error {
	return c.CreateSynth(defName, nodeID, types.AddToTail, group, params)
}

// FreeNode sends /n_free id. A free of an already-freed node is tolerated
// as a no-op by the server (§9 Design Note 2); callers need not guard it.
func (c *Client) FreeNode(id int32) error {
	if err := c.SendMessage("/n_free", id); err != nil {
		return err
	}
	return nil
}

// SetParam sends /n_set id name value.
func (c *Client) SetParam(nodeID int32, name string, value float32) error {
	return c.SendMessage("/n_set", nodeID, name, value)
}

// SetParamsBundled sends a single /n_set message carrying multiple
// name/value pairs inside a timestamped bundle.
func (c *Client) SetParamsBundled(nodeID int32, pairs map[string]float32, t time.Time) error {
	msg := osc.NewMessage("/n_set")
	msg.Append(nodeID)
	for name, val := range pairs {
		msg.Append(name, val)
	}
	return c.SendBundle([]*osc.Message{msg}, t)
}

// LoadBuffer sends /b_allocRead bufnum path.
func (c *Client) LoadBuffer(bufnum int32, path string) error {
	return c.SendMessage("/b_allocRead", bufnum, path)
}

// FreeBuffer sends /b_free bufnum.
func (c *Client) FreeBuffer(bufnum int32) error {
	return c.SendMessage("/b_free", bufnum)
}

// RecvSynthDef sends /d_recv blob.
func (c *Client) RecvSynthDef(blob []byte) error {
	return c.SendMessage("/d_recv", blob)
}

// MeterPeak returns the most recent meter snapshot, or zero values if none
// has arrived yet. Non-blocking (§4.1).
func (c *Client) MeterPeak() (left, right float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meter.Left, c.meter.Right
}

// AudioInWaveform returns the most recent waveform snapshot for an
// instrument id, or nil if none has arrived yet. Non-blocking (§4.1).
func (c *Client) AudioInWaveform(instrumentID uint32) []float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waveforms[instrumentID]
}

// updateMeter is called by the feedback reader goroutine to publish a new
// meter snapshot.
func (c *Client) updateMeter(left, right float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meter = MeterSnapshot{Left: left, Right: right}
}

// updateWaveform is called by the feedback reader goroutine.
func (c *Client) updateWaveform(instrumentID uint32, samples []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waveforms[instrumentID] = samples
}

// decodeWaveformSamples unpacks a /waveform blob argument into float32
// samples: a flat sequence of little-endian IEEE-754 32-bit floats, the
// wire format the audio server's waveform-snapshot trigger writes.
func decodeWaveformSamples(blob []byte) []float32 {
	n := len(blob) / 4
	if n == 0 {
		return nil
	}
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(blob[i*4 : i*4+4])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}

// StartFeedbackReader launches the background goroutine that decodes
// server feedback (/tr meter triggers, /waveform snapshots) and updates the
// meter/waveform snapshots (§4.1). It returns a stop function that closes
// the listening socket and waits for the reader goroutine to exit, so a
// disconnect followed by a reconnect on the same feedback port does not
// leak the previous listener (§4.6).
func (c *Client) StartFeedbackReader(listenAddr string) (stop func(), err error) {
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: feedback listen: %v", engineerr.ErrProtocol, err)
	}

	dispatcher := osc.NewStandardDispatcher()
	dispatcher.AddMsgHandler("/tr", func(msg *osc.Message) {
		if len(msg.Arguments) < 3 {
			return
		}
		instrumentID, ok1 := msg.Arguments[0].(int32)
		left, ok2 := msg.Arguments[1].(float32)
		right, ok3 := msg.Arguments[2].(float32)
		if ok1 && ok2 && ok3 {
			_ = instrumentID
			c.updateMeter(float64(left), float64(right))
		}
	})
	dispatcher.AddMsgHandler("/waveform", func(msg *osc.Message) {
		if len(msg.Arguments) < 2 {
			return
		}
		instrumentID, ok1 := msg.Arguments[0].(int32)
		blob, ok2 := msg.Arguments[1].([]byte)
		if ok1 && ok2 {
			c.updateWaveform(uint32(instrumentID), decodeWaveformSamples(blob))
		}
	})
	server := &osc.Server{Addr: listenAddr, Dispatcher: dispatcher}

	done := make(chan struct{})
	go func() {
		_ = server.Serve(conn)
		close(done)
	}()
	stopFn := func() {
		_ = conn.Close()
		<-done
	}
	return stopFn, nil
}
