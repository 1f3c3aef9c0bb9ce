// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Reactor construction, binding and teardown.

package reactor

import (
	"net"
	"strconv"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"

	"github.com/momentics/tsnet/api"
	"github.com/momentics/tsnet/control"
	"github.com/momentics/tsnet/internal/poll"
	"github.com/momentics/tsnet/internal/transport"
	"github.com/momentics/tsnet/keyedstore"
)

const (
	// DefaultBacklog is used when New receives a non-positive backlog.
	DefaultBacklog = transport.DefaultBacklog
	// DefaultMaxClients is used when New receives a non-positive client limit.
	DefaultMaxClients = 1024
	// DefaultReadBufferSize is the size of the buffer shared by all reads.
	DefaultReadBufferSize = 8192 * 16
)

// Reactor is a single-threaded TCP event loop over one listening socket.
type Reactor struct {
	kind       api.Transport
	backlog    int
	maxClients int
	readSize   int
	listenCfg  transport.ListenConfig
	storeOpts  keyedstore.Options

	lfd    int
	poller *poll.Poller
	addr   string
	port   uint16

	handlers [api.EventKinds]Handler

	registry *keyedstore.Store[*connRecord]
	sendq    *keyedstore.Store[*sendRequest]

	// closing holds descriptors whose CloseConn arrived inside a handler.
	closing    *queue.Queue
	inCallback int
	// stale lists descriptors closed during the current wait cycle.
	stale []int

	buf      []byte
	userData any

	log     zerolog.Logger
	metrics *control.MetricsRegistry

	snap atomic.Pointer[Snapshot]

	bound   bool
	closed  bool
	running int32
}

// Snapshot describes the reactor tables as of the end of the last wait cycle.
// The table stats carry counters only; LongestChain is zero.
type Snapshot struct {
	Addr      string
	Conns     int
	Registry  keyedstore.Stats
	SendQueue keyedstore.Stats
}

// New creates an unbound reactor. backlog and maxClients fall back to
// DefaultBacklog and DefaultMaxClients when not positive.
func New(kind api.Transport, backlog, maxClients int, opts ...Option) (*Reactor, error) {
	if kind != api.TransportEpoll {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "reactor.new", "unsupported transport").
			WithContext("transport", kind.String())
	}
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	r := &Reactor{
		kind:       kind,
		backlog:    backlog,
		maxClients: maxClients,
		readSize:   DefaultReadBufferSize,
		listenCfg:  transport.ListenConfig{ReusePort: true},
		lfd:        -1,
		closing:    queue.New(),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.readSize <= 0 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "reactor.new", "read buffer size must be positive").
			WithContext("size", r.readSize)
	}
	if r.metrics == nil {
		r.metrics = control.NewMetricsRegistry()
	}
	r.listenCfg.Backlog = backlog
	r.log = r.log.With().Str("component", "reactor").Logger()

	regOpts := r.storeOpts
	regOpts.Mode = keyedstore.Single
	registry, err := keyedstore.New[*connRecord](regOpts)
	if err != nil {
		return nil, err
	}
	qOpts := r.storeOpts
	qOpts.Mode = keyedstore.Multi
	sendq, err := keyedstore.New[*sendRequest](qOpts)
	if err != nil {
		return nil, err
	}
	sendq.SetReleaseHook(r.releaseSend)

	r.registry = registry
	r.sendq = sendq
	r.buf = make([]byte, r.readSize)
	return r, nil
}

// Bind creates the listening socket on address:port and registers it for
// readability. address must be an IP literal; port 0 picks an ephemeral port.
func (r *Reactor) Bind(address string, port uint16) error {
	const op = "reactor.bind"
	switch {
	case r.closed:
		return api.NewError(api.ErrCodeInvalidState, op, "reactor closed")
	case r.bound:
		return api.NewError(api.ErrCodeInvalidState, op, "already bound").WithContext("addr", r.Addr())
	}

	lfd, err := transport.Listen(address, port, r.listenCfg)
	if err != nil {
		return err
	}
	poller, err := poll.New(r.maxClients)
	if err != nil {
		transport.Close(lfd)
		return err
	}
	if err := poller.Add(lfd, poll.Read); err != nil {
		poller.Close()
		transport.Close(lfd)
		return err
	}
	laddr, lport, err := transport.LocalAddr(lfd)
	if err != nil {
		poller.Close()
		transport.Close(lfd)
		return err
	}

	r.lfd, r.poller = lfd, poller
	r.addr, r.port = laddr, lport
	r.bound = true
	r.publishGauges()
	r.log.Info().Str("addr", r.Addr()).Int("backlog", r.backlog).Int("max_clients", r.maxClients).Msg("listening")
	return nil
}

// Addr returns the bound host:port, or "" before Bind.
func (r *Reactor) Addr() string {
	if !r.bound {
		return ""
	}
	return net.JoinHostPort(r.addr, strconv.Itoa(int(r.port)))
}

// Port returns the bound port, or 0 before Bind.
func (r *Reactor) Port() uint16 { return r.port }

// Metrics returns the registry the reactor publishes to.
func (r *Reactor) Metrics() *control.MetricsRegistry { return r.metrics }

// SetUserData stores an opaque application value on the reactor.
func (r *Reactor) SetUserData(v any) { r.userData = v }

// UserData returns the value last passed to SetUserData.
func (r *Reactor) UserData() any { return r.userData }

// Close releases every queued send, closes every client descriptor, the
// listening socket and the readiness facility. It must not be called while
// Run is active. Closing twice is a no-op.
func (r *Reactor) Close() error {
	const op = "reactor.close"
	if r.closed {
		return nil
	}
	if r.inCallback > 0 || atomic.LoadInt32(&r.running) == 1 {
		return api.NewError(api.ErrCodeInvalidState, op, "reactor is running")
	}
	r.closed = true

	pending, conns := r.sendq.Len(), r.registry.Len()
	r.sendq.Destroy()
	r.registry.Destroy()
	r.publishGauges()

	var first error
	if r.bound {
		if err := transport.Close(r.lfd); err != nil {
			first = err
		}
		if err := r.poller.Close(); err != nil && first == nil {
			first = err
		}
		r.bound = false
		r.lfd = -1
	}
	r.log.Info().Int("conns", conns).Int("pending_sends", pending).Msg("closed")
	return first
}

// Snapshot returns the state published after the last wait cycle. It is safe
// to call from any goroutine.
func (r *Reactor) Snapshot() Snapshot {
	if p := r.snap.Load(); p != nil {
		return *p
	}
	return Snapshot{}
}

// RegisterProbes exposes the snapshot and metrics through dp.
func (r *Reactor) RegisterProbes(dp *control.DebugProbes) {
	dp.RegisterProbe("reactor.snapshot", func() any { return r.Snapshot() })
	dp.RegisterProbe("reactor.metrics", func() any { return r.metrics.GetSnapshot() })
}

// publishGauges refreshes the store gauges and the snapshot.
func (r *Reactor) publishGauges() {
	r.snap.Store(&Snapshot{
		Addr:      r.Addr(),
		Conns:     r.registry.Len(),
		Registry:  r.registry.Counters(),
		SendQueue: r.sendq.Counters(),
	})
	r.metrics.Set(control.MetricRegistryEntries, int64(r.registry.Len()))
	r.metrics.Set(control.MetricSendQueueEntries, int64(r.sendq.Len()))
	var fixed int64
	if r.sendq.FixedCapacity() || r.registry.FixedCapacity() {
		fixed = 1
	}
	r.metrics.Set(control.MetricSendQueueFixed, fixed)
}
