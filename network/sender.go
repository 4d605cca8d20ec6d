package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/relab/benor"
	"github.com/relab/benor/logging"
)

// DefaultSendTimeout bounds the time spent delivering a single message.
const DefaultSendTimeout = 2 * time.Second

// Sender broadcasts a node's messages to every node over HTTP.
//
// Each peer has a queue drained by a single goroutine, so messages to a peer are
// posted in order and the number of goroutines does not grow with the number of
// broadcasts. Messages are never retried. Failed deliveries are logged and otherwise
// ignored: to the receiver, a lost message is indistinguishable from a crashed sender.
type Sender struct {
	id      benor.ID
	addrs   Addresses
	client  *http.Client
	limiter *rate.Limiter
	logger  logging.Logger
	metrics *Metrics
	queues  map[benor.ID]*queue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SenderOption sets optional parts of a Sender.
type SenderOption func(*Sender)

// WithRateLimit limits the rate of outgoing requests to limit per second, allowing bursts of burst requests.
func WithRateLimit(limit rate.Limit, burst int) SenderOption {
	return func(s *Sender) {
		s.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithSendTimeout sets the time spent delivering a single message.
func WithSendTimeout(timeout time.Duration) SenderOption {
	return func(s *Sender) {
		s.client.Timeout = timeout
	}
}

// WithSenderLogger sets the logger used by the sender.
func WithSenderLogger(logger logging.Logger) SenderOption {
	return func(s *Sender) {
		s.logger = logger
	}
}

// WithSendMetrics counts failed deliveries in m.
func WithSendMetrics(m *Metrics) SenderOption {
	return func(s *Sender) {
		s.metrics = m
	}
}

// NewSender returns a sender for the node with the given ID.
// It starts one goroutine per node, which runs until Close is called.
func NewSender(id benor.ID, addrs Addresses, opts ...SenderOption) *Sender {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sender{
		id:      id,
		addrs:   addrs,
		client:  &http.Client{Timeout: DefaultSendTimeout},
		limiter: rate.NewLimiter(rate.Inf, 0),
		queues:  make(map[benor.ID]*queue),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.New(fmt.Sprintf("sender%d", id))
	}
	for _, to := range addrs.IDs() {
		q := newQueue()
		s.queues[to] = q
		s.wg.Add(1)
		go s.run(to, q)
	}
	return s
}

// Broadcast queues msg for the /message endpoint of every node, including the sender's own.
// It never blocks.
func (s *Sender) Broadcast(msg benor.Message) {
	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Errorf("failed to encode %v: %v", msg, err)
		return
	}
	for _, q := range s.queues {
		q.push(body)
	}
}

// run posts the messages queued for a single node until the sender is closed.
func (s *Sender) run(to benor.ID, q *queue) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-q.ready:
		}
		for _, body := range q.take() {
			if err := s.limiter.Wait(s.ctx); err != nil {
				return
			}
			s.send(to, body)
		}
	}
}

func (s *Sender) send(to benor.ID, body []byte) {
	if err := s.post(to, body); err != nil {
		s.logger.Debugf("failed to send message to node %d: %v", to, err)
		if s.metrics != nil {
			s.metrics.SendErrors.Inc()
		}
	}
}

func (s *Sender) post(to benor.ID, body []byte) error {
	url, err := s.addrs.URL(to, "/message")
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return nil
}

// Close drops queued messages, cancels those in flight and waits for the goroutines to exit.
// Idle keep-alive connections are closed so that the receiving servers can shut down.
func (s *Sender) Close() {
	s.cancel()
	s.wg.Wait()
	s.client.CloseIdleConnections()
}

// queue holds the encoded messages waiting to be posted to one node.
type queue struct {
	mut   sync.Mutex
	items [][]byte
	ready chan struct{}
}

func newQueue() *queue {
	return &queue{ready: make(chan struct{}, 1)}
}

func (q *queue) push(body []byte) {
	q.mut.Lock()
	q.items = append(q.items, body)
	q.mut.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *queue) take() [][]byte {
	q.mut.Lock()
	defer q.mut.Unlock()
	items := q.items
	q.items = nil
	return items
}
