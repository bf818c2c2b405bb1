package live

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisclient "github.com/macromaster/ingest-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
	clientBufferSize  = 100
	subscribeTimeout  = 5 * time.Second
)

const EventMetricsUpdated = "metrics_updated"

type Event struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

type Client struct {
	SessionID string
	Events    chan Event
	Done      chan struct{}
}

// Broker fans session events out to subscribed clients. With a redis client
// events travel through pub/sub so every server process sees them; without
// one they are delivered in-process.
type Broker struct {
	redis   *redisclient.Client
	clients map[string]map[*Client]bool // sessionID -> set of clients
	subs    map[string]*redisSubscription
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

// redisSubscription tracks the pub/sub channel of one session. ready is
// closed once redis has confirmed the subscription (or confirmation failed).
type redisSubscription struct {
	cancel context.CancelFunc
	ready  chan struct{}
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[string]map[*Client]bool),
		subs:    make(map[string]*redisSubscription),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Subscribe registers a client for a session. With redis it returns only once
// the session's channel is confirmed, so a publish that follows is not lost.
// The confirmation round trip happens outside b.mu.
func (b *Broker) Subscribe(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Events:    make(chan Event, clientBufferSize),
		Done:      make(chan struct{}),
	}

	var (
		sub      *redisSubscription
		subCtx   context.Context
		starting bool
	)

	b.mu.Lock()
	if b.clients[sessionID] == nil {
		b.clients[sessionID] = make(map[*Client]bool)
	}
	b.clients[sessionID][client] = true
	clientCount := len(b.clients[sessionID])
	if b.redis != nil {
		sub = b.subs[sessionID]
		if sub == nil {
			var cancel context.CancelFunc
			subCtx, cancel = context.WithCancel(b.ctx)
			sub = &redisSubscription{cancel: cancel, ready: make(chan struct{})}
			b.subs[sessionID] = sub
			starting = true
		}
	}
	b.mu.Unlock()

	if starting {
		b.startRedisSubscription(subCtx, sessionID, sub)
	} else if sub != nil {
		select {
		case <-sub.ready:
		case <-time.After(subscribeTimeout):
			log.Warn().Str("sessionId", sessionID).Msg("timed out waiting for redis subscription")
		}
	}

	log.Info().
		Str("sessionId", sessionID).
		Int("clientCount", clientCount).
		Msg("live client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients, ok := b.clients[client.SessionID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.Done)

	if len(clients) == 0 {
		delete(b.clients, client.SessionID)
		if sub, ok := b.subs[client.SessionID]; ok {
			sub.cancel()
			delete(b.subs, client.SessionID)
		}
	}

	log.Info().
		Str("sessionId", client.SessionID).
		Int("clientCount", len(clients)).
		Msg("live client unsubscribed")
}

func (b *Broker) Publish(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if b.redis == nil {
		b.broadcast(event)
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, redisclient.SessionChannel(event.SessionID), data).Err()
}

// startRedisSubscription subscribes to the session channel, waits for redis
// to confirm it and hands the subscription to consume. It must not be called
// with b.mu held.
func (b *Broker) startRedisSubscription(ctx context.Context, sessionID string, sub *redisSubscription) {
	defer close(sub.ready)

	channel := redisclient.SessionChannel(sessionID)
	pubsub := b.redis.Subscribe(ctx, channel)

	confirmCtx, confirmCancel := context.WithTimeout(ctx, subscribeTimeout)
	_, err := pubsub.Receive(confirmCtx)
	confirmCancel()
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("redis subscribe failed")
	}

	go b.consume(ctx, sessionID, pubsub)
}

func (b *Broker) consume(ctx context.Context, sessionID string, pubsub *goredis.PubSub) {
	defer pubsub.Close()

	log.Debug().
		Str("sessionId", sessionID).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(event)
		}
	}
}

func (b *Broker) broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.clients[event.SessionID] {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("sessionId", event.SessionID).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
	}
	b.clients = make(map[string]map[*Client]bool)
	b.subs = make(map[string]*redisSubscription)
}

func (b *Broker) ClientCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[sessionID])
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, clients := range b.clients {
		total += len(clients)
	}
	return total
}
