package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"portfolio-backend/internal/models"
)

const (
	DefaultChannel = "chat_updates"
	writeTimeout   = 5 * time.Second
	outboundQueue  = 256
)

// Hub pushes newly stored chat messages to every open chat page. With a
// Redis client the messages travel through pub/sub so all server replicas
// see them; without one the hub broadcasts in process.
type Hub struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]*sync.Mutex
	redisClient *redis.Client
	channel     string
	upgrader    websocket.Upgrader
	outbound    chan []byte
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewHub(redisClient *redis.Client, allowedOrigin string) *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]*sync.Mutex),
		redisClient: redisClient,
		channel:     DefaultChannel,
		outbound:    make(chan []byte, outboundQueue),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigin),
		},
	}
}

func checkOrigin(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed == "" || allowed == "*" || origin == allowed || origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}

// Start launches the broadcaster and, with Redis, subscribes to the feed
// channel. The subscription is confirmed before Start returns.
func (h *Hub) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	if h.redisClient != nil {
		pubsub := h.redisClient.Subscribe(ctx, h.channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			cancel()
			return fmt.Errorf("failed to subscribe to %s: %w", h.channel, err)
		}
		h.wg.Add(1)
		go h.subscribeToPubSub(ctx, pubsub)
	}

	h.wg.Add(1)
	go h.run(ctx)
	return nil
}

// Stop ends the subscription and the broadcaster and closes every connection.
func (h *Hub) Stop() {
	if h.cancel != nil {
		h.cancel()
		h.wg.Wait()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.connections {
		conn.Close()
		delete(h.connections, conn)
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade failed: %v", err)
		return
	}

	h.registerConnection(conn)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// PublishMessage announces a stored chat message. It never waits on a
// websocket client: without Redis the message is queued for the broadcaster
// and dropped if the queue is full. Failures are logged only; the chat
// request has already succeeded by the time this runs.
func (h *Hub) PublishMessage(ctx context.Context, msg *models.ChatMessage) {
	data, err := json.Marshal(models.WSMessage{Type: models.WSTypeChatMessage, Payload: msg})
	if err != nil {
		log.Printf("[WS] encode message %s: %v", msg.ID, err)
		return
	}

	if h.redisClient == nil {
		h.enqueue(data)
		return
	}

	if err := h.redisClient.Publish(ctx, h.channel, string(data)).Err(); err != nil {
		log.Printf("[WS] publish message %s: %v", msg.ID, err)
	}
}

func (h *Hub) enqueue(data []byte) {
	select {
	case h.outbound <- data:
	default:
		log.Printf("[WS] outbound queue full, dropping message")
	}
}

// ConnectionCount is the number of open sockets on this replica.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (h *Hub) registerConnection(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[conn] = &sync.Mutex{}
	log.Printf("[WS] connected %s (total: %d)", conn.RemoteAddr(), len(h.connections))
}

func (h *Hub) unregisterConnection(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()
	if _, ok := h.connections[conn]; ok {
		delete(h.connections, conn)
		log.Printf("[WS] disconnected %s (total: %d)", conn.RemoteAddr(), len(h.connections))
	}
}

func (h *Hub) subscribeToPubSub(ctx context.Context, pubsub *redis.PubSub) {
	defer h.wg.Done()
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.enqueue([]byte(msg.Payload))
		}
	}
}

// run writes queued messages to the sockets, one message at a time.
func (h *Hub) run(ctx context.Context) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-h.outbound:
			h.broadcast(data)
		}
	}
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn, writeMu := range h.connections {
		writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("[WS] write to %s failed: %v", conn.RemoteAddr(), err)
		}
		writeMu.Unlock()
	}
}
