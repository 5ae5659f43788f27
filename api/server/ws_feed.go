package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"emochain/core/block"
)

// BlockFeed pushes accepted blocks to websocket subscribers, so UIs and
// CLIs can follow the chain without polling.
type BlockFeed struct {
	upgrader websocket.Upgrader
	lock     sync.Mutex
	clients  map[*websocket.Conn]bool
}

func NewBlockFeed() *BlockFeed {
	return &BlockFeed{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

// HandleSubscribe upgrades the connection and registers the subscriber.
func (f *BlockFeed) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		fmt.Printf("[FEED] upgrade failed: %v\n", err)
		return
	}
	f.lock.Lock()
	f.clients[conn] = true
	f.lock.Unlock()
	fmt.Printf("[FEED] subscriber connected: %s\n", conn.RemoteAddr())

	// Inbound frames are discarded; the read loop exists to notice the
	// client going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				f.drop(conn)
				return
			}
		}
	}()
}

func (f *BlockFeed) drop(conn *websocket.Conn) {
	f.lock.Lock()
	if _, ok := f.clients[conn]; ok {
		delete(f.clients, conn)
		conn.Close()
	}
	f.lock.Unlock()
}

// Publish sends an accepted block to every subscriber. Clients that fail
// the write are dropped.
func (f *BlockFeed) Publish(b *block.Block) {
	f.lock.Lock()
	conns := make([]*websocket.Conn, 0, len(f.clients))
	for c := range f.clients {
		conns = append(conns, c)
	}
	f.lock.Unlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(b); err != nil {
			fmt.Printf("[FEED] dropping subscriber %s: %v\n", conn.RemoteAddr(), err)
			f.drop(conn)
		}
	}
}

// SubscriberCount reports connected clients, surfaced in node metrics.
func (f *BlockFeed) SubscriberCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.clients)
}
