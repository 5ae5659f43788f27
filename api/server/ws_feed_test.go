package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"emochain/core/block"
	"emochain/types/ids"
)

func waitForSubscribers(t *testing.T, feed *BlockFeed, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if feed.SubscriberCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers, have %d", want, feed.SubscriberCount())
}

func TestBlockFeedPublish(t *testing.T) {
	feed := NewBlockFeed()
	srv := httptest.NewServer(http.HandlerFunc(feed.HandleSubscribe))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForSubscribers(t, feed, 1)

	b := block.NewBlock(7, nil, ids.Empty, nil, 0, 1)
	if err := b.Mine(); err != nil {
		t.Fatalf("mine: %v", err)
	}
	feed.Publish(b)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got block.Block
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read published block: %v", err)
	}
	if got.Index != 7 || got.Hash != b.Hash {
		t.Fatalf("wrong block on feed: index %d", got.Index)
	}
}

func TestBlockFeedDropsClosedSubscribers(t *testing.T) {
	feed := NewBlockFeed()
	srv := httptest.NewServer(http.HandlerFunc(feed.HandleSubscribe))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitForSubscribers(t, feed, 1)

	conn.Close()
	waitForSubscribers(t, feed, 0)

	// Publishing with no subscribers is a no-op.
	b := block.NewBlock(1, nil, ids.Empty, nil, 0, 1)
	if err := b.Mine(); err != nil {
		t.Fatalf("mine: %v", err)
	}
	feed.Publish(b)
}
