package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClientSendFull(t *testing.T) {
	c := NewClient("logs:1")
	for i := 0; i < clientBuffer; i++ {
		if !c.Send([]byte("x")) {
			t.Fatalf("send %d failed before the buffer was full", i)
		}
	}
	if c.Send([]byte("overflow")) {
		t.Error("send succeeded on a full buffer")
	}
}

func TestPublishMatchesPattern(t *testing.T) {
	hub := startHub(t)
	logs := NewClient("logs:a", WithMetadata("token", "tok"))
	other := NewClient("tasks:a")
	hub.Register(logs)
	hub.Register(other)
	waitFor(t, func() bool { return hub.Count() == 2 })

	hub.Publish("logs:*", []byte(`{"lines":["x"]}`))

	select {
	case got := <-logs.Events():
		if string(got) != `{"lines":["x"]}` {
			t.Errorf("payload = %s", got)
		}
	case <-time.After(time.Second):
		t.Fatal("logs client got nothing")
	}
	select {
	case got := <-other.Events():
		t.Errorf("non-matching client received %s", got)
	case <-time.After(50 * time.Millisecond):
	}
	if c, ok := hub.Client("logs:a"); !ok || c.MetadataValue("token") != "tok" {
		t.Errorf("client lookup = %v, %v", c, ok)
	}
}

func TestUnregisterClosesEvents(t *testing.T) {
	hub := startHub(t)
	c := NewClient("logs:a")
	hub.Register(c)
	hub.Unregister(c)
	select {
	case _, ok := <-c.Events():
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("events channel not closed")
	}
	if hub.Count() != 0 {
		t.Errorf("count = %d", hub.Count())
	}
}

func TestStopClosesClients(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()
	c := NewClient("logs:a")
	hub.Register(c)
	hub.Stop()
	hub.Stop()
	<-done
	if _, ok := <-c.Events(); ok {
		t.Error("client still open after Stop")
	}
	if hub.Register(NewClient("logs:b")) {
		t.Error("Register succeeded on a stopped hub")
	}
}

func TestHandlerStreamsFrames(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := startHub(t)
	r := gin.New()
	r.GET("/api/sse/logs", Handler(hub, "logs"))
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/sse/logs?token=tok", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	waitFor(t, func() bool { return hub.Count() == 1 })
	hub.Publish("logs:*", []byte(`{"lines":["hello"]}`))

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "data: ") {
			if line != `data: {"lines":["hello"]}` {
				t.Errorf("frame = %q", line)
			}
			return
		}
	}
	t.Fatalf("stream ended without a data frame: %v", sc.Err())
}

func TestComponentLifecycle(t *testing.T) {
	c := NewComponent("/api/sse/logs")
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h := c.Health(context.Background()); h.Message != "0 clients connected" {
		t.Errorf("health = %+v", h)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}
