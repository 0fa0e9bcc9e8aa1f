package mockbackend

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ylai/autoplatform/errors"
	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/server"
)

const writeWait = 5 * time.Second

type clientFrame struct {
	Type string `json:"type"`
}

// taskStream pushes the status frames of one task. A client gets the
// current snapshot on connect and again whenever it sends
// {"type":"resume"}; frames that raced the snapshot may arrive twice.
func (b *Backend) taskStream(c *gin.Context) {
	id := c.Param("id")
	t, ok := b.tasks.Get(id)
	if !ok {
		server.RespondWithError(c, errors.NotFound("task", id))
		return
	}
	conn, err := b.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		b.log.Debug("websocket upgrade failed", logger.Fields(logger.FieldTaskID, id, logger.FieldError, err.Error()))
		return
	}
	defer func() { _ = conn.Close() }()
	log := b.log.WithFields(logger.Fields(logger.FieldTaskID, id))
	log.Debug("task stream opened")

	frames, unsubscribe := t.Subscribe()
	defer unsubscribe()

	resume := make(chan struct{}, 1)
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var f clientFrame
			if json.Unmarshal(data, &f) == nil && f.Type == "resume" {
				select {
				case resume <- struct{}{}:
				default:
				}
			}
		}
	}()

	write := func(data []byte) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, data)
	}
	snapshot := func() error {
		for _, m := range t.Snapshot() {
			data, err := json.Marshal(m)
			if err != nil {
				return err
			}
			if err := write(data); err != nil {
				return err
			}
		}
		return nil
	}
	if err := snapshot(); err != nil {
		return
	}

	ping := time.NewTicker(b.PingInterval)
	defer ping.Stop()
	for {
		var err error
		select {
		case data := <-frames:
			err = write(data)
		case <-resume:
			err = snapshot()
		case <-ping.C:
			err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		case <-gone:
			log.Debug("task stream closed by client")
			return
		case <-b.quit:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeWait))
			return
		}
		if err != nil {
			log.Debug("task stream write failed", logger.Fields(logger.FieldError, err.Error()))
			return
		}
	}
}

