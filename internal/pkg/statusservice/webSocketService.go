package statusservice

import (
	"strings"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
)

// WsConn is interface for websocket handling in status service
type WsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	WriteJSON(v interface{}) error
}

// WSConnKeeper tracks status subscriptions. A client subscribes by
// sending the exam or pretest ID as a text frame, resending an ID moves
// the connection to the new subscription.
type WSConnKeeper struct {
	lock    sync.Mutex
	subs    map[string]map[WsConn]struct{}
	subOf   map[WsConn]string
	maxLive time.Duration
}

// NewWSConnKeeper creates the subscription keeper
func NewWSConnKeeper() *WSConnKeeper {
	return &WSConnKeeper{
		subs:  make(map[string]map[WsConn]struct{}),
		subOf: make(map[WsConn]string),
		// drop connections kept open longer than any exam can run
		maxLive: time.Minute * 30,
	}
}

// HandleConnection owns the connection until it closes or outlives
// maxLive. Each received frame re-subscribes the connection to the sent
// ID and resets the liveness clock.
func (kp *WSConnKeeper) HandleConnection(conn WsConn) error {
	defer kp.unsubscribe(conn)
	defer conn.Close()

	ids := make(chan string)
	go func() {
		defer close(ids)
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				goapp.Log.Error().Err(err).Send()
				return
			}
			id := strings.TrimSpace(string(frame))
			goapp.Log.Debug().Str("ID", goapp.Sanitize(id)).Msg("subscribe frame")
			if id == "" {
				time.Sleep(20 * time.Millisecond)
				continue
			}
			ids <- id
		}
	}()

	deadline := time.After(kp.maxLive)
	for {
		select {
		case <-deadline:
			goapp.Log.Debug().Msg("connection outlived max time, drop")
			return nil
		case id, ok := <-ids:
			if !ok {
				goapp.Log.Debug().Msg("connection closed")
				return nil
			}
			kp.subscribe(conn, id)
			deadline = time.After(kp.maxLive)
		}
	}
}

func (kp *WSConnKeeper) subscribe(conn WsConn, id string) {
	kp.lock.Lock()
	defer kp.lock.Unlock()
	kp.drop(conn)
	kp.subOf[conn] = id
	conns, ok := kp.subs[id]
	if !ok {
		conns = map[WsConn]struct{}{}
		kp.subs[id] = conns
	}
	conns[conn] = struct{}{}
	goapp.Log.Info().Str("ID", id).Int("active", len(kp.subOf)).Msg("subscribed")
}

func (kp *WSConnKeeper) unsubscribe(conn WsConn) {
	kp.lock.Lock()
	defer kp.lock.Unlock()
	kp.drop(conn)
	goapp.Log.Info().Int("active", len(kp.subOf)).Msg("unsubscribed")
}

// drop removes the connection from both maps, lock must be held
func (kp *WSConnKeeper) drop(conn WsConn) {
	if id, ok := kp.subOf[conn]; ok {
		if conns, ok := kp.subs[id]; ok {
			delete(conns, conn)
			if len(conns) == 0 {
				delete(kp.subs, id)
			}
		}
	}
	delete(kp.subOf, conn)
}

// GetConnections returns the connections subscribed to the ID
func (kp *WSConnKeeper) GetConnections(id string) ([]WsConn, bool) {
	kp.lock.Lock()
	defer kp.lock.Unlock()
	conns, ok := kp.subs[id]
	if !ok {
		return nil, false
	}
	res := make([]WsConn, 0, len(conns))
	for c := range conns {
		res = append(res, c)
	}
	return res, true
}
