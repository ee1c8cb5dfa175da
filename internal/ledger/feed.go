package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	appconfig "feeflow/config"
	"feeflow/internal/metrics"
	"feeflow/logger"
	"feeflow/models"
)

// Feed subscribes to the accounting ledger's websocket stream of per-account
// volume updates and applies each one to the store. The connection is
// re-established until the context is cancelled.
type Feed struct {
	config  *appconfig.Config
	store   *Store
	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log
}

func NewFeed(cfg *appconfig.Config, store *Store) *Feed {
	return &Feed{
		config: cfg,
		store:  store,
		wg:     &sync.WaitGroup{},
		log:    logger.GetLogger(),
	}
}

func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return fmt.Errorf("ledger feed already running")
	}
	f.running = true
	f.ctx = ctx
	f.mu.Unlock()

	cfg := f.config.Ledger.Feed
	log := f.log.WithComponent("ledger_feed").WithFields(logger.Fields{"operation": "start"})
	if !cfg.Enabled {
		log.Warn("ledger volume feed is disabled")
		return fmt.Errorf("ledger volume feed is disabled")
	}
	if cfg.URL == "" {
		return fmt.Errorf("ledger volume feed URL is empty")
	}

	log.WithFields(logger.Fields{"url": cfg.URL}).Info("starting ledger volume feed")
	f.wg.Add(1)
	go f.stream(cfg.URL)
	log.Info("ledger volume feed started successfully")
	return nil
}

func (f *Feed) Stop() {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
	f.log.WithComponent("ledger_feed").Info("stopping ledger feed")
	f.wg.Wait()
	f.log.WithComponent("ledger_feed").Info("ledger feed stopped")
}

// stream manages the websocket lifecycle and message processing.
func (f *Feed) stream(wsURL string) {
	defer f.wg.Done()
	log := f.log.WithComponent("ledger_feed").WithFields(logger.Fields{"worker": "volume_stream"})

	reconnectDelay := f.config.Ledger.Feed.ReconnectDelay
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	keepAlive := f.config.Ledger.Feed.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 20 * time.Second
	}

	for {
		if f.ctx.Err() != nil {
			return
		}

		log.WithField("url", wsURL).Debug("connecting to websocket")
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			log.WithError(err).Warn("failed to connect websocket, retrying")
			select {
			case <-time.After(reconnectDelay):
				continue
			case <-f.ctx.Done():
				return
			}
		}
		log.Info("websocket connected")

		sub := map[string]any{"op": "subscribe", "channel": "volumes"}
		log.WithField("request", sub).Info("sending subscription request")
		if err := conn.WriteJSON(sub); err != nil {
			log.WithError(err).Warn("failed to subscribe")
			conn.Close()
			continue
		}

		// The connection allows one concurrent writer. After the subscribe
		// frame above, every write (keepalive pings, pong replies, the close
		// on cancellation) goes through this goroutine; the read loop only
		// requests pongs over the channel.
		pingTicker := time.NewTicker(keepAlive)
		done := make(chan struct{})
		pongs := make(chan struct{}, 1)
		writerStopped := make(chan struct{})
		go func() {
			defer close(writerStopped)
			defer pingTicker.Stop()
			for {
				select {
				case <-done:
					return
				case <-f.ctx.Done():
					conn.Close()
					return
				case <-pongs:
					if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"pong"}`)); err != nil {
						log.WithError(err).Debug("failed to write pong")
					}
				case <-pingTicker.C:
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						log.WithError(err).Debug("failed to write keepalive ping")
					}
				}
			}
		}()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				close(done)
				conn.Close()
				if f.ctx.Err() == nil {
					log.WithError(err).Warn("websocket read error, reconnecting")
				}
				break
			}
			f.processMessage(pongs, msg)
		}
		<-writerStopped

		select {
		case <-time.After(time.Second):
		case <-f.ctx.Done():
			return
		}
	}
}

// processMessage handles event messages and applies volume updates. Pong
// replies are requested over the pongs channel so the writer goroutine stays
// the connection's only writer.
func (f *Feed) processMessage(pongs chan<- struct{}, msg []byte) bool {
	log := f.log.WithComponent("ledger_feed")

	var base map[string]json.RawMessage
	if err := json.Unmarshal(msg, &base); err != nil {
		log.WithError(err).Debug("failed to decode message")
		return false
	}
	if raw, ok := base["event"]; ok {
		var event string
		if err := json.Unmarshal(raw, &event); err != nil {
			log.WithError(err).Debug("failed to decode event message")
			return false
		}
		log.WithFields(logger.Fields{"event": event}).Debug("received event message")
		if event == "ping" {
			select {
			case pongs <- struct{}{}:
			default:
			}
		}
		return false
	}

	var update models.VolumeUpdate
	if err := json.Unmarshal(msg, &update); err != nil {
		log.WithError(err).Debug("failed to decode volume update")
		return false
	}
	if update.Account == "" {
		return false
	}

	if err := f.store.Apply(update); err != nil {
		log.WithError(err).WithFields(logger.Fields{"account": update.Account}).Warn("rejected volume update")
		metrics.EmitDropMetric(f.log, metrics.DropMetricLedgerUpdate, "", update.Account, "store_apply")
		return false
	}

	log.WithFields(logger.Fields{
		"account": update.Account,
		"as_of":   update.AsOf,
	}).Debug("volume update applied")
	return true
}
