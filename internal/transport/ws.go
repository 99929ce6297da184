package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/bridge-sync-core/internal/listener"
	"github.com/rickgao/bridge-sync-core/internal/model"
	"github.com/rickgao/bridge-sync-core/internal/orderer"
	"github.com/rickgao/bridge-sync-core/internal/trade"
)

// WSConfig configures the websocket transport. Grounded on the teacher's
// connection.ClientConfig / ManagerConfig.
type WSConfig struct {
	URL              string
	AuthToken        string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingTimeout      time.Duration
	CommandTimeout   time.Duration
	OrderingTimeout  time.Duration
}

// DefaultWSConfig returns sensible defaults in the teacher's style.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingTimeout:      60 * time.Second,
		CommandTimeout:   10 * time.Second,
		OrderingTimeout:  60 * time.Second,
	}
}

// accountBinding is the per-account registration state: the listener set
// fed by the orderer's output, and the reconnect listeners driven by the
// connection lifecycle.
type accountBinding struct {
	mu                 sync.Mutex
	syncListeners      []listener.SyncListener
	reconnectListeners []ReconnectListener
}

// wsTransport implements Transport over a single gorilla/websocket
// connection shared by every registered account, with a packet orderer in
// front of the read loop. Grounded on internal/connection.client (dial,
// write mutex) and internal/connection.manager (command/response
// correlation via a pending-map keyed by request id). It sends no pings
// and runs no heartbeat loop.
type wsTransport struct {
	cfg    WSConfig
	logger *slog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu        sync.RWMutex
	connected bool
	bindings  map[string]*accountBinding

	pendingMu sync.Mutex
	pending   map[int64]chan wireResponse
	cmdID     int64

	orderer *orderer.Orderer

	done chan struct{}
}

type wireCommand struct {
	ID     int64       `json:"id"`
	Cmd    string      `json:"cmd"`
	Params interface{} `json:"params"`
}

type wireResponse struct {
	ID      int64           `json:"id"`
	Type    string          `json:"type"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wireFrame struct {
	AccountID         string          `json:"accountId"`
	InstanceIndex     int             `json:"instanceIndex"`
	Type              string          `json:"type"`
	SequenceNumber    *int64          `json:"sequenceNumber,omitempty"`
	SequenceTimestamp int64           `json:"sequenceTimestamp,omitempty"`
	SynchronizationID string          `json:"synchronizationId,omitempty"`
	Payload           json.RawMessage `json:"payload,omitempty"`
}

// NewWSTransport creates a websocket-backed Transport. Dialing happens on
// Connect, not on construction, so the facade can retry independently.
func NewWSTransport(cfg WSConfig, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultWSConfig().CommandTimeout
	}
	t := &wsTransport{
		cfg:      cfg,
		logger:   logger,
		bindings: make(map[string]*accountBinding),
		pending:  make(map[int64]chan wireResponse),
		done:     make(chan struct{}),
	}
	t.orderer = orderer.New(orderer.Config{OrderingTimeout: cfg.OrderingTimeout}, t.dispatchGap, logger)
	return t
}

// Connect dials the streaming endpoint, starts the packet orderer and
// starts the read loop. Not part of the Transport interface; the demo
// binary calls it after wiring the transport into the facade.
func (t *wsTransport) Connect(ctx context.Context) error {
	header := http.Header{}
	if t.cfg.AuthToken != "" {
		header.Set("Authorization", "Bearer "+t.cfg.AuthToken)
	}

	dialer := websocket.Dialer{HandshakeTimeout: t.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, t.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("dial terminal stream: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.connected = true
	t.mu.Unlock()

	t.orderer.Start(ctx)

	go t.readLoop()

	t.logger.Info("transport connected", "url", t.cfg.URL)
	return nil
}

func (t *wsTransport) binding(accountID string) *accountBinding {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.bindings[accountID]
	if !ok {
		b = &accountBinding{}
		t.bindings[accountID] = b
	}
	return b
}

func (t *wsTransport) AddSynchronizationListener(accountID string, l listener.SyncListener) {
	b := t.binding(accountID)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.syncListeners = append(b.syncListeners, l)
}

func (t *wsTransport) RemoveSynchronizationListener(accountID string, l listener.SyncListener) {
	b := t.binding(accountID)
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.syncListeners[:0]
	for _, existing := range b.syncListeners {
		if existing != l {
			kept = append(kept, existing)
		}
	}
	b.syncListeners = kept
}

func (t *wsTransport) AddReconnectListener(accountID string, l ReconnectListener) {
	b := t.binding(accountID)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reconnectListeners = append(b.reconnectListeners, l)
}

func (t *wsTransport) dispatchGap(accountID string, instanceIndex int, expected, actual int64, packet []byte, receivedAt time.Time) {
	b := t.binding(accountID)
	b.mu.Lock()
	listeners := append([]listener.SyncListener(nil), b.syncListeners...)
	b.mu.Unlock()

	for _, l := range listeners {
		l.OnOutOfOrderPacket(accountID, instanceIndex, expected, actual, packet, receivedAt.UnixMilli())
	}
}

// readLoop reads frames, feeds them through the orderer, and dispatches
// ordered output to the listeners registered for that frame's account.
func (t *wsTransport) readLoop() {
	for {
		select {
		case <-t.done:
			return
		default:
		}

		_, data, err := t.conn.ReadMessage()
		receivedAt := time.Now()
		if err != nil {
			t.mu.Lock()
			t.connected = false
			t.mu.Unlock()
			t.logger.Warn("transport read error", "error", err)
			return
		}

		var resp wireResponse
		if json.Unmarshal(data, &resp) == nil && resp.ID != 0 {
			t.routeResponse(resp)
			continue
		}

		var frame wireFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.logger.Warn("failed to parse frame", "error", err)
			continue
		}

		ordered := t.orderer.RestoreOrder(orderer.Packet{
			AccountID:         frame.AccountID,
			InstanceIndex:     frame.InstanceIndex,
			Type:              frame.Type,
			SequenceNumber:    frame.SequenceNumber,
			SequenceTimestamp: frame.SequenceTimestamp,
			SynchronizationID: frame.SynchronizationID,
			ReceivedAt:        receivedAt,
			Payload:           data,
		})

		for _, p := range ordered {
			t.dispatchFrame(p)
		}
	}
}

func (t *wsTransport) routeResponse(resp wireResponse) {
	t.pendingMu.Lock()
	ch, ok := t.pending[resp.ID]
	if ok {
		delete(t.pending, resp.ID)
	}
	t.pendingMu.Unlock()

	if ok {
		select {
		case ch <- resp:
		default:
		}
	}
}

// dispatchFrame maps one ordered frame onto the corresponding
// SyncListener hook. The wire schema for each frame type is a black-box
// concern the spec places out of scope (§6); only the dispatch routing
// matters to the sync core. Only the frame types in the switch below are
// dispatched; frames of any other type (account information, positions,
// orders, history orders, deals, symbol specifications) are dropped.
func (t *wsTransport) dispatchFrame(p orderer.Packet) {
	b := t.binding(p.AccountID)
	b.mu.Lock()
	listeners := append([]listener.SyncListener(nil), b.syncListeners...)
	reconnectListeners := append([]ReconnectListener(nil), b.reconnectListeners...)
	b.mu.Unlock()

	switch p.Type {
	case "connected":
		var body struct{ Replicas int }
		json.Unmarshal(p.Payload, &body)
		for _, l := range listeners {
			l.OnConnected(p.InstanceIndex, body.Replicas)
		}
	case "disconnected":
		for _, l := range listeners {
			l.OnDisconnected(p.InstanceIndex)
		}
	case "reconnected":
		for _, l := range listeners {
			l.OnReconnected()
		}
		for _, l := range reconnectListeners {
			l.OnReconnected()
		}
	case "orderSynchronizationFinished":
		for _, l := range listeners {
			l.OnOrderSynchronizationFinished(p.InstanceIndex, p.SynchronizationID)
		}
	case "dealSynchronizationFinished":
		for _, l := range listeners {
			l.OnDealSynchronizationFinished(p.InstanceIndex, p.SynchronizationID)
		}
	case "symbolPriceUpdated":
		var price model.SymbolPrice
		json.Unmarshal(p.Payload, &price)
		for _, l := range listeners {
			l.OnSymbolPriceUpdated(p.InstanceIndex, price)
		}
	}
}

func (t *wsTransport) nextCmdID() int64 {
	return atomic.AddInt64(&t.cmdID, 1)
}

// sendCommand writes a command and waits for its correlated response,
// modeled on internal/connection.manager's subscribe()/unsubscribe().
func (t *wsTransport) sendCommand(ctx context.Context, cmd string, params interface{}) (wireResponse, error) {
	t.mu.RLock()
	connected := t.connected
	t.mu.RUnlock()
	if !connected {
		return wireResponse{}, ErrNotConnected
	}

	id := t.nextCmdID()
	respCh := make(chan wireResponse, 1)

	t.pendingMu.Lock()
	t.pending[id] = respCh
	t.pendingMu.Unlock()
	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
	}()

	data, err := json.Marshal(wireCommand{ID: id, Cmd: cmd, Params: params})
	if err != nil {
		return wireResponse{}, err
	}

	t.writeMu.Lock()
	t.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	err = t.conn.WriteMessage(websocket.TextMessage, data)
	t.writeMu.Unlock()
	if err != nil {
		return wireResponse{}, err
	}

	timeout := t.cfg.CommandTimeout
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return wireResponse{}, ErrTimeout
	case resp := <-respCh:
		if resp.Type == "error" {
			return resp, fmt.Errorf("%s: %s", cmd, resp.Error)
		}
		return resp, nil
	}
}

func (t *wsTransport) Subscribe(ctx context.Context, accountID string) error {
	_, err := t.sendCommand(ctx, "subscribe", map[string]string{"accountId": accountID})
	return err
}

func (t *wsTransport) Unsubscribe(ctx context.Context, accountID string) error {
	_, err := t.sendCommand(ctx, "unsubscribe", map[string]string{"accountId": accountID})
	return err
}

func (t *wsTransport) Reconnect(ctx context.Context, accountID string) error {
	_, err := t.sendCommand(ctx, "reconnect", map[string]string{"accountId": accountID})
	return err
}

func (t *wsTransport) Synchronize(ctx context.Context, accountID string, instanceIndex int, synchronizationID string, startingHistoryOrderTime, startingDealTime time.Time) error {
	_, err := t.sendCommand(ctx, "synchronize", map[string]interface{}{
		"accountId":                accountID,
		"instanceIndex":            instanceIndex,
		"requestId":                synchronizationID,
		"startingHistoryOrderTime": startingHistoryOrderTime,
		"startingDealTime":         startingDealTime,
	})
	return err
}

func (t *wsTransport) WaitSynchronized(ctx context.Context, accountID string, instanceIndex int, applicationPattern string, timeout time.Duration) error {
	_, err := t.sendCommand(ctx, "waitSynchronized", map[string]interface{}{
		"accountId":           accountID,
		"instanceIndex":       instanceIndex,
		"applicationPattern":  applicationPattern,
		"timeoutInSeconds":    timeout.Seconds(),
	})
	return err
}

func (t *wsTransport) SubscribeToMarketData(ctx context.Context, accountID string, instanceIndex int, symbol string) error {
	_, err := t.sendCommand(ctx, "subscribeToMarketData", map[string]interface{}{
		"accountId": accountID, "instanceIndex": instanceIndex, "symbol": symbol,
	})
	return err
}

func (t *wsTransport) UnsubscribeFromMarketData(ctx context.Context, accountID string, instanceIndex int, symbol string) error {
	_, err := t.sendCommand(ctx, "unsubscribeFromMarketData", map[string]interface{}{
		"accountId": accountID, "instanceIndex": instanceIndex, "symbol": symbol,
	})
	return err
}

func (t *wsTransport) Trade(ctx context.Context, accountID string, request trade.Request) (*TradeResult, error) {
	resp, err := t.sendCommand(ctx, "trade", map[string]interface{}{
		"accountId": accountID,
		"request":   request,
	})
	if err != nil {
		var errMsg struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		json.Unmarshal(resp.Payload, &errMsg)
		if errMsg.Code != "" {
			return nil, &TradeError{Code: errMsg.Code, Message: errMsg.Message}
		}
		return nil, err
	}
	var result TradeResult
	json.Unmarshal(resp.Payload, &result)
	return &result, nil
}

func (t *wsTransport) RemoveHistory(ctx context.Context, accountID string, application string) error {
	_, err := t.sendCommand(ctx, "removeHistory", map[string]string{"accountId": accountID, "application": application})
	return err
}

func (t *wsTransport) RemoveApplication(ctx context.Context, accountID string) error {
	_, err := t.sendCommand(ctx, "removeApplication", map[string]string{"accountId": accountID})
	return err
}

func (t *wsTransport) GetAccountInformation(ctx context.Context, accountID string) (model.AccountInformation, error) {
	var out model.AccountInformation
	resp, err := t.sendCommand(ctx, "getAccountInformation", map[string]string{"accountId": accountID})
	if err != nil {
		return out, err
	}
	json.Unmarshal(resp.Payload, &out)
	return out, nil
}

func (t *wsTransport) GetPositions(ctx context.Context, accountID string) ([]model.Position, error) {
	var out []model.Position
	resp, err := t.sendCommand(ctx, "getPositions", map[string]string{"accountId": accountID})
	if err != nil {
		return nil, err
	}
	json.Unmarshal(resp.Payload, &out)
	return out, nil
}

func (t *wsTransport) GetOrders(ctx context.Context, accountID string) ([]model.Order, error) {
	var out []model.Order
	resp, err := t.sendCommand(ctx, "getOrders", map[string]string{"accountId": accountID})
	if err != nil {
		return nil, err
	}
	json.Unmarshal(resp.Payload, &out)
	return out, nil
}

func (t *wsTransport) GetHistoryOrdersByTicket(ctx context.Context, accountID, ticket string) ([]model.HistoryOrder, error) {
	return t.historyOrdersQuery(ctx, "getHistoryOrdersByTicket", map[string]string{"accountId": accountID, "ticket": ticket})
}

func (t *wsTransport) GetHistoryOrdersByPosition(ctx context.Context, accountID, positionID string) ([]model.HistoryOrder, error) {
	return t.historyOrdersQuery(ctx, "getHistoryOrdersByPosition", map[string]string{"accountId": accountID, "positionId": positionID})
}

func (t *wsTransport) GetHistoryOrdersByTimeRange(ctx context.Context, accountID string, r HistoryTimeRange) ([]model.HistoryOrder, error) {
	return t.historyOrdersQuery(ctx, "getHistoryOrdersByTimeRange", map[string]interface{}{"accountId": accountID, "from": r.From, "to": r.To})
}

func (t *wsTransport) historyOrdersQuery(ctx context.Context, cmd string, params interface{}) ([]model.HistoryOrder, error) {
	var out []model.HistoryOrder
	resp, err := t.sendCommand(ctx, cmd, params)
	if err != nil {
		return nil, err
	}
	json.Unmarshal(resp.Payload, &out)
	return out, nil
}

func (t *wsTransport) GetDealsByTicket(ctx context.Context, accountID, ticket string) ([]model.Deal, error) {
	return t.dealsQuery(ctx, "getDealsByTicket", map[string]string{"accountId": accountID, "ticket": ticket})
}

func (t *wsTransport) GetDealsByPosition(ctx context.Context, accountID, positionID string) ([]model.Deal, error) {
	return t.dealsQuery(ctx, "getDealsByPosition", map[string]string{"accountId": accountID, "positionId": positionID})
}

func (t *wsTransport) GetDealsByTimeRange(ctx context.Context, accountID string, r HistoryTimeRange) ([]model.Deal, error) {
	return t.dealsQuery(ctx, "getDealsByTimeRange", map[string]interface{}{"accountId": accountID, "from": r.From, "to": r.To})
}

func (t *wsTransport) dealsQuery(ctx context.Context, cmd string, params interface{}) ([]model.Deal, error) {
	var out []model.Deal
	resp, err := t.sendCommand(ctx, cmd, params)
	if err != nil {
		return nil, err
	}
	json.Unmarshal(resp.Payload, &out)
	return out, nil
}

func (t *wsTransport) GetSymbolSpecification(ctx context.Context, accountID, symbol string) (model.SymbolSpecification, error) {
	var out model.SymbolSpecification
	resp, err := t.sendCommand(ctx, "getSymbolSpecification", map[string]string{"accountId": accountID, "symbol": symbol})
	if err != nil {
		return out, err
	}
	json.Unmarshal(resp.Payload, &out)
	return out, nil
}

func (t *wsTransport) GetSymbolPrice(ctx context.Context, accountID, symbol string) (model.SymbolPrice, error) {
	var out model.SymbolPrice
	resp, err := t.sendCommand(ctx, "getSymbolPrice", map[string]string{"accountId": accountID, "symbol": symbol})
	if err != nil {
		return out, err
	}
	json.Unmarshal(resp.Payload, &out)
	return out, nil
}

func (t *wsTransport) SaveUptime(ctx context.Context, accountID string, uptime map[string]float64) error {
	_, err := t.sendCommand(ctx, "saveUptime", map[string]interface{}{"accountId": accountID, "uptime": uptime})
	return err
}

// Close tears down the websocket connection and stops the orderer.
func (t *wsTransport) Close() error {
	close(t.done)
	t.orderer.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}
