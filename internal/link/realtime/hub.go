package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"bondedlink/internal/link/model"
	"bondedlink/internal/metrics"
)

const subscriberBuffer = 32

type subscriber struct {
	ch   chan model.Message
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Hub keeps per-conversation subscribers. Broadcast never blocks: a
// subscriber whose buffer is full misses the message.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{}
	closed      bool
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		subscribers: make(map[string]map[*subscriber]struct{}),
		logger:      logger,
		metrics:     m,
	}
}

func (h *Hub) Broadcast(msg model.Message) {
	if msg.ConversationID == "" {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers[msg.ConversationID] {
		select {
		case sub.ch <- msg.Clone():
		default:
			h.metrics.RealtimeDropped()
			h.logger.Warn("realtime subscriber is slow, dropping message",
				zap.String("conversation_id", msg.ConversationID),
				zap.String("message_id", msg.ID),
			)
		}
	}
}

// Listen subscribes to one conversation. The returned func unsubscribes and
// closes the channel; it is safe to call more than once.
func (h *Hub) Listen(conversationID string) (<-chan model.Message, func()) {
	sub := &subscriber{ch: make(chan model.Message, subscriberBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.close()
		return sub.ch, func() {}
	}
	if h.subscribers[conversationID] == nil {
		h.subscribers[conversationID] = make(map[*subscriber]struct{})
	}
	h.subscribers[conversationID][sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.subscribers[conversationID]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.subscribers, conversationID)
			}
		}
		sub.close()
	}
	return sub.ch, cancel
}

// Close ends every subscription, which lets open Subscribe streams return
// so the gRPC server can stop. Later Listen calls get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, subs := range h.subscribers {
		for sub := range subs {
			sub.close()
		}
	}
	h.subscribers = make(map[string]map[*subscriber]struct{})
}

// Subscribers reports how many listeners a conversation has.
func (h *Hub) Subscribers(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[conversationID])
}

func (h *Hub) Publish(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	msg, err := FromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if msg.ConversationID == "" {
		return nil, status.Error(codes.InvalidArgument, "conversation_id is required")
	}
	if msg.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	h.Broadcast(msg)
	return &emptypb.Empty{}, nil
}

func (h *Hub) Subscribe(in *structpb.Struct, stream grpc.ServerStream) error {
	conversationID := in.GetFields()[conversationField].GetStringValue()
	if conversationID == "" {
		return status.Error(codes.InvalidArgument, "conversation_id is required")
	}

	ch, cancel := h.Listen(conversationID)
	defer cancel()

	h.logger.Info("realtime subscriber attached", zap.String("conversation_id", conversationID))
	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			out, err := ToStruct(msg)
			if err != nil {
				h.logger.Error("failed to encode realtime message", zap.Error(err))
				continue
			}
			if err := stream.SendMsg(out); err != nil {
				return err
			}
		}
	}
}

func (h *Hub) Register(s grpc.ServiceRegistrar) {
	RegisterRealtimeServer(s, h)
}
