package transport

import (
	"sync"

	"github.com/decred/slog"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vctt94/holdemserver/internal/engine"
	"github.com/vctt94/holdemserver/internal/session"
)

// GRPCFeed is the gRPC-facing alternative to Hub: a single server-streaming
// RPC per connected viewer, each message framed as a google.protobuf.Struct
// so a client needs no generated stub package, only the well-known types.
type GRPCFeed struct {
	log slog.Logger

	mu      sync.RWMutex
	streams map[string]*viewerStream // viewerID -> stream
}

type viewerStream struct {
	send   chan *structpb.Struct
	done   chan struct{}
}

// NewGRPCFeed builds an empty feed.
func NewGRPCFeed(log slog.Logger) *GRPCFeed {
	return &GRPCFeed{log: log, streams: map[string]*viewerStream{}}
}

// notificationStream is the server-streaming handler registered under the
// hand-declared ServiceDesc below: the client opens it once per viewer ID
// and receives every subsequent envelope as a Struct until it disconnects.
func (f *GRPCFeed) notificationStream(req *structpb.Struct, stream grpc.ServerStream) error {
	viewerID := req.GetFields()["viewerId"].GetStringValue()
	if viewerID == "" {
		return grpcInvalidArgument("viewerId is required")
	}

	vs := &viewerStream{send: make(chan *structpb.Struct, sendBuffer), done: make(chan struct{})}
	f.mu.Lock()
	if old, ok := f.streams[viewerID]; ok {
		close(old.done)
	}
	f.streams[viewerID] = vs
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		if f.streams[viewerID] == vs {
			delete(f.streams, viewerID)
		}
		f.mu.Unlock()
	}()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-vs.done:
			return nil
		case msg := <-vs.send:
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

func (f *GRPCFeed) sendTo(viewerID string, msg *structpb.Struct) {
	f.mu.RLock()
	vs, ok := f.streams[viewerID]
	f.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case vs.send <- msg:
	default:
		f.log.Warnf("transport: grpc send buffer full for %s, dropping message", viewerID)
	}
}

// BroadcastEvent implements registry.Broadcaster over the gRPC transport.
func (f *GRPCFeed) BroadcastEvent(gameID string, ev engine.Event) {
	fields := map[string]interface{}{"type": ev.Type, "gameId": gameID}
	for k, v := range ev.Data {
		fields[k] = v
	}
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		f.log.Errorf("transport: encode event %s: %v", ev.Type, err)
		return
	}
	f.mu.RLock()
	targets := make([]string, 0, len(f.streams))
	for id := range f.streams {
		targets = append(targets, id)
	}
	f.mu.RUnlock()
	for _, id := range targets {
		f.sendTo(id, msg)
	}
}

// SendView implements registry.Broadcaster over the gRPC transport.
func (f *GRPCFeed) SendView(gameID, viewerID string, view session.SessionView) {
	asMap, err := structToMap(view)
	if err != nil {
		f.log.Errorf("transport: encode view for %s: %v", viewerID, err)
		return
	}
	asMap["type"] = "gameState"
	msg, err := structpb.NewStruct(asMap)
	if err != nil {
		f.log.Errorf("transport: build struct for %s: %v", viewerID, err)
		return
	}
	f.sendTo(viewerID, msg)
}

// ServiceDesc is hand-declared rather than protoc-generated: the pack
// carries no pokerrpc .proto/.pb.go, so the method table below is the
// equivalent of what protoc-gen-go-grpc would have emitted for one
// server-streaming RPC taking and returning google.protobuf.Struct.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "holdemserver.Notifications",
	HandlerType: (*GRPCFeed)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "NotificationStream",
			ServerStreams: true,
			Handler: func(srv interface{}, stream grpc.ServerStream) error {
				req := new(structpb.Struct)
				if err := stream.RecvMsg(req); err != nil {
					return err
				}
				return srv.(*GRPCFeed).notificationStream(req, stream)
			},
		},
	},
}
