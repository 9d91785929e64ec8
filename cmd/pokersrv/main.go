package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/vctt94/bisonbotkit/logging"
	"google.golang.org/grpc"

	"github.com/vctt94/holdemserver/internal/config"
	"github.com/vctt94/holdemserver/internal/engine"
	"github.com/vctt94/holdemserver/internal/heartbeat"
	"github.com/vctt94/holdemserver/internal/matchmaking"
	"github.com/vctt94/holdemserver/internal/registry"
	"github.com/vctt94/holdemserver/internal/session"
	"github.com/vctt94/holdemserver/internal/store"
	"github.com/vctt94/holdemserver/internal/transport"
)

func main() {
	var (
		dbPath        string
		variantsPath  string
		host          string
		wsPort        int
		grpcPort      int
		allowedOrigin string
		debugLevel    string
	)
	flag.StringVar(&dbPath, "db", "", "Path to SQLite database file (created if missing)")
	flag.StringVar(&variantsPath, "variants", "", "Path to the variant table JSON file")
	flag.StringVar(&host, "host", "127.0.0.1", "Host to listen on")
	flag.IntVar(&wsPort, "ws-port", 8080, "Port for the WebSocket transport")
	flag.IntVar(&grpcPort, "grpc-port", 8081, "Port for the gRPC transport")
	flag.StringVar(&allowedOrigin, "allowed-origin", "*", "Allowed WebSocket origin ('*' for any)")
	flag.StringVar(&debugLevel, "debuglevel", "info", "Logging level: trace, debug, info, warn, error")
	flag.Parse()

	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "holdemserver.sqlite")
	}

	logBackend, err := logging.NewLogBackend(logging.LogConfig{DebugLevel: debugLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logging: %v\n", err)
		os.Exit(1)
	}
	log := logBackend.Logger("SERVER")

	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	hub := transport.NewHub(logBackend.Logger("WS"), allowedOrigin)
	feed := transport.NewGRPCFeed(logBackend.Logger("GRPC"))
	broadcaster := dualBroadcaster{ws: hub, grpc: feed}

	reg := registry.New(st, broadcaster, logBackend.Logger("REGISTRY"), 256, 8)
	defer reg.Close()

	if variantsPath != "" {
		variants, err := config.Load(variantsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load variants: %v\n", err)
			os.Exit(1)
		}
		_ = matchmaking.New(variants, reg, st, logBackend.Logger("MATCHMAKING"))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ticker := heartbeat.New(reg, logBackend.Logger("HEARTBEAT"))
	go func() {
		if err := ticker.Run(ctx); err != nil && err != context.Canceled {
			log.Errorf("heartbeat stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeHTTP)
	httpSrv := &http.Server{Addr: fmt.Sprintf("%s:%d", host, wsPort), Handler: mux}
	go func() {
		log.Infof("websocket transport listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("websocket server error: %v", err)
		}
	}()

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, grpcPort))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to listen: %v\n", err)
		os.Exit(1)
	}
	grpcSrv := grpc.NewServer()
	grpcSrv.RegisterService(&transport.ServiceDesc, feed)
	go func() {
		log.Infof("grpc transport listening on %s", lis.Addr())
		if err := grpcSrv.Serve(lis); err != nil {
			log.Errorf("grpc serve error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Infof("shutting down")
	ticker.Stop()
	grpcSrv.GracefulStop()
	httpSrv.Shutdown(context.Background())
}

// dualBroadcaster fans registry.Broadcaster calls out to both transports at
// once, so a game is reachable over WebSocket or gRPC regardless of which
// one a given client dialed in on.
type dualBroadcaster struct {
	ws   *transport.Hub
	grpc *transport.GRPCFeed
}

func (d dualBroadcaster) BroadcastEvent(gameID string, ev engine.Event) {
	d.ws.BroadcastEvent(gameID, ev)
	d.grpc.BroadcastEvent(gameID, ev)
}

func (d dualBroadcaster) SendView(gameID, viewerID string, view session.SessionView) {
	d.ws.SendView(gameID, viewerID, view)
	d.grpc.SendView(gameID, viewerID, view)
}
