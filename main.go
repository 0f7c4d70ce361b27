package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"wildkeep/server/internal/guardian"
	"wildkeep/server/internal/store"
	"wildkeep/server/internal/world"
	"wildkeep/server/logging"
	"wildkeep/server/logging/sinks"
)

func main() {
	cfg, err := loadServerConfig()
	if err != nil {
		log.Fatalf("configuration failed: %v", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.EnabledSinks = cfg.LogSinks
	logCfg.JSON.FilePath = cfg.LogJSONPath
	router, err := buildRouter(logCfg)
	if err != nil {
		log.Fatalf("logging setup failed: %v", err)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("opening database failed: %v", err)
	}

	rules, err := loadRules(cfg.RulesPath)
	if err != nil {
		log.Printf("rules file problem, using defaults: %v", err)
	}

	w := world.New()
	if err := loadBestiary(cfg.BestiaryPath, w); err != nil {
		log.Fatalf("bestiary load failed: %v", err)
	}
	catalog, err := loadCatalog(cfg.AbilitiesPath)
	if err != nil {
		log.Fatalf("ability catalog load failed: %v", err)
	}

	hub := newHub()
	coord := guardian.NewCoordinator(guardian.CoordinatorConfig{
		Engine:      w,
		Catalog:     catalog,
		Persistence: st,
		Notifier:    hub,
		Publisher:   router,
		Rules:       rules,
	})
	w.SetHooks(world.Hooks{
		DamageDealt: coord.HandleDamageDealt,
		Killed:      coord.HandleKill,
		Died:        coord.HandleDied,
		Summoned:    coord.HandleSummoned,
	})

	srv := newServer(cfg, w, coord, hub)
	stop := make(chan struct{})
	go srv.Run(stop)

	if cfg.RulesPath != "" {
		err := watchRules(cfg.RulesPath, stop, func(r guardian.Rules) {
			srv.Enqueue(command{kind: cmdRules, rules: r})
		})
		if err != nil {
			log.Printf("rules hot-reload disabled: %v", err)
		}
	}

	mux := http.NewServeMux()
	registerRoutes(mux, srv, hub, router)

	httpServer := &http.Server{Addr: cfg.Addr, Handler: mux}
	go func() {
		log.Printf("server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Printf("shutting down")

	close(stop)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)
	if err := router.Close(ctx); err != nil {
		log.Printf("closing event router: %v", err)
	}
	if err := st.Close(ctx); err != nil {
		log.Printf("closing store: %v", err)
	}
}

func buildRouter(cfg logging.Config) (*logging.Router, error) {
	var named []logging.NamedSink
	if cfg.HasSink(logging.SinkConsole) {
		named = append(named, logging.NamedSink{Name: logging.SinkConsole, Sink: sinks.NewConsole(os.Stdout)})
	}
	if cfg.HasSink(logging.SinkJSON) {
		js, err := sinks.NewJSONFile(cfg.JSON.FilePath, cfg.JSON.FlushInterval)
		if err != nil {
			return nil, err
		}
		named = append(named, logging.NamedSink{Name: logging.SinkJSON, Sink: js})
	}
	return logging.NewRouter(nil, cfg, named), nil
}

var nextOwnerID atomic.Uint64

func registerRoutes(mux *http.ServeMux, srv *Server, hub *Hub, router *logging.Router) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		stats := router.Stats()
		payload := struct {
			Status     string `json:"status"`
			ServerTime int64  `json:"serverTime"`
			Actors     int    `json:"actors"`
			TickHz     int    `json:"tickHz"`
			Events     uint64 `json:"events"`
			Dropped    uint64 `json:"droppedEvents"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Actors:     srv.world.Len(),
			TickHz:     srv.cfg.TickHz,
			Events:     stats.EventsTotal,
			Dropped:    stats.DroppedTotal,
		}
		data, err := json.Marshal(payload)
		if err != nil {
			http.Error(w, "failed to encode", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/join", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		name := r.URL.Query().Get("name")
		if name == "" {
			name = fmt.Sprintf("player-%d", nextOwnerID.Add(1))
		}
		data, err := json.Marshal(struct {
			ID string `json:"id"`
		}{ID: name})
		if err != nil {
			http.Error(w, "failed to encode", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ownerName := r.URL.Query().Get("owner")
		if ownerName == "" {
			http.Error(w, "missing owner", http.StatusBadRequest)
			return
		}
		owner := guardian.OwnerID(ownerName)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade failed for %s: %v", owner, err)
			return
		}

		hub.Subscribe(owner, conn)
		srv.Enqueue(command{kind: cmdLogin, owner: owner})

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				srv.Enqueue(command{kind: cmdLogout, owner: owner})
				hub.Disconnect(owner)
				return
			}
			var msg clientMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				log.Printf("discarding malformed message from %s: %v", owner, err)
				continue
			}
			cmd, ok := parseCommand(owner, msg)
			if !ok {
				log.Printf("unknown message %q/%q from %s", msg.Type, msg.Cmd, owner)
				continue
			}
			srv.Enqueue(cmd)
		}
	})
}
