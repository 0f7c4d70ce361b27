package main

import (
	"log"
	"time"

	"wildkeep/server/internal/guardian"
	"wildkeep/server/internal/world"
)

const (
	defaultPlayerLevel = 20
	defaultPartition   = guardian.PartitionID(0)
	playerFaction      = guardian.FactionID(1)
	commandQueueSize   = 256
)

var spawnPoint = guardian.Vec2{X: 80, Y: 80}

// Server owns the simulation goroutine. All world and guardian state is
// confined to Run; the transport goroutines talk to it through the command
// queue only.
type Server struct {
	cfg      ServerConfig
	world    *world.World
	coord    *guardian.Coordinator
	hub      *Hub
	commands chan command
}

func newServer(cfg ServerConfig, w *world.World, coord *guardian.Coordinator, hub *Hub) *Server {
	return &Server{
		cfg:      cfg,
		world:    w,
		coord:    coord,
		hub:      hub,
		commands: make(chan command, commandQueueSize),
	}
}

// Enqueue hands a command to the simulation goroutine. Never blocks; a full
// queue drops the command, the client retries on its next input.
func (s *Server) Enqueue(cmd command) {
	select {
	case s.commands <- cmd:
	default:
		log.Printf("command queue full; dropped %d for %s", cmd.kind, cmd.owner)
	}
}

// Run drives the fixed-timestep loop: drain queued commands, step the world,
// then tick the guardian controllers. Returns when stop closes.
func (s *Server) Run(stop <-chan struct{}) {
	interval := time.Second / time.Duration(s.cfg.TickHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			if elapsed <= 0 {
				elapsed = interval
			}
			last = now
			s.step(elapsed)
		}
	}
}

func (s *Server) step(elapsed time.Duration) {
	for {
		select {
		case cmd := <-s.commands:
			s.handleCommand(cmd)
			continue
		default:
		}
		break
	}
	s.world.Step(elapsed)
	s.coord.Tick(elapsed)
}
