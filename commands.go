package main

import (
	"log"

	"wildkeep/server/internal/guardian"
)

type commandKind int

const (
	cmdCapture commandKind = iota
	cmdDismiss
	cmdSummon
	cmdRelease
	cmdTeach
	cmdUnlearn
	cmdArchetype
	cmdSpawn
	cmdInfo
	cmdMove
	cmdLogin
	cmdLogout
	cmdRules
)

// command is one unit of work queued from the transport goroutines onto the
// simulation goroutine. Fields beyond kind and owner are command-specific.
type command struct {
	kind      commandKind
	owner     guardian.OwnerID
	slot      int
	position  int
	ability   guardian.AbilityID
	target    guardian.Handle
	archetype guardian.Archetype
	template  guardian.TemplateID
	level     uint8
	pos       guardian.Vec2
	partition guardian.PartitionID
	rules     guardian.Rules
}

// parseCommand maps a client message onto a queued command. The bool result
// is false for messages that do not translate to simulation work.
func parseCommand(owner guardian.OwnerID, msg clientMessage) (command, bool) {
	switch msg.Type {
	case "move":
		return command{
			kind:      cmdMove,
			owner:     owner,
			pos:       guardian.Vec2{X: msg.X, Y: msg.Y},
			partition: guardian.PartitionID(msg.Partition),
		}, true
	case "command":
	default:
		return command{}, false
	}

	cmd := command{
		owner:    owner,
		slot:     msg.Slot,
		position: msg.Position,
		ability:  guardian.AbilityID(msg.Ability),
		target:   guardian.Handle(msg.Target),
		template: guardian.TemplateID(msg.Template),
		level:    msg.Level,
	}
	switch msg.Cmd {
	case "capture":
		cmd.kind = cmdCapture
	case "dismiss":
		cmd.kind = cmdDismiss
	case "summon":
		cmd.kind = cmdSummon
	case "release":
		cmd.kind = cmdRelease
	case "teach":
		cmd.kind = cmdTeach
	case "unlearn":
		cmd.kind = cmdUnlearn
	case "archetype":
		cmd.kind = cmdArchetype
		arch, ok := parseArchetype(msg.Archetype)
		if !ok {
			return command{}, false
		}
		cmd.archetype = arch
	case "spawn":
		cmd.kind = cmdSpawn
	case "info":
		cmd.kind = cmdInfo
	default:
		return command{}, false
	}
	return cmd, true
}

func parseArchetype(s string) (guardian.Archetype, bool) {
	switch s {
	case "dps":
		return guardian.ArchetypeDPS, true
	case "tank":
		return guardian.ArchetypeTank, true
	case "healer":
		return guardian.ArchetypeHealer, true
	default:
		return 0, false
	}
}

// handleCommand executes one queued command. Runs on the simulation
// goroutine only.
func (s *Server) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdCapture:
		if _, err := s.coord.Capture(cmd.owner, cmd.target); err != nil {
			s.hub.sendError(cmd.owner, err)
		}
	case cmdDismiss:
		if err := s.coord.Dismiss(cmd.owner, cmd.slot); err != nil {
			s.hub.sendError(cmd.owner, err)
		}
	case cmdSummon:
		if err := s.coord.Summon(cmd.owner, cmd.slot); err != nil {
			s.hub.sendError(cmd.owner, err)
		}
	case cmdRelease:
		if err := s.coord.Release(cmd.owner, cmd.slot); err != nil {
			s.hub.sendError(cmd.owner, err)
		}
	case cmdTeach:
		if err := s.coord.Teach(cmd.owner, cmd.slot, cmd.position, cmd.ability); err != nil {
			s.hub.sendError(cmd.owner, err)
		}
	case cmdUnlearn:
		if err := s.coord.Unlearn(cmd.owner, cmd.slot, cmd.position); err != nil {
			s.hub.sendError(cmd.owner, err)
		}
	case cmdArchetype:
		if err := s.coord.SetArchetype(cmd.owner, cmd.slot, cmd.archetype); err != nil {
			s.hub.sendError(cmd.owner, err)
		}
	case cmdSpawn:
		if _, err := s.coord.SpawnFromTemplate(cmd.owner, cmd.template, cmd.level); err != nil {
			s.hub.sendError(cmd.owner, err)
		}
	case cmdInfo:
		s.hub.Replay(cmd.owner, s.coord.Views(cmd.owner))
	case cmdMove:
		s.handleMove(cmd)
	case cmdLogin:
		s.handleLogin(cmd.owner)
	case cmdLogout:
		s.coord.OwnerDisconnected(cmd.owner)
		s.despawnOwner(cmd.owner)
	case cmdRules:
		s.coord.SetRules(cmd.rules)
	}
}

func (s *Server) handleMove(cmd command) {
	ent, ok := s.world.OwnerEntity(cmd.owner)
	if !ok {
		return
	}
	prev := ent.Partition()
	if !s.world.MoveOwner(cmd.owner, cmd.pos, cmd.partition) {
		return
	}
	s.coord.OwnerMoved(cmd.owner, cmd.partition, cmd.pos)
	if prev != cmd.partition {
		// Stored guardians come back once the owner stands in the new
		// partition.
		s.coord.OwnerEntered(cmd.owner)
	}
}

func (s *Server) handleLogin(owner guardian.OwnerID) {
	if _, ok := s.world.OwnerEntity(owner); !ok {
		s.world.SpawnPlayer(owner, defaultPlayerLevel, spawnPoint, defaultPartition, playerFaction)
	}
	if err := s.coord.LoadOwner(owner); err != nil {
		log.Printf("loading slots for %s failed: %v", owner, err)
	}
	s.coord.OwnerEntered(owner)
	s.hub.Replay(owner, s.coord.Views(owner))
}

func (s *Server) despawnOwner(owner guardian.OwnerID) {
	if ent, ok := s.world.OwnerEntity(owner); ok {
		s.world.Despawn(ent.Handle())
	}
}
