package handler

import (
	"strings"
	"unicode/utf8"

	"github.com/doomsday/server/internal/net"
	"github.com/doomsday/server/internal/net/packet"
	"github.com/doomsday/server/internal/world"
	"go.uber.org/zap"
)

const maxNameLen = 16

// HandleJoin processes C_JOIN: [S name][S region].
// The player becomes a member of the named region and spawns on the surface
// at its center.
func HandleJoin(sess *net.Session, r *packet.Reader, deps *Deps) {
	name := strings.TrimSpace(r.ReadS())
	regionID := strings.TrimSpace(r.ReadS())

	if name == "" || utf8.RuneCountInString(name) > maxNameLen || strings.ContainsAny(name, " .") {
		SendLoginResult(sess, packet.LoginRejected, "invalid name")
		return
	}
	if deps.World.GetByName(name) != nil {
		SendLoginResult(sess, packet.LoginNameUsed, name)
		return
	}
	region := deps.Disasters.State().Region(regionID)
	if region == nil {
		SendLoginResult(sess, packet.LoginNoRegion, regionID)
		return
	}

	spawn := region.Bounds.Center()
	if top, ok := deps.World.Blocks.Surface(spawn.X, spawn.Z, region.Bounds.MinY, region.Bounds.MaxY); ok {
		spawn = top.Above()
	}
	e := &world.Entity{
		ID:       sess.ID,
		Session:  sess,
		Name:     name,
		RegionID: region.ID,
		X:        float64(spawn.X) + 0.5,
		Y:        float64(spawn.Y),
		Z:        float64(spawn.Z) + 0.5,
	}
	deps.World.AddEntity(e)
	sess.PlayerName = name
	sess.SetState(packet.StateInWorld)

	SendLoginResult(sess, packet.LoginOK, region.DisplayName)
	SendPosition(sess, e)
	SendMessage(sess, packet.MessageSystem, "Welcome to "+region.DisplayName+", "+name+".")
	for _, st := range deps.Disasters.Status() {
		if st.RegionID != region.ID {
			continue
		}
		for _, a := range st.Active {
			SendMessage(sess, packet.MessageSystem, "Active: "+a.DisasterID+" ("+formatDuration(a.Remaining)+" left)")
		}
	}

	deps.Log.Info("player joined",
		zap.Uint64("session", sess.ID),
		zap.String("name", name),
		zap.String("region", region.ID),
	)
}
