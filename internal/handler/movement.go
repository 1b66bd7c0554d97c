package handler

import (
	"math"

	"github.com/doomsday/server/internal/net"
	"github.com/doomsday/server/internal/net/packet"
	"go.uber.org/zap"
)

// maxStep is the largest client-reported move accepted per packet, in blocks.
const maxStep = 8.0

// HandleMove processes C_MOVE: [F x][F y][F z].
// Moves further than maxStep are rejected and the client is snapped back to
// the server-tracked position.
func HandleMove(sess *net.Session, r *packet.Reader, deps *Deps) {
	x := r.ReadFixed()
	y := r.ReadFixed()
	z := r.ReadFixed()

	e := deps.World.GetBySession(sess.ID)
	if e == nil {
		return
	}
	if r.Err() != nil {
		deps.Log.Debug("truncated move packet", zap.Uint64("session", sess.ID))
		SendPosition(sess, e)
		return
	}
	if math.Abs(x-e.X) > maxStep || math.Abs(y-e.Y) > maxStep || math.Abs(z-e.Z) > maxStep {
		SendPosition(sess, e)
		return
	}
	deps.World.MoveEntity(e, x, y, z)
}
