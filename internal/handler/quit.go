package handler

import (
	"github.com/doomsday/server/internal/net"
	"github.com/doomsday/server/internal/net/packet"
	"go.uber.org/zap"
)

// HandleQuit processes C_QUIT. It only closes the session;
// InputSystem.handleDisconnect removes the entity from the world.
func HandleQuit(sess *net.Session, _ *packet.Reader, deps *Deps) {
	deps.Log.Info("client quit",
		zap.Uint64("session", sess.ID),
		zap.String("player", sess.PlayerName),
		zap.String("admin", sess.AdminName),
	)
	sess.Close()
}
