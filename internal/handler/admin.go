package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/doomsday/server/internal/disaster"
	"github.com/doomsday/server/internal/net"
	"github.com/doomsday/server/internal/net/packet"
	"github.com/doomsday/server/internal/persist"
	"github.com/doomsday/server/internal/world"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// HandleAdminLogin processes C_ADMIN_LOGIN: [S name][S password].
// The password is checked against the bcrypt hash in [admin]. An empty hash
// disables admin login. Too many failures close the connection.
func HandleAdminLogin(sess *net.Session, r *packet.Reader, deps *Deps) {
	name := r.ReadS()
	password := r.ReadS()

	cfg := deps.Config.Admin
	ok := cfg.PasswordHash != "" && name == cfg.Name &&
		bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(password)) == nil
	if !ok {
		fails := sess.FailLogin()
		deps.Log.Warn("admin login failed",
			zap.Uint64("session", sess.ID),
			zap.String("ip", sess.IP),
			zap.Int("failures", fails),
		)
		SendLoginResult(sess, packet.LoginRejected, "invalid credentials")
		if cfg.MaxLoginFailures > 0 && fails >= cfg.MaxLoginFailures {
			sess.Close()
		}
		return
	}

	sess.AdminName = name
	sess.SetState(packet.StateAdmin)
	SendLoginResult(sess, packet.LoginOK, "admin")
	SendConsole(sess, "Logged in. Type .help for commands.")
	deps.Log.Info("admin logged in", zap.Uint64("session", sess.ID), zap.String("ip", sess.IP))
}

// HandleCommand processes C_COMMAND: [S line].
func HandleCommand(sess *net.Session, r *packet.Reader, deps *Deps) {
	line := strings.TrimSpace(r.ReadS())
	if line == "" {
		return
	}
	if !HandleAdminCommand(sess, line, deps) {
		SendConsole(sess, "Commands start with '.'; type .help")
	}
}

// HandleAdminCommand runs one "." prefixed console command.
// Returns false if the text was not a command.
func HandleAdminCommand(sess *net.Session, text string, deps *Deps) bool {
	if !strings.HasPrefix(text, ".") {
		return false
	}
	parts := strings.Fields(text[1:])
	if len(parts) == 0 {
		return true
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	deps.Log.Info("admin command",
		zap.String("admin", sess.AdminName),
		zap.String("command", text),
	)

	switch cmd {
	case "help":
		adminHelp(sess)
	case "who":
		adminWho(sess, deps)
	case "disaster", "d":
		adminDisaster(sess, args, deps)
	default:
		consolef(sess, "Unknown command: .%s  (type .help)", cmd)
	}
	return true
}

func consolef(sess *net.Session, format string, a ...any) {
	SendConsole(sess, fmt.Sprintf(format, a...))
}

func adminHelp(sess *net.Session) {
	SendConsole(sess, ".who                                  list connected players")
	SendConsole(sess, ".disaster list                        regions and their disasters")
	SendConsole(sess, ".disaster status                      active and pending disasters")
	SendConsole(sess, ".disaster trigger <region> <disaster> start a disaster now")
	SendConsole(sess, ".disaster stop <region> <disaster>    end an active disaster")
	SendConsole(sess, ".disaster reload                      reload regions.yaml")
	SendConsole(sess, ".disaster auto [on|off]               automatic scheduling")
	SendConsole(sess, ".disaster history [region] [limit]    recent disaster log")
}

func adminWho(sess *net.Session, deps *Deps) {
	consolef(sess, "%d player(s) online", deps.World.EntityCount())
	deps.World.AllEntities(func(e *world.Entity) {
		consolef(sess, "  %-16s region=%-12s pos=(%.1f, %.1f, %.1f)", e.Name, e.RegionID, e.X, e.Y, e.Z)
	})
}

func adminDisaster(sess *net.Session, args []string, deps *Deps) {
	if len(args) == 0 {
		SendConsole(sess, "Usage: .disaster list|status|trigger|stop|reload|auto|history")
		return
	}
	svc := deps.Disasters
	sub := strings.ToLower(args[0])
	args = args[1:]

	switch sub {
	case "list":
		disasterList(sess, svc)
	case "status":
		disasterStatus(sess, svc)
	case "trigger", "start":
		if len(args) < 2 {
			SendConsole(sess, "Usage: .disaster trigger <region> <disaster>")
			return
		}
		if err := svc.Trigger(args[0], args[1]); err != nil {
			consolef(sess, "Trigger failed: %s", describeError(err))
			return
		}
		consolef(sess, "Triggered %s in %s.", args[1], args[0])
	case "stop":
		if len(args) < 2 {
			SendConsole(sess, "Usage: .disaster stop <region> <disaster>")
			return
		}
		if err := svc.Stop(args[0], args[1]); err != nil {
			consolef(sess, "Stop failed: %s", describeError(err))
			return
		}
		consolef(sess, "Stopped %s in %s.", args[1], args[0])
	case "reload":
		if err := svc.Reload(); err != nil {
			consolef(sess, "Reload failed, previous definitions kept: %v", err)
			return
		}
		consolef(sess, "Reloaded %d region(s).", svc.State().RegionCount())
	case "auto":
		disasterAuto(sess, args, svc)
	case "history":
		disasterHistory(sess, args, deps)
	default:
		consolef(sess, "Unknown subcommand: %s", sub)
	}
}

func describeError(err error) string {
	switch {
	case errors.Is(err, disaster.ErrRegionNotFound):
		return "no such region (" + err.Error() + ")"
	case errors.Is(err, disaster.ErrDisasterNotFound):
		return "no such disaster (" + err.Error() + ")"
	case errors.Is(err, disaster.ErrDisasterDisabled):
		return "disaster is disabled (" + err.Error() + ")"
	default:
		return err.Error()
	}
}

func disasterList(sess *net.Session, svc *disaster.Service) {
	st := svc.State()
	if st.RegionCount() == 0 {
		SendConsole(sess, "No regions loaded.")
		return
	}
	st.EachRegion(func(r *disaster.Region) {
		consolef(sess, "%s (%s)", r.ID, r.DisplayName)
		r.EachDisaster(func(d *disaster.Disaster) {
			flag := "on"
			if !d.Enabled {
				flag = "off"
			}
			consolef(sess, "  %-14s type=%s %s p=%.2f every=%d-%d ticks lasts=%d ticks",
				d.ID, d.Type, flag, d.Probability, d.MinInterval, d.MaxInterval, d.DurationTicks)
		})
	})
}

func disasterStatus(sess *net.Session, svc *disaster.Service) {
	mode := "on"
	if !svc.IsAutomaticEnabled() {
		mode = "off"
	}
	consolef(sess, "Automatic scheduling: %s", mode)
	for _, rs := range svc.Status() {
		consolef(sess, "%s (%s)", rs.RegionID, rs.DisplayName)
		if len(rs.Active) == 0 && len(rs.Pending) == 0 {
			SendConsole(sess, "  (no enabled disasters)")
		}
		for _, a := range rs.Active {
			consolef(sess, "  ACTIVE  %-14s %s left", a.DisasterID, formatDuration(a.Remaining))
		}
		for _, p := range rs.Pending {
			consolef(sess, "  pending %-14s check in %s", p.DisasterID, formatDuration(p.UntilCheck))
		}
	}
}

func disasterAuto(sess *net.Session, args []string, svc *disaster.Service) {
	if len(args) == 0 {
		if svc.IsAutomaticEnabled() {
			SendConsole(sess, "Automatic scheduling is on.")
		} else {
			SendConsole(sess, "Automatic scheduling is off.")
		}
		return
	}
	switch strings.ToLower(args[0]) {
	case "on":
		svc.EnableAutomatic()
		SendConsole(sess, "Automatic scheduling enabled.")
	case "off":
		svc.DisableAutomatic()
		SendConsole(sess, "Automatic scheduling disabled. Active disasters keep running.")
	default:
		SendConsole(sess, "Usage: .disaster auto [on|off]")
	}
}

func disasterHistory(sess *net.Session, args []string, deps *Deps) {
	if deps.History == nil {
		SendConsole(sess, "History is unavailable: the database is disabled.")
		return
	}
	regionID := ""
	limit := deps.Config.Admin.HistoryLimit
	for _, a := range args {
		if n, err := strconv.Atoi(a); err == nil && n > 0 {
			limit = n
		} else {
			regionID = a
		}
	}
	if limit <= 0 {
		limit = 10
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	entries, err := deps.History.Recent(ctx, regionID, limit)
	if err != nil {
		deps.Log.Error("history query failed", zap.Error(err))
		SendConsole(sess, "History query failed.")
		return
	}
	if len(entries) == 0 {
		SendConsole(sess, "No history.")
		return
	}
	now := deps.now()
	for _, e := range entries {
		when := humanize.RelTime(e.OccurredAt, now, "ago", "from now")
		switch e.Kind {
		case persist.HistoryStart:
			consolef(sess, "%-16s %s/%s started (%s)", when, e.RegionID, e.DisasterID, e.Reason)
		default:
			consolef(sess, "%-16s %s/%s ended (%s)", when, e.RegionID, e.DisasterID, e.Reason)
		}
	}
}

// formatDuration renders d rounded to the second, e.g. "1m30s".
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return d.Round(time.Second).String()
}
