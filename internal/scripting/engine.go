package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/doomsday/server/internal/disaster"
	"github.com/doomsday/server/internal/world"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM holding script-defined effects.
// Single-goroutine access only (game loop).
type Engine struct {
	vm      *lua.LState
	log     *zap.Logger
	effects map[string]*effectDef
}

// effectDef is one register_effect{...} call.
type effectDef struct {
	tag    string
	every  int
	action *lua.LFunction
	start  *lua.LFunction // optional
}

// NewEngine creates a Lua engine and loads every script under
// scriptsDir/effects. A missing directory yields an engine with no effects.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log, effects: make(map[string]*effectDef)}
	vm.SetGlobal("register_effect", vm.NewFunction(e.luaRegisterEffect))

	if err := e.loadDir(filepath.Join(scriptsDir, "effects")); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load effect scripts: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory, in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// luaRegisterEffect implements register_effect{type=, every=, action=, start=}.
func (e *Engine) luaRegisterEffect(L *lua.LState) int {
	t := L.CheckTable(1)
	tag := lStr(t, "type")
	if tag == "" {
		L.ArgError(1, "type is required")
		return 0
	}
	action, ok := t.RawGetString("action").(*lua.LFunction)
	if !ok {
		L.ArgError(1, "action must be a function")
		return 0
	}
	def := &effectDef{tag: tag, every: lInt(t, "every"), action: action}
	if start, ok := t.RawGetString("start").(*lua.LFunction); ok {
		def.start = start
	}
	if def.every <= 0 {
		def.every = 20
	}
	e.effects[tag] = def
	return 0
}

// Tags returns the script-defined effect tags, sorted.
func (e *Engine) Tags() []string {
	tags := make([]string, 0, len(e.effects))
	for t := range e.effects {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// RegisterEffects adds every script effect to reg. Script effects replace
// built-ins with the same tag. Returns the number registered.
func (e *Engine) RegisterEffects(reg *disaster.Registry) int {
	for _, tag := range e.Tags() {
		def := e.effects[tag]
		reg.Register(tag, func() disaster.Routine {
			return &luaRoutine{engine: e, def: def, state: e.vm.NewTable()}
		})
	}
	return len(e.effects)
}

// luaRoutine runs a script effect. state is a per-run table the script may
// use for its own bookkeeping (ctx.state).
type luaRoutine struct {
	engine *Engine
	def    *effectDef
	state  *lua.LTable
}

func (r *luaRoutine) Every() int { return r.def.every }

func (r *luaRoutine) Start(c *disaster.Context) {
	if r.def.start != nil {
		r.engine.call(r.def.tag, r.def.start, r.engine.contextTable(c, r.state))
	}
}

func (r *luaRoutine) Act(c *disaster.Context) {
	r.engine.call(r.def.tag, r.def.action, r.engine.contextTable(c, r.state))
}

// call invokes fn(ctx) protected. Script errors are logged and the action is
// skipped, like any other failed micro-action.
func (e *Engine) call(tag string, fn *lua.LFunction, ctx *lua.LTable) {
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, ctx); err != nil {
		e.log.Error("lua effect error", zap.String("type", tag), zap.Error(err))
	}
}

// contextTable builds the ctx table handed to a script action.
func (e *Engine) contextTable(c *disaster.Context, state *lua.LTable) *lua.LTable {
	L := e.vm
	t := L.NewTable()
	t.RawSetString("region", lua.LString(c.Region.ID))
	t.RawSetString("disaster", lua.LString(c.Disaster.ID))
	t.RawSetString("elapsed", lua.LNumber(c.Elapsed))
	t.RawSetString("state", state)

	b := c.Region.Bounds
	bounds := L.NewTable()
	bounds.RawSetString("min_x", lua.LNumber(b.MinX))
	bounds.RawSetString("max_x", lua.LNumber(b.MaxX))
	bounds.RawSetString("min_y", lua.LNumber(b.MinY))
	bounds.RawSetString("max_y", lua.LNumber(b.MaxY))
	bounds.RawSetString("min_z", lua.LNumber(b.MinZ))
	bounds.RawSetString("max_z", lua.LNumber(b.MaxZ))
	t.RawSetString("bounds", bounds)

	t.RawSetString("random", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(c.Rand.Float64()))
		return 1
	}))
	t.RawSetString("random_location", L.NewFunction(func(L *lua.LState) int {
		l := c.RandomLocation()
		return pushLocation(L, l)
	}))
	t.RawSetString("random_surface", L.NewFunction(func(L *lua.LState) int {
		l, ok := c.RandomSurface()
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		return pushLocation(L, l)
	}))
	t.RawSetString("block", L.NewFunction(func(L *lua.LState) int {
		l := checkLocation(L, 1)
		L.Push(lua.LString(c.Block(l).String()))
		return 1
	}))
	t.RawSetString("convert", L.NewFunction(func(L *lua.LState) int {
		l := checkLocation(L, 1)
		from, okFrom := world.ParseMaterial(L.CheckString(4))
		to, okTo := world.ParseMaterial(L.CheckString(5))
		L.Push(lua.LBool(okFrom && okTo && c.Convert(l, from, to)))
		return 1
	}))
	t.RawSetString("members", L.NewFunction(func(L *lua.LState) int {
		list := L.NewTable()
		for _, m := range c.Members() {
			list.Append(lua.LString(m.Name))
		}
		L.Push(list)
		return 1
	}))
	t.RawSetString("apply_status", L.NewFunction(func(L *lua.LState) int {
		m := findMember(c, L.CheckString(1))
		kind, ok := world.ParseStatusKind(L.CheckString(2))
		if m == nil || !ok {
			L.Push(lua.LFalse)
			return 1
		}
		m.ApplyStatus(kind, L.CheckInt(3), L.OptInt(4, 0))
		L.Push(lua.LTrue)
		return 1
	}))
	t.RawSetString("push", L.NewFunction(func(L *lua.LState) int {
		m := findMember(c, L.CheckString(1))
		if m == nil {
			L.Push(lua.LFalse)
			return 1
		}
		m.Push(float64(L.CheckNumber(2)), float64(L.CheckNumber(3)), float64(L.CheckNumber(4)))
		L.Push(lua.LTrue)
		return 1
	}))
	return t
}

func findMember(c *disaster.Context, name string) *world.Entity {
	for _, m := range c.Members() {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func pushLocation(L *lua.LState, l world.Location) int {
	L.Push(lua.LNumber(l.X))
	L.Push(lua.LNumber(l.Y))
	L.Push(lua.LNumber(l.Z))
	return 3
}

func checkLocation(L *lua.LState, first int) world.Location {
	return world.Location{
		X: int32(L.CheckInt(first)),
		Y: int32(L.CheckInt(first + 1)),
		Z: int32(L.CheckInt(first + 2)),
	}
}

func lInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

func lStr(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}

// Close releases the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
