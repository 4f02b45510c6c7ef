package world

import (
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/spellcore/internal/model"
)

// PlayEffect logs a visual effect. Rendering happens on clients.
func (w *World) PlayEffect(name string, at mgl64.Vec3) {
	slog.Debug("play effect", "effect", name, "x", at.X(), "y", at.Y(), "z", at.Z())
}

// PlaySound logs a sound cue.
func (w *World) PlaySound(name string, at mgl64.Vec3) {
	slog.Debug("play sound", "sound", name, "x", at.X(), "y", at.Y(), "z", at.Z())
}

// SpawnEntity creates a sub-entity (totem, summon) owned by team at the given position.
func (w *World) SpawnEntity(template string, team model.Team, at mgl64.Vec3) model.EntityID {
	id := w.ids.NextSpawnID()
	u := model.NewUnit(id, template, team, at, 1)
	u.SetLayer(model.LayerSummon)
	if err := w.AddUnit(u); err != nil {
		slog.Warn("failed to spawn entity", "template", template, "error", err)
		return 0
	}
	slog.Debug("entity spawned", "template", template, "id", id)
	return id
}
