package avatar

import (
	"cogentcore.org/core/math32"

	"vibeverse/internal/scene"
)

// FitScale returns the uniform factor that makes source fit inside target
// without distorting it: the minimum over axes of target/source extent.
// Axes along which source is flat are ignored. It returns 1 when either
// box is empty or no axis can be compared.
func FitScale(target, source math32.Box3) float32 {
	if target.IsEmpty() || source.IsEmpty() {
		return 1
	}
	ts := target.Size()
	ss := source.Size()

	scale := float32(-1)
	for _, pair := range [3][2]float32{{ts.X, ss.X}, {ts.Y, ss.Y}, {ts.Z, ss.Z}} {
		if pair[1] <= 0 {
			continue
		}
		r := pair[0] / pair[1]
		if scale < 0 || r < scale {
			scale = r
		}
	}
	if scale <= 0 {
		return 1
	}
	return scale
}

// Fit scales model to the rig's current bounds and aligns it to the rig's
// origin, either standing on it (bottomOrigin) or centered on it. The model
// must not be attached yet; its pose is expressed in rig space afterwards.
func Fit(rig, model *scene.Node, bottomOrigin bool) {
	target := rig.WorldBox()
	source := model.WorldBox()

	s := FitScale(target, source)
	model.Pose.Scale = model.Pose.Scale.MulScalar(s)

	fitted := model.WorldBox()
	if fitted.IsEmpty() {
		return
	}
	if bottomOrigin {
		model.Pose.Pos.Y -= fitted.Min.Y
		return
	}
	model.Pose.Pos = model.Pose.Pos.Sub(fitted.Center())
}

// Replace hides every current child of rig and attaches model in their place.
func Replace(rig, model *scene.Node) {
	for _, c := range rig.Children() {
		c.Visible = false
	}
	rig.Add(model)
}
