package scene

import (
	"testing"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitCube() *Geometry {
	g := NewGeometry(2)
	g.SetPosition(0, math32.Vec3(-1, -1, -1))
	g.SetPosition(1, math32.Vec3(1, 1, 1))
	return g
}

func TestAddReparents(t *testing.T) {
	a := NewGroup("a")
	b := NewGroup("b")
	child := NewGroup("child")

	a.Add(child)
	require.Same(t, a, child.Parent())

	b.Add(child)
	assert.Same(t, b, child.Parent())
	assert.Empty(t, a.Children())
	assert.Len(t, b.Children(), 1)
}

func TestWorldBoxFollowsParentPose(t *testing.T) {
	root := New()
	wrapper := NewGroup("wrapper")
	wrapper.Pose.Pos = math32.Vec3(10, 0, 0)
	mesh := NewMesh("cube", KindMesh, unitCube(), nil)
	wrapper.Add(mesh)
	root.Add(wrapper)

	bb := root.WorldBox()
	assert.InDelta(t, 9, bb.Min.X, 1e-5)
	assert.InDelta(t, 11, bb.Max.X, 1e-5)

	// moving the wrapper after the fact must be reflected immediately
	wrapper.Pose.Pos.Y = 5
	bb = root.WorldBox()
	assert.InDelta(t, 4, bb.Min.Y, 1e-5)
	assert.InDelta(t, 6, bb.Max.Y, 1e-5)
}

func TestWorldBoxScale(t *testing.T) {
	n := NewMesh("cube", KindMesh, unitCube(), nil)
	n.Pose.SetUniformScale(3)
	bb := n.WorldBox()
	assert.InDelta(t, -3, bb.Min.Z, 1e-5)
	assert.InDelta(t, 3, bb.Max.Z, 1e-5)
}

func TestWorldBoxEmptyWithoutGeometry(t *testing.T) {
	assert.True(t, NewGroup("empty").WorldBox().IsEmpty())
}

func TestExplicitBounds(t *testing.T) {
	b := math32.B3(0, 0, 0, 1, 2, 3)
	n := NewMesh("asset", KindMesh, &Geometry{Bounds: &b}, nil)
	bb := n.WorldBox()
	assert.InDelta(t, 2, bb.Max.Y, 1e-5)
}

func TestForwardDefaultsToNegativeZ(t *testing.T) {
	cam := NewCamera("cam")
	f := cam.Forward()
	assert.InDelta(t, 0, f.X, 1e-5)
	assert.InDelta(t, -1, f.Z, 1e-5)

	// a half turn about Y looks down +Z
	cam.Pose.SetEulerRotation(math32.Vec3(0, math32.Pi, 0))
	f = cam.Forward()
	assert.InDelta(t, 1, f.Z, 1e-4)
}

func TestFindByName(t *testing.T) {
	root := New()
	g := NewGroup("inner")
	g.Add(NewGroup("needle"))
	root.Add(g)
	require.NotNil(t, root.FindByName("needle"))
	assert.Nil(t, root.FindByName("missing"))
}
