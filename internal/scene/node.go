// Package scene is the host-side scene graph consumed by the portal core.
//
// It models only what a renderer needs to draw portals, the warp tunnel and
// player rigs: a tree of posed nodes carrying flat vertex buffers and a
// material. Nodes are not safe for concurrent use; all mutation happens on
// the frame loop.
package scene

import "cogentcore.org/core/math32"

// Kind tells the renderer how to interpret a node's geometry.
type Kind int

const (
	KindGroup Kind = iota
	KindMesh
	KindPoints
	KindLineSegments
	KindCamera
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindMesh:
		return "mesh"
	case KindPoints:
		return "points"
	case KindLineSegments:
		return "lines"
	case KindCamera:
		return "camera"
	default:
		return "unknown"
	}
}

// Node is one element of the scene graph.
type Node struct {
	Name      string
	Kind      Kind
	Pose      Pose
	Visible   bool
	Billboard bool // always faces the camera
	Geometry  *Geometry
	Material  *Material

	parent   *Node
	children []*Node
}

// NewNode returns a visible node with an identity pose.
func NewNode(name string, kind Kind) *Node {
	return &Node{
		Name:    name,
		Kind:    kind,
		Pose:    IdentityPose(),
		Visible: true,
	}
}

// New returns an empty scene root.
func New() *Node {
	return NewNode("scene", KindGroup)
}

// NewGroup returns an empty group node.
func NewGroup(name string) *Node {
	return NewNode(name, KindGroup)
}

// NewCamera returns a camera node looking down -Z.
func NewCamera(name string) *Node {
	return NewNode(name, KindCamera)
}

// NewMesh returns a node of the given drawable kind.
func NewMesh(name string, kind Kind, geo *Geometry, mat *Material) *Node {
	n := NewNode(name, kind)
	n.Geometry = geo
	n.Material = mat
	return n
}

// Add attaches child to n, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child == nil || child == n {
		return
	}
	if child.parent != nil {
		child.parent.Remove(child)
	}
	child.parent = n
	n.children = append(n.children, child)
}

// Remove detaches child from n. It is a no-op if child is not a direct child.
func (n *Node) Remove(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// Children returns the direct children. The slice must not be modified.
func (n *Node) Children() []*Node {
	return n.children
}

// Parent returns the parent node or nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Walk visits n and its descendants depth first until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// FindByName returns the first node in the subtree with the given name.
func (n *Node) FindByName(name string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if c.Name == name {
			found = c
			return false
		}
		return true
	})
	return found
}

// LocalToWorld transforms a point in n's local space into world space.
func (n *Node) LocalToWorld(v math32.Vector3) math32.Vector3 {
	for c := n; c != nil; c = c.parent {
		v = c.Pose.Apply(v)
	}
	return v
}

// WorldPosition returns the world-space origin of n.
func (n *Node) WorldPosition() math32.Vector3 {
	return n.LocalToWorld(math32.Vector3{})
}

// WorldDirection rotates a local direction into world space.
func (n *Node) WorldDirection(dir math32.Vector3) math32.Vector3 {
	for c := n; c != nil; c = c.parent {
		dir = c.Pose.Rotate(dir)
	}
	return dir
}

// Forward returns the normalized world-space viewing direction (local -Z).
func (n *Node) Forward() math32.Vector3 {
	return n.WorldDirection(math32.Vec3(0, 0, -1)).Normal()
}

// WorldBox returns the world-space box enclosing the geometry of n and all
// of its descendants. Hidden nodes are included. The result is empty when the
// subtree carries no geometry.
func (n *Node) WorldBox() math32.Box3 {
	bb := math32.B3Empty()
	n.Walk(func(c *Node) bool {
		if c.Geometry == nil {
			return true
		}
		local := c.Geometry.BoundingBox()
		if local.IsEmpty() {
			return true
		}
		for _, corner := range boxCorners(local) {
			bb.ExpandByPoint(c.LocalToWorld(corner))
		}
		return true
	})
	return bb
}

func boxCorners(b math32.Box3) [8]math32.Vector3 {
	return [8]math32.Vector3{
		math32.Vec3(b.Min.X, b.Min.Y, b.Min.Z),
		math32.Vec3(b.Min.X, b.Min.Y, b.Max.Z),
		math32.Vec3(b.Min.X, b.Max.Y, b.Min.Z),
		math32.Vec3(b.Max.X, b.Min.Y, b.Min.Z),
		math32.Vec3(b.Max.X, b.Max.Y, b.Max.Z),
		math32.Vec3(b.Max.X, b.Max.Y, b.Min.Z),
		math32.Vec3(b.Max.X, b.Min.Y, b.Max.Z),
		math32.Vec3(b.Min.X, b.Max.Y, b.Max.Z),
	}
}
