package asset

import (
	"errors"
	"fmt"

	"cogentcore.org/core/math32"
	"github.com/qmuntal/gltf"

	"vibeverse/internal/scene"
)

// MaxNodeDepth bounds the node hierarchy walked for one asset.
const MaxNodeDepth = 64

var errNodeDepth = errors.New("asset: node hierarchy too deep")

// BuildScene converts the default scene of doc into a scene graph. The
// returned group holds one child per root node. Meshes carry only their
// bounds, which is all avatar fitting needs.
func BuildScene(doc *gltf.Document) (*scene.Node, error) {
	root := scene.NewGroup("gltf-scene")

	roots := rootNodes(doc)
	for _, idx := range roots {
		n, err := buildNode(doc, idx, 0)
		if err != nil {
			return nil, err
		}
		root.Add(n)
	}
	return root, nil
}

// rootNodes returns the node indices of the default scene, the first
// scene when none is marked, or every parentless node for scene-less files.
func rootNodes(doc *gltf.Document) []int {
	if len(doc.Scenes) > 0 {
		i := 0
		if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
			i = int(*doc.Scene)
		}
		out := make([]int, 0, len(doc.Scenes[i].Nodes))
		for _, n := range doc.Scenes[i].Nodes {
			out = append(out, int(n))
		}
		return out
	}

	child := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			child[int(c)] = true
		}
	}
	var out []int
	for i := range doc.Nodes {
		if !child[i] {
			out = append(out, i)
		}
	}
	return out
}

func buildNode(doc *gltf.Document, idx, depth int) (*scene.Node, error) {
	if depth > MaxNodeDepth {
		return nil, errNodeDepth
	}
	if idx < 0 || idx >= len(doc.Nodes) {
		return nil, fmt.Errorf("asset: node index %d out of range", idx)
	}
	src := doc.Nodes[idx]

	name := src.Name
	if name == "" {
		name = fmt.Sprintf("node%d", idx)
	}
	n := scene.NewGroup(name)

	t := src.TranslationOrDefault()
	r := src.RotationOrDefault()
	s := src.ScaleOrDefault()
	n.Pose.Pos = math32.Vec3(float32(t[0]), float32(t[1]), float32(t[2]))
	n.Pose.Quat = math32.Quat{X: float32(r[0]), Y: float32(r[1]), Z: float32(r[2]), W: float32(r[3])}
	n.Pose.Scale = math32.Vec3(float32(s[0]), float32(s[1]), float32(s[2]))

	if src.Mesh != nil {
		if b, ok := meshBounds(doc, int(*src.Mesh)); ok {
			n.Kind = scene.KindMesh
			n.Geometry = &scene.Geometry{Bounds: &b}
		}
	}

	for _, c := range src.Children {
		child, err := buildNode(doc, int(c), depth+1)
		if err != nil {
			return nil, err
		}
		n.Add(child)
	}
	return n, nil
}

// meshBounds unions the POSITION min/max of every primitive.
func meshBounds(doc *gltf.Document, idx int) (math32.Box3, bool) {
	if idx < 0 || idx >= len(doc.Meshes) {
		return math32.Box3{}, false
	}
	bb := math32.B3Empty()
	for _, prim := range doc.Meshes[idx].Primitives {
		ai, ok := prim.Attributes[gltf.POSITION]
		if !ok || int(ai) >= len(doc.Accessors) {
			continue
		}
		acc := doc.Accessors[ai]
		lo, hi := vec3(acc.Min), vec3(acc.Max)
		if lo == nil || hi == nil {
			continue
		}
		bb.ExpandByPoint(*lo)
		bb.ExpandByPoint(*hi)
	}
	return bb, !bb.IsEmpty()
}

func vec3[T float32 | float64](v []T) *math32.Vector3 {
	if len(v) < 3 {
		return nil
	}
	out := math32.Vec3(float32(v[0]), float32(v[1]), float32(v[2]))
	return &out
}
