package scene

import "cogentcore.org/core/math32"

// Pose is the local transform of a node relative to its parent.
type Pose struct {
	Pos   math32.Vector3
	Quat  math32.Quat
	Scale math32.Vector3
}

// IdentityPose returns a pose at the origin with no rotation and unit scale.
func IdentityPose() Pose {
	var p Pose
	p.Defaults()
	return p
}

// Defaults fills in an identity rotation and unit scale when unset.
func (p *Pose) Defaults() {
	if p.Quat.IsNil() {
		p.Quat.SetIdentity()
	}
	if p.Scale == (math32.Vector3{}) {
		p.Scale = math32.Vec3(1, 1, 1)
	}
}

// Apply transforms a point from this pose's local space into its parent space.
func (p Pose) Apply(v math32.Vector3) math32.Vector3 {
	return v.Mul(p.Scale).MulQuat(p.Quat).Add(p.Pos)
}

// Rotate applies only the rotation part of the pose.
func (p Pose) Rotate(v math32.Vector3) math32.Vector3 {
	return v.MulQuat(p.Quat)
}

// SetEulerRotation sets the rotation from Euler angles in radians.
func (p *Pose) SetEulerRotation(euler math32.Vector3) {
	p.Quat.SetFromEuler(euler)
}

// SetUniformScale sets the same scale factor on all three axes.
func (p *Pose) SetUniformScale(s float32) {
	p.Scale = math32.Vec3(s, s, s)
}
