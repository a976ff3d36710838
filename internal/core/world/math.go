package world

// Vector is a 3D vector in world units.
type Vector struct {
	X, Y, Z float64
}

// ZeroVector is the origin.
var ZeroVector = Vector{}

// IsZero reports whether all components are zero.
func (v Vector) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// Add returns v+o.
func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Quat is a rotation quaternion.
type Quat struct {
	X, Y, Z, W float64
}

// IdentityQuat is the zero rotation.
var IdentityQuat = Quat{W: 1}

// Transform places an object in space.
type Transform struct {
	Location Vector
	Rotation Quat
	Scale    Vector
}

// IdentityTransform has no translation, no rotation and unit scale.
var IdentityTransform = Transform{
	Rotation: IdentityQuat,
	Scale:    Vector{X: 1, Y: 1, Z: 1},
}
