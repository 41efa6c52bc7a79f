// Package planets holds the fixed seed list of shared planet stubs. The relay
// never simulates planets; the stubs only give clients a consistent baseline
// to render before their own procedural generation takes over.
package planets

import "planetfall/relay/internal/protocol"

var seed = []protocol.PlanetStub{
	{ID: "planet-aurora", Position: protocol.Vec3{X: 0, Y: 0, Z: -600}, Size: 120, Type: "ice"},
	{ID: "planet-cinder", Position: protocol.Vec3{X: 900, Y: 150, Z: 300}, Size: 80, Type: "volcanic"},
	{ID: "planet-meridian", Position: protocol.Vec3{X: -700, Y: -200, Z: 450}, Size: 150, Type: "terran"},
	{ID: "planet-halcyon", Position: protocol.Vec3{X: 400, Y: 500, Z: -900}, Size: 60, Type: "desert"},
	{ID: "planet-umbra", Position: protocol.Vec3{X: -1100, Y: 300, Z: -350}, Size: 100, Type: "gas"},
}

// Seed returns a defensive copy of the shared planet stub list.
func Seed() []protocol.PlanetStub {
	out := make([]protocol.PlanetStub, len(seed))
	copy(out, seed)
	return out
}
