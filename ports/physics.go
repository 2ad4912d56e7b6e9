package ports

import (
	"context"

	"battforge/domain/telemetry"
)

// PhysicsReferencePort generates an ideal discharge trace from the physics
// twin collaborator for the given chemistry and operating point. Strictly
// optional: failures leave the safety scorer on its stability-only path.
type PhysicsReferencePort interface {
	GenerateReference(ctx context.Context, chemistry string, cRate, temperatureC float64) (*telemetry.ReferenceTrace, error)
}
