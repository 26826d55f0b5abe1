// Package ports defines the boundary interfaces of the engine: the
// persistence collaborator and the analysis collaborator. Adapters under
// pkg/adapters implement them; the engine core depends only on these
// interfaces.
package ports
