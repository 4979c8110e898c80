package provision

import "github.com/agri-gaia/DataSpaceConnector/transfer"

// Generator produces the resource definition a transfer process needs on
// the consumer side, or reports that the process is not its concern. One
// generator is registered per destination binding.
type Generator interface {
	// Generate returns the definition for the process, or false when the
	// request's destination is handled by a different binding.
	Generate(process *transfer.TransferProcess, policy transfer.Policy) (transfer.ResourceDefinition, bool)
}

// ManifestGenerator assembles the resource manifest of a transfer process
// from the registered generators. Requests whose destination no generator
// claims yield an empty manifest, meaning nothing needs provisioning.
type ManifestGenerator struct {
	generators []Generator
}

// NewManifestGenerator creates an empty manifest generator.
func NewManifestGenerator() *ManifestGenerator {
	return &ManifestGenerator{}
}

// Register adds a generator during wiring.
func (g *ManifestGenerator) Register(generator Generator) {
	g.generators = append(g.generators, generator)
}

// GenerateConsumerManifest builds the manifest for a consumer-side process.
// Unmanaged requests (the destination already exists) always produce an
// empty manifest.
func (g *ManifestGenerator) GenerateConsumerManifest(process *transfer.TransferProcess, policy transfer.Policy) []transfer.ResourceDefinition {
	if !process.DataRequest.ManagedResources {
		return nil
	}
	var manifest []transfer.ResourceDefinition
	for _, generator := range g.generators {
		if definition, ok := generator.Generate(process, policy); ok {
			manifest = append(manifest, definition)
		}
	}
	return manifest
}
