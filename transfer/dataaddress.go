package transfer

// KeyNameProperty is the well-known DataAddress property naming the vault
// entry that holds the credentials for the address.
const KeyNameProperty = "keyName"

// DataAddress describes one end of a data movement: a typed bag of
// properties interpreted by the matching source/sink binding.
type DataAddress struct {
	// Type discriminates the binding, e.g. "AmazonS3".
	Type string `json:"type"`

	// Properties holds binding-specific attributes such as region, bucket
	// or asset names.
	Properties map[string]string `json:"properties,omitempty"`
}

// Property returns the named property or the empty string.
func (a DataAddress) Property(name string) string {
	return a.Properties[name]
}

// KeyName returns the vault key holding the credentials for this address,
// or the empty string when credentials are embedded or absent.
func (a DataAddress) KeyName() string {
	return a.Properties[KeyNameProperty]
}

// Copy returns a deep copy of the address.
func (a DataAddress) Copy() DataAddress {
	cp := a
	if a.Properties != nil {
		cp.Properties = make(map[string]string, len(a.Properties))
		for k, v := range a.Properties {
			cp.Properties[k] = v
		}
	}
	return cp
}

// DataRequest is the immutable description of a data movement request. It is
// produced by the upstream negotiation step and owned by the TransferProcess
// created for it.
type DataRequest struct {
	// ID identifies the request across connectors.
	ID string `json:"id"`

	// AssetID names the asset being transferred.
	AssetID string `json:"assetId"`

	// ContractID references the agreement authorizing the transfer.
	ContractID string `json:"contractId"`

	// ConnectorAddress is the callback address of the counterpart connector.
	ConnectorAddress string `json:"connectorAddress,omitempty"`

	// Protocol names the inter-connector protocol in use.
	Protocol string `json:"protocol,omitempty"`

	// SourceAddress locates the data to move. It may be empty on the
	// consumer side, where the provider resolves the source.
	SourceAddress DataAddress `json:"sourceAddress,omitempty"`

	// DataDestination locates where the data must land.
	DataDestination DataAddress `json:"dataDestination"`

	// ManagedResources is true when the connector provisions the
	// destination infrastructure itself.
	ManagedResources bool `json:"managedResources"`
}

// DestinationType returns the type of the data destination address.
func (r DataRequest) DestinationType() string {
	return r.DataDestination.Type
}

// Copy returns a deep copy of the request.
func (r DataRequest) Copy() DataRequest {
	cp := r
	cp.SourceAddress = r.SourceAddress.Copy()
	cp.DataDestination = r.DataDestination.Copy()
	return cp
}

// DataFlowRequest is the transient, per-run input of the data pipeline. It is
// rebuilt from the TransferProcess each time the pipeline executes and is
// never persisted.
type DataFlowRequest struct {
	// ID correlates the pipeline run, typically the transfer process id.
	ID string

	// ProcessID is the owning transfer process.
	ProcessID string

	// SourceAddress locates the data to read.
	SourceAddress DataAddress

	// DestinationAddress locates where parts are written.
	DestinationAddress DataAddress
}
