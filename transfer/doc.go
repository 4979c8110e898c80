// Package transfer defines the domain model of the transfer orchestration
// engine: the TransferProcess aggregate and its state machine, data
// source/destination addressing, the resource definition and provisioned
// resource variants, externally submittable commands, and the typed error
// taxonomy shared by the service façade and the asynchronous pipelines.
//
// The package is intentionally free of infrastructure concerns. Stores,
// provisioners, data pipelines and cloud bindings live in sibling packages
// and depend on the types declared here.
package transfer
