package transfer

// CommandKind discriminates command intents.
type CommandKind string

const (
	// KindCancelTransfer requests cancellation of a transfer process.
	KindCancelTransfer CommandKind = "cancel"

	// KindDeprovision requests teardown of a transfer's provisioned
	// resources.
	KindDeprovision CommandKind = "deprovision"
)

// Command is an explicit, replayable intent to mutate a TransferProcess.
// Commands are immutable and delivered at least once; idempotency is the
// handler's responsibility, achieved by re-checking the state machine before
// mutating.
type Command interface {
	// Kind selects the handler.
	Kind() CommandKind

	// TargetID is the id of the transfer process to mutate.
	TargetID() string
}

// CancelTransferCommand requests that a transfer process be cancelled.
type CancelTransferCommand struct {
	// TransferProcessID is the target process.
	TransferProcessID string `json:"transferProcessId"`
}

// Kind implements Command.
func (CancelTransferCommand) Kind() CommandKind { return KindCancelTransfer }

// TargetID implements Command.
func (c CancelTransferCommand) TargetID() string { return c.TransferProcessID }

// DeprovisionRequest requests teardown of a transfer's provisioned
// resources.
type DeprovisionRequest struct {
	// TransferProcessID is the target process.
	TransferProcessID string `json:"transferProcessId"`
}

// Kind implements Command.
func (DeprovisionRequest) Kind() CommandKind { return KindDeprovision }

// TargetID implements Command.
func (d DeprovisionRequest) TargetID() string { return d.TransferProcessID }
