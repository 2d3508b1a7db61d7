package types

// Response codes returned to the consensus engine. Zero is success.
const (
	CodeTypeOK uint32 = 0

	CodeTypeIntegrityCheckFailed uint32 = 1
	CodeTypeExecutionFailed      uint32 = 2
	CodeTypeOverloaded           uint32 = 3

	CodeTypeQueryNotImplemented uint32 = 1
)
