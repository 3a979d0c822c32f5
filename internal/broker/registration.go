package broker

// PubReg is a publisher registration dequeued by a worker.
type PubReg struct {
	PipePath string
	BoxName  string
}

// SubReg is a subscriber registration dequeued by a worker.
type SubReg struct {
	PipePath string
	BoxName  string
}

// CreateReq is a box-create registration dequeued by a worker.
type CreateReq struct {
	PipePath string
	BoxName  string
}

// RemoveReq is a box-remove registration dequeued by a worker.
type RemoveReq struct {
	PipePath string
	BoxName  string
}

// ListReq is a box-list registration dequeued by a worker. It carries no
// box name, per the wire protocol's short list-request frame.
type ListReq struct {
	PipePath string
}
