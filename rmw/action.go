package rmw

import "github.com/jazi007/oxidros/errors"

// ActionClient is a placeholder for the action protocol, which this
// transport binding does not implement.
type ActionClient struct{}

// ActionServer is a placeholder for the action protocol, which this
// transport binding does not implement.
type ActionServer struct{}

// NewActionClient always fails with ErrNotImplemented.
func NewActionClient(node *Node, name string) (*ActionClient, error) {
	_ = node
	_ = name
	return nil, errors.Wrap(errors.ErrNotImplemented, "ActionClient", "NewActionClient", "create action client")
}

// NewActionServer always fails with ErrNotImplemented.
func NewActionServer(node *Node, name string) (*ActionServer, error) {
	_ = node
	_ = name
	return nil, errors.Wrap(errors.ErrNotImplemented, "ActionServer", "NewActionServer", "create action server")
}

// CreateActionClient always fails with ErrNotImplemented.
func (n *Node) CreateActionClient(name string) (*ActionClient, error) {
	return NewActionClient(n, name)
}

// CreateActionServer always fails with ErrNotImplemented.
func (n *Node) CreateActionServer(name string) (*ActionServer, error) {
	return NewActionServer(n, name)
}
