package rmw

import (
	"sort"
	"strings"
)

// paramSeparator splits a parameter name into nesting levels for the
// list service's depth filtering.
const paramSeparator = "."

// ParameterServer exposes a node's parameter store through the six
// standard parameter services, all private to the node. Requests are
// processed on the caller's goroutine through TryProcessOnce or a
// Selector, never concurrently with the node's own handlers.
type ParameterServer struct {
	node     *Node
	params   *Parameters
	onUpdate func(*Parameters, []string)

	listSrv     *Server[*ListParametersRequest, *ListParametersResponse]
	getSrv      *Server[*GetParametersRequest, *GetParametersResponse]
	setSrv      *Server[*SetParametersRequest, *SetParametersResponse]
	setAtomSrv  *Server[*SetParametersAtomicallyRequest, *SetParametersAtomicallyResponse]
	describeSrv *Server[*DescribeParametersRequest, *DescribeParametersResponse]
	typesSrv    *Server[*GetParameterTypesRequest, *GetParameterTypesResponse]
}

// NewParameterServer creates the six parameter services for the node
// and seeds the store from the node's command-line and file parameter
// assignments. Assignments that cannot be converted are logged and
// skipped.
func NewParameterServer(node *Node) (*ParameterServer, error) {
	params := NewParameters()
	assignments, err := node.DeclaredParameters()
	if err != nil {
		return nil, err
	}
	for _, a := range assignments {
		value, err := ValueFromAny(a.Value)
		if err != nil {
			node.logger.Warn("skipping initial parameter", "name", a.Name, "error", err)
			continue
		}
		if err := params.Set(a.Name, value); err != nil {
			node.logger.Warn("skipping initial parameter", "name", a.Name, "error", err)
		}
	}
	// Initial assignments are declarations, not external updates.
	params.TakeUpdated()

	ps := &ParameterServer{node: node, params: params}
	if ps.listSrv, err = NewServer[*ListParametersRequest, *ListParametersResponse](
		node, "~/list_parameters", ListParametersType, nil); err != nil {
		return nil, err
	}
	if ps.getSrv, err = NewServer[*GetParametersRequest, *GetParametersResponse](
		node, "~/get_parameters", GetParametersType, nil); err != nil {
		ps.closeServers()
		return nil, err
	}
	if ps.setSrv, err = NewServer[*SetParametersRequest, *SetParametersResponse](
		node, "~/set_parameters", SetParametersType, nil); err != nil {
		ps.closeServers()
		return nil, err
	}
	if ps.setAtomSrv, err = NewServer[*SetParametersAtomicallyRequest, *SetParametersAtomicallyResponse](
		node, "~/set_parameters_atomically", SetParametersAtomicallyType, nil); err != nil {
		ps.closeServers()
		return nil, err
	}
	if ps.describeSrv, err = NewServer[*DescribeParametersRequest, *DescribeParametersResponse](
		node, "~/describe_parameters", DescribeParametersType, nil); err != nil {
		ps.closeServers()
		return nil, err
	}
	if ps.typesSrv, err = NewServer[*GetParameterTypesRequest, *GetParameterTypesResponse](
		node, "~/get_parameter_types", GetParameterTypesType, nil); err != nil {
		ps.closeServers()
		return nil, err
	}
	return ps, nil
}

// Params returns the underlying store. The node reads and declares its
// parameters through it and drains external updates with TakeUpdated.
func (ps *ParameterServer) Params() *Parameters { return ps.params }

// OnUpdate registers a handler invoked after a set request changes the
// store, with the store and the names just updated. While a handler is
// registered it owns the update tracking; without one the node drains
// updates itself through Params().TakeUpdated.
func (ps *ParameterServer) OnUpdate(fn func(params *Parameters, updated []string)) {
	ps.onUpdate = fn
}

func (ps *ParameterServer) notifyUpdated() {
	if ps.onUpdate == nil {
		return
	}
	if names := ps.params.TakeUpdated(); len(names) > 0 {
		ps.onUpdate(ps.params, names)
	}
}

// TryProcessOnce answers at most one pending request across the six
// services. It reports whether a request was processed.
func (ps *ParameterServer) TryProcessOnce() (bool, error) {
	if req, ok, err := ps.listSrv.TakeRequest(); err != nil || ok {
		if err != nil {
			return false, err
		}
		return true, req.Send(ps.handleList(req.Request))
	}
	if req, ok, err := ps.getSrv.TakeRequest(); err != nil || ok {
		if err != nil {
			return false, err
		}
		return true, req.Send(ps.handleGet(req.Request))
	}
	if req, ok, err := ps.setSrv.TakeRequest(); err != nil || ok {
		if err != nil {
			return false, err
		}
		return true, req.Send(ps.handleSet(req.Request))
	}
	if req, ok, err := ps.setAtomSrv.TakeRequest(); err != nil || ok {
		if err != nil {
			return false, err
		}
		return true, req.Send(ps.handleSetAtomically(req.Request))
	}
	if req, ok, err := ps.describeSrv.TakeRequest(); err != nil || ok {
		if err != nil {
			return false, err
		}
		return true, req.Send(ps.handleDescribe(req.Request))
	}
	if req, ok, err := ps.typesSrv.TakeRequest(); err != nil || ok {
		if err != nil {
			return false, err
		}
		return true, req.Send(ps.handleTypes(req.Request))
	}
	return false, nil
}

// AddToSelector registers all six services on the selector. It returns
// false if the selector already carries a parameter server or any of the
// service gids is already registered.
func (ps *ParameterServer) AddToSelector(sel *Selector) bool {
	if sel.paramServer {
		return false
	}
	sel.paramServer = true
	ok := AddServer(sel, ps.listSrv, func(r *ServiceRequest[*ListParametersRequest, *ListParametersResponse]) error {
		return r.Send(ps.handleList(r.Request))
	})
	ok = AddServer(sel, ps.getSrv, func(r *ServiceRequest[*GetParametersRequest, *GetParametersResponse]) error {
		return r.Send(ps.handleGet(r.Request))
	}) && ok
	ok = AddServer(sel, ps.setSrv, func(r *ServiceRequest[*SetParametersRequest, *SetParametersResponse]) error {
		return r.Send(ps.handleSet(r.Request))
	}) && ok
	ok = AddServer(sel, ps.setAtomSrv, func(r *ServiceRequest[*SetParametersAtomicallyRequest, *SetParametersAtomicallyResponse]) error {
		return r.Send(ps.handleSetAtomically(r.Request))
	}) && ok
	ok = AddServer(sel, ps.describeSrv, func(r *ServiceRequest[*DescribeParametersRequest, *DescribeParametersResponse]) error {
		return r.Send(ps.handleDescribe(r.Request))
	}) && ok
	ok = AddServer(sel, ps.typesSrv, func(r *ServiceRequest[*GetParameterTypesRequest, *GetParameterTypesResponse]) error {
		return r.Send(ps.handleTypes(r.Request))
	}) && ok
	return ok
}

func (ps *ParameterServer) handleList(req *ListParametersRequest) *ListParametersResponse {
	res := &ListParametersResponse{Names: []string{}, Prefixes: []string{}}
	prefixSet := make(map[string]struct{})
	for _, name := range ps.params.Names() {
		if !listMatch(name, req.Prefixes, req.Depth) {
			continue
		}
		res.Names = append(res.Names, name)
		if i := strings.LastIndex(name, paramSeparator); i > 0 {
			prefixSet[name[:i]] = struct{}{}
		}
	}
	for prefix := range prefixSet {
		res.Prefixes = append(res.Prefixes, prefix)
	}
	sort.Strings(res.Prefixes)
	return res
}

// listMatch applies the list service filter: with no prefixes a name
// matches when its nesting does not exceed depth (0 means unlimited);
// with prefixes it must sit under one of them within depth levels.
func listMatch(name string, prefixes []string, depth uint64) bool {
	levels := func(s string) uint64 {
		return uint64(strings.Count(s, paramSeparator))
	}
	if len(prefixes) == 0 {
		return depth == 0 || levels(name) < depth
	}
	for _, prefix := range prefixes {
		if name == prefix {
			return true
		}
		if strings.HasPrefix(name, prefix+paramSeparator) {
			if depth == 0 || levels(name)-levels(prefix) <= depth {
				return true
			}
		}
	}
	return false
}

func (ps *ParameterServer) handleGet(req *GetParametersRequest) *GetParametersResponse {
	res := &GetParametersResponse{Values: make([]ParameterValue, len(req.Names))}
	for i, name := range req.Names {
		if param, ok := ps.params.Get(name); ok {
			res.Values[i] = param.Value
		} else {
			res.Values[i] = NotSetValue()
		}
	}
	return res
}

func (ps *ParameterServer) handleSet(req *SetParametersRequest) *SetParametersResponse {
	res := &SetParametersResponse{Results: make([]SetParametersResult, len(req.Parameters))}
	for i, p := range req.Parameters {
		if err := ps.params.Set(p.Name, p.Value); err != nil {
			res.Results[i] = SetParametersResult{Successful: false, Reason: err.Error()}
		} else {
			res.Results[i] = SetParametersResult{Successful: true}
		}
	}
	ps.notifyUpdated()
	return res
}

func (ps *ParameterServer) handleSetAtomically(req *SetParametersAtomicallyRequest) *SetParametersAtomicallyResponse {
	values := make(map[string]ParameterValue, len(req.Parameters))
	for _, p := range req.Parameters {
		values[p.Name] = p.Value
	}
	if err := ps.params.SetAtomically(values); err != nil {
		return &SetParametersAtomicallyResponse{
			Result: SetParametersResult{Successful: false, Reason: err.Error()},
		}
	}
	ps.notifyUpdated()
	return &SetParametersAtomicallyResponse{Result: SetParametersResult{Successful: true}}
}

func (ps *ParameterServer) handleDescribe(req *DescribeParametersRequest) *DescribeParametersResponse {
	res := &DescribeParametersResponse{Descriptors: make([]Descriptor, len(req.Names))}
	for i, name := range req.Names {
		if param, ok := ps.params.Get(name); ok {
			res.Descriptors[i] = param.Descriptor
		} else {
			res.Descriptors[i] = Descriptor{Name: name, Type: TypeNotSet}
		}
	}
	return res
}

func (ps *ParameterServer) handleTypes(req *GetParameterTypesRequest) *GetParameterTypesResponse {
	res := &GetParameterTypesResponse{Types: make([]ParameterType, len(req.Names))}
	for i, name := range req.Names {
		if param, ok := ps.params.Get(name); ok {
			res.Types[i] = param.Value.Type
		} else {
			res.Types[i] = TypeNotSet
		}
	}
	return res
}

func (ps *ParameterServer) closeServers() {
	if ps.listSrv != nil {
		_ = ps.listSrv.Close()
	}
	if ps.getSrv != nil {
		_ = ps.getSrv.Close()
	}
	if ps.setSrv != nil {
		_ = ps.setSrv.Close()
	}
	if ps.setAtomSrv != nil {
		_ = ps.setAtomSrv.Close()
	}
	if ps.describeSrv != nil {
		_ = ps.describeSrv.Close()
	}
	if ps.typesSrv != nil {
		_ = ps.typesSrv.Close()
	}
}

// Close destroys the six services. Closing twice is a no-op.
func (ps *ParameterServer) Close() error {
	ps.closeServers()
	return nil
}
