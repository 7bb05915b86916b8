package rmw

import "github.com/jazi007/oxidros/message"

// Parameter service interface types. The hashes identify the interface
// revision on the wire; both peers must agree on them for the service
// expressions to match.
var (
	ListParametersType = ServiceType{
		Name: "rcl_interfaces::srv::dds_::ListParameters_",
		Hash: "RIHS01_9c67f8bdc0f0f4e5bd22a4cf6e7d0b26e7f3f1a6b0d23e2dbd0a0f2c2a1e5a90",
	}
	GetParametersType = ServiceType{
		Name: "rcl_interfaces::srv::dds_::GetParameters_",
		Hash: "RIHS01_1a8bbfb9c43be977d15b5f1c0cb6e68f02e0b6a72c5bfc7eb3f682d9b58cb9d2",
	}
	SetParametersType = ServiceType{
		Name: "rcl_interfaces::srv::dds_::SetParameters_",
		Hash: "RIHS01_6e9e21d1cfa1f63e7a9b2b48c1dbcbd7fa6e5c59f28e427cc6e159e24f0f2f7c",
	}
	SetParametersAtomicallyType = ServiceType{
		Name: "rcl_interfaces::srv::dds_::SetParametersAtomically_",
		Hash: "RIHS01_2cf55958c4cb22b2f38cace1d8ba3c9f9c2e4d73820cf4a31ba0e9b24e6ee1aa",
	}
	DescribeParametersType = ServiceType{
		Name: "rcl_interfaces::srv::dds_::DescribeParameters_",
		Hash: "RIHS01_c96a7fb0d52714ed2b2a58f5a0b93e214a80a5e23d2e0b7b2f6c6d3b66cc7ef1",
	}
	GetParameterTypesType = ServiceType{
		Name: "rcl_interfaces::srv::dds_::GetParameterTypes_",
		Hash: "RIHS01_d3f2c9c21c8de47e0ef48cbf29ca4cf2d60ba1ec2ba2b7a549dd7c79b4f7de55",
	}
)

// ParameterMsg is a named parameter value as carried by the set and
// list services.
type ParameterMsg struct {
	Name  string         `json:"name"`
	Value ParameterValue `json:"value"`
}

// SetParametersResult reports the outcome of one set attempt.
type SetParametersResult struct {
	Successful bool   `json:"successful"`
	Reason     string `json:"reason,omitempty"`
}

// ListParametersRequest asks for declared parameter names matching the
// given prefixes. Empty prefixes means all names; Depth limits how many
// name separators below a prefix are included, 0 meaning unlimited.
type ListParametersRequest struct {
	Prefixes []string `json:"prefixes"`
	Depth    uint64   `json:"depth"`
}

// ListParametersResponse carries the matching names and the prefixes
// found one level below them.
type ListParametersResponse struct {
	Names    []string `json:"names"`
	Prefixes []string `json:"prefixes"`
}

// GetParametersRequest asks for the values of the named parameters.
type GetParametersRequest struct {
	Names []string `json:"names"`
}

// GetParametersResponse returns one value per requested name, NotSet
// for undeclared names.
type GetParametersResponse struct {
	Values []ParameterValue `json:"values"`
}

// SetParametersRequest assigns the given parameters independently.
type SetParametersRequest struct {
	Parameters []ParameterMsg `json:"parameters"`
}

// SetParametersResponse returns one result per assignment.
type SetParametersResponse struct {
	Results []SetParametersResult `json:"results"`
}

// SetParametersAtomicallyRequest assigns the given parameters as one
// transaction.
type SetParametersAtomicallyRequest struct {
	Parameters []ParameterMsg `json:"parameters"`
}

// SetParametersAtomicallyResponse reports the transaction outcome.
type SetParametersAtomicallyResponse struct {
	Result SetParametersResult `json:"result"`
}

// DescribeParametersRequest asks for the descriptors of the named
// parameters.
type DescribeParametersRequest struct {
	Names []string `json:"names"`
}

// DescribeParametersResponse returns one descriptor per requested name.
type DescribeParametersResponse struct {
	Descriptors []Descriptor `json:"descriptors"`
}

// GetParameterTypesRequest asks for the type ids of the named
// parameters.
type GetParameterTypesRequest struct {
	Names []string `json:"names"`
}

// GetParameterTypesResponse returns one type id per requested name.
type GetParameterTypesResponse struct {
	Types []ParameterType `json:"types"`
}

func (*ListParametersRequest) TypeName() string           { return ListParametersType.Name }
func (*ListParametersRequest) TypeHash() string           { return ListParametersType.Hash }
func (m *ListParametersRequest) Marshal() ([]byte, error) { return message.MarshalJSON(m) }
func (m *ListParametersRequest) Unmarshal(data []byte) error {
	return message.UnmarshalJSON(data, m)
}

func (*ListParametersResponse) TypeName() string           { return ListParametersType.Name }
func (*ListParametersResponse) TypeHash() string           { return ListParametersType.Hash }
func (m *ListParametersResponse) Marshal() ([]byte, error) { return message.MarshalJSON(m) }
func (m *ListParametersResponse) Unmarshal(data []byte) error {
	return message.UnmarshalJSON(data, m)
}

func (*GetParametersRequest) TypeName() string           { return GetParametersType.Name }
func (*GetParametersRequest) TypeHash() string           { return GetParametersType.Hash }
func (m *GetParametersRequest) Marshal() ([]byte, error) { return message.MarshalJSON(m) }
func (m *GetParametersRequest) Unmarshal(data []byte) error {
	return message.UnmarshalJSON(data, m)
}

func (*GetParametersResponse) TypeName() string           { return GetParametersType.Name }
func (*GetParametersResponse) TypeHash() string           { return GetParametersType.Hash }
func (m *GetParametersResponse) Marshal() ([]byte, error) { return message.MarshalJSON(m) }
func (m *GetParametersResponse) Unmarshal(data []byte) error {
	return message.UnmarshalJSON(data, m)
}

func (*SetParametersRequest) TypeName() string           { return SetParametersType.Name }
func (*SetParametersRequest) TypeHash() string           { return SetParametersType.Hash }
func (m *SetParametersRequest) Marshal() ([]byte, error) { return message.MarshalJSON(m) }
func (m *SetParametersRequest) Unmarshal(data []byte) error {
	return message.UnmarshalJSON(data, m)
}

func (*SetParametersResponse) TypeName() string           { return SetParametersType.Name }
func (*SetParametersResponse) TypeHash() string           { return SetParametersType.Hash }
func (m *SetParametersResponse) Marshal() ([]byte, error) { return message.MarshalJSON(m) }
func (m *SetParametersResponse) Unmarshal(data []byte) error {
	return message.UnmarshalJSON(data, m)
}

func (*SetParametersAtomicallyRequest) TypeName() string { return SetParametersAtomicallyType.Name }
func (*SetParametersAtomicallyRequest) TypeHash() string { return SetParametersAtomicallyType.Hash }
func (m *SetParametersAtomicallyRequest) Marshal() ([]byte, error) {
	return message.MarshalJSON(m)
}
func (m *SetParametersAtomicallyRequest) Unmarshal(data []byte) error {
	return message.UnmarshalJSON(data, m)
}

func (*SetParametersAtomicallyResponse) TypeName() string { return SetParametersAtomicallyType.Name }
func (*SetParametersAtomicallyResponse) TypeHash() string { return SetParametersAtomicallyType.Hash }
func (m *SetParametersAtomicallyResponse) Marshal() ([]byte, error) {
	return message.MarshalJSON(m)
}
func (m *SetParametersAtomicallyResponse) Unmarshal(data []byte) error {
	return message.UnmarshalJSON(data, m)
}

func (*DescribeParametersRequest) TypeName() string           { return DescribeParametersType.Name }
func (*DescribeParametersRequest) TypeHash() string           { return DescribeParametersType.Hash }
func (m *DescribeParametersRequest) Marshal() ([]byte, error) { return message.MarshalJSON(m) }
func (m *DescribeParametersRequest) Unmarshal(data []byte) error {
	return message.UnmarshalJSON(data, m)
}

func (*DescribeParametersResponse) TypeName() string           { return DescribeParametersType.Name }
func (*DescribeParametersResponse) TypeHash() string           { return DescribeParametersType.Hash }
func (m *DescribeParametersResponse) Marshal() ([]byte, error) { return message.MarshalJSON(m) }
func (m *DescribeParametersResponse) Unmarshal(data []byte) error {
	return message.UnmarshalJSON(data, m)
}

func (*GetParameterTypesRequest) TypeName() string           { return GetParameterTypesType.Name }
func (*GetParameterTypesRequest) TypeHash() string           { return GetParameterTypesType.Hash }
func (m *GetParameterTypesRequest) Marshal() ([]byte, error) { return message.MarshalJSON(m) }
func (m *GetParameterTypesRequest) Unmarshal(data []byte) error {
	return message.UnmarshalJSON(data, m)
}

func (*GetParameterTypesResponse) TypeName() string           { return GetParameterTypesType.Name }
func (*GetParameterTypesResponse) TypeHash() string           { return GetParameterTypesType.Hash }
func (m *GetParameterTypesResponse) Marshal() ([]byte, error) { return message.MarshalJSON(m) }
func (m *GetParameterTypesResponse) Unmarshal(data []byte) error {
	return message.UnmarshalJSON(data, m)
}
