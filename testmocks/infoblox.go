package testmocks

import (
	"fmt"

	"github.com/netopsio/infoblox-sync/infoblox"
)

// MockObject is one network or container the mock grid already holds.
type MockObject struct {
	Ref      string
	Comment  string
	ExtAttrs map[string]string
}

// MockInfoblox implements infoblox.Client against in-memory state and
// records every mutation for assertions.
type MockInfoblox struct {
	Views      []string
	Networks   map[string]*MockObject // cidr -> object
	Containers map[string]*MockObject
	EADefs     []string

	NetworksCreated   []string
	ContainersCreated []string
	EADefsCreated     []string
	ExtAttrsUpdated   map[string]map[string]string // ref -> last attrs written

	// Error hooks. When set, the matching call returns the error instead
	// of mutating state.
	LookupError          error
	CreateNetworkError   map[string]error // keyed by cidr
	CreateContainerError map[string]error
	UpdateExtAttrsError  error
	ListEADefsError      error
}

func (m *MockInfoblox) GetNetworkViews() ([]string, error) {
	if len(m.Views) == 0 {
		return []string{"default"}, nil
	}
	return m.Views, nil
}

func (m *MockInfoblox) get(objects map[string]*MockObject, cidr string, state infoblox.ExistenceState) (*infoblox.ExistenceResult, error) {
	if m.LookupError != nil {
		return nil, m.LookupError
	}
	obj, ok := objects[cidr]
	if !ok {
		return nil, nil
	}
	return &infoblox.ExistenceResult{
		State:    state,
		Ref:      obj.Ref,
		Comment:  obj.Comment,
		ExtAttrs: obj.ExtAttrs,
	}, nil
}

func (m *MockInfoblox) GetNetworkByCIDR(cidr, view string) (*infoblox.ExistenceResult, error) {
	return m.get(m.Networks, cidr, infoblox.ExistsAsNetwork)
}

func (m *MockInfoblox) GetNetworkContainerByCIDR(cidr, view string) (*infoblox.ExistenceResult, error) {
	return m.get(m.Containers, cidr, infoblox.ExistsAsContainer)
}

func (m *MockInfoblox) CheckNetworkOrContainer(cidr, view string) (*infoblox.ExistenceResult, error) {
	network, err := m.GetNetworkByCIDR(cidr, view)
	if err != nil {
		return nil, err
	}
	if network != nil {
		return network, nil
	}
	container, err := m.GetNetworkContainerByCIDR(cidr, view)
	if err != nil {
		return nil, err
	}
	if container != nil {
		return container, nil
	}
	return &infoblox.ExistenceResult{State: infoblox.Absent}, nil
}

func copyAttrs(attrs map[string]string) map[string]string {
	copied := map[string]string{}
	for k, v := range attrs {
		copied[k] = v
	}
	return copied
}

func (m *MockInfoblox) create(objects map[string]*MockObject, kind, cidr, comment string, extattrs map[string]string) (string, error) {
	if _, ok := objects[cidr]; ok {
		return "", fmt.Errorf("The %s %s already exists", kind, cidr)
	}
	ref := fmt.Sprintf("%s/%s", kind, cidr)
	objects[cidr] = &MockObject{Ref: ref, Comment: comment, ExtAttrs: copyAttrs(extattrs)}
	return ref, nil
}

func (m *MockInfoblox) CreateNetwork(cidr, view, comment string, extattrs map[string]string) (string, error) {
	if err := m.CreateNetworkError[cidr]; err != nil {
		return "", err
	}
	if m.Networks == nil {
		m.Networks = map[string]*MockObject{}
	}
	ref, err := m.create(m.Networks, "network", cidr, comment, extattrs)
	if err != nil {
		return "", err
	}
	m.NetworksCreated = append(m.NetworksCreated, cidr)
	return ref, nil
}

func (m *MockInfoblox) CreateNetworkContainer(cidr, view, comment string, extattrs map[string]string) (string, error) {
	if err := m.CreateContainerError[cidr]; err != nil {
		return "", err
	}
	if m.Containers == nil {
		m.Containers = map[string]*MockObject{}
	}
	ref, err := m.create(m.Containers, "networkcontainer", cidr, comment, extattrs)
	if err != nil {
		return "", err
	}
	m.ContainersCreated = append(m.ContainersCreated, cidr)
	return ref, nil
}

func (m *MockInfoblox) UpdateExtAttrs(ref string, extattrs map[string]string) error {
	if m.UpdateExtAttrsError != nil {
		return m.UpdateExtAttrsError
	}
	if m.ExtAttrsUpdated == nil {
		m.ExtAttrsUpdated = map[string]map[string]string{}
	}
	m.ExtAttrsUpdated[ref] = copyAttrs(extattrs)
	for _, objects := range []map[string]*MockObject{m.Networks, m.Containers} {
		for _, obj := range objects {
			if obj.Ref == ref {
				obj.ExtAttrs = copyAttrs(extattrs)
				return nil
			}
		}
	}
	return fmt.Errorf("Reference %s not found", ref)
}

func (m *MockInfoblox) ListEADefinitions() ([]string, error) {
	if m.ListEADefsError != nil {
		return nil, m.ListEADefsError
	}
	return append([]string{}, m.EADefs...), nil
}

func (m *MockInfoblox) CreateEADefinition(name string) (bool, error) {
	for _, existing := range m.EADefs {
		if existing == name {
			return false, nil
		}
	}
	m.EADefs = append(m.EADefs, name)
	m.EADefsCreated = append(m.EADefsCreated, name)
	return true, nil
}
