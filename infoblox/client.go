package infoblox

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultWAPIVersion = "v2.13.1"

// ExistenceState describes how a CIDR is represented in the grid, if at all.
type ExistenceState int

const (
	Absent ExistenceState = iota
	ExistsAsNetwork
	ExistsAsContainer
)

func (s ExistenceState) String() string {
	switch s {
	case ExistsAsNetwork:
		return "network"
	case ExistsAsContainer:
		return "container"
	}
	return "absent"
}

// ExistenceResult is the outcome of checking one CIDR against the grid.
// Ref and ExtAttrs are only meaningful when State != Absent.
type ExistenceResult struct {
	State    ExistenceState
	Ref      string
	Comment  string
	ExtAttrs map[string]string
}

type Logger interface {
	Log(string, ...interface{})
}

type Client interface {
	GetNetworkViews() ([]string, error)
	GetNetworkByCIDR(cidr, view string) (*ExistenceResult, error)
	GetNetworkContainerByCIDR(cidr, view string) (*ExistenceResult, error)
	CheckNetworkOrContainer(cidr, view string) (*ExistenceResult, error)
	CreateNetwork(cidr, view, comment string, extattrs map[string]string) (string, error)
	CreateNetworkContainer(cidr, view, comment string, extattrs map[string]string) (string, error)
	UpdateExtAttrs(ref string, extattrs map[string]string) error
	ListEADefinitions() ([]string, error)
	CreateEADefinition(name string) (created bool, err error)
}

type RESTClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	eaCache    *EADefinitionCache
}

// GetClient returns a WAPI client for the given grid master. The grid
// presents a self-signed certificate in every deployment we talk to, so
// verification is disabled the same way the UI tooling does it.
func GetClient(gridMaster, username, password string, opTimeout time.Duration) *RESTClient {
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	return &RESTClient{
		baseURL:  fmt.Sprintf("https://%s/wapi/%s", gridMaster, DefaultWAPIVersion),
		username: username,
		password: password,
		httpClient: &http.Client{
			Transport: tr,
			Timeout:   opTimeout,
		},
		eaCache: NewEADefinitionCache(),
	}
}

type wapiObject struct {
	Ref      string                 `json:"_ref"`
	Network  string                 `json:"network"`
	Comment  string                 `json:"comment"`
	ExtAttrs map[string]wapiEAValue `json:"extattrs"`
}

type wapiEAValue struct {
	Value interface{} `json:"value"`
}

type wapiNetworkView struct {
	Name string `json:"name"`
}

type wapiEADefinition struct {
	Name string `json:"name"`
}

// wapiError is the error body the WAPI returns alongside non-2xx statuses.
type wapiError struct {
	Error string `json:"Error"`
	Text  string `json:"text"`
	Code  string `json:"code"`
}

type httpStatusError struct {
	status  int
	message string
}

func (e *httpStatusError) Error() string {
	return e.message
}

// do attempts the request, with retries and exponential backoff on 5xx
// responses, and then deserializes the result.
func (c *RESTClient) do(method, endpoint string, params url.Values, body interface{}, result interface{}) error {
	canRetry := true
	var err error
	for tries := 0; canRetry && tries < 5; tries++ {
		time.Sleep(time.Second * (1<<tries - 1))
		canRetry, err = c.doOnce(method, endpoint, params, body, result)
	}
	return err
}

func (c *RESTClient) doOnce(method, endpoint string, params url.Values, body interface{}, result interface{}) (canRetry bool, err error) {
	reqURL := c.baseURL + "/" + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	var reqBody *bytes.Buffer = bytes.NewBuffer(nil)
	if body != nil {
		err := json.NewEncoder(reqBody).Encode(body)
		if err != nil {
			return false, fmt.Errorf("Error encoding request body: %s", err)
		}
	}
	req, err := http.NewRequest(method, reqURL, reqBody)
	if err != nil {
		return false, fmt.Errorf("Error creating request: %s", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("Error contacting InfoBlox: %s", err)
	}
	defer resp.Body.Close()

	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("Error reading InfoBlox response: %s", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		canRetry := resp.StatusCode >= 500 && resp.StatusCode < 600
		message := fmt.Sprintf("Got status %d from InfoBlox", resp.StatusCode)
		we := new(wapiError)
		if json.Unmarshal(respBody, we) == nil {
			if we.Text != "" {
				message = we.Text
			} else if we.Error != "" {
				message = we.Error
			}
		}
		return canRetry, &httpStatusError{status: resp.StatusCode, message: message}
	}

	if result != nil {
		err := json.Unmarshal(respBody, result)
		if err != nil {
			return false, fmt.Errorf("Error reading InfoBlox response: %s", err)
		}
	}
	return false, nil
}

// isNotFoundShaped reports whether the error is the WAPI's way of saying the
// requested object does not exist, which lookups must treat as a clean miss.
func isNotFoundShaped(err error) bool {
	if se, ok := err.(*httpStatusError); ok {
		return se.status == http.StatusBadRequest || se.status == http.StatusNotFound
	}
	return false
}

func (c *RESTClient) GetNetworkViews() ([]string, error) {
	views := []wapiNetworkView{}
	err := c.do("GET", "networkview", nil, nil, &views)
	if err != nil {
		return nil, fmt.Errorf("Error fetching network views: %s", err)
	}
	names := make([]string, 0, len(views))
	for _, view := range views {
		names = append(names, view.Name)
	}
	return names, nil
}

// VerifyNetworkView fails fast when the configured view does not exist, so a
// sync never runs a whole batch of lookups against a typo.
func VerifyNetworkView(c Client, view string) error {
	views, err := c.GetNetworkViews()
	if err != nil {
		return err
	}
	for _, name := range views {
		if name == view {
			return nil
		}
	}
	return fmt.Errorf("Network view %q does not exist in InfoBlox", view)
}

func extAttrsToStrings(in map[string]wapiEAValue) map[string]string {
	out := map[string]string{}
	for name, ea := range in {
		out[name] = fmt.Sprintf("%v", ea.Value)
	}
	return out
}

func (c *RESTClient) getObjectByCIDR(objectType, cidr, view string, state ExistenceState) (*ExistenceResult, error) {
	params := url.Values{}
	params.Set("network", cidr)
	params.Set("network_view", view)
	params.Set("_return_fields", "network,comment,extattrs")
	objects := []wapiObject{}
	err := c.do("GET", objectType, params, nil, &objects)
	if err != nil {
		if isNotFoundShaped(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("Error checking %s %s: %s", objectType, cidr, err)
	}
	if len(objects) == 0 {
		return nil, nil
	}
	obj := objects[0]
	return &ExistenceResult{
		State:    state,
		Ref:      obj.Ref,
		Comment:  obj.Comment,
		ExtAttrs: extAttrsToStrings(obj.ExtAttrs),
	}, nil
}

func (c *RESTClient) GetNetworkByCIDR(cidr, view string) (*ExistenceResult, error) {
	return c.getObjectByCIDR("network", cidr, view, ExistsAsNetwork)
}

func (c *RESTClient) GetNetworkContainerByCIDR(cidr, view string) (*ExistenceResult, error) {
	return c.getObjectByCIDR("networkcontainer", cidr, view, ExistsAsContainer)
}

// CheckNetworkOrContainer looks the CIDR up first as a plain network and then
// as a network container. A nil error with State == Absent means the grid has
// no object for the CIDR in the given view.
func (c *RESTClient) CheckNetworkOrContainer(cidr, view string) (*ExistenceResult, error) {
	network, err := c.GetNetworkByCIDR(cidr, view)
	if err != nil {
		return nil, err
	}
	if network != nil {
		return network, nil
	}
	container, err := c.GetNetworkContainerByCIDR(cidr, view)
	if err != nil {
		return nil, err
	}
	if container != nil {
		return container, nil
	}
	return &ExistenceResult{State: Absent}, nil
}

func formatExtAttrs(extattrs map[string]string) map[string]wapiEAValue {
	formatted := map[string]wapiEAValue{}
	for name, value := range extattrs {
		if strings.TrimSpace(value) == "" {
			continue
		}
		formatted[name] = wapiEAValue{Value: value}
	}
	return formatted
}

type createNetworkBody struct {
	Network     string                 `json:"network"`
	NetworkView string                 `json:"network_view"`
	Comment     string                 `json:"comment,omitempty"`
	ExtAttrs    map[string]wapiEAValue `json:"extattrs,omitempty"`
}

func (c *RESTClient) createObject(objectType, cidr, view, comment string, extattrs map[string]string) (string, error) {
	body := &createNetworkBody{
		Network:     cidr,
		NetworkView: view,
		Comment:     comment,
	}
	if len(extattrs) > 0 {
		formatted := formatExtAttrs(extattrs)
		if len(formatted) > 0 {
			body.ExtAttrs = formatted
		}
	}
	var ref string
	err := c.do("POST", objectType, nil, body, &ref)
	if err != nil {
		return "", err
	}
	return ref, nil
}

func (c *RESTClient) CreateNetwork(cidr, view, comment string, extattrs map[string]string) (string, error) {
	return c.createObject("network", cidr, view, comment, extattrs)
}

func (c *RESTClient) CreateNetworkContainer(cidr, view, comment string, extattrs map[string]string) (string, error) {
	return c.createObject("networkcontainer", cidr, view, comment, extattrs)
}

type updateExtAttrsBody struct {
	ExtAttrs map[string]wapiEAValue `json:"extattrs"`
}

func (c *RESTClient) UpdateExtAttrs(ref string, extattrs map[string]string) error {
	body := &updateExtAttrsBody{ExtAttrs: formatExtAttrs(extattrs)}
	err := c.do("PUT", ref, nil, body, nil)
	if err != nil {
		return fmt.Errorf("Error updating extensible attributes on %s: %s", ref, err)
	}
	return nil
}

func (c *RESTClient) ListEADefinitions() ([]string, error) {
	return c.eaCache.Get(func() ([]string, error) {
		defs := []wapiEADefinition{}
		err := c.do("GET", "extensibleattributedef", nil, nil, &defs)
		if err != nil {
			return nil, fmt.Errorf("Error fetching extensible attribute definitions: %s", err)
		}
		names := make([]string, 0, len(defs))
		for _, def := range defs {
			names = append(names, def.Name)
		}
		return names, nil
	})
}

type createEADefinitionBody struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Comment string `json:"comment,omitempty"`
}

// CreateEADefinition defines a STRING-typed extensible attribute. Returns
// false without error when the definition already exists.
func (c *RESTClient) CreateEADefinition(name string) (bool, error) {
	body := &createEADefinitionBody{
		Name:    name,
		Type:    "STRING",
		Comment: fmt.Sprintf("Inventory sync mapping for %s", name),
	}
	var ref string
	err := c.do("POST", "extensibleattributedef", nil, body, &ref)
	if err != nil {
		if se, ok := err.(*httpStatusError); ok && se.status == http.StatusBadRequest &&
			strings.Contains(strings.ToLower(se.message), "already exists") {
			return false, nil
		}
		return false, fmt.Errorf("Error creating extensible attribute definition %q: %s", name, err)
	}
	c.eaCache.Invalidate()
	return true, nil
}
