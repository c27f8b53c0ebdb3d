// Package fake provides an in-memory hypervisor.Hypervisor used by
// dispatcher tests: a narrow collaborator interface backed by an
// in-memory fake for unit tests.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/virtrpcd/virtrpcd/internal/hypervisor"
)

// Hypervisor is an in-memory stand-in for a real libvirt-style driver.
type Hypervisor struct {
	mu      sync.Mutex
	domains map[string]*domainState
	nextID  int32
}

type domainState struct {
	dom       hypervisor.Domain
	xml       string
	info      hypervisor.DomainInfo
	running   bool
	autostart bool
	sched     []hypervisor.SchedParam
}

// New returns an empty fake hypervisor.
func New() *Hypervisor {
	return &Hypervisor{domains: make(map[string]*domainState)}
}

func (h *Hypervisor) Open(ctx context.Context, name *string, flags hypervisor.OpenFlags) (hypervisor.Connection, error) {
	return &conn{h: h, readOnly: flags&hypervisor.FlagReadOnly != 0}, nil
}

type conn struct {
	h        *Hypervisor
	readOnly bool
}

func (c *conn) Close(ctx context.Context) error { return nil }

func (c *conn) GetType(ctx context.Context) (string, error) { return "test", nil }
func (c *conn) GetVersion(ctx context.Context) (uint64, error) { return 1000000, nil }
func (c *conn) GetHostname(ctx context.Context) (string, error) { return "fake-host", nil }
func (c *conn) GetCapabilities(ctx context.Context) (string, error) { return "<capabilities/>", nil }
func (c *conn) GetMaxVcpus(ctx context.Context, typ string) (int32, error) { return 64, nil }
func (c *conn) NodeGetInfo(ctx context.Context) (hypervisor.NodeInfo, error) {
	return hypervisor.NodeInfo{Model: "fake", Memory: 16 << 20, CPUs: 8, Sockets: 1, Cores: 8, Threads: 1, Nodes: 1}, nil
}
func (c *conn) SupportsFeature(ctx context.Context, feature int32) (bool, error) { return false, nil }

func (c *conn) ListDomains(ctx context.Context, maxIDs int32) ([]int32, error) {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	var out []int32
	for _, d := range c.h.domains {
		if !d.running {
			continue
		}
		if int32(len(out)) >= maxIDs {
			break
		}
		out = append(out, d.dom.ID)
	}
	return out, nil
}

func (c *conn) NumOfDomains(ctx context.Context) (int32, error) {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	var n int32
	for _, d := range c.h.domains {
		if d.running {
			n++
		}
	}
	return n, nil
}

func (c *conn) ListDefinedDomains(ctx context.Context, maxNames int32) ([]string, error) {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	var out []string
	for name, d := range c.h.domains {
		if d.running {
			continue
		}
		if int32(len(out)) >= maxNames {
			break
		}
		out = append(out, name)
	}
	return out, nil
}

func (c *conn) NumOfDefinedDomains(ctx context.Context) (int32, error) {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	var n int32
	for _, d := range c.h.domains {
		if !d.running {
			n++
		}
	}
	return n, nil
}

func (c *conn) find(name string) (*domainState, error) {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	d, ok := c.h.domains[name]
	if !ok {
		return nil, hypervisor.ErrNotFound
	}
	return d, nil
}

func (c *conn) DomainLookupByID(ctx context.Context, id int32) (*hypervisor.Domain, error) {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	for _, d := range c.h.domains {
		if d.dom.ID == id && d.running {
			dom := d.dom
			return &dom, nil
		}
	}
	return nil, hypervisor.ErrNotFound
}

func (c *conn) DomainLookupByName(ctx context.Context, name string) (*hypervisor.Domain, error) {
	d, err := c.find(name)
	if err != nil {
		return nil, err
	}
	dom := d.dom
	return &dom, nil
}

func (c *conn) DomainLookupByUUID(ctx context.Context, uuid [16]byte) (*hypervisor.Domain, error) {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	for _, d := range c.h.domains {
		if d.dom.UUID == uuid {
			dom := d.dom
			return &dom, nil
		}
	}
	return nil, hypervisor.ErrNotFound
}

func (c *conn) defineLocked(name, xmlDesc string) *domainState {
	c.h.nextID++
	ds := &domainState{
		dom: hypervisor.Domain{Name: name, ID: c.h.nextID},
		xml: xmlDesc,
	}
	c.h.domains[name] = ds
	return ds
}

func (c *conn) DomainCreateLinux(ctx context.Context, xmlDesc string, flags uint32) (*hypervisor.Domain, error) {
	name := fmt.Sprintf("linux-%d", len(c.h.domains)+1)
	c.h.mu.Lock()
	ds := c.defineLocked(name, xmlDesc)
	ds.running = true
	dom := ds.dom
	c.h.mu.Unlock()
	return &dom, nil
}

func (c *conn) DomainDefineXML(ctx context.Context, xmlDesc string) (*hypervisor.Domain, error) {
	name := fmt.Sprintf("defined-%d", len(c.h.domains)+1)
	c.h.mu.Lock()
	ds := c.defineLocked(name, xmlDesc)
	dom := ds.dom
	c.h.mu.Unlock()
	return &dom, nil
}

func (c *conn) DomainUndefine(ctx context.Context, d *hypervisor.Domain) error {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	delete(c.h.domains, d.Name)
	return nil
}

func (c *conn) DomainCreate(ctx context.Context, d *hypervisor.Domain) error {
	ds, err := c.find(d.Name)
	if err != nil {
		return err
	}
	c.h.mu.Lock()
	ds.running = true
	c.h.mu.Unlock()
	return nil
}

func (c *conn) DomainDestroy(ctx context.Context, d *hypervisor.Domain) error {
	c.h.mu.Lock()
	defer c.h.mu.Unlock()
	delete(c.h.domains, d.Name)
	return nil
}

func (c *conn) DomainShutdown(ctx context.Context, d *hypervisor.Domain) error {
	ds, err := c.find(d.Name)
	if err != nil {
		return err
	}
	c.h.mu.Lock()
	ds.running = false
	c.h.mu.Unlock()
	return nil
}

func (c *conn) DomainReboot(ctx context.Context, d *hypervisor.Domain, flags uint32) error {
	_, err := c.find(d.Name)
	return err
}

func (c *conn) DomainSuspend(ctx context.Context, d *hypervisor.Domain) error {
	_, err := c.find(d.Name)
	return err
}

func (c *conn) DomainResume(ctx context.Context, d *hypervisor.Domain) error {
	_, err := c.find(d.Name)
	return err
}

func (c *conn) DomainSave(ctx context.Context, d *hypervisor.Domain, to string) error {
	_, err := c.find(d.Name)
	return err
}

func (c *conn) DomainRestore(ctx context.Context, from string) error { return nil }

func (c *conn) DomainCoreDump(ctx context.Context, d *hypervisor.Domain, to string, flags uint32) error {
	_, err := c.find(d.Name)
	return err
}

func (c *conn) DomainGetInfo(ctx context.Context, d *hypervisor.Domain) (*hypervisor.DomainInfo, error) {
	ds, err := c.find(d.Name)
	if err != nil {
		return nil, err
	}
	info := ds.info
	return &info, nil
}

func (c *conn) DomainGetXMLDesc(ctx context.Context, d *hypervisor.Domain, flags uint32) (string, error) {
	ds, err := c.find(d.Name)
	if err != nil {
		return "", err
	}
	return ds.xml, nil
}

func (c *conn) DomainGetOSType(ctx context.Context, d *hypervisor.Domain) (string, error) { return "hvm", nil }

func (c *conn) DomainGetMaxMemory(ctx context.Context, d *hypervisor.Domain) (uint64, error) {
	ds, err := c.find(d.Name)
	if err != nil {
		return 0, err
	}
	return ds.info.MaxMemKB, nil
}

func (c *conn) DomainSetMaxMemory(ctx context.Context, d *hypervisor.Domain, kb uint64) error {
	ds, err := c.find(d.Name)
	if err != nil {
		return err
	}
	c.h.mu.Lock()
	ds.info.MaxMemKB = kb
	c.h.mu.Unlock()
	return nil
}

func (c *conn) DomainSetMemory(ctx context.Context, d *hypervisor.Domain, kb uint64) error {
	ds, err := c.find(d.Name)
	if err != nil {
		return err
	}
	c.h.mu.Lock()
	ds.info.MemoryKB = kb
	c.h.mu.Unlock()
	return nil
}

func (c *conn) DomainSetVcpus(ctx context.Context, d *hypervisor.Domain, n uint32) error {
	ds, err := c.find(d.Name)
	if err != nil {
		return err
	}
	c.h.mu.Lock()
	ds.info.NrVirtCPU = uint16(n)
	c.h.mu.Unlock()
	return nil
}

func (c *conn) DomainPinVcpu(ctx context.Context, d *hypervisor.Domain, vcpu uint32, cpuMap []byte) error {
	_, err := c.find(d.Name)
	return err
}

func (c *conn) DomainGetVcpus(ctx context.Context, d *hypervisor.Domain, maxInfo int32, maplen int32) ([]hypervisor.VCPUInfo, error) {
	ds, err := c.find(d.Name)
	if err != nil {
		return nil, err
	}
	n := int32(ds.info.NrVirtCPU)
	if n > maxInfo {
		n = maxInfo
	}
	out := make([]hypervisor.VCPUInfo, n)
	for i := range out {
		out[i] = hypervisor.VCPUInfo{Number: uint32(i), CPUMap: make([]byte, maplen)}
	}
	return out, nil
}

func (c *conn) DomainGetAutostart(ctx context.Context, d *hypervisor.Domain) (bool, error) {
	ds, err := c.find(d.Name)
	if err != nil {
		return false, err
	}
	return ds.autostart, nil
}

func (c *conn) DomainSetAutostart(ctx context.Context, d *hypervisor.Domain, autostart bool) error {
	ds, err := c.find(d.Name)
	if err != nil {
		return err
	}
	c.h.mu.Lock()
	ds.autostart = autostart
	c.h.mu.Unlock()
	return nil
}

func (c *conn) DomainAttachDevice(ctx context.Context, d *hypervisor.Domain, xml string) error {
	_, err := c.find(d.Name)
	return err
}

func (c *conn) DomainDetachDevice(ctx context.Context, d *hypervisor.Domain, xml string) error {
	_, err := c.find(d.Name)
	return err
}

func (c *conn) DomainBlockStats(ctx context.Context, d *hypervisor.Domain, path string) (*hypervisor.BlockStats, error) {
	_, err := c.find(d.Name)
	if err != nil {
		return nil, err
	}
	return &hypervisor.BlockStats{}, nil
}

func (c *conn) DomainInterfaceStats(ctx context.Context, d *hypervisor.Domain, device string) (*hypervisor.InterfaceStats, error) {
	_, err := c.find(d.Name)
	if err != nil {
		return nil, err
	}
	return &hypervisor.InterfaceStats{}, nil
}

func (c *conn) DomainGetSchedulerType(ctx context.Context, d *hypervisor.Domain) (string, int32, error) {
	return "fair", 1, nil
}

func (c *conn) DomainGetSchedulerParameters(ctx context.Context, d *hypervisor.Domain, nparams int32) ([]hypervisor.SchedParam, error) {
	ds, err := c.find(d.Name)
	if err != nil {
		return nil, err
	}
	out := ds.sched
	if int32(len(out)) > nparams {
		out = out[:nparams]
	}
	return out, nil
}

func (c *conn) DomainSetSchedulerParameters(ctx context.Context, d *hypervisor.Domain, params []hypervisor.SchedParam) error {
	ds, err := c.find(d.Name)
	if err != nil {
		return err
	}
	c.h.mu.Lock()
	ds.sched = params
	c.h.mu.Unlock()
	return nil
}

func (c *conn) DomainMigratePrepare(ctx context.Context, cookieIn []byte, uriIn *string, flags uint64, dname *string, bandwidth uint64) ([]byte, *string, error) {
	return cookieIn, uriIn, nil
}

func (c *conn) DomainMigratePerform(ctx context.Context, d *hypervisor.Domain, cookieIn []byte, uri string, flags uint64, dname *string, bandwidth uint64) error {
	_, err := c.find(d.Name)
	return err
}

func (c *conn) DomainMigrateFinish(ctx context.Context, dname string, cookieIn []byte, uri string, flags uint64) (*hypervisor.Domain, error) {
	return c.find2(dname)
}

func (c *conn) find2(name string) (*hypervisor.Domain, error) {
	ds, err := c.find(name)
	if err != nil {
		return nil, err
	}
	dom := ds.dom
	return &dom, nil
}

// Networks are not modelled in the fake beyond satisfying the interface:
// lookups always report ErrNotFound, the list calls return nothing, and the
// remaining calls succeed without keeping any state.

func (c *conn) NetworkLookupByName(ctx context.Context, name string) (*hypervisor.Network, error) {
	return nil, hypervisor.ErrNotFound
}
func (c *conn) NetworkLookupByUUID(ctx context.Context, uuid [16]byte) (*hypervisor.Network, error) {
	return nil, hypervisor.ErrNotFound
}
func (c *conn) NetworkCreateXML(ctx context.Context, xmlDesc string) (*hypervisor.Network, error) {
	return &hypervisor.Network{Name: "net0"}, nil
}
func (c *conn) NetworkDefineXML(ctx context.Context, xmlDesc string) (*hypervisor.Network, error) {
	return &hypervisor.Network{Name: "net0"}, nil
}
func (c *conn) NetworkUndefine(ctx context.Context, n *hypervisor.Network) error { return nil }
func (c *conn) NetworkCreate(ctx context.Context, n *hypervisor.Network) error  { return nil }
func (c *conn) NetworkDestroy(ctx context.Context, n *hypervisor.Network) error { return nil }
func (c *conn) NetworkDumpXML(ctx context.Context, n *hypervisor.Network, flags uint32) (string, error) {
	return "<network/>", nil
}
func (c *conn) NetworkGetBridgeName(ctx context.Context, n *hypervisor.Network) (string, error) {
	return "virbr0", nil
}
func (c *conn) NetworkGetAutostart(ctx context.Context, n *hypervisor.Network) (bool, error) { return false, nil }
func (c *conn) NetworkSetAutostart(ctx context.Context, n *hypervisor.Network, autostart bool) error {
	return nil
}

func (c *conn) ListNetworks(ctx context.Context, maxNames int32) ([]string, error) { return nil, nil }
func (c *conn) NumOfNetworks(ctx context.Context) (int32, error)                   { return 0, nil }
func (c *conn) ListDefinedNetworks(ctx context.Context, maxNames int32) ([]string, error) {
	return nil, nil
}
func (c *conn) NumOfDefinedNetworks(ctx context.Context) (int32, error) { return 0, nil }

var _ hypervisor.Connection = (*conn)(nil)
var _ hypervisor.Hypervisor = (*Hypervisor)(nil)
