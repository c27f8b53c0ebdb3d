// Package hypervisor declares the collaborator interface the dispatcher
// consumes. Calls return structured errors directly instead of requiring
// callers to read a thread-local last-error slot afterward.
package hypervisor

import (
	"context"
	"errors"
)

// Error is a structured hypervisor failure, carrying enough to build a
// wire ErrorRecord without the dispatcher ever touching a last-error slot.
type Error struct {
	Code    int32
	Domain  int32
	Message string
}

func (e *Error) Error() string { return e.Message }

// ErrNotFound is returned by lookups that find no matching object.
var ErrNotFound = errors.New("object not found")

// OpenFlags mirrors the bit the session's read-only flag ORs in.
type OpenFlags uint32

const (
	FlagReadOnly OpenFlags = 1 << 0
)

// Domain is a live handle to a hypervisor-managed VM.
type Domain struct {
	Name string
	UUID [16]byte
	ID   int32
}

// Network is a live handle to a hypervisor-managed virtual network.
type Network struct {
	Name string
	UUID [16]byte
}

// DomainInfo mirrors virDomainInfo: state/memory/vcpu counters.
type DomainInfo struct {
	State     int32
	MaxMemKB  uint64
	MemoryKB  uint64
	NrVirtCPU uint16
	CPUTimeNs uint64
}

// VCPUInfo is one entry of a GetVcpus response.
type VCPUInfo struct {
	Number  uint32
	State   int32
	CPUTime uint64
	CPU     int32
	CPUMap  []byte
}

// SchedParam is the native-side counterpart of the wire tagged union.
type SchedParam struct {
	Field string
	Type  SchedParamType
	I     int32
	UI    uint32
	LL    int64
	ULL   uint64
	D     float64
	B     bool
}

type SchedParamType int32

const (
	SchedParamInt     SchedParamType = 1
	SchedParamUInt    SchedParamType = 2
	SchedParamLLong   SchedParamType = 3
	SchedParamULLong  SchedParamType = 4
	SchedParamDouble  SchedParamType = 5
	SchedParamBoolean SchedParamType = 6
)

// BlockStats and InterfaceStats pass counters through verbatim.
type BlockStats struct {
	RdReq, RdBytes, WrReq, WrBytes, Errs int64
}

type InterfaceStats struct {
	RxBytes, RxPackets, RxErrs, RxDrop int64
	TxBytes, TxPackets, TxErrs, TxDrop int64
}

// Connection is a per-session handle to an open hypervisor connection,
// obtained via Hypervisor.Open and released via Close.
type Connection interface {
	Close(ctx context.Context) error

	GetType(ctx context.Context) (string, error)
	GetVersion(ctx context.Context) (uint64, error)
	GetHostname(ctx context.Context) (string, error)
	GetCapabilities(ctx context.Context) (string, error)
	GetMaxVcpus(ctx context.Context, typ string) (int32, error)
	NodeGetInfo(ctx context.Context) (NodeInfo, error)
	SupportsFeature(ctx context.Context, feature int32) (bool, error)

	ListDomains(ctx context.Context, maxIDs int32) ([]int32, error)
	NumOfDomains(ctx context.Context) (int32, error)
	ListDefinedDomains(ctx context.Context, maxNames int32) ([]string, error)
	NumOfDefinedDomains(ctx context.Context) (int32, error)

	DomainLookupByID(ctx context.Context, id int32) (*Domain, error)
	DomainLookupByName(ctx context.Context, name string) (*Domain, error)
	DomainLookupByUUID(ctx context.Context, uuid [16]byte) (*Domain, error)
	DomainCreateLinux(ctx context.Context, xmlDesc string, flags uint32) (*Domain, error)
	DomainDefineXML(ctx context.Context, xmlDesc string) (*Domain, error)
	DomainUndefine(ctx context.Context, d *Domain) error
	DomainCreate(ctx context.Context, d *Domain) error
	DomainDestroy(ctx context.Context, d *Domain) error
	DomainShutdown(ctx context.Context, d *Domain) error
	DomainReboot(ctx context.Context, d *Domain, flags uint32) error
	DomainSuspend(ctx context.Context, d *Domain) error
	DomainResume(ctx context.Context, d *Domain) error
	DomainSave(ctx context.Context, d *Domain, to string) error
	DomainRestore(ctx context.Context, from string) error
	DomainCoreDump(ctx context.Context, d *Domain, to string, flags uint32) error
	DomainGetInfo(ctx context.Context, d *Domain) (*DomainInfo, error)
	DomainGetXMLDesc(ctx context.Context, d *Domain, flags uint32) (string, error)
	DomainGetOSType(ctx context.Context, d *Domain) (string, error)
	DomainGetMaxMemory(ctx context.Context, d *Domain) (uint64, error)
	DomainSetMaxMemory(ctx context.Context, d *Domain, kb uint64) error
	DomainSetMemory(ctx context.Context, d *Domain, kb uint64) error
	DomainSetVcpus(ctx context.Context, d *Domain, n uint32) error
	DomainPinVcpu(ctx context.Context, d *Domain, vcpu uint32, cpuMap []byte) error
	DomainGetVcpus(ctx context.Context, d *Domain, maxInfo int32, maplen int32) ([]VCPUInfo, error)
	DomainGetAutostart(ctx context.Context, d *Domain) (bool, error)
	DomainSetAutostart(ctx context.Context, d *Domain, autostart bool) error
	DomainAttachDevice(ctx context.Context, d *Domain, xml string) error
	DomainDetachDevice(ctx context.Context, d *Domain, xml string) error
	DomainBlockStats(ctx context.Context, d *Domain, path string) (*BlockStats, error)
	DomainInterfaceStats(ctx context.Context, d *Domain, device string) (*InterfaceStats, error)

	DomainGetSchedulerType(ctx context.Context, d *Domain) (string, int32, error)
	DomainGetSchedulerParameters(ctx context.Context, d *Domain, nparams int32) ([]SchedParam, error)
	DomainSetSchedulerParameters(ctx context.Context, d *Domain, params []SchedParam) error

	DomainMigratePrepare(ctx context.Context, cookieIn []byte, uriIn *string, flags uint64, dname *string, bandwidth uint64) (cookieOut []byte, uriOut *string, err error)
	DomainMigratePerform(ctx context.Context, d *Domain, cookieIn []byte, uri string, flags uint64, dname *string, bandwidth uint64) error
	DomainMigrateFinish(ctx context.Context, dname string, cookieIn []byte, uri string, flags uint64) (*Domain, error)

	NetworkLookupByName(ctx context.Context, name string) (*Network, error)
	NetworkLookupByUUID(ctx context.Context, uuid [16]byte) (*Network, error)
	NetworkCreateXML(ctx context.Context, xmlDesc string) (*Network, error)
	NetworkDefineXML(ctx context.Context, xmlDesc string) (*Network, error)
	NetworkUndefine(ctx context.Context, n *Network) error
	NetworkCreate(ctx context.Context, n *Network) error
	NetworkDestroy(ctx context.Context, n *Network) error
	NetworkDumpXML(ctx context.Context, n *Network, flags uint32) (string, error)
	NetworkGetBridgeName(ctx context.Context, n *Network) (string, error)
	NetworkGetAutostart(ctx context.Context, n *Network) (bool, error)
	NetworkSetAutostart(ctx context.Context, n *Network, autostart bool) error

	ListNetworks(ctx context.Context, maxNames int32) ([]string, error)
	NumOfNetworks(ctx context.Context) (int32, error)
	ListDefinedNetworks(ctx context.Context, maxNames int32) ([]string, error)
	NumOfDefinedNetworks(ctx context.Context) (int32, error)
}

// NodeInfo mirrors virNodeInfo.
type NodeInfo struct {
	Model   string
	Memory  uint64
	CPUs    int32
	MHz     int32
	Nodes   int32
	Sockets int32
	Cores   int32
	Threads int32
}

// Hypervisor opens per-session connections. It is the root collaborator
// the dispatcher's OPEN handler calls into.
type Hypervisor interface {
	Open(ctx context.Context, name *string, flags OpenFlags) (Connection, error)
}
