package dispatch

import "github.com/virtrpcd/virtrpcd/internal/rpc"

// BuildTable constructs the static table mapping procedure number to
// handler.
func BuildTable() Table {
	t := Table{}
	reg := func(p rpc.Proc, name string, requiresHandle bool, h HandlerFunc) {
		t[p] = ProcEntry{Name: name, Handler: h, RequiresHandle: requiresHandle}
	}

	reg(rpc.ProcOpen, "OPEN", false, handleOpen)
	reg(rpc.ProcClose, "CLOSE", false, handleClose)
	reg(rpc.ProcSupportsFeature, "SUPPORTS_FEATURE", true, handleSupportsFeature)
	reg(rpc.ProcGetType, "GET_TYPE", true, handleGetType)
	reg(rpc.ProcGetVersion, "GET_VERSION", true, handleGetVersion)
	reg(rpc.ProcGetHostname, "GET_HOSTNAME", true, handleGetHostname)
	reg(rpc.ProcGetCapabilities, "GET_CAPABILITIES", true, handleGetCapabilities)
	reg(rpc.ProcGetMaxVcpus, "GET_MAX_VCPUS", true, handleGetMaxVcpus)
	reg(rpc.ProcNodeGetInfo, "NODE_GET_INFO", true, handleNodeGetInfo)

	reg(rpc.ProcListDomains, "LIST_DOMAINS", true, handleListDomains)
	reg(rpc.ProcNumOfDomains, "NUM_OF_DOMAINS", true, handleNumOfDomains)
	reg(rpc.ProcListDefinedDomains, "LIST_DEFINED_DOMAINS", true, handleListDefinedDomains)
	reg(rpc.ProcNumOfDefinedDomains, "NUM_OF_DEFINED_DOMAINS", true, handleNumOfDefinedDomains)

	reg(rpc.ProcDomainLookupByID, "DOMAIN_LOOKUP_BY_ID", true, handleDomainLookupByID)
	reg(rpc.ProcDomainLookupByName, "DOMAIN_LOOKUP_BY_NAME", true, handleDomainLookupByName)
	reg(rpc.ProcDomainLookupByUUID, "DOMAIN_LOOKUP_BY_UUID", true, handleDomainLookupByUUID)
	reg(rpc.ProcDomainCreateLinux, "DOMAIN_CREATE_LINUX", true, handleDomainCreateLinux)
	reg(rpc.ProcDomainDefineXML, "DOMAIN_DEFINE_XML", true, handleDomainDefineXML)
	reg(rpc.ProcDomainUndefine, "DOMAIN_UNDEFINE", true, handleDomainUndefine)
	reg(rpc.ProcDomainCreate, "DOMAIN_CREATE", true, handleDomainCreate)
	reg(rpc.ProcDomainDestroy, "DOMAIN_DESTROY", true, handleDomainDestroy)
	reg(rpc.ProcDomainShutdown, "DOMAIN_SHUTDOWN", true, handleDomainShutdown)
	reg(rpc.ProcDomainReboot, "DOMAIN_REBOOT", true, handleDomainReboot)
	reg(rpc.ProcDomainSuspend, "DOMAIN_SUSPEND", true, handleDomainSuspend)
	reg(rpc.ProcDomainResume, "DOMAIN_RESUME", true, handleDomainResume)
	reg(rpc.ProcDomainSave, "DOMAIN_SAVE", true, handleDomainSave)
	reg(rpc.ProcDomainRestore, "DOMAIN_RESTORE", true, handleDomainRestore)
	reg(rpc.ProcDomainCoreDump, "DOMAIN_CORE_DUMP", true, handleDomainCoreDump)
	reg(rpc.ProcDomainGetInfo, "DOMAIN_GET_INFO", true, handleDomainGetInfo)
	reg(rpc.ProcDomainGetXMLDesc, "DOMAIN_GET_XML_DESC", true, handleDomainGetXMLDesc)
	reg(rpc.ProcDomainGetOSType, "DOMAIN_GET_OS_TYPE", true, handleDomainGetOSType)
	reg(rpc.ProcDomainGetMaxMemory, "DOMAIN_GET_MAX_MEMORY", true, handleDomainGetMaxMemory)
	reg(rpc.ProcDomainSetMaxMemory, "DOMAIN_SET_MAX_MEMORY", true, handleDomainSetMaxMemory)
	reg(rpc.ProcDomainSetMemory, "DOMAIN_SET_MEMORY", true, handleDomainSetMemory)
	reg(rpc.ProcDomainSetVcpus, "DOMAIN_SET_VCPUS", true, handleDomainSetVcpus)
	reg(rpc.ProcDomainPinVcpu, "DOMAIN_PIN_VCPU", true, handleDomainPinVcpu)
	reg(rpc.ProcDomainGetVcpus, "DOMAIN_GET_VCPUS", true, handleDomainGetVcpus)
	reg(rpc.ProcDomainGetAutostart, "DOMAIN_GET_AUTOSTART", true, handleDomainGetAutostart)
	reg(rpc.ProcDomainSetAutostart, "DOMAIN_SET_AUTOSTART", true, handleDomainSetAutostart)
	reg(rpc.ProcDomainAttachDevice, "DOMAIN_ATTACH_DEVICE", true, handleDomainAttachDevice)
	reg(rpc.ProcDomainDetachDevice, "DOMAIN_DETACH_DEVICE", true, handleDomainDetachDevice)
	reg(rpc.ProcDomainBlockStats, "DOMAIN_BLOCK_STATS", true, handleDomainBlockStats)
	reg(rpc.ProcDomainInterfaceStats, "DOMAIN_INTERFACE_STATS", true, handleDomainInterfaceStats)

	reg(rpc.ProcDomainGetSchedulerType, "DOMAIN_GET_SCHEDULER_TYPE", true, handleDomainGetSchedulerType)
	reg(rpc.ProcDomainGetSchedulerParameters, "DOMAIN_GET_SCHEDULER_PARAMETERS", true, handleDomainGetSchedulerParameters)
	reg(rpc.ProcDomainSetSchedulerParameters, "DOMAIN_SET_SCHEDULER_PARAMETERS", true, handleDomainSetSchedulerParameters)

	reg(rpc.ProcDomainMigratePrepare, "DOMAIN_MIGRATE_PREPARE", true, handleDomainMigratePrepare)
	reg(rpc.ProcDomainMigratePerform, "DOMAIN_MIGRATE_PERFORM", true, handleDomainMigratePerform)
	reg(rpc.ProcDomainMigrateFinish, "DOMAIN_MIGRATE_FINISH", true, handleDomainMigrateFinish)

	reg(rpc.ProcNetworkLookupByName, "NETWORK_LOOKUP_BY_NAME", true, handleNetworkLookupByName)
	reg(rpc.ProcNetworkLookupByUUID, "NETWORK_LOOKUP_BY_UUID", true, handleNetworkLookupByUUID)
	reg(rpc.ProcNetworkCreateXML, "NETWORK_CREATE_XML", true, handleNetworkCreateXML)
	reg(rpc.ProcNetworkDefineXML, "NETWORK_DEFINE_XML", true, handleNetworkDefineXML)
	reg(rpc.ProcNetworkUndefine, "NETWORK_UNDEFINE", true, handleNetworkUndefine)
	reg(rpc.ProcNetworkCreate, "NETWORK_CREATE", true, handleNetworkCreate)
	reg(rpc.ProcNetworkDestroy, "NETWORK_DESTROY", true, handleNetworkDestroy)
	reg(rpc.ProcNetworkDumpXML, "NETWORK_DUMP_XML", true, handleNetworkDumpXML)
	reg(rpc.ProcNetworkGetBridgeName, "NETWORK_GET_BRIDGE_NAME", true, handleNetworkGetBridgeName)
	reg(rpc.ProcNetworkGetAutostart, "NETWORK_GET_AUTOSTART", true, handleNetworkGetAutostart)
	reg(rpc.ProcNetworkSetAutostart, "NETWORK_SET_AUTOSTART", true, handleNetworkSetAutostart)

	reg(rpc.ProcListNetworks, "LIST_NETWORKS", true, handleListNetworks)
	reg(rpc.ProcNumOfNetworks, "NUM_OF_NETWORKS", true, handleNumOfNetworks)
	reg(rpc.ProcListDefinedNetworks, "LIST_DEFINED_NETWORKS", true, handleListDefinedNetworks)
	reg(rpc.ProcNumOfDefinedNetworks, "NUM_OF_DEFINED_NETWORKS", true, handleNumOfDefinedNetworks)

	reg(rpc.ProcAuthList, "AUTH_LIST", false, handleAuthList)
	reg(rpc.ProcAuthSaslInit, "AUTH_SASL_INIT", false, handleAuthSaslInit)
	reg(rpc.ProcAuthSaslStart, "AUTH_SASL_START", false, handleAuthSaslStart)
	reg(rpc.ProcAuthSaslStep, "AUTH_SASL_STEP", false, handleAuthSaslStep)

	return t
}
