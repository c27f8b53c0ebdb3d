package rpc

// Proc enumerates the procedure numbers this dispatcher supports.
type Proc int32

const (
	ProcOpen  Proc = 1
	ProcClose Proc = 2

	ProcSupportsFeature Proc = 3
	ProcGetType         Proc = 4
	ProcGetVersion      Proc = 5
	ProcGetHostname     Proc = 6
	ProcGetCapabilities Proc = 7
	ProcGetMaxVcpus     Proc = 8
	ProcNodeGetInfo     Proc = 9

	ProcListDomains          Proc = 10
	ProcNumOfDomains         Proc = 11
	ProcListDefinedDomains   Proc = 12
	ProcNumOfDefinedDomains  Proc = 13

	ProcDomainLookupByID   Proc = 20
	ProcDomainLookupByName Proc = 21
	ProcDomainLookupByUUID Proc = 22
	ProcDomainCreateLinux  Proc = 23
	ProcDomainDefineXML    Proc = 24
	ProcDomainUndefine     Proc = 25
	ProcDomainCreate       Proc = 26
	ProcDomainDestroy      Proc = 27
	ProcDomainShutdown     Proc = 28
	ProcDomainReboot       Proc = 29
	ProcDomainSuspend      Proc = 30
	ProcDomainResume       Proc = 31
	ProcDomainSave         Proc = 32
	ProcDomainRestore      Proc = 33
	ProcDomainCoreDump     Proc = 34
	ProcDomainGetInfo      Proc = 35
	ProcDomainGetXMLDesc   Proc = 36
	ProcDomainGetOSType    Proc = 37
	ProcDomainGetMaxMemory Proc = 38
	ProcDomainSetMaxMemory Proc = 39
	ProcDomainSetMemory    Proc = 40
	ProcDomainSetVcpus     Proc = 41
	ProcDomainPinVcpu      Proc = 42
	ProcDomainGetVcpus     Proc = 43
	ProcDomainGetAutostart Proc = 44
	ProcDomainSetAutostart Proc = 45
	ProcDomainAttachDevice Proc = 46
	ProcDomainDetachDevice Proc = 47
	ProcDomainBlockStats   Proc = 48
	ProcDomainInterfaceStats Proc = 49

	ProcDomainGetSchedulerType       Proc = 50
	ProcDomainGetSchedulerParameters Proc = 51
	ProcDomainSetSchedulerParameters Proc = 52

	ProcDomainMigratePrepare Proc = 53
	ProcDomainMigratePerform Proc = 54
	ProcDomainMigrateFinish  Proc = 55

	ProcNetworkLookupByName Proc = 60
	ProcNetworkLookupByUUID Proc = 61
	ProcNetworkCreateXML    Proc = 62
	ProcNetworkDefineXML    Proc = 63
	ProcNetworkUndefine     Proc = 64
	ProcNetworkCreate       Proc = 65
	ProcNetworkDestroy      Proc = 66
	ProcNetworkDumpXML      Proc = 67
	ProcNetworkGetBridgeName Proc = 68
	ProcNetworkGetAutostart Proc = 69
	ProcNetworkSetAutostart Proc = 70

	ProcListNetworks        Proc = 71
	ProcNumOfNetworks       Proc = 72
	ProcListDefinedNetworks Proc = 73
	ProcNumOfDefinedNetworks Proc = 74

	ProcAuthList     Proc = 80
	ProcAuthSaslInit  Proc = 81
	ProcAuthSaslStart Proc = 82
	ProcAuthSaslStep  Proc = 83
)

// PreAuthWhitelist is the set of procedures dispatchable before a session
// reaches AUTHORIZED.
var PreAuthWhitelist = map[Proc]bool{
	ProcAuthList:      true,
	ProcAuthSaslInit:  true,
	ProcAuthSaslStart: true,
	ProcAuthSaslStep:  true,
}
