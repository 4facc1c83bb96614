package ipc

// Bus identity of the per-user server daemon (session bus).
const (
	ServiceName = "com.system76.CosmicRdpServer"
	ObjectPath  = "/com/system76/CosmicRdpServer"
	Interface   = "com.system76.CosmicRdpServer"
)

// Bus identity of the multi-user broker (system bus, external process).
const (
	BrokerServiceName = "com.system76.CosmicRdpBroker"
	BrokerObjectPath  = "/com/system76/CosmicRdpBroker"
)
