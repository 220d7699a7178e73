package dap

import (
	godap "github.com/google/go-dap"
)

// serverCapability names one of this adapter's supported capabilities,
// spec §3's "ordered sequence of named boolean flags", kept as an
// explicit slice (not a map) so iteration order is deterministic
// regardless of what Go's map order happens to be.
type serverCapability struct {
	name string
	set  func(*godap.Capabilities)
}

// serverCapabilities is this adapter's fixed, ordered capability list.
// Each is genuinely backed by behavior this adapter implements
// (§4.4's command table); capabilities this server does not implement
// are simply absent from the list, which is how the real
// google/go-dap Capabilities struct (optional, omitempty boolean
// fields per the DAP schema) ends up omitting them from the wire body.
var serverCapabilities = []serverCapability{
	{"supportsConfigurationDoneRequest", func(c *godap.Capabilities) { c.SupportsConfigurationDoneRequest = true }},
	{"supportsTerminateRequest", func(c *godap.Capabilities) { c.SupportsTerminateRequest = true }},
	{"supportTerminateDebuggee", func(c *godap.Capabilities) { c.SupportTerminateDebuggee = true }},
}

// buildCapabilities returns the Capabilities value for an initialize
// reply body, with every supported flag set per serverCapabilities'
// deterministic order.
func buildCapabilities() godap.Capabilities {
	var caps godap.Capabilities
	for _, c := range serverCapabilities {
		c.set(&caps)
	}
	return caps
}
