package paths

// Topic segments of the OTA agent protocol.
// Every topic is {root}/{segment}/{deviceID}; changing a value breaks deployed consumers.

// Downstream: Cloud -> Device
const (
	// Command carries remote directives such as {"command": "check"}.
	// Pattern: {root}/command/{deviceID}
	Command = "command"
)

// Upstream: Device -> Cloud
const (
	// Online is the retained online/offline presence, also used as the last will.
	// Payload: { "online": true/false, "reason": "..." }
	// Pattern: {root}/online/{deviceID}
	Online = "online"

	// OTAStatus reports the single outcome of each update cycle.
	// Payload: { "outcome": "InstallFailed", "reason": "...", "version": "...", "cycle": "..." }
	// Pattern: {root}/ota/status/{deviceID}
	OTAStatus = "ota/status"

	// OTAProgress reports install engine state changes within a cycle.
	// Payload: { "state": "writing", "path": "primary", "bytes": 4096, "total": 8192 }
	// Pattern: {root}/ota/progress/{deviceID}
	OTAProgress = "ota/progress"
)
