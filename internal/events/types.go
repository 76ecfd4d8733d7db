package events

// Lifecycle event types published by the controller and builder.
const (
	TypeAgentRegistered  = "agent.registered"
	TypeHeartbeatOK      = "heartbeat.ok"
	TypeHeartbeatFailed  = "heartbeat.failed"
	TypeCommandReceived  = "heartbeat.command"
	TypeCommandRejected  = "heartbeat.command_rejected"
	TypeRunTransition    = "run.transition"
	TypeRunSubmitted     = "dispatch.submitted"
	TypeRunSubmitFailed  = "dispatch.submit_failed"
	TypeRunDiscarded     = "dispatch.discarded"
	TypeRunKilled        = "dispatch.killed"
	TypeBuildStarted     = "build.started"
	TypeBuildSucceeded   = "build.succeeded"
	TypeBuildFailed      = "build.failed"
	TypePushSucceeded    = "build.pushed"
	TypeControllerExited = "controller.exit"
)

// Publisher is the subset of Hub used by producers.
type Publisher interface {
	Publish(eventType string, data any)
}
