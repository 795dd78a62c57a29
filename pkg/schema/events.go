// pkg/schema/events.go
package schema

// CommandAction names what an inbound command asks the compiler to do.
type CommandAction string

const (
	ActionCompile   CommandAction = "compile"
	ActionEnable    CommandAction = "enable"
	ActionDisable   CommandAction = "disable"
	ActionDestroyed CommandAction = "destroyed"
)

// CompileCommand is published by the editor (or cmd/requeue) to drive the compiler.
type CompileCommand struct {
	Action     CommandAction `json:"action"`
	SceneID    string        `json:"scene_id"`
	GameID     string        `json:"game_id,omitempty"`
	HappenedAt int64         `json:"happened_at"`
}

type Stage string

const (
	StageQueued    Stage = "queued"
	StageRunning   Stage = "running"
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
	StageAborted   Stage = "aborted"
	StageDropped   Stage = "dropped"
)

type FailureType string

const (
	FailureTypeGeneration FailureType = "generation"
	FailureTypeToolchain  FailureType = "toolchain"
	FailureTypeAborted    FailureType = "aborted"
	FailureTypeInternal   FailureType = "internal"
)

type CompilationEvent struct {
	JobID       string      `json:"job_id"`
	SceneID     string      `json:"scene_id"`
	GameID      string      `json:"game_id"`
	Stage       Stage       `json:"stage"`
	Artifact    string      `json:"artifact,omitempty"`
	QueueDepth  int         `json:"queue_depth"`
	DurationMs  int64       `json:"duration_ms,omitempty"`
	Reason      string      `json:"reason,omitempty"`
	Error       string      `json:"error,omitempty"`
	FailureType FailureType `json:"failure_type,omitempty"`
	HappenedAt  int64       `json:"happened_at"`
}
