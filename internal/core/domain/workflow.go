package domain

import "time"

type WorkflowStage string

const (
	StageDownloading WorkflowStage = "downloading"
	StageExtracting  WorkflowStage = "extracting"
	StageValidating  WorkflowStage = "validating"
	StagePersisting  WorkflowStage = "persisting"
	StageNotifying   WorkflowStage = "notifying"
	StageCleanup     WorkflowStage = "cleanup"
	StageDone        WorkflowStage = "done"
)

// WorkflowOutcome is the transient result of one ingestion run.
type WorkflowOutcome struct {
	WorkflowID string        `json:"workflow_id"`
	FileName   string        `json:"file_name"`
	ChannelID  string        `json:"channel_id"`
	Success    bool          `json:"success"`
	Stage      WorkflowStage `json:"stage"`
	Error      string        `json:"error,omitempty"`
	RecordID   string        `json:"record_id,omitempty"`
	ModelUsed  string        `json:"model_used,omitempty"`
	Degraded   bool          `json:"degraded,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Status is the one-word summary shown to operators: failed, degraded or ok.
func (o WorkflowOutcome) Status() string {
	switch {
	case !o.Success:
		return "failed"
	case o.Degraded:
		return "degraded"
	default:
		return "ok"
	}
}

func (o WorkflowOutcome) Duration() time.Duration {
	if o.FinishedAt.Before(o.StartedAt) {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}
