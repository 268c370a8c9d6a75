package sync

// GateStatus вариант результата гейта
type GateStatus string

const (
	GateReady   GateStatus = "READY"
	GatePending GateStatus = "PENDING"
	GateFailed  GateStatus = "FAILED"
)

// GateResult Ready | Pending(reason) | Failed(reason). Не сохраняется.
type GateResult struct {
	Status GateStatus
	Reason string
}

func Ready() GateResult {
	return GateResult{Status: GateReady}
}

func Pending(reason string) GateResult {
	return GateResult{Status: GatePending, Reason: reason}
}

func Failed(reason string) GateResult {
	return GateResult{Status: GateFailed, Reason: reason}
}

func (r GateResult) IsReady() bool {
	return r.Status == GateReady
}

func (r GateResult) String() string {
	if r.Reason == "" {
		return string(r.Status)
	}
	return string(r.Status) + ": " + r.Reason
}

// JobStatus статус bootstrap-задачи оркестратора
type JobStatus string

const (
	JobReady   JobStatus = "READY"
	JobPending JobStatus = "PENDING"
	JobDone    JobStatus = "DONE"
	JobFailed  JobStatus = "FAILED"
)

type JobResult struct {
	ID      string    `json:"id"`
	Status  JobStatus `json:"status"`
	Message string    `json:"message,omitempty"`
}

// FirstWith первый результат с указанным статусом
func FirstWith(results []JobResult, status JobStatus) (JobResult, bool) {
	for _, r := range results {
		if r.Status == status {
			return r, true
		}
	}
	return JobResult{}, false
}
