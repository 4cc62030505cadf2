package reconcile

// Status is the reported state of one file after reconciliation.
type Status string

const (
	StatusUpdated  Status = "updated"
	StatusUpToDate Status = "up-to-date"
	StatusConflict Status = "conflict"
	StatusSkipped  Status = "skipped"
	StatusError    Status = "error"
)

// Messages attached to file results.
const (
	MsgCreated          = "created"
	MsgTemplateUpdated  = "template updated"
	MsgOverwritten      = "local changes overwritten"
	MsgDiverged         = "local changes diverge from template"
	MsgLockRefreshed    = "lock refreshed"
	MsgTemplateNotFound = "template not found"
)

// FileResult is the outcome for one target path.
type FileResult struct {
	Path     string `json:"path"`
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Template string `json:"template,omitempty"`
}

// Report summarizes one project's reconciliation.
type Report struct {
	Dir        string       `json:"dir"`
	Template   string       `json:"template,omitempty"`
	Source     string       `json:"source,omitempty"`
	Preview    bool         `json:"preview"`
	NewPrompts []string     `json:"new_prompts,omitempty"`
	Files      []FileResult `json:"files"`
	Orphans    []string     `json:"orphans,omitempty"`
	Removed    []string     `json:"removed,omitempty"`
	Warnings   []string     `json:"warnings,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Count returns how many files ended in status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, f := range r.Files {
		if f.Status == s {
			n++
		}
	}
	return n
}

// File returns the result for path, if any.
func (r *Report) File(path string) (FileResult, bool) {
	for _, f := range r.Files {
		if f.Path == path {
			return f, true
		}
	}
	return FileResult{}, false
}

// Clean reports whether every file is up to date with nothing orphaned and
// no error.
func (r *Report) Clean() bool {
	return r.Error == "" && len(r.Orphans) == 0 && r.Count(StatusUpToDate) == len(r.Files)
}
