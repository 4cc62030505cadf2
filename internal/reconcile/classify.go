// Package reconcile decides, file by file, how a generated project relates
// to its template and applies the resulting updates.
//
// Three fingerprints drive every decision: the template's current rendered
// content (T), the project's current content (P) and the content the engine
// last wrote (L, from the lock file).
package reconcile

// Outcome is the result of classifying one file.
type Outcome int

const (
	// Create: the project lacks the file.
	Create Outcome = iota
	// UpToDate: the project already matches the template.
	UpToDate
	// TemplateUpdated: the project is untouched since the last sync and the
	// template moved on.
	TemplateUpdated
	// Diverged: the project differs from what the engine last wrote (or
	// the engine never wrote it) and from the template.
	Diverged
)

func (o Outcome) String() string {
	switch o {
	case Create:
		return "create"
	case UpToDate:
		return "up-to-date"
	case TemplateUpdated:
		return "template-updated"
	case Diverged:
		return "diverged"
	}
	return "unknown"
}

// Hashes are the inputs of a classification. Empty Project or Last means
// absent.
type Hashes struct {
	Template string
	Project  string
	Last     string
}

// Decision is a classification result.
type Decision struct {
	Outcome Outcome
	// Heal is set on UpToDate when the recorded hash is stale and should be
	// replaced by the template hash without touching the file.
	Heal bool
}

// Classify applies the reconciliation table. It has no side effects.
func Classify(h Hashes) Decision {
	switch {
	case h.Project == "":
		return Decision{Outcome: Create}
	case h.Project == h.Template:
		return Decision{Outcome: UpToDate, Heal: h.Last != h.Template}
	case h.Last != "" && h.Project == h.Last:
		return Decision{Outcome: TemplateUpdated}
	default:
		return Decision{Outcome: Diverged}
	}
}
