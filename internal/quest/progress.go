package quest

import "fmt"

// Progress is the quest state machine value: either Ongoing at a specific
// (stage, part, status) tuple, or Completed. The zero value is
// Ongoing{0, Starter, Start}, the state of a freshly created quest.
//
// The variant tag is private so the two cases cannot be mixed: a Completed
// progress has no stage index, and an Ongoing progress always carries a
// valid one.
type Progress struct {
	completed bool
	stage     int
	part      Part
	status    Status
}

// Ongoing builds an in-progress value at the given stage, part and status.
func Ongoing(stage int, part Part, status Status) Progress {
	return Progress{stage: stage, part: part, status: status}
}

// Completed builds the terminal progress value.
func Completed() Progress {
	return Progress{completed: true}
}

// IsCompleted reports whether every stage's terminal condition holds.
func (p Progress) IsCompleted() bool {
	return p.completed
}

// At returns the (stage, part, status) tuple of an ongoing quest.
// ok is false when the quest is completed.
func (p Progress) At() (stage int, part Part, status Status, ok bool) {
	if p.completed {
		return 0, 0, 0, false
	}
	return p.stage, p.part, p.status, true
}

func (p Progress) String() string {
	if p.completed {
		return "completed"
	}
	return fmt.Sprintf("stage %d, %s, %s", p.stage, p.part, p.status)
}
