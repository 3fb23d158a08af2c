// Package report turns engine snapshots into operator-facing output.
//
// [Render] is a pure function from a snapshot to two artifacts: a styled
// human summary for the terminal and a [Handoff] payload for scripts and
// agents driving the CLI with --json. It holds no state and performs no I/O;
// presentation stays fully decoupled from the step machine.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"phasegate/internal/definition"
	"phasegate/internal/engine"
	"phasegate/internal/store"
	"phasegate/internal/verify"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	blockedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	abortedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999")).Bold(true)
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	stepStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	verdictStyles = map[verify.Outcome]lipgloss.Style{
		verify.OutcomePassed:       doneStyle,
		verify.OutcomeFailed:       blockedStyle,
		verify.OutcomeInconclusive: promptStyle,
	}
)

// Handoff is the machine-readable companion to the human summary. It is the
// payload printed by --json and is stable enough for scripts to branch on
// Action.
type Handoff struct {
	InstanceID   string                   `json:"instance_id"`
	Definition   definition.Ref           `json:"definition"`
	Status       store.InstanceStatus     `json:"status"`
	PhaseIndex   int                      `json:"phase_index"`
	StepIndex    int                      `json:"step_index"`
	TotalSteps   int                      `json:"total_steps"`
	Counts       map[store.StepStatus]int `json:"counts"`
	CurrentStep  string                   `json:"current_step,omitempty"`
	Action       engine.NextAction        `json:"action"`
	Prompt       string                   `json:"prompt,omitempty"`
	Message      string                   `json:"message,omitempty"`
	Verification *verify.Result           `json:"verification,omitempty"`
	Artifacts    []string                 `json:"artifacts,omitempty"`
}

// Render builds the human summary and handoff payload for a snapshot.
func Render(snap engine.Snapshot) (string, Handoff) {
	handoff := Handoff{
		InstanceID:   snap.InstanceID,
		Definition:   snap.Definition,
		Status:       snap.Status,
		PhaseIndex:   snap.PhaseIndex,
		StepIndex:    snap.StepIndex,
		TotalSteps:   snap.TotalSteps,
		Counts:       snap.Counts,
		Action:       snap.Action,
		Prompt:       snap.Prompt,
		Message:      snap.Message,
		Verification: snap.Verification,
		Artifacts:    snap.Artifacts,
	}
	if snap.Current != nil {
		handoff.CurrentStep = snap.Current.ID
	}

	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s  %s  %s\n",
		titleStyle.Render(snap.InstanceID),
		mutedStyle.Render(snap.Definition.String()),
		statusBadge(snap.Status)))
	b.WriteString(progressLine(snap) + "\n")

	if snap.Current != nil {
		b.WriteString(currentStepLines(snap.Current))
	}

	if snap.Message != "" {
		b.WriteString(snap.Message + "\n")
	}
	if snap.Verification != nil && snap.Verification.Outcome == verify.OutcomeFailed && snap.Verification.Reason != "" {
		b.WriteString(blockedStyle.Render("verification failed:") + " " + snap.Verification.Reason + "\n")
	}

	if snap.Action == engine.ActionAttest && snap.Prompt != "" {
		b.WriteString(promptStyle.Render("! attestation required:") + " " + snap.Prompt + "\n")
	}

	b.WriteString(nextLine(snap.Action) + "\n")

	if len(snap.Artifacts) > 0 {
		b.WriteString(mutedStyle.Render("artifacts:") + "\n")
		for _, ref := range snap.Artifacts {
			b.WriteString("  - " + ref + "\n")
		}
	}

	if len(snap.Decisions) > 0 {
		b.WriteString(mutedStyle.Render("recent decisions:") + "\n")
		for _, entry := range snap.Decisions {
			line := fmt.Sprintf("  %s  %s", entry.At.Format("2006-01-02 15:04"), entry.Text)
			b.WriteString(mutedStyle.Render(line) + "\n")
		}
	}

	return strings.TrimRight(b.String(), "\n"), handoff
}

func statusBadge(status store.InstanceStatus) string {
	label := strings.ToUpper(string(status))
	switch status {
	case store.InstanceCompleted:
		return doneStyle.Render(label)
	case store.InstanceBlocked:
		return blockedStyle.Render(label)
	case store.InstanceAborted:
		return abortedStyle.Render(label)
	default:
		return activeStyle.Render(label)
	}
}

func progressLine(snap engine.Snapshot) string {
	settled := snap.Counts[store.StepCompleted] + snap.Counts[store.StepSkipped]
	line := fmt.Sprintf("%d of %d steps settled", settled, snap.TotalSteps)
	if skipped := snap.Counts[store.StepSkipped]; skipped > 0 {
		line += fmt.Sprintf(" (%d skipped)", skipped)
	}
	if snap.Current != nil {
		line = fmt.Sprintf("phase %d/%d · %s", snap.PhaseIndex+1, snap.PhaseCount, line)
	}
	return line
}

func currentStepLines(current *engine.StepInfo) string {
	var b strings.Builder
	head := fmt.Sprintf("current step: %s", current.ID)
	if current.Description != "" {
		head += " — " + current.Description
	}
	b.WriteString(stepStyle.Render(head) + "\n")

	var detail []string
	if current.Phase != "" {
		detail = append(detail, "phase "+current.Phase)
	}
	detail = append(detail, string(current.Status))
	if current.Optional {
		detail = append(detail, "optional")
	}
	if current.Owner != "" {
		detail = append(detail, "owner "+current.Owner)
	}
	b.WriteString(mutedStyle.Render("  "+strings.Join(detail, " · ")) + "\n")

	if v := current.Verification; v != nil {
		line := fmt.Sprintf("  last verification: %s", verdictStyles[v.Outcome].Render(string(v.Outcome)))
		if v.Attested {
			line += " (attested)"
		}
		if v.Reason != "" {
			line += " — " + v.Reason
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func nextLine(action engine.NextAction) string {
	switch action {
	case engine.ActionAttest:
		return "next: phasegate attest --pass (or --fail) to resolve the gate"
	case engine.ActionRetryOrAbort:
		return "next: phasegate retry to re-attempt the failed step, or phasegate abort to end the run"
	case engine.ActionDone:
		return doneStyle.Render("workflow complete") + " — nothing left to run"
	case engine.ActionAborted:
		return abortedStyle.Render("instance aborted") + " — record kept for audit"
	default:
		return "next: phasegate continue to process the current step"
	}
}
