package turn

// Display is the UI sink the turn engine drives. Every method is
// best-effort from the engine's point of view: a Display
// implementation should never make the engine's control flow depend
// on rendering succeeding.
type Display interface {
	StartSpinning()
	StopSpinning()
	ShowLog(line string)
	StartThinking()
	ShowReasoningDelta(content string)
	EndThinking()
	ShowAnswerDelta(content string)
	EndAnswer()
	ShowToolCall(name string, arguments string)
	// ConfirmRunCommand asks the user whether to execute argv, returning
	// the decision to apply (and, for ApprovalAlways, remember for the
	// session).
	ConfirmRunCommand(argv []string) ApprovalDecision
	// ConfirmApplyPatch asks the user whether to apply the patch
	// rendered in preview.
	ConfirmApplyPatch(preview string) ApprovalDecision
	ShowToolOutput(name string, result any)
	// ShowOnboarding explains first-run setup when no hub (or no
	// weights) could be reached.
	ShowOnboarding()
}
