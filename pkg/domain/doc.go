/*
Package domain contains the core domain models of the triage wizard.

It defines the entities of the questionnaire state machine and of the
submission pipeline. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture
principles.

# Key Entities

  - Step: A node of the flow graph. A sealed union of ChoiceStep,
    FreeInputStep, AutoAdvanceStep and TerminalStep.
  - Session: The runtime snapshot of one questionnaire (current step,
    answers, trail, submission latch).
  - Payload: The request shape sent to the remote triage service.
  - SubmissionRecord: One finalized report, owned by the history log.
*/
package domain
