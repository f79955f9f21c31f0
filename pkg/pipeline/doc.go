/*
Package pipeline turns a questionnaire session into a triage report.

Submit is the top-level operation: it projects the session answers into a
domain.Payload, calls the remote service exactly once to submit and once to
fetch the report, then Finalize prepends a SubmissionRecord to the capped
history log, refreshes the cached profile and publishes the record.

The session is passed by reference and its Submitting latch is held for the
whole operation. A recorded voice blob is uploaded first on a best-effort
basis; its outcome is reported as an AudioUpload value and never aborts the
submission.
*/
package pipeline
