/*
Package ports defines the driven ports (interfaces) of the triage wizard.

These interfaces decouple the core logic from external implementations, allowing
the wizard to work with various storage backends, remote services and brokers.

# Key Interfaces

  - RemoteService: The backend performing triage inference and account management.
  - ImageAnalyzer: Optional analysis of uploaded skin images.
  - BlobStore: Key-value persistence for sessions, history, profile and uploads.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
  - RecordPublisher: Broadcasts finalized submission records.
*/
package ports
