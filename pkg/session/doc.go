/*
Package session implements session persistence and concurrency control.

Sessions live in a ports.BlobStore under the "session:" prefix as JSON.
The Manager serializes every load-modify-save cycle per session id, using
reference-counted local mutexes and, across replicas, an optional
ports.DistributedLocker.
*/
package session
