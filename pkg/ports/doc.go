// Package ports defines the interfaces between the Parley core and its
// adapters: persistence for sessions and approval requests, the append-only
// audit log, and distributed locking.
package ports
